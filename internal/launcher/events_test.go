package launcher

import (
	"testing"

	"batch-transcriber/internal/domain"
)

func TestParseWorkerLineBlank(t *testing.T) {
	for _, line := range []string{"", "   ", "\t"} {
		if _, ok := parseWorkerLine(line); ok {
			t.Fatalf("parseWorkerLine(%q) ok = true, want dropped", line)
		}
	}
}

func TestParseWorkerLineMalformedJSON(t *testing.T) {
	event, ok := parseWorkerLine("Loading model weights...")
	if !ok {
		t.Fatal("expected malformed line to be kept")
	}
	if event.Kind != EventRawLine {
		t.Fatalf("Kind = %q, want raw line", event.Kind)
	}
	if event.Line != "Loading model weights..." {
		t.Fatalf("Line = %q", event.Line)
	}
}

func TestParseWorkerLineFileDone(t *testing.T) {
	line := `{"event":"file_done","file":"/audio/a.mp3","output":{"txt":"/out/a.txt","json":"/out/a.json"}}`
	event, ok := parseWorkerLine(line)
	if !ok {
		t.Fatal("expected event")
	}
	if event.Kind != EventFileDone {
		t.Fatalf("Kind = %q", event.Kind)
	}
	if event.File != "/audio/a.mp3" {
		t.Fatalf("File = %q", event.File)
	}
	if event.Outcome.Status != domain.FileStatusSuccess {
		t.Fatalf("Outcome.Status = %q", event.Outcome.Status)
	}
	if event.Outcome.TranscriptPath != "/out/a.txt" || event.Outcome.JSONPath != "/out/a.json" {
		t.Fatalf("Outcome paths = %q/%q", event.Outcome.TranscriptPath, event.Outcome.JSONPath)
	}
	if string(event.Payload) != line {
		t.Fatalf("Payload = %s", event.Payload)
	}
}

func TestParseWorkerLineFileSkippedCarriesReasonAndOutputs(t *testing.T) {
	line := `{"event":"file_skipped","file":"/audio/a.mp3","reason":"transcript exists","output":{"txt":"/out/a.txt"}}`
	event, ok := parseWorkerLine(line)
	if !ok {
		t.Fatal("expected event")
	}
	if event.Kind != EventFileSkipped {
		t.Fatalf("Kind = %q", event.Kind)
	}
	if event.Outcome.Status != domain.FileStatusSkipped {
		t.Fatalf("Outcome.Status = %q", event.Outcome.Status)
	}
	if event.Outcome.Error != "transcript exists" {
		t.Fatalf("Outcome.Error = %q", event.Outcome.Error)
	}
	if event.Outcome.TranscriptPath != "/out/a.txt" {
		t.Fatalf("Outcome.TranscriptPath = %q", event.Outcome.TranscriptPath)
	}
}

func TestParseWorkerLineFileFailed(t *testing.T) {
	event, ok := parseWorkerLine(`{"event":"file_failed","file":"/audio/a.mp3","error":"decode failed"}`)
	if !ok {
		t.Fatal("expected event")
	}
	if event.Kind != EventFileFailed {
		t.Fatalf("Kind = %q", event.Kind)
	}
	if event.Outcome.Status != domain.FileStatusFailed || event.Outcome.Error != "decode failed" {
		t.Fatalf("Outcome = %+v", event.Outcome)
	}
}

func TestParseWorkerLineSummary(t *testing.T) {
	event, ok := parseWorkerLine(`{"event":"summary","total":3,"processed":2,"skipped":0,"failed":1,"duration_seconds":42.5}`)
	if !ok {
		t.Fatal("expected event")
	}
	if event.Kind != EventSummary {
		t.Fatalf("Kind = %q", event.Kind)
	}
	want := Summary{Total: 3, Processed: 2, Failed: 1, DurationSeconds: 42.5}
	if event.Summary != want {
		t.Fatalf("Summary = %+v, want %+v", event.Summary, want)
	}
}

func TestParseWorkerLineFatalError(t *testing.T) {
	event, ok := parseWorkerLine(`{"event":"fatal_error","error":"model directory not found"}`)
	if !ok {
		t.Fatal("expected event")
	}
	if event.Kind != EventFatalError || event.Error != "model directory not found" {
		t.Fatalf("event = %+v", event)
	}
}

func TestParseWorkerLineUnknownEventPassesThrough(t *testing.T) {
	event, ok := parseWorkerLine(`{"event":"file_progress","file":"/audio/a.mp3","percent":40}`)
	if !ok {
		t.Fatal("expected event")
	}
	if event.Kind != EventPassthrough {
		t.Fatalf("Kind = %q, want passthrough", event.Kind)
	}
}

func TestParseWorkerLineFileEventWithoutPathPassesThrough(t *testing.T) {
	event, ok := parseWorkerLine(`{"event":"file_done"}`)
	if !ok {
		t.Fatal("expected event")
	}
	if event.Kind != EventPassthrough {
		t.Fatalf("Kind = %q, want passthrough for missing file path", event.Kind)
	}
}
