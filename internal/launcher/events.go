package launcher

import (
	"encoding/json"
	"strings"

	"batch-transcriber/internal/domain"
	"batch-transcriber/internal/history"
)

// EventKind classifies one parsed worker stdout line.
type EventKind string

const (
	EventFileDone    EventKind = "file_done"
	EventFileSkipped EventKind = "file_skipped"
	EventFileFailed  EventKind = "file_failed"
	EventSummary     EventKind = "summary"
	EventFatalError  EventKind = "fatal_error"
	// EventPassthrough is a well-formed worker event with no launcher-side
	// state (start, file_started, file_progress, ...); forwarded verbatim.
	EventPassthrough EventKind = "passthrough"
	// EventRawLine is a malformed stdout line forwarded as plain text.
	EventRawLine EventKind = "raw_line"
)

// Summary mirrors the worker's summary event totals. The last occurrence
// wins when the worker emits it more than once.
type Summary struct {
	Total           uint64
	Processed       uint64
	Skipped         uint64
	Failed          uint64
	DurationSeconds float64
}

// WorkerEvent is one classified worker stdout line. Payload carries the
// original JSON for in-order forwarding; Line carries malformed text.
type WorkerEvent struct {
	Kind    EventKind
	Payload json.RawMessage
	Line    string

	// EventFileDone / EventFileSkipped / EventFileFailed
	File    string
	Outcome history.FileOutcome

	// EventSummary
	Summary Summary

	// EventFatalError
	Error string
}

// wireEvent is the superset of fields across recognized worker events.
type wireEvent struct {
	Event  string `json:"event"`
	File   string `json:"file"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
	Output struct {
		Txt  string `json:"txt"`
		JSON string `json:"json"`
	} `json:"output"`
	Total           uint64  `json:"total"`
	Processed       uint64  `json:"processed"`
	Skipped         uint64  `json:"skipped"`
	Failed          uint64  `json:"failed"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// parseWorkerLine classifies one stdout line. Blank lines return ok=false.
// Malformed JSON becomes an EventRawLine rather than being dropped.
func parseWorkerLine(line string) (WorkerEvent, bool) {
	if strings.TrimSpace(line) == "" {
		return WorkerEvent{}, false
	}

	var wire wireEvent
	if err := json.Unmarshal([]byte(line), &wire); err != nil {
		return WorkerEvent{Kind: EventRawLine, Line: line}, true
	}

	event := WorkerEvent{Payload: json.RawMessage(line)}
	switch wire.Event {
	case "file_done", "file_skipped", "file_failed":
		if wire.File == "" {
			event.Kind = EventPassthrough
			return event, true
		}
	}

	switch wire.Event {
	case "file_done":
		event.Kind = EventFileDone
		event.File = wire.File
		event.Outcome = history.FileOutcome{
			Status:         domain.FileStatusSuccess,
			TranscriptPath: wire.Output.Txt,
			JSONPath:       wire.Output.JSON,
		}
	case "file_skipped":
		event.Kind = EventFileSkipped
		event.File = wire.File
		event.Outcome = history.FileOutcome{
			Status:         domain.FileStatusSkipped,
			TranscriptPath: wire.Output.Txt,
			JSONPath:       wire.Output.JSON,
			Error:          wire.Reason,
		}
	case "file_failed":
		event.Kind = EventFileFailed
		event.File = wire.File
		event.Outcome = history.FileOutcome{
			Status: domain.FileStatusFailed,
			Error:  wire.Error,
		}
	case "summary":
		event.Kind = EventSummary
		event.Summary = Summary{
			Total:           wire.Total,
			Processed:       wire.Processed,
			Skipped:         wire.Skipped,
			Failed:          wire.Failed,
			DurationSeconds: wire.DurationSeconds,
		}
	case "fatal_error":
		event.Kind = EventFatalError
		event.Error = wire.Error
	default:
		event.Kind = EventPassthrough
	}
	return event, true
}
