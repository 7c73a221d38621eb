package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"batch-transcriber/internal/domain"
)

func testItems() []domain.QueueItem {
	return []domain.QueueItem{
		{ID: "item-1", Path: "/audio/a.mp3", Status: ""},
		{ID: "item-2", Path: "/audio/b.wav", Status: "retry"},
	}
}

func TestGenerateWritesManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	sessionID, path, err := store.Generate(
		"coreml-local", "v3", "/out", testItems(), domain.DefaultTranscriptionSettings(),
	)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if sessionID == "" {
		t.Fatal("expected non-empty session id")
	}
	if want := filepath.Join(dir, sessionID+".json"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}

	m, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if m.SessionID != sessionID {
		t.Fatalf("SessionID = %q, want %q", m.SessionID, sessionID)
	}
	if m.Provider != "coreml-local" || m.Model != "v3" || m.OutputDir != "/out" {
		t.Fatalf("manifest header = %q/%q/%q", m.Provider, m.Model, m.OutputDir)
	}
	if len(m.Files) != 2 {
		t.Fatalf("len(Files) = %d, want 2", len(m.Files))
	}
}

func TestGenerateDefaultsBlankStatusesToQueued(t *testing.T) {
	store := NewStore(t.TempDir())

	_, path, err := store.Generate("coreml-local", "v3", "/out", testItems(), domain.TranscriptionSettings{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	m, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if m.Files[0].Status != domain.FileStatusQueued {
		t.Fatalf("blank status = %q, want %q", m.Files[0].Status, domain.FileStatusQueued)
	}
	if m.Files[1].Status != "retry" {
		t.Fatalf("explicit status = %q, want preserved", m.Files[1].Status)
	}
}

func TestGenerateAssignsFreshSessionIDs(t *testing.T) {
	store := NewStore(t.TempDir())

	first, _, err := store.Generate("coreml-local", "v3", "/out", testItems(), domain.TranscriptionSettings{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, _, err := store.Generate("coreml-local", "v3", "/out", testItems(), domain.TranscriptionSettings{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if first == second {
		t.Fatalf("session ids collide: %q", first)
	}
}

func TestGenerateTimestampFormat(t *testing.T) {
	store := NewStore(t.TempDir())

	_, path, err := store.Generate("coreml-local", "v3", "/out", testItems(), domain.TranscriptionSettings{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	m, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if _, err := time.Parse("2006-01-02T15:04:05.000Z", m.CreatedAt); err != nil {
		t.Fatalf("CreatedAt %q does not match expected layout: %v", m.CreatedAt, err)
	}
}

func TestGenerateLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	if _, _, err := store.Generate("coreml-local", "v3", "/out", testItems(), domain.TranscriptionSettings{}); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	store := NewStore(t.TempDir())

	_, path, err := store.Generate("coreml-local", "v3", "/out", testItems(), domain.TranscriptionSettings{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if err := Cleanup(path); err != nil {
		t.Fatalf("first Cleanup: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("manifest still present after cleanup: %v", err)
	}
	if err := Cleanup(path); err != nil {
		t.Fatalf("second Cleanup: %v", err)
	}
}

func TestReadMissingManifest(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}
