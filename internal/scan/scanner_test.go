package scan

import (
	"os"
	"path/filepath"
	"testing"
)

func noProbe(string) *AudioMetadata { return nil }

func writeAudioFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestIsSupportedPath(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/audio/track.mp3", true},
		{"/audio/TRACK.MP3", true},
		{"/audio/voice.aiff", true},
		{"/audio/clip.wma", true},
		{"/audio/video.mp4", false},
		{"/audio/noext", false},
	}
	for _, tc := range cases {
		if got := IsSupportedPath(tc.path); got != tc.want {
			t.Fatalf("IsSupportedPath(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestScanFilesBuildsItems(t *testing.T) {
	dir := t.TempDir()
	first := writeAudioFile(t, dir, "a.mp3")
	second := writeAudioFile(t, dir, "b.wav")

	probed := map[string]bool{}
	scanner := NewScannerForTests(func(path string) *AudioMetadata {
		probed[path] = true
		return &AudioMetadata{Codec: "mp3", Duration: 12.5}
	}, os.Stat)

	items, err := scanner.ScanFiles([]string{first, second})
	if err != nil {
		t.Fatalf("ScanFiles: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}

	item := items[0]
	if item.ID == "" {
		t.Fatal("expected generated item id")
	}
	if item.Name != "a.mp3" || item.Format != "mp3" {
		t.Fatalf("item = %+v", item)
	}
	if item.Status != "idle" {
		t.Fatalf("Status = %q, want idle", item.Status)
	}
	if item.Size != int64(len("audio")) {
		t.Fatalf("Size = %d", item.Size)
	}
	if item.Metadata == nil || item.Metadata.Duration != 12.5 {
		t.Fatalf("Metadata = %+v", item.Metadata)
	}
	if items[0].ID == items[1].ID {
		t.Fatal("item ids collide")
	}
	if !probed[first] || !probed[second] {
		t.Fatalf("probe not called for all files: %v", probed)
	}
}

func TestScanFilesRejectsUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	video := writeAudioFile(t, dir, "clip.mp4")

	scanner := NewScannerForTests(noProbe, os.Stat)
	if _, err := scanner.ScanFiles([]string{video}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestScanFilesRejectsMissingPath(t *testing.T) {
	scanner := NewScannerForTests(noProbe, os.Stat)
	if _, err := scanner.ScanFiles([]string{filepath.Join(t.TempDir(), "missing.mp3")}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestScanFilesRejectsDirectory(t *testing.T) {
	scanner := NewScannerForTests(noProbe, os.Stat)
	if _, err := scanner.ScanFiles([]string{t.TempDir()}); err == nil {
		t.Fatal("expected error for directory path")
	}
}

func TestScanDirectoryFiltersAndRecurses(t *testing.T) {
	root := t.TempDir()
	writeAudioFile(t, root, "top.mp3")
	writeAudioFile(t, root, "notes.txt")

	nested := filepath.Join(root, "nested")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir nested: %v", err)
	}
	writeAudioFile(t, nested, "deep.flac")

	scanner := NewScannerForTests(noProbe, os.Stat)

	recursive, err := scanner.ScanDirectory(root, true)
	if err != nil {
		t.Fatalf("ScanDirectory recursive: %v", err)
	}
	if len(recursive) != 2 {
		t.Fatalf("recursive items = %d, want 2", len(recursive))
	}

	flat, err := scanner.ScanDirectory(root, false)
	if err != nil {
		t.Fatalf("ScanDirectory flat: %v", err)
	}
	if len(flat) != 1 || flat[0].Name != "top.mp3" {
		t.Fatalf("flat items = %+v", flat)
	}
}

func TestScanDirectoryMissingRoot(t *testing.T) {
	scanner := NewScannerForTests(noProbe, os.Stat)
	if _, err := scanner.ScanDirectory(filepath.Join(t.TempDir(), "missing"), true); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestItemForPathWithoutMetadata(t *testing.T) {
	dir := t.TempDir()
	path := writeAudioFile(t, dir, "a.m4a")

	scanner := NewScannerForTests(noProbe, os.Stat)
	item, err := scanner.ItemForPath(path)
	if err != nil {
		t.Fatalf("ItemForPath: %v", err)
	}
	if item.Metadata != nil {
		t.Fatalf("Metadata = %+v, want nil when probe degrades", item.Metadata)
	}
}
