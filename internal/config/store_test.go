package config

import (
	"os"
	"path/filepath"
	"testing"

	"batch-transcriber/internal/domain"
	"batch-transcriber/internal/registry"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	store := NewJSONStore(filepath.Join(t.TempDir(), "settings.json"))

	settings, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	defaults := DefaultSettings()
	if settings.Provider != defaults.Provider || settings.Model != defaults.Model {
		t.Fatalf("settings = %+v, want defaults", settings)
	}
	if settings.Provider != registry.NativeProviderID {
		t.Fatalf("default provider = %q, want %q", settings.Provider, registry.NativeProviderID)
	}
	if len(settings.Transcription.Extensions) == 0 {
		t.Fatal("expected default extensions")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	store := NewJSONStore(path)

	saved := domain.Settings{
		ModelsRoot:    "/models",
		OutputDir:     "/transcripts",
		Provider:      "faster-whisper",
		Model:         "large-v3",
		Transcription: domain.DefaultTranscriptionSettings(),
	}
	if err := store.Save(saved); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ModelsRoot != saved.ModelsRoot || loaded.OutputDir != saved.OutputDir {
		t.Fatalf("loaded = %+v", loaded)
	}
	if loaded.Provider != "faster-whisper" || loaded.Model != "large-v3" {
		t.Fatalf("provider/model = %q/%q", loaded.Provider, loaded.Model)
	}
}

func TestLoadNormalizesLegacyProviderID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	payload := `{
		"modelsRoot": "/models",
		"outputDir": "/out",
		"provider": "parakeet-coreml",
		"model": "v3"
	}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	settings, err := NewJSONStore(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if settings.Provider != registry.NativeProviderID {
		t.Fatalf("Provider = %q, want normalized %q", settings.Provider, registry.NativeProviderID)
	}
}

func TestLoadFillsMissingFieldsWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"outputDir": "/out"}`), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	settings, err := NewJSONStore(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if settings.OutputDir != "/out" {
		t.Fatalf("OutputDir = %q, want preserved", settings.OutputDir)
	}
	defaults := DefaultSettings()
	if settings.ModelsRoot != defaults.ModelsRoot || settings.Provider != defaults.Provider || settings.Model != defaults.Model {
		t.Fatalf("settings = %+v, want defaults for missing fields", settings)
	}
	if settings.Transcription.OutputFormat != "both" {
		t.Fatalf("Transcription = %+v, want defaults", settings.Transcription)
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	if _, err := NewJSONStore(path).Load(); err == nil {
		t.Fatal("expected error for malformed settings")
	}
}
