package config

import (
	"os"
	"path/filepath"

	"batch-transcriber/internal/domain"
	"batch-transcriber/internal/registry"
)

// DefaultSettingsPath returns the JSON settings location under the home dir.
func DefaultSettingsPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".batch-transcriber", "settings.json")
}

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return domain.Settings{
		ModelsRoot:    filepath.Join(homeDir, ".batch-transcriber", "models"),
		OutputDir:     filepath.Join(homeDir, "Documents", "Transcripts"),
		Provider:      registry.NativeProviderID,
		Model:         "v3",
		Transcription: domain.DefaultTranscriptionSettings(),
	}
}
