package domain

// Settings contains persisted application configuration.
type Settings struct {
	ModelsRoot    string                `json:"modelsRoot"`
	OutputDir     string                `json:"outputDir"`
	Provider      string                `json:"provider"`
	Model         string                `json:"model"`
	Transcription TranscriptionSettings `json:"transcription"`
}
