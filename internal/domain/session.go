package domain

// SessionStatus is the terminal status recorded for one session.
type SessionStatus string

const (
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// File statuses as they appear in manifests and history records.
const (
	FileStatusQueued    = "queued"
	FileStatusSuccess   = "success"
	FileStatusSkipped   = "skipped"
	FileStatusFailed    = "failed"
	FileStatusCancelled = "cancelled"
)

// QueueItem is one file queued for transcription by the UI.
type QueueItem struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Status string `json:"status"`
}

// FileEntry is one file listed in a session manifest.
type FileEntry struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Status string `json:"status"`
}

// TranscriptionSettings contains user-selectable options for one session.
type TranscriptionSettings struct {
	OutputFormat         string   `json:"outputFormat"`
	Recursive            bool     `json:"recursive"`
	Overwrite            bool     `json:"overwrite"`
	MaxRetries           uint32   `json:"maxRetries"`
	Extensions           []string `json:"extensions"`
	FFmpegFallback       bool     `json:"ffmpegFallback"`
	DryRun               bool     `json:"dryRun"`
	NotificationsEnabled bool     `json:"notificationsEnabled"`
	NotifyOnComplete     bool     `json:"notifyOnComplete"`
	NotifyOnError        bool     `json:"notifyOnError"`
}

// DefaultTranscriptionSettings returns baseline session options.
func DefaultTranscriptionSettings() TranscriptionSettings {
	return TranscriptionSettings{
		OutputFormat:         "both",
		Recursive:            true,
		Overwrite:            false,
		MaxRetries:           1,
		Extensions:           []string{"mp3", "wav", "m4a"},
		FFmpegFallback:       true,
		DryRun:               false,
		NotificationsEnabled: true,
		NotifyOnComplete:     true,
		NotifyOnError:        true,
	}
}

// SessionManifest is the durable job specification the worker reads.
// It is immutable once written; session identity is assigned exactly
// once at manifest creation.
type SessionManifest struct {
	SessionID string                `json:"sessionId"`
	CreatedAt string                `json:"createdAt"`
	Provider  string                `json:"provider"`
	Model     string                `json:"model"`
	OutputDir string                `json:"outputDir"`
	Settings  TranscriptionSettings `json:"settings"`
	Files     []FileEntry           `json:"files"`
}
