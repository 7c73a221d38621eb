package domain

// RuntimeKind discriminates the concrete launch strategy of a provider.
type RuntimeKind string

const (
	RuntimeNativeBinary RuntimeKind = "native-binary"
	RuntimeManagedEnv   RuntimeKind = "managed-env"
	RuntimeRemoteAPI    RuntimeKind = "remote-api"
)

// ProviderRuntime is the resolved launch specification for one provider.
// Only the fields matching Kind are populated.
type ProviderRuntime struct {
	Kind RuntimeKind `json:"type"`

	// RuntimeNativeBinary
	BinaryPath string `json:"binaryPath,omitempty"`
	ModelDir   string `json:"modelDir,omitempty"`

	// RuntimeManagedEnv
	Package    string `json:"package,omitempty"`
	EntryPoint string `json:"entryPoint,omitempty"`

	// RuntimeRemoteAPI
	BaseURL     string `json:"baseUrl,omitempty"`
	RequiresKey bool   `json:"requiresKey,omitempty"`
}

// Capabilities describes what a worker runtime reported via its
// --capabilities probe. Field names follow the worker protocol.
type Capabilities struct {
	SupportedModels    []string `json:"supported_models"`
	SupportedFormats   []string `json:"supported_formats"`
	MaxFileSize        *uint64  `json:"max_file_size,omitempty"`
	ConcurrentFiles    *uint32  `json:"concurrent_files,omitempty"`
	WordTimestamps     *bool    `json:"word_timestamps,omitempty"`
	SpeakerDiarization *bool    `json:"speaker_diarization,omitempty"`
	LanguageDetection  *bool    `json:"language_detection,omitempty"`
	Translation        *bool    `json:"translation,omitempty"`
}

// Provider is one selectable transcription backend with probe results.
type Provider struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Runtime             ProviderRuntime `json:"runtime"`
	Available           bool            `json:"available"`
	Capabilities        *Capabilities   `json:"capabilities,omitempty"`
	InstallInstructions string          `json:"installInstructions,omitempty"`
}
