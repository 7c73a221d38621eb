package domain

// ManagedModelOption describes one model folder the native worker can use.
type ManagedModelOption struct {
	Version     string `json:"version"`
	Name        string `json:"name"`
	Folder      string `json:"folder"`
	Description string `json:"description,omitempty"`
	Installed   bool   `json:"installed"`
	LocalPath   string `json:"localPath,omitempty"`
}
