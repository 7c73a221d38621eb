// Package manifest persists the durable per-session job specification the
// worker process reads.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"batch-transcriber/internal/domain"
)

// Store writes session manifests into a sessions directory.
type Store struct {
	dir string
}

// NewStore creates a manifest store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// DefaultSessionsDir returns the sessions directory under the user home.
func DefaultSessionsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}
	return filepath.Join(home, ".batch-transcriber", "sessions"), nil
}

// Generate assigns a fresh session id and creation timestamp, then writes
// the manifest to <dir>/<session_id>.json. Returns the session id and the
// manifest path.
func (s *Store) Generate(
	provider string,
	model string,
	outputDir string,
	items []domain.QueueItem,
	settings domain.TranscriptionSettings,
) (string, string, error) {
	sessionID := uuid.NewString()
	createdAt := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	files := make([]domain.FileEntry, 0, len(items))
	for _, item := range items {
		status := item.Status
		if strings.TrimSpace(status) == "" {
			status = domain.FileStatusQueued
		}
		files = append(files, domain.FileEntry{
			ID:     item.ID,
			Path:   item.Path,
			Status: status,
		})
	}

	m := domain.SessionManifest{
		SessionID: sessionID,
		CreatedAt: createdAt,
		Provider:  provider,
		Model:     model,
		OutputDir: outputDir,
		Settings:  settings,
		Files:     files,
	}

	path, err := s.writeAtomic(m)
	if err != nil {
		return "", "", err
	}
	return sessionID, path, nil
}

// writeAtomic writes the full manifest to a temp file, syncs it, and renames
// it over the final path. A crash mid-write leaves only an orphaned temp
// file, never a truncated manifest.
func (s *Store) writeAtomic(m domain.SessionManifest) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create sessions directory %s: %w", s.dir, err)
	}

	payload, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serialize session manifest: %w", err)
	}

	finalPath := filepath.Join(s.dir, m.SessionID+".json")
	tmpPath := filepath.Join(s.dir, m.SessionID+".tmp")

	file, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("create temporary manifest %s: %w", tmpPath, err)
	}
	if _, err := file.Write(payload); err != nil {
		file.Close()
		return "", fmt.Errorf("write temporary manifest %s: %w", tmpPath, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return "", fmt.Errorf("sync temporary manifest %s: %w", tmpPath, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close temporary manifest %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("move manifest %s -> %s: %w", tmpPath, finalPath, err)
	}
	return finalPath, nil
}

// Read loads a manifest back from disk.
func Read(path string) (domain.SessionManifest, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return domain.SessionManifest{}, fmt.Errorf("read session manifest %s: %w", path, err)
	}

	var m domain.SessionManifest
	if err := json.Unmarshal(payload, &m); err != nil {
		return domain.SessionManifest{}, fmt.Errorf("parse session manifest %s: %w", path, err)
	}
	return m, nil
}

// Cleanup deletes a manifest. Deleting an absent manifest is not an error.
func Cleanup(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("remove manifest %s: %w", path, err)
}
