// Package history persists the final outcome of every transcription session
// in a queryable SQLite database.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"batch-transcriber/internal/domain"
	"batch-transcriber/internal/manifest"
)

// FileOutcome is the latest worker-reported terminal state of one file.
type FileOutcome struct {
	Status         string
	TranscriptPath string
	JSONPath       string
	Error          string
}

// SummarySnapshot mirrors the worker's final summary event totals.
type SummarySnapshot struct {
	Total           uint64
	Processed       uint64
	Skipped         uint64
	Failed          uint64
	DurationSeconds float64
}

// SessionFileRecord is one archived file row.
type SessionFileRecord struct {
	ID             string `json:"id"`
	Path           string `json:"path"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	TranscriptPath string `json:"transcriptPath,omitempty"`
	JSONPath       string `json:"jsonPath,omitempty"`
	Error          string `json:"error,omitempty"`
}

// SessionRecord is one archived session with its per-file detail.
type SessionRecord struct {
	ID              string              `json:"id"`
	CreatedAt       int64               `json:"createdAt"`
	Provider        string              `json:"provider"`
	Model           string              `json:"model"`
	OutputDir       string              `json:"outputDir"`
	ManifestPath    string              `json:"manifestPath"`
	Total           int                 `json:"total"`
	Processed       int                 `json:"processed"`
	Skipped         int                 `json:"skipped"`
	Failed          int                 `json:"failed"`
	DurationSeconds float64             `json:"durationSeconds"`
	ExitCode        int                 `json:"exitCode"`
	Status          string              `json:"status"`
	Files           []SessionFileRecord `json:"files"`
}

// Store provides archival and query access to the history database. Every
// operation opens a fresh connection, so concurrent callers serialize at the
// storage engine rather than in application code.
type Store struct {
	path string
}

// NewStore creates a history store backed by the database at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultDBPath returns the default history database location.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}
	return filepath.Join(home, ".batch-transcriber", "sessions", "history.db"), nil
}

const schema = `
PRAGMA foreign_keys = ON;
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	output_dir TEXT NOT NULL,
	manifest_path TEXT NOT NULL,
	total INTEGER NOT NULL,
	processed INTEGER NOT NULL,
	skipped INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	duration_seconds REAL NOT NULL,
	exit_code INTEGER NOT NULL,
	status TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_sessions_provider ON sessions(provider);

CREATE TABLE IF NOT EXISTS session_files (
	session_id TEXT NOT NULL,
	file_id TEXT NOT NULL,
	path TEXT NOT NULL,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	transcript_path TEXT,
	json_path TEXT,
	error TEXT,
	PRIMARY KEY(session_id, file_id, path),
	FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_session_files_session_id ON session_files(session_id);
CREATE INDEX IF NOT EXISTS idx_session_files_name ON session_files(name);
`

// open opens a connection and ensures the schema exists.
func (s *Store) open() (*sql.DB, error) {
	if parent := filepath.Dir(s.path); parent != "" && parent != "." {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return nil, fmt.Errorf("create history database directory %s: %w", parent, err)
		}
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("open history database %s: %w", s.path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize history database schema: %w", err)
	}
	return db, nil
}

// parseCreatedAtUnix converts a manifest timestamp to unix seconds, falling
// back to now for unparseable values.
func parseCreatedAtUnix(createdAt string) int64 {
	parsed, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return time.Now().Unix()
	}
	return parsed.Unix()
}

// summarizeFromFiles recounts totals directly from file rows.
func summarizeFromFiles(files []SessionFileRecord) SummarySnapshot {
	var summary SummarySnapshot
	summary.Total = uint64(len(files))
	for _, file := range files {
		switch file.Status {
		case domain.FileStatusSuccess:
			summary.Processed++
		case domain.FileStatusSkipped:
			summary.Skipped++
		case domain.FileStatusFailed:
			summary.Failed++
		}
	}
	return summary
}

// fileStatusFallback derives a file status from the overall session status
// when the worker never reported an outcome for the file.
func fileStatusFallback(sessionStatus domain.SessionStatus, manifestStatus string) string {
	switch sessionStatus {
	case domain.SessionStatusCancelled:
		return domain.FileStatusCancelled
	case domain.SessionStatusFailed:
		return domain.FileStatusFailed
	default:
		return manifestStatus
	}
}

// buildRecord merges the manifest file list with worker-reported outcomes.
// The manifest is the source of truth for which files belong to the session.
func buildRecord(
	manifestPath string,
	m domain.SessionManifest,
	sessionID string,
	summary *SummarySnapshot,
	exitCode int,
	status domain.SessionStatus,
	outcomes map[string]FileOutcome,
) SessionRecord {
	files := make([]SessionFileRecord, 0, len(m.Files))
	for _, entry := range m.Files {
		record := SessionFileRecord{
			ID:     entry.ID,
			Path:   entry.Path,
			Name:   filepath.Base(entry.Path),
			Status: fileStatusFallback(status, entry.Status),
		}
		if outcome, ok := outcomes[entry.Path]; ok {
			record.Status = outcome.Status
			record.TranscriptPath = outcome.TranscriptPath
			record.JSONPath = outcome.JSONPath
			record.Error = outcome.Error
		}
		files = append(files, record)
	}

	totals := SummarySnapshot{}
	if summary != nil {
		totals = *summary
	} else {
		totals = summarizeFromFiles(files)
	}

	return SessionRecord{
		ID:              sessionID,
		CreatedAt:       parseCreatedAtUnix(m.CreatedAt),
		Provider:        m.Provider,
		Model:           m.Model,
		OutputDir:       m.OutputDir,
		ManifestPath:    manifestPath,
		Total:           int(totals.Total),
		Processed:       int(totals.Processed),
		Skipped:         int(totals.Skipped),
		Failed:          int(totals.Failed),
		DurationSeconds: totals.DurationSeconds,
		ExitCode:        exitCode,
		Status:          string(status),
		Files:           files,
	}
}

// Archive upserts one session row and fully replaces its file rows inside a
// single transaction. Re-archiving a session id never leaves stale file rows.
func (s *Store) Archive(
	manifestPath string,
	sessionID string,
	summary *SummarySnapshot,
	exitCode int,
	status domain.SessionStatus,
	outcomes map[string]FileOutcome,
) error {
	m, err := manifest.Read(manifestPath)
	if err != nil {
		return err
	}
	record := buildRecord(manifestPath, m, sessionID, summary, exitCode, status, outcomes)

	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("open history transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO sessions (
			id, created_at, provider, model, output_dir, manifest_path,
			total, processed, skipped, failed, duration_seconds, exit_code, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.CreatedAt, record.Provider, record.Model, record.OutputDir,
		record.ManifestPath, record.Total, record.Processed, record.Skipped,
		record.Failed, record.DurationSeconds, record.ExitCode, record.Status); err != nil {
		return fmt.Errorf("persist session %s: %w", record.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM session_files WHERE session_id = ?`, record.ID); err != nil {
		return fmt.Errorf("clear existing session files %s: %w", record.ID, err)
	}

	for _, file := range record.Files {
		if _, err := tx.Exec(`
			INSERT INTO session_files (
				session_id, file_id, path, name, status, transcript_path, json_path, error
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, record.ID, file.ID, file.Path, file.Name, file.Status,
			nullable(file.TranscriptPath), nullable(file.JSONPath), nullable(file.Error)); err != nil {
			return fmt.Errorf("persist file %s for session %s: %w", file.Path, record.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history transaction: %w", err)
	}
	return nil
}

// List returns all sessions newest-first, each with files ordered by name.
func (s *Store) List() ([]SessionRecord, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT id, created_at, provider, model, output_dir, manifest_path,
			total, processed, skipped, failed, duration_seconds, exit_code, status
		FROM sessions
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionRecord
	for rows.Next() {
		var record SessionRecord
		if err := rows.Scan(&record.ID, &record.CreatedAt, &record.Provider,
			&record.Model, &record.OutputDir, &record.ManifestPath, &record.Total,
			&record.Processed, &record.Skipped, &record.Failed,
			&record.DurationSeconds, &record.ExitCode, &record.Status); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}

	for i := range sessions {
		files, err := loadSessionFiles(db, sessions[i].ID)
		if err != nil {
			return nil, err
		}
		sessions[i].Files = files
	}
	return sessions, nil
}

// loadSessionFiles returns a session's file rows ordered by filename.
func loadSessionFiles(db *sql.DB, sessionID string) ([]SessionFileRecord, error) {
	rows, err := db.Query(`
		SELECT file_id, path, name, status, transcript_path, json_path, error
		FROM session_files
		WHERE session_id = ?
		ORDER BY name ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session files: %w", err)
	}
	defer rows.Close()

	var files []SessionFileRecord
	for rows.Next() {
		var file SessionFileRecord
		var transcriptPath, jsonPath, errText sql.NullString
		if err := rows.Scan(&file.ID, &file.Path, &file.Name, &file.Status,
			&transcriptPath, &jsonPath, &errText); err != nil {
			return nil, fmt.Errorf("scan session file row: %w", err)
		}
		file.TranscriptPath = transcriptPath.String
		file.JSONPath = jsonPath.String
		file.Error = errText.String
		files = append(files, file)
	}
	return files, rows.Err()
}

// Delete removes a session and its file rows transactionally. Deleting an
// absent session id is not an error.
func (s *Store) Delete(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is empty")
	}

	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("open delete transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM session_files WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session file rows: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session row: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete transaction: %w", err)
	}
	return nil
}

// nullable maps empty strings to SQL NULL so optional columns stay NULL.
func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
