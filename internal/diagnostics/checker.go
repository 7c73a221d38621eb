// Package diagnostics runs environment checks before transcription sessions.
package diagnostics

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	"batch-transcriber/internal/domain"
)

// Status values for a single diagnostic item.
const (
	StatusPass = "pass"
	StatusWarn = "warn"
	StatusFail = "fail"
)

// Item is one check result.
type Item struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// Report combines all check results for one run.
type Report struct {
	GeneratedAt time.Time `json:"generatedAt"`
	HasFailures bool      `json:"hasFailures"`
	Items       []Item    `json:"items"`
}

// Checker validates external tools and required filesystem paths.
type Checker struct {
	lookPath   func(string) (string, error)
	stat       func(string) (os.FileInfo, error)
	readDir    func(string) ([]os.DirEntry, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		stat:       os.Stat,
		readDir:    os.ReadDir,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) Report {
	items := []Item{
		c.checkTool("ffprobe", "Install ffmpeg to enable audio metadata probing; files still transcribe without it.", StatusWarn),
		c.checkTool("ffmpeg", "Install ffmpeg to enable audio conversion fallback for unusual formats.", StatusWarn),
		c.checkTool("uv", "Install uv (https://docs.astral.sh/uv/) to run Python-managed transcription providers.", StatusWarn),
		c.checkModelsRoot(settings.ModelsRoot),
		c.checkWritableDir("output_dir", "Output directory", settings.OutputDir),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == StatusFail {
			hasFailures = true
			break
		}
	}

	return Report{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkTool verifies a CLI executable is on PATH, degrading to the given
// status when missing since every tool here has a fallback path.
func (c *Checker) checkTool(name, hint, missingStatus string) Item {
	path, err := c.lookPath(name)
	if err != nil {
		return Item{
			ID:      "tool_" + name,
			Name:    name,
			Status:  missingStatus,
			Message: fmt.Sprintf("Tool not found in PATH: %s", name),
			Hint:    hint,
		}
	}

	return Item{
		ID:      "tool_" + name,
		Name:    name,
		Status:  StatusPass,
		Message: fmt.Sprintf("Found at %s", path),
	}
}

// checkModelsRoot validates the configured models directory and reports how
// many model folders it holds.
func (c *Checker) checkModelsRoot(modelsRoot string) Item {
	item := Item{
		ID:   "models_root",
		Name: "Models directory",
	}

	if strings.TrimSpace(modelsRoot) == "" {
		item.Status = StatusFail
		item.Message = "Models directory is empty."
		item.Hint = "Set the directory containing downloaded model folders."
		return item
	}

	info, err := c.stat(modelsRoot)
	if err != nil {
		item.Status = StatusFail
		if errors.Is(err, os.ErrNotExist) {
			item.Message = fmt.Sprintf("Models directory does not exist: %s", modelsRoot)
		} else {
			item.Message = fmt.Sprintf("Cannot access models directory: %s", modelsRoot)
		}
		item.Hint = "Download a model and point the models directory at its parent folder."
		return item
	}

	if !info.IsDir() {
		item.Status = StatusFail
		item.Message = fmt.Sprintf("Models path is not a directory: %s", modelsRoot)
		item.Hint = "Point the models directory at a folder, not a file."
		return item
	}

	entries, err := c.readDir(modelsRoot)
	if err != nil {
		item.Status = StatusFail
		item.Message = fmt.Sprintf("Cannot read models directory: %s", modelsRoot)
		item.Hint = "Check permissions for the models directory."
		return item
	}

	folders := 0
	for _, entry := range entries {
		if entry.IsDir() {
			folders++
		}
	}

	if folders == 0 {
		item.Status = StatusWarn
		item.Message = fmt.Sprintf("No model folders found in: %s", modelsRoot)
		item.Hint = "Download a model into this directory before starting a local transcription."
		return item
	}

	item.Status = StatusPass
	item.Message = fmt.Sprintf("Found %d model folder(s) in %s", folders, modelsRoot)
	return item
}

// checkWritableDir validates directory existence and write access.
func (c *Checker) checkWritableDir(id, name, dir string) Item {
	item := Item{
		ID:   id,
		Name: name,
	}

	if strings.TrimSpace(dir) == "" {
		item.Status = StatusFail
		item.Message = fmt.Sprintf("%s is empty.", name)
		item.Hint = "Set a directory where files can be written."
		return item
	}

	if err := c.mkdirAll(dir, 0o755); err != nil {
		item.Status = StatusFail
		item.Message = fmt.Sprintf("Cannot create directory: %s", dir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = StatusFail
		item.Message = fmt.Sprintf("Directory is not writable: %s", dir)
		item.Hint = "Choose a writable directory."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = StatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", dir)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	readDir func(string) ([]os.DirEntry, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		stat:       stat,
		readDir:    readDir,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}

// IsNotExist reports whether error represents file-not-found.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
