// Package bootstrap wires the application together and exposes the methods
// bound to the desktop frontend.
package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"batch-transcriber/internal/config"
	"batch-transcriber/internal/diagnostics"
	"batch-transcriber/internal/domain"
	"batch-transcriber/internal/events"
	"batch-transcriber/internal/history"
	"batch-transcriber/internal/launcher"
	"batch-transcriber/internal/manifest"
	"batch-transcriber/internal/notify"
	"batch-transcriber/internal/registry"
	"batch-transcriber/internal/resolver"
	"batch-transcriber/internal/scan"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

var audioDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Audio files",
		Pattern:     "*.mp3;*.wav;*.m4a;*.flac;*.ogg;*.aac;*.aiff;*.wma",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// StartRequest carries everything needed to begin a transcription session.
type StartRequest struct {
	Provider  string                       `json:"provider"`
	Model     string                       `json:"model"`
	OutputDir string                       `json:"outputDir"`
	Items     []domain.QueueItem           `json:"items"`
	Settings  domain.TranscriptionSettings `json:"settings"`
}

// StartResponse reports the identity of a launched session.
type StartResponse struct {
	SessionID    string `json:"sessionId"`
	ManifestPath string `json:"manifestPath"`
}

// App wires configuration, provider discovery, session launching, history,
// and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Manifests   *manifest.Store
	History     *history.Store
	Launcher    *launcher.Launcher
	Scanner     *scan.Scanner
	Notifier    notify.Notifier
	Diagnostics diagnostics.Report

	assets  fs.FS
	checker *diagnostics.Checker
	bus     *events.Bus

	mu         sync.Mutex
	runtimeCtx context.Context
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded
// frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	store := config.NewJSONStore(config.DefaultSettingsPath())
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	sessionsDir, err := manifest.DefaultSessionsDir()
	if err != nil {
		return nil, fmt.Errorf("resolve sessions dir: %w", err)
	}
	dbPath, err := history.DefaultDBPath()
	if err != nil {
		return nil, fmt.Errorf("resolve history path: %w", err)
	}

	checker := diagnostics.NewChecker()
	notifier := notify.NewDesktopNotifier()
	historyStore := history.NewStore(dbPath)

	app := &App{
		Settings:    settings,
		Store:       store,
		Manifests:   manifest.NewStore(sessionsDir),
		History:     historyStore,
		Scanner:     scan.NewScanner(),
		Notifier:    notifier,
		Diagnostics: checker.Run(settings),
		assets:      assets,
		checker:     checker,
		bus:         events.NewBus(1000),
	}
	app.Launcher = launcher.New(app, historyStore, notifier)
	return app, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Batch Transcriber",
		Width:       1180,
		Height:      780,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// transcriptionEventChannel is the single Wails event name the frontend
// subscribes to; each pushed payload carries its own event name and seq.
const transcriptionEventChannel = "transcription:event"

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// Emit records the event in the replayable bus and pushes it to the frontend.
func (a *App) Emit(name string, payload any) {
	published := a.bus.Publish(name, payload)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, transcriptionEventChannel, published)
	}
}

// Events returns all recorded events with sequence greater than sinceSeq.
func (a *App) Events(sinceSeq int64) []events.Event {
	return a.bus.Since(sinceSeq)
}

// registryFor builds a provider registry with the worker binary resolved
// against the current filesystem.
func (a *App) registryFor(modelsRoot string) *registry.Registry {
	probe := registry.New(registry.DefaultWorkerBinaryPath(), modelsRoot)
	return registry.New(probe.ResolveWorkerBinary(), modelsRoot)
}

// GetProviders probes every known provider and reports availability.
func (a *App) GetProviders() []domain.Provider {
	a.mu.Lock()
	modelsRoot := a.Settings.ModelsRoot
	a.mu.Unlock()

	return a.registryFor(modelsRoot).Providers()
}

// StartTranscription resolves the requested runtime, writes a session
// manifest, and launches the worker. The manifest is removed again when the
// launch itself fails.
func (a *App) StartTranscription(req StartRequest) (StartResponse, error) {
	if len(req.Items) == 0 {
		return StartResponse{}, fmt.Errorf("transcription queue is empty")
	}

	outputDir := strings.TrimSpace(req.OutputDir)
	if outputDir == "" {
		a.mu.Lock()
		outputDir = a.Settings.OutputDir
		a.mu.Unlock()
	}
	if outputDir == "" {
		return StartResponse{}, fmt.Errorf("output directory is not configured")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return StartResponse{}, fmt.Errorf("create output directory: %w", err)
	}

	a.mu.Lock()
	modelsRoot := a.Settings.ModelsRoot
	a.mu.Unlock()

	reg := a.registryFor(modelsRoot)
	runtime, err := resolver.Resolve(req.Provider, req.Model, resolver.Options{
		BinaryPath:        reg.BinaryPath(),
		ModelsRoot:        modelsRoot,
		CheckAvailability: true,
		Availability:      reg,
	})
	if err != nil {
		return StartResponse{}, err
	}

	sessionID, manifestPath, err := a.Manifests.Generate(
		registry.NormalizeProviderID(req.Provider),
		req.Model,
		outputDir,
		req.Items,
		req.Settings,
	)
	if err != nil {
		return StartResponse{}, fmt.Errorf("write session manifest: %w", err)
	}

	itemIDs := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		itemIDs = append(itemIDs, item.ID)
	}

	prefs := notify.Preferences{
		NotificationsEnabled: req.Settings.NotificationsEnabled,
		NotifyOnComplete:     req.Settings.NotifyOnComplete,
		NotifyOnError:        req.Settings.NotifyOnError,
	}

	if err := a.Launcher.Launch(runtime, sessionID, manifestPath, outputDir, itemIDs, prefs); err != nil {
		if cleanupErr := manifest.Cleanup(manifestPath); cleanupErr != nil {
			a.Emit(launcher.SessionEventName, map[string]any{
				"event":      "manifest_cleanup_failed",
				"session_id": sessionID,
				"error":      cleanupErr.Error(),
			})
		}
		return StartResponse{}, err
	}

	return StartResponse{SessionID: sessionID, ManifestPath: manifestPath}, nil
}

// StopTranscription requests a graceful stop of the named session.
func (a *App) StopTranscription(sessionID string) error {
	return a.Launcher.Stop(sessionID)
}

// ActiveSessionID returns the running session id, or empty when idle.
func (a *App) ActiveSessionID() string {
	return a.Launcher.ActiveSessionID()
}

// GetSessionHistory returns all archived sessions, newest first.
func (a *App) GetSessionHistory() ([]history.SessionRecord, error) {
	return a.History.List()
}

// DeleteSession removes one archived session and its file rows.
func (a *App) DeleteSession(sessionID string) error {
	return a.History.Delete(sessionID)
}

// ScanPaths validates explicit file paths and builds queue items for them.
func (a *App) ScanPaths(paths []string) ([]scan.Item, error) {
	return a.Scanner.ScanFiles(paths)
}

// ScanDirectory collects supported audio files under a directory.
func (a *App) ScanDirectory(root string, recursive bool) ([]scan.Item, error) {
	return a.Scanner.ScanDirectory(root, recursive)
}

// ReadTranscript returns the contents of a finished transcript file.
func (a *App) ReadTranscript(path string) (string, error) {
	normalized := strings.TrimSpace(path)
	if normalized == "" {
		return "", fmt.Errorf("transcript path is empty")
	}

	data, err := os.ReadFile(normalized)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("transcript not found: %s", normalized)
		}
		return "", fmt.Errorf("read transcript %s: %w", normalized, err)
	}
	return string(data), nil
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = normalized
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(normalized)
	}
	a.mu.Unlock()

	return normalized, nil
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() diagnostics.Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (diagnostics.Report, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return diagnostics.Report{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.Diagnostics = a.checker.Run(settings)
	report := a.Diagnostics
	a.mu.Unlock()

	return report, nil
}

// CheckNotificationPermission reports OS-level notification permission.
func (a *App) CheckNotificationPermission() bool {
	return a.Notifier.CheckPermission()
}

// RequestNotificationPermission prompts the OS notification permission dialog.
func (a *App) RequestNotificationPermission() bool {
	return a.Notifier.RequestPermission()
}

// PickAudioFiles opens a native multi-select dialog for audio files.
func (a *App) PickAudioFiles() ([]string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return nil, err
	}

	paths, err := wailsruntime.OpenMultipleFilesDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select audio files",
		Filters: audioDialogFilter,
	})
	if err != nil {
		return nil, err
	}

	cleaned := make([]string, 0, len(paths))
	for _, path := range paths {
		if trimmed := strings.TrimSpace(path); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned, nil
}

// PickScanDirectory opens a native directory picker for queue scanning.
func (a *App) PickScanDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select folder to scan",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickModelsDirectory opens a native directory picker for the models root.
func (a *App) PickModelsDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select models directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickOutputDirectory opens a native directory picker for transcript output.
func (a *App) PickOutputDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select output directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// OpenOutputFolder opens the given path (or configured output dir) in the
// platform file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.Settings.OutputDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// normalizeSettings trims user inputs and applies defaults for blank fields.
func normalizeSettings(settings domain.Settings) domain.Settings {
	defaults := config.DefaultSettings()

	settings.ModelsRoot = strings.TrimSpace(settings.ModelsRoot)
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)
	settings.Provider = registry.NormalizeProviderID(strings.TrimSpace(settings.Provider))
	settings.Model = strings.TrimSpace(settings.Model)

	if settings.ModelsRoot == "" {
		settings.ModelsRoot = defaults.ModelsRoot
	}
	if settings.OutputDir == "" {
		settings.OutputDir = defaults.OutputDir
	}
	if settings.Provider == "" {
		settings.Provider = defaults.Provider
	}
	if settings.Model == "" {
		settings.Model = defaults.Model
	}
	if settings.Transcription.Extensions == nil {
		settings.Transcription = domain.DefaultTranscriptionSettings()
	}
	return settings
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}
