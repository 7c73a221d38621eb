// Package registry enumerates transcription providers and probes whether
// their runtimes can actually be launched on this machine.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"time"

	"batch-transcriber/internal/domain"
)

const (
	NativeProviderID        = "coreml-local"
	LegacyNativeProviderID  = "parakeet-coreml"
	WhisperProviderID       = "whisper-openai"
	FasterWhisperProviderID = "faster-whisper"

	NativeToolName       = "coreml-batch"
	LegacyNativeToolName = "parakeet-batch"
)

// CapabilityTimeout bounds every capability probe; probes that exceed it
// are killed and the runtime is treated as unavailable.
const CapabilityTimeout = 5 * time.Second

const uvInstallURL = "https://docs.astral.sh/uv/getting-started/installation/"

// commandRunner abstracts probe process execution for testability.
type commandRunner interface {
	Succeeds(name string, args ...string) bool
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner executes probe commands via os/exec.
type execRunner struct{}

// Succeeds runs a command discarding output and reports exit success.
func (r *execRunner) Succeeds(name string, args ...string) bool {
	cmd := exec.Command(name, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}

// Output runs a command under ctx and returns stdout on success exit.
// Context cancellation kills the process.
func (r *execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = nil

	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}

// Registry probes a fixed provider list against local runtimes.
type Registry struct {
	binaryPath   string
	modelsRoot   string
	probeTimeout time.Duration
	runner       commandRunner
	stat         func(string) (os.FileInfo, error)
	chmod        func(string, os.FileMode) error
}

// New creates a registry for the given native worker binary and models root.
func New(binaryPath, modelsRoot string) *Registry {
	return &Registry{
		binaryPath:   binaryPath,
		modelsRoot:   modelsRoot,
		probeTimeout: CapabilityTimeout,
		runner:       &execRunner{},
		stat:         os.Stat,
		chmod:        os.Chmod,
	}
}

// BinaryPath returns the native worker binary path this registry probes.
func (r *Registry) BinaryPath() string {
	return r.binaryPath
}

// NormalizeProviderID maps legacy provider ids to their canonical value.
func NormalizeProviderID(id string) string {
	if id == LegacyNativeProviderID {
		return NativeProviderID
	}
	return id
}

// ManagedCommandArgs builds the environment-manager argument list that runs
// entryPoint for a managed worker package, preferring the in-repo project
// directory when it carries a pyproject.toml.
func ManagedCommandArgs(pkg, entryPoint string, entryArgs ...string) []string {
	var args []string
	if dir, ok := workerProjectDir(pkg); ok && projectFileExists(dir) {
		args = []string{"--directory", dir, "run", entryPoint}
	} else {
		args = []string{"run", "--package", pkg, entryPoint}
	}
	return append(args, entryArgs...)
}

// workerProjectDir maps known managed packages to their worker directories.
func workerProjectDir(pkg string) (string, bool) {
	switch pkg {
	case "whisper-batch":
		return filepath.Join("workers", "whisper-batch"), true
	case "faster-whisper-batch":
		return filepath.Join("workers", "faster-whisper-batch"), true
	default:
		return "", false
	}
}

func projectFileExists(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, "pyproject.toml"))
	return err == nil && !info.IsDir()
}

// remoteCapabilities is the static descriptor for remote API runtimes;
// network and credentials are validated at call time, not probe time.
func remoteCapabilities() *domain.Capabilities {
	boolPtr := func(v bool) *bool { return &v }
	concurrent := uint32(1)
	return &domain.Capabilities{
		SupportedModels:    []string{},
		SupportedFormats:   []string{"wav", "mp3"},
		ConcurrentFiles:    &concurrent,
		WordTimestamps:     boolPtr(true),
		SpeakerDiarization: boolPtr(false),
		LanguageDetection:  boolPtr(true),
		Translation:        boolPtr(false),
	}
}

// parseCapabilities decodes a worker --capabilities payload.
func parseCapabilities(payload []byte) (*domain.Capabilities, error) {
	var caps domain.Capabilities
	if err := json.Unmarshal(payload, &caps); err != nil {
		return nil, fmt.Errorf("parse capabilities payload: %w", err)
	}
	return &caps, nil
}

// isExecutable reports whether path is a regular file with execute permission.
func (r *Registry) isExecutable(path string) bool {
	info, err := r.stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if goruntime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

// probeBinary runs path --capabilities within the probe timeout and parses
// the reported capability descriptor.
func (r *Registry) probeBinary(path string) (*domain.Capabilities, error) {
	if !r.isExecutable(path) {
		return nil, fmt.Errorf("worker binary is not executable: %s", path)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.probeTimeout)
	defer cancel()

	payload, err := r.runner.Output(ctx, path, "--capabilities")
	if err != nil {
		return nil, fmt.Errorf("capability probe failed for %s: %w", path, err)
	}
	return parseCapabilities(payload)
}

// probeManaged runs the managed package's capability probe via uv.
func (r *Registry) probeManaged(pkg, entryPoint string) (*domain.Capabilities, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.probeTimeout)
	defer cancel()

	args := ManagedCommandArgs(pkg, entryPoint, "--capabilities")
	payload, err := r.runner.Output(ctx, "uv", args...)
	if err != nil {
		return nil, fmt.Errorf("capability probe failed for package %s: %w", pkg, err)
	}
	return parseCapabilities(payload)
}

// CheckAvailable reports whether a resolved runtime can be launched now.
func (r *Registry) CheckAvailable(runtime domain.ProviderRuntime) bool {
	switch runtime.Kind {
	case domain.RuntimeNativeBinary:
		_, err := r.probeBinary(runtime.BinaryPath)
		return err == nil
	case domain.RuntimeManagedEnv:
		if !r.runner.Succeeds("uv", "--version") {
			return false
		}
		_, err := r.probeManaged(runtime.Package, runtime.EntryPoint)
		return err == nil
	case domain.RuntimeRemoteAPI:
		return true
	default:
		return false
	}
}

// QueryCapabilities returns the capability descriptor for an available runtime.
func (r *Registry) QueryCapabilities(runtime domain.ProviderRuntime) *domain.Capabilities {
	switch runtime.Kind {
	case domain.RuntimeNativeBinary:
		caps, err := r.probeBinary(runtime.BinaryPath)
		if err != nil {
			return nil
		}
		return caps
	case domain.RuntimeManagedEnv:
		caps, err := r.probeManaged(runtime.Package, runtime.EntryPoint)
		if err != nil {
			return nil
		}
		return caps
	case domain.RuntimeRemoteAPI:
		return remoteCapabilities()
	default:
		return nil
	}
}

// installInstructions builds a remediation hint for an unavailable runtime.
func installInstructions(runtime domain.ProviderRuntime, uvAvailable bool) string {
	switch runtime.Kind {
	case domain.RuntimeNativeBinary:
		return "Build the native worker with `cd native-worker && swift build -c release`, then retry."
	case domain.RuntimeManagedEnv:
		if !uvAvailable {
			return fmt.Sprintf("Install uv (%s) and then run provider setup for `%s`.", uvInstallURL, runtime.Package)
		}
		probeCmd := fmt.Sprintf("uv run --package %s %s --capabilities", runtime.Package, runtime.Package)
		if dir, ok := workerProjectDir(runtime.Package); ok && projectFileExists(dir) {
			probeCmd = fmt.Sprintf("uv --directory %s run %s --capabilities", dir, runtime.EntryPoint)
		}
		return fmt.Sprintf("Install or fix the `%s` runtime so `%s` succeeds.", runtime.Package, probeCmd)
	case domain.RuntimeRemoteAPI:
		return "Set the API base URL and credentials in settings before use."
	default:
		return ""
	}
}

// knownProviders returns the fixed provider list before probing.
func (r *Registry) knownProviders() []domain.Provider {
	return []domain.Provider{
		{
			ID:   NativeProviderID,
			Name: "CoreML Local",
			Runtime: domain.ProviderRuntime{
				Kind:       domain.RuntimeNativeBinary,
				BinaryPath: r.binaryPath,
				ModelDir:   r.modelsRoot,
			},
		},
		{
			ID:   WhisperProviderID,
			Name: "Whisper (OpenAI)",
			Runtime: domain.ProviderRuntime{
				Kind:       domain.RuntimeManagedEnv,
				Package:    "whisper-batch",
				EntryPoint: "whisper_batch",
			},
		},
		{
			ID:   FasterWhisperProviderID,
			Name: "Faster Whisper",
			Runtime: domain.ProviderRuntime{
				Kind:       domain.RuntimeManagedEnv,
				Package:    "faster-whisper-batch",
				EntryPoint: "faster_whisper_batch",
			},
		},
	}
}

// ensureExecutable marks a discovered binary executable. Best effort; a
// failed chmod never blocks probing.
func (r *Registry) ensureExecutable(path string) {
	info, err := r.stat(path)
	if err != nil || goruntime.GOOS == "windows" {
		return
	}
	if info.Mode().Perm()&0o111 != 0 {
		return
	}
	_ = r.chmod(path, info.Mode().Perm()|0o755)
}

// Providers probes every known provider and fills availability, capability,
// and remediation metadata.
func (r *Registry) Providers() []domain.Provider {
	providers := r.knownProviders()
	uvAvailable := r.runner.Succeeds("uv", "--version")

	for i := range providers {
		provider := &providers[i]
		if provider.Runtime.Kind == domain.RuntimeNativeBinary {
			r.ensureExecutable(provider.Runtime.BinaryPath)
		}

		available := false
		if provider.Runtime.Kind == domain.RuntimeManagedEnv && !uvAvailable {
			available = false
		} else {
			available = r.CheckAvailable(provider.Runtime)
		}

		provider.Available = available
		if available {
			provider.InstallInstructions = ""
			provider.Capabilities = r.QueryCapabilities(provider.Runtime)
			if provider.Capabilities == nil {
				log.Printf("provider probe warning: failed to query capabilities for %s", provider.ID)
			}
		} else {
			provider.Capabilities = nil
			provider.InstallInstructions = installInstructions(provider.Runtime, uvAvailable)
		}
	}

	return providers
}

// NewForTests creates a registry with injectable probe dependencies.
func NewForTests(
	binaryPath string,
	modelsRoot string,
	probeTimeout time.Duration,
	runner commandRunner,
	stat func(string) (os.FileInfo, error),
	chmod func(string, os.FileMode) error,
) *Registry {
	return &Registry{
		binaryPath:   binaryPath,
		modelsRoot:   modelsRoot,
		probeTimeout: probeTimeout,
		runner:       runner,
		stat:         stat,
		chmod:        chmod,
	}
}
