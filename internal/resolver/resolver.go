// Package resolver maps a (provider id, model) pair to one concrete,
// launchable provider runtime.
package resolver

import (
	"fmt"
	"path/filepath"
	"strings"

	"batch-transcriber/internal/domain"
	"batch-transcriber/internal/registry"
)

// Canonical model folders for the native worker; "v2"/"v3" are accepted
// as short aliases.
const (
	NativeModelFolderV3 = "parakeet-tdt-0.6b-v3-coreml"
	NativeModelFolderV2 = "parakeet-tdt-0.6b-v2-coreml"
)

// NotFoundError reports an unknown provider id.
type NotFoundError struct {
	ProviderID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("provider not found: %s", e.ProviderID)
}

// UnavailableError reports a resolved runtime that cannot launch right now.
type UnavailableError struct {
	ProviderID string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("provider is unavailable: %s", e.ProviderID)
}

// InvalidModelError reports a rejected model identifier.
type InvalidModelError struct {
	Model string
}

func (e *InvalidModelError) Error() string {
	return fmt.Sprintf("invalid model value: %s", e.Model)
}

// AvailabilityChecker reports whether a runtime is currently launchable.
// Satisfied by *registry.Registry.
type AvailabilityChecker interface {
	CheckAvailable(runtime domain.ProviderRuntime) bool
}

// Options configures one resolution call.
type Options struct {
	BinaryPath        string
	ModelsRoot        string
	CheckAvailability bool
	Availability      AvailabilityChecker
}

// validateModel rejects empty/whitespace model names and any value that
// could escape the models root once joined onto it.
func validateModel(model string) (string, error) {
	trimmed := strings.TrimSpace(model)
	if trimmed == "" ||
		strings.Contains(trimmed, "..") ||
		strings.ContainsAny(trimmed, `/\`) {
		return "", &InvalidModelError{Model: model}
	}
	return trimmed, nil
}

// nativeModelDir maps model aliases onto the configured models root.
// Unrecognized values pass through verbatim.
func nativeModelDir(modelsRoot, model string) string {
	folder := model
	switch strings.ToLower(strings.TrimSpace(model)) {
	case "v3", NativeModelFolderV3:
		folder = NativeModelFolderV3
	case "v2", NativeModelFolderV2:
		folder = NativeModelFolderV2
	}
	return filepath.Join(modelsRoot, folder)
}

// Resolve turns (provider id, model) into one concrete runtime. With
// availability checking enabled an unusable runtime is never returned.
func Resolve(id, model string, opts Options) (domain.ProviderRuntime, error) {
	normalizedID := registry.NormalizeProviderID(id)
	validatedModel, err := validateModel(model)
	if err != nil {
		return domain.ProviderRuntime{}, err
	}

	var runtime domain.ProviderRuntime
	switch normalizedID {
	case registry.NativeProviderID:
		runtime = domain.ProviderRuntime{
			Kind:       domain.RuntimeNativeBinary,
			BinaryPath: opts.BinaryPath,
			ModelDir:   nativeModelDir(opts.ModelsRoot, validatedModel),
		}
	case registry.WhisperProviderID:
		// Model selection happens inside the managed worker.
		runtime = domain.ProviderRuntime{
			Kind:       domain.RuntimeManagedEnv,
			Package:    "whisper-batch",
			EntryPoint: "whisper_batch",
		}
	case registry.FasterWhisperProviderID:
		runtime = domain.ProviderRuntime{
			Kind:       domain.RuntimeManagedEnv,
			Package:    "faster-whisper-batch",
			EntryPoint: "faster_whisper_batch",
		}
	default:
		return domain.ProviderRuntime{}, &NotFoundError{ProviderID: id}
	}

	if opts.CheckAvailability {
		if opts.Availability == nil || !opts.Availability.CheckAvailable(runtime) {
			return domain.ProviderRuntime{}, &UnavailableError{ProviderID: id}
		}
	}

	return runtime, nil
}
