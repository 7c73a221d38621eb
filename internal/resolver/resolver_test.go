package resolver

import (
	"errors"
	"path/filepath"
	"testing"

	"batch-transcriber/internal/domain"
	"batch-transcriber/internal/registry"
)

// recordingChecker reports a fixed availability answer and captures the
// runtime it was asked about.
type recordingChecker struct {
	available bool
	asked     []domain.ProviderRuntime
}

func (c *recordingChecker) CheckAvailable(runtime domain.ProviderRuntime) bool {
	c.asked = append(c.asked, runtime)
	return c.available
}

func baseOptions() Options {
	return Options{
		BinaryPath: "/opt/worker/coreml-batch",
		ModelsRoot: "/models",
	}
}

func TestResolveNativeProviderBuildsModelDir(t *testing.T) {
	runtime, err := Resolve("coreml-local", "v3", baseOptions())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if runtime.Kind != domain.RuntimeNativeBinary {
		t.Fatalf("Kind = %q, want %q", runtime.Kind, domain.RuntimeNativeBinary)
	}
	if runtime.BinaryPath != "/opt/worker/coreml-batch" {
		t.Fatalf("BinaryPath = %q", runtime.BinaryPath)
	}
	want := filepath.Join("/models", NativeModelFolderV3)
	if runtime.ModelDir != want {
		t.Fatalf("ModelDir = %q, want %q", runtime.ModelDir, want)
	}
}

func TestResolveModelAliases(t *testing.T) {
	cases := []struct {
		model string
		want  string
	}{
		{"v3", NativeModelFolderV3},
		{"V3", NativeModelFolderV3},
		{"v2", NativeModelFolderV2},
		{NativeModelFolderV2, NativeModelFolderV2},
		{"custom-model", "custom-model"},
	}

	for _, tc := range cases {
		runtime, err := Resolve("coreml-local", tc.model, baseOptions())
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tc.model, err)
		}
		want := filepath.Join("/models", tc.want)
		if runtime.ModelDir != want {
			t.Fatalf("ModelDir for %q = %q, want %q", tc.model, runtime.ModelDir, want)
		}
	}
}

func TestResolveNormalizesLegacyProviderID(t *testing.T) {
	runtime, err := Resolve("parakeet-coreml", "v3", baseOptions())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if runtime.Kind != domain.RuntimeNativeBinary {
		t.Fatalf("Kind = %q, want native", runtime.Kind)
	}
}

func TestResolveManagedProviderIgnoresModelDir(t *testing.T) {
	runtime, err := Resolve("whisper-openai", "large-v3", baseOptions())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if runtime.Kind != domain.RuntimeManagedEnv {
		t.Fatalf("Kind = %q, want managed", runtime.Kind)
	}
	if runtime.Package != "whisper-batch" || runtime.EntryPoint != "whisper_batch" {
		t.Fatalf("Package/EntryPoint = %q/%q", runtime.Package, runtime.EntryPoint)
	}
	if runtime.ModelDir != "" {
		t.Fatalf("ModelDir = %q, want empty", runtime.ModelDir)
	}
}

func TestResolveUnknownProvider(t *testing.T) {
	_, err := Resolve("nonexistent", "v3", baseOptions())

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
	if notFound.ProviderID != "nonexistent" {
		t.Fatalf("ProviderID = %q", notFound.ProviderID)
	}
}

func TestResolveRejectsInvalidModels(t *testing.T) {
	for _, model := range []string{"", "   ", "../escape", "a/b", `a\b`} {
		_, err := Resolve("coreml-local", model, baseOptions())

		var invalid *InvalidModelError
		if !errors.As(err, &invalid) {
			t.Fatalf("Resolve(model=%q) err = %v, want InvalidModelError", model, err)
		}
	}
}

func TestResolveAvailabilityGate(t *testing.T) {
	opts := baseOptions()
	opts.CheckAvailability = true
	opts.Availability = &recordingChecker{available: false}

	_, err := Resolve(registry.FasterWhisperProviderID, "ignored", opts)

	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("err = %v, want UnavailableError", err)
	}
	if unavailable.ProviderID != registry.FasterWhisperProviderID {
		t.Fatalf("ProviderID = %q", unavailable.ProviderID)
	}
}

func TestResolveAvailabilityPassesResolvedRuntime(t *testing.T) {
	checker := &recordingChecker{available: true}
	opts := baseOptions()
	opts.CheckAvailability = true
	opts.Availability = checker

	runtime, err := Resolve("coreml-local", "v2", opts)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if len(checker.asked) != 1 {
		t.Fatalf("availability checked %d times, want 1", len(checker.asked))
	}
	if checker.asked[0] != runtime {
		t.Fatalf("checked runtime %+v, want %+v", checker.asked[0], runtime)
	}
}

func TestResolveSkipsAvailabilityWhenDisabled(t *testing.T) {
	checker := &recordingChecker{available: false}
	opts := baseOptions()
	opts.Availability = checker

	if _, err := Resolve("coreml-local", "v3", opts); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(checker.asked) != 0 {
		t.Fatalf("availability checked %d times, want 0", len(checker.asked))
	}
}
