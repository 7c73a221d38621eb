package registry

import (
	"os"
	"path/filepath"
)

// localToolBinaryPath returns the locally built worker binary path for tool.
func localToolBinaryPath(tool string) string {
	return filepath.Join("native-worker", ".build", "release", tool)
}

// bundledToolBinaryPath returns the app-bundled worker binary path for tool.
func bundledToolBinaryPath(tool string) (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(exe), "resources", tool), nil
}

// DefaultWorkerBinaryPath is the canonical native worker location used when
// no candidate exists anywhere.
func DefaultWorkerBinaryPath() string {
	return localToolBinaryPath(NativeToolName)
}

func localWorkerCandidates() []string {
	return []string{
		localToolBinaryPath(NativeToolName),
		localToolBinaryPath(LegacyNativeToolName),
	}
}

func bundledWorkerCandidates() []string {
	var candidates []string
	for _, tool := range []string{NativeToolName, LegacyNativeToolName} {
		if path, err := bundledToolBinaryPath(tool); err == nil {
			candidates = append(candidates, path)
		}
	}
	return candidates
}

// firstCapable returns the first candidate answering the capability probe.
func (r *Registry) firstCapable(candidates []string) (string, bool) {
	for _, candidate := range candidates {
		if _, err := r.probeBinary(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

// firstExisting returns the first candidate present on disk.
func (r *Registry) firstExisting(candidates []string) (string, bool) {
	for _, candidate := range candidates {
		if _, err := r.stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

// ResolveWorkerBinary picks the native worker binary. Resolution is total:
// locally built candidates win over bundled ones, probe-passing candidates
// win over merely existing ones, and the canonical default is returned when
// nothing exists so callers always have a path to report.
func (r *Registry) ResolveWorkerBinary() string {
	return r.ResolveWorkerBinaryFrom(localWorkerCandidates(), bundledWorkerCandidates())
}

// ResolveWorkerBinaryFrom applies the same total resolution order to an
// explicit candidate set. Used by startup wiring and tests.
func (r *Registry) ResolveWorkerBinaryFrom(local, bundled []string) string {
	if path, ok := r.firstCapable(local); ok {
		return path
	}
	if path, ok := r.firstCapable(bundled); ok {
		return path
	}
	if path, ok := r.firstExisting(local); ok {
		return path
	}
	if path, ok := r.firstExisting(bundled); ok {
		return path
	}
	return DefaultWorkerBinaryPath()
}
