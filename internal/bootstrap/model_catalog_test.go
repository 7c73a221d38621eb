package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"batch-transcriber/internal/resolver"
)

func installModel(t *testing.T, modelsRoot, folder string) string {
	t.Helper()
	modelDir := filepath.Join(modelsRoot, folder)
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		t.Fatalf("mkdir model dir: %v", err)
	}
	for _, name := range requiredModelFiles {
		if err := os.WriteFile(filepath.Join(modelDir, name), []byte("stub"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return modelDir
}

func TestGetManagedModelsMarksInstalledFolders(t *testing.T) {
	app := testApp(t)
	installedDir := installModel(t, app.Settings.ModelsRoot, resolver.NativeModelFolderV3)

	models := app.GetManagedModels()
	if len(models) != 2 {
		t.Fatalf("len(models) = %d, want 2", len(models))
	}

	byVersion := map[string]int{}
	for i, model := range models {
		byVersion[model.Version] = i
	}

	v3 := models[byVersion["v3"]]
	if !v3.Installed {
		t.Fatal("expected v3 model to be installed")
	}
	if v3.LocalPath != installedDir {
		t.Fatalf("LocalPath = %q, want %q", v3.LocalPath, installedDir)
	}

	v2 := models[byVersion["v2"]]
	if v2.Installed || v2.LocalPath != "" {
		t.Fatalf("v2 = %+v, want not installed", v2)
	}
}

func TestIsModelInstalledRequiresEveryFile(t *testing.T) {
	modelsRoot := t.TempDir()
	modelDir := installModel(t, modelsRoot, resolver.NativeModelFolderV2)

	if !isModelInstalled(modelDir) {
		t.Fatal("expected complete model dir to be installed")
	}

	if err := os.Remove(filepath.Join(modelDir, "parakeet_vocab.json")); err != nil {
		t.Fatalf("remove vocab: %v", err)
	}
	if isModelInstalled(modelDir) {
		t.Fatal("expected incomplete model dir to be not installed")
	}
}
