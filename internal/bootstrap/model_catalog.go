package bootstrap

import (
	"os"
	"path/filepath"

	"batch-transcriber/internal/domain"
	"batch-transcriber/internal/resolver"
)

// requiredModelFiles must all exist inside a model folder for the native
// worker to load it.
var requiredModelFiles = []string{
	"Preprocessor.mlmodelc",
	"Encoder.mlmodelc",
	"Decoder.mlmodelc",
	"JointDecision.mlmodelc",
	"parakeet_vocab.json",
}

var managedModelCatalog = []domain.ManagedModelOption{
	{
		Version:     "v3",
		Name:        "Parakeet TDT v3",
		Folder:      resolver.NativeModelFolderV3,
		Description: "Multilingual model (English + 25 European languages).",
	},
	{
		Version:     "v2",
		Name:        "Parakeet TDT v2",
		Folder:      resolver.NativeModelFolderV2,
		Description: "English-focused model with strong recall.",
	},
}

// isModelInstalled reports whether a model folder holds every required file.
func isModelInstalled(modelDir string) bool {
	for _, name := range requiredModelFiles {
		if _, err := os.Stat(filepath.Join(modelDir, name)); err != nil {
			return false
		}
	}
	return true
}

// GetManagedModels returns the built-in model catalog with install state
// resolved against the configured models directory.
func (a *App) GetManagedModels() []domain.ManagedModelOption {
	a.mu.Lock()
	modelsRoot := a.Settings.ModelsRoot
	a.mu.Unlock()

	models := make([]domain.ManagedModelOption, len(managedModelCatalog))
	copy(models, managedModelCatalog)

	for i := range models {
		modelDir := filepath.Join(modelsRoot, models[i].Folder)
		if isModelInstalled(modelDir) {
			models[i].Installed = true
			models[i].LocalPath = modelDir
		}
	}
	return models
}
