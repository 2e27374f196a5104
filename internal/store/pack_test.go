package store

import (
	"archive/zip"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartoza/solvency/internal/config"
	"github.com/kartoza/solvency/internal/errors"
	"github.com/kartoza/solvency/internal/model"
	"github.com/kartoza/solvency/internal/model/modeltest"
)

func artifactsConfig(dir string) config.ArtifactsConfig {
	return config.ArtifactsConfig{
		Source:    config.SourceDir,
		Dir:       dir,
		Scaler:    "scaler.json",
		Logistic:  filepath.Join("models", "log_model.json"),
		KNN:       filepath.Join("models", "knn.json"),
		KNNLegacy: "knn.json",
	}
}

func writeZip(t *testing.T, path string, entries map[string]interface{}) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, doc := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		require.NoError(t, json.NewEncoder(w).Encode(doc))
	}
	require.NoError(t, zw.Close())
}

func TestInstallPack(t *testing.T) {
	tmp := t.TempDir()
	zipPath := filepath.Join(tmp, "pack.zip")
	writeZip(t, zipPath, map[string]interface{}{
		"scaler.json":           modeltest.ScalerDoc(),
		"models/log_model.json": modeltest.LogisticDoc(),
		"models/knn.json":       modeltest.KNNDoc(),
		PackManifestName:        PackManifest{Format: PackFormat, Version: "2024.1", Description: "test"},
	})

	cfg := artifactsConfig(filepath.Join(tmp, "artifacts"))
	manifest, err := InstallPack(context.Background(), zipPath, cfg, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "2024.1", manifest.Version)

	_, err = Load(context.Background(), NewDirSource(DirPaths(cfg)))
	require.NoError(t, err)

	installed, ok := ReadPackManifest(cfg.Dir)
	require.True(t, ok)
	assert.Equal(t, "test", installed.Description)

	// Staging dir is removed
	entries, err := os.ReadDir(cfg.Dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".pack-")
	}
}

func TestInstallPackRejectsBrokenPack(t *testing.T) {
	tmp := t.TempDir()
	cfg := artifactsConfig(filepath.Join(tmp, "artifacts"))
	modeltest.WriteArtifacts(t, cfg.Dir)
	before, err := os.ReadFile(filepath.Join(cfg.Dir, "scaler.json"))
	require.NoError(t, err)

	// Missing the knn model
	zipPath := filepath.Join(tmp, "broken.zip")
	bad := modeltest.ScalerDoc()
	bad.Mean = []float64{1, 2, 3, 4, 5, 6}
	writeZip(t, zipPath, map[string]interface{}{
		"scaler.json":           bad,
		"models/log_model.json": modeltest.LogisticDoc(),
	})

	_, err = InstallPack(context.Background(), zipPath, cfg, "1.0.0")
	require.Error(t, err)

	after, err := os.ReadFile(filepath.Join(cfg.Dir, "scaler.json"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestInstallPackRejectsZipSlip(t *testing.T) {
	tmp := t.TempDir()
	zipPath := filepath.Join(tmp, "slip.zip")
	writeZip(t, zipPath, map[string]interface{}{
		"../escape.json": modeltest.ScalerDoc(),
	})

	_, err := InstallPack(context.Background(), zipPath, artifactsConfig(filepath.Join(tmp, "artifacts")), "1.0.0")
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(tmp, "artifacts", "escape.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestInstallPackRequiresZip(t *testing.T) {
	_, err := InstallPack(context.Background(), "pack.tar", artifactsConfig(t.TempDir()), "1.0.0")
	assert.Error(t, err)
}

func TestInstallPackVersionConstraint(t *testing.T) {
	tmp := t.TempDir()
	zipPath := filepath.Join(tmp, "pack.zip")
	writeZip(t, zipPath, map[string]interface{}{
		"scaler.json":           modeltest.ScalerDoc(),
		"models/log_model.json": modeltest.LogisticDoc(),
		"models/knn.json":       modeltest.KNNDoc(),
		PackManifestName:        PackManifest{Format: PackFormat, Version: "2025.2", Requires: ">= 2.0.0"},
	})

	tests := []struct {
		name       string
		appVersion string
		wantErr    bool
	}{
		{"too old", "1.4.0", true},
		{"satisfied", "2.1.0", false},
		{"development build", "dev", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := artifactsConfig(filepath.Join(t.TempDir(), "artifacts"))
			_, err := InstallPack(context.Background(), zipPath, cfg, tt.appVersion)
			if tt.wantErr {
				require.Error(t, err)
				_, statErr := os.Stat(filepath.Join(cfg.Dir, "scaler.json"))
				assert.True(t, os.IsNotExist(statErr))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestCheckRequiresInvalidConstraint(t *testing.T) {
	assert.Error(t, checkRequires("not a constraint !!", "1.0.0"))
	assert.NoError(t, checkRequires("", "1.0.0"))
}

func TestInstallPackWithAbsoluteArtifactPaths(t *testing.T) {
	tmp := t.TempDir()
	cfg := artifactsConfig(filepath.Join(tmp, "artifacts"))
	installed := modeltest.WriteArtifacts(t, cfg.Dir)
	cfg.Scaler = installed.Scaler
	before, err := os.ReadFile(installed.Scaler)
	require.NoError(t, err)

	corrupt := filepath.Join(tmp, "corrupt.zip")
	writeZip(t, corrupt, map[string]interface{}{
		"scaler.json":           "not a scaler",
		"models/log_model.json": modeltest.LogisticDoc(),
		"models/knn.json":       modeltest.KNNDoc(),
	})
	_, err = InstallPack(context.Background(), corrupt, cfg, "1.0.0")
	require.Error(t, err)
	after, err := os.ReadFile(installed.Scaler)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	updated := modeltest.ScalerDoc()
	updated.Mean[0] = 42
	good := filepath.Join(tmp, "good.zip")
	writeZip(t, good, map[string]interface{}{
		"scaler.json":           updated,
		"models/log_model.json": modeltest.LogisticDoc(),
		"models/knn.json":       modeltest.KNNDoc(),
	})
	_, err = InstallPack(context.Background(), good, cfg, "1.0.0")
	require.NoError(t, err)

	var got model.ScalerDocument
	data, err := os.ReadFile(installed.Scaler)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 42.0, got.Mean[0])
}

func TestInstallPackRejectsArtifactOutsideDir(t *testing.T) {
	tmp := t.TempDir()
	cfg := artifactsConfig(filepath.Join(tmp, "artifacts"))
	cfg.Scaler = filepath.Join(tmp, "elsewhere", "scaler.json")

	zipPath := filepath.Join(tmp, "pack.zip")
	writeZip(t, zipPath, map[string]interface{}{
		"scaler.json":           modeltest.ScalerDoc(),
		"models/log_model.json": modeltest.LogisticDoc(),
		"models/knn.json":       modeltest.KNNDoc(),
	})
	_, err := InstallPack(context.Background(), zipPath, cfg, "1.0.0")
	require.Error(t, err)
	assert.NotEmpty(t, errors.GetAllHints(err))
	_, statErr := os.Stat(cfg.Scaler)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRelativePaths(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	cfg := artifactsConfig(dir)
	cfg.Logistic = filepath.Join(dir, "custom", "lr.json")

	layout, err := RelativePaths(cfg)
	require.NoError(t, err)
	assert.Equal(t, "scaler.json", layout[ArtifactScaler])
	assert.Equal(t, filepath.Join("custom", "lr.json"), layout[ArtifactLogistic])
	assert.Equal(t, filepath.Join("models", "knn.json"), layout[ArtifactKNN])

	cfg.KNN = filepath.Join("..", "knn.json")
	_, err = RelativePaths(cfg)
	assert.Error(t, err)
}
