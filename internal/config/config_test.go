package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v, err := NewViper("")
	require.NoError(t, err)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, SourceDir, cfg.Artifacts.Source)
	assert.Equal(t, "scaler.json", cfg.Artifacts.Scaler)
	assert.Equal(t, filepath.Join("models", "knn.json"), cfg.Artifacts.KNN)
	assert.Equal(t, 0.5, cfg.Model.Threshold)
	assert.Equal(t, "knn", cfg.Model.Default)
	assert.Equal(t, CacheLRU, cfg.Cache.Backend)
	assert.Equal(t, "fr", cfg.UI.Language)
	assert.Equal(t, time.Minute, cfg.Server.RateWindow)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solvency.yaml")
	content := `
server:
  port: 9090
artifacts:
  source: sqlite
  registry: /var/lib/solvency/artifacts.db
model:
  threshold: 0.6
cache:
  backend: none
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v, err := NewViper(path)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, SourceSQLite, cfg.Artifacts.Source)
	assert.Equal(t, "/var/lib/solvency/artifacts.db", cfg.Artifacts.Registry)
	assert.Equal(t, 0.6, cfg.Model.Threshold)
	assert.Equal(t, CacheNone, cfg.Cache.Backend)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SOLVENCY_SERVER_PORT", "7070")
	t.Setenv("SOLVENCY_UI_LANGUAGE", "en")

	v, err := NewViper("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "en", cfg.UI.Language)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := NewViper(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	v, err := NewViper("")
	require.NoError(t, err)
	base, err := Load(v)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"source", func(c *Config) { c.Artifacts.Source = "s3" }},
		{"threshold low", func(c *Config) { c.Model.Threshold = 0 }},
		{"threshold high", func(c *Config) { c.Model.Threshold = 1 }},
		{"cache backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"cache size", func(c *Config) { c.Cache.Size = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestResolvePath(t *testing.T) {
	a := ArtifactsConfig{Dir: "/opt/models"}

	assert.Equal(t, filepath.Join("/opt/models", "scaler.json"), a.ResolvePath("scaler.json"))
	assert.Equal(t, "/abs/knn.json", a.ResolvePath("/abs/knn.json"))
	assert.Equal(t, "", a.ResolvePath(""))
}
