package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kartoza/solvency/internal/errors"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Model     ModelConfig     `mapstructure:"model"`
	Cache     CacheConfig     `mapstructure:"cache"`
	UI        UIConfig        `mapstructure:"ui"`
	Log       LogConfig       `mapstructure:"log"`
	Version   string          `mapstructure:"-"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port       int           `mapstructure:"port"`
	Headless   bool          `mapstructure:"headless"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RateWindow time.Duration `mapstructure:"rate_window"`
}

// ArtifactsConfig locates the scaler and classifier artifacts.
// Relative file paths are resolved against Dir.
type ArtifactsConfig struct {
	Source    string `mapstructure:"source"`
	Dir       string `mapstructure:"dir"`
	Registry  string `mapstructure:"registry"`
	Scaler    string `mapstructure:"scaler"`
	Logistic  string `mapstructure:"logistic"`
	KNN       string `mapstructure:"knn"`
	KNNLegacy string `mapstructure:"knn_legacy"`
}

// ModelConfig holds decision settings
type ModelConfig struct {
	Threshold float64 `mapstructure:"threshold"`
	Default   string  `mapstructure:"default"`
}

// CacheConfig selects the prediction cache backend
type CacheConfig struct {
	Backend   string        `mapstructure:"backend"`
	Size      int           `mapstructure:"size"`
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// UIConfig holds presentation settings
type UIConfig struct {
	Language string `mapstructure:"language"`
}

// LogConfig holds logging settings
type LogConfig struct {
	JSON       bool   `mapstructure:"json"`
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Artifact sources
const (
	SourceDir    = "dir"
	SourceSQLite = "sqlite"
)

// Cache backends
const (
	CacheNone  = "none"
	CacheLRU   = "lru"
	CacheRedis = "redis"
)

// EnvPrefix is the prefix for environment overrides, e.g. SOLVENCY_SERVER_PORT
const EnvPrefix = "SOLVENCY"

// DefaultConfigName is looked up in the working directory when no file is given
const DefaultConfigName = "solvency.yaml"

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.headless", false)
	v.SetDefault("server.rate_limit", 30)
	v.SetDefault("server.rate_window", time.Minute)

	v.SetDefault("artifacts.source", SourceDir)
	v.SetDefault("artifacts.dir", ".")
	v.SetDefault("artifacts.registry", "artifacts.db")
	v.SetDefault("artifacts.scaler", "scaler.json")
	v.SetDefault("artifacts.logistic", filepath.Join("models", "log_model.json"))
	v.SetDefault("artifacts.knn", filepath.Join("models", "knn.json"))
	v.SetDefault("artifacts.knn_legacy", "knn.json")

	v.SetDefault("model.threshold", 0.5)
	v.SetDefault("model.default", "knn")

	v.SetDefault("cache.backend", CacheLRU)
	v.SetDefault("cache.size", 256)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.ttl", 10*time.Minute)

	v.SetDefault("ui.language", "fr")

	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}

// NewViper returns a viper instance with defaults and environment binding.
// When path is empty, ./solvency.yaml is read if it exists.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		if _, err := os.Stat(DefaultConfigName); err == nil {
			path = DefaultConfigName
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}
	return v, nil
}

// Load unmarshals and validates the configuration held by v
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port %d out of range", c.Server.Port)
	}
	switch c.Artifacts.Source {
	case SourceDir, SourceSQLite:
	default:
		return errors.Newf("artifacts.source %q must be %q or %q", c.Artifacts.Source, SourceDir, SourceSQLite)
	}
	if c.Model.Threshold <= 0 || c.Model.Threshold >= 1 {
		return errors.Newf("model.threshold %v must be in (0,1)", c.Model.Threshold)
	}
	switch c.Cache.Backend {
	case CacheNone, CacheLRU, CacheRedis:
	default:
		return errors.Newf("cache.backend %q is not one of none, lru, redis", c.Cache.Backend)
	}
	if c.Cache.Backend == CacheLRU && c.Cache.Size <= 0 {
		return errors.Newf("cache.size %d must be positive", c.Cache.Size)
	}
	return nil
}

// ResolvePath joins a relative artifact path onto the artifacts directory
func (a ArtifactsConfig) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.Dir, p)
}
