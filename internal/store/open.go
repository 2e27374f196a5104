package store

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/kartoza/solvency/internal/config"
	"github.com/kartoza/solvency/internal/errors"
)

// DirPaths resolves the configured artifact files
func DirPaths(cfg config.ArtifactsConfig) map[string]string {
	return map[string]string{
		ArtifactScaler:    cfg.ResolvePath(cfg.Scaler),
		ArtifactLogistic:  cfg.ResolvePath(cfg.Logistic),
		ArtifactKNN:       cfg.ResolvePath(cfg.KNN),
		ArtifactKNNLegacy: cfg.ResolvePath(cfg.KNNLegacy),
	}
}

// RelativePaths returns each configured artifact file relative to cfg.Dir.
// This is the layout of an artifact pack and of an import directory.
// An artifact configured outside cfg.Dir has no place in that layout and is an error.
func RelativePaths(cfg config.ArtifactsConfig) (map[string]string, error) {
	out := make(map[string]string, 4)
	for name, p := range map[string]string{
		ArtifactScaler:    cfg.Scaler,
		ArtifactLogistic:  cfg.Logistic,
		ArtifactKNN:       cfg.KNN,
		ArtifactKNNLegacy: cfg.KNNLegacy,
	} {
		if p == "" {
			continue
		}
		rel := p
		if filepath.IsAbs(p) {
			dir, err := filepath.Abs(cfg.Dir)
			if err != nil {
				return nil, errors.Wrapf(err, "resolve artifacts dir %s", cfg.Dir)
			}
			if rel, err = filepath.Rel(dir, p); err != nil {
				return nil, errors.Wrapf(err, "relate %s to %s", p, cfg.Dir)
			}
		}
		rel = filepath.Clean(rel)
		if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
			return nil, errors.WithHintf(
				errors.Newf("artifact %s at %s is outside %s", name, p, cfg.Dir),
				"artifact %s must be configured inside artifacts.dir (%s)", name, cfg.Dir)
		}
		out[name] = rel
	}
	return out, nil
}

// OpenSource returns the artifact source selected by cfg.Source
func OpenSource(cfg config.ArtifactsConfig) (Source, error) {
	switch cfg.Source {
	case config.SourceDir, "":
		return NewDirSource(DirPaths(cfg)), nil
	case config.SourceSQLite:
		return OpenSQLiteSource(cfg.ResolvePath(cfg.Registry))
	default:
		return nil, errors.Newf("unknown artifact source %q", cfg.Source)
	}
}
