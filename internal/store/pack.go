package store

import (
	"archive/zip"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/kartoza/solvency/internal/config"
	"github.com/kartoza/solvency/internal/errors"
	"github.com/kartoza/solvency/internal/logger"
)

// PackFormat identifies an artifact pack manifest
const PackFormat = "solvency-artifacts"

// PackManifestName is the optional manifest at the root of a pack
const PackManifestName = "manifest.json"

// PackManifest describes the contents of an artifact pack zip
type PackManifest struct {
	Format      string `json:"format"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Created     string `json:"created"`
	// Requires is a semver constraint on the application version, e.g. ">= 1.2"
	Requires string `json:"requires,omitempty"`
}

// ReadPackManifest reads the manifest installed in dir
func ReadPackManifest(dir string) (PackManifest, bool) {
	var m PackManifest
	data, err := os.ReadFile(filepath.Join(dir, PackManifestName))
	if err != nil {
		return m, false
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, false
	}
	return m, true
}

// InstallPack extracts an artifact pack zip into cfg.Dir.
// The pack is unpacked into a staging directory and loaded first, so a pack
// that would not load leaves the installed artifacts untouched.
func InstallPack(ctx context.Context, zipPath string, cfg config.ArtifactsConfig, appVersion string) (PackManifest, error) {
	var manifest PackManifest

	if !strings.HasSuffix(strings.ToLower(zipPath), ".zip") {
		return manifest, errors.WithHint(errors.Newf("%s is not a zip archive", zipPath), "file must be a .zip archive")
	}
	layout, err := RelativePaths(cfg)
	if err != nil {
		return manifest, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return manifest, errors.Wrapf(err, "create artifacts dir %s", cfg.Dir)
	}

	staging, err := os.MkdirTemp(cfg.Dir, ".pack-")
	if err != nil {
		return manifest, errors.Wrap(err, "create staging dir")
	}
	defer os.RemoveAll(staging)

	if err := extractPack(zipPath, staging); err != nil {
		return manifest, err
	}

	if m, ok := ReadPackManifest(staging); ok {
		if m.Format != "" && m.Format != PackFormat {
			return manifest, errors.Newf("pack format %q is not %q", m.Format, PackFormat)
		}
		if err := checkRequires(m.Requires, appVersion); err != nil {
			return manifest, err
		}
		manifest = m
	}

	staged := make(map[string]string, len(layout))
	for name, rel := range layout {
		staged[name] = filepath.Join(staging, rel)
	}
	if _, err := Load(ctx, NewDirSource(staged)); err != nil {
		return manifest, errors.Wrap(err, "validate pack")
	}

	for name, src := range staged {
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := moveFile(src, filepath.Join(cfg.Dir, layout[name])); err != nil {
			return manifest, err
		}
	}
	if _, err := os.Stat(filepath.Join(staging, PackManifestName)); err == nil {
		if err := moveFile(filepath.Join(staging, PackManifestName), filepath.Join(cfg.Dir, PackManifestName)); err != nil {
			return manifest, err
		}
	}

	logger.ComponentLogger("store").Infow("Artifact pack installed",
		logger.FieldSource, zipPath, "dir", cfg.Dir, "version", manifest.Version)
	return manifest, nil
}

// checkRequires verifies the application version satisfies a pack constraint.
// Builds without a semver version (e.g. "dev") accept every pack.
func checkRequires(constraint, appVersion string) error {
	if constraint == "" {
		return nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return errors.WithHintf(errors.Wrapf(err, "parse requires %q", constraint), "pack manifest has an invalid requires constraint %q", constraint)
	}
	v, err := semver.NewVersion(appVersion)
	if err != nil {
		logger.ComponentLogger("store").Debugw("Skipping pack version check", "version", appVersion)
		return nil
	}
	if !c.Check(v) {
		return errors.WithHintf(errors.Newf("pack requires %s, running %s", constraint, appVersion),
			"this artifact pack needs application version %s", constraint)
	}
	return nil
}

func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", dst)
	}
	if err := os.Rename(src, dst); err != nil {
		return errors.Wrapf(err, "install %s", dst)
	}
	return nil
}

// extractPack unzips an artifact pack into targetDir
func extractPack(zipPath, targetDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return errors.WithHintf(errors.Wrap(err, "open zip"), "could not open %s", zipPath)
	}
	defer r.Close()

	if len(r.File) == 0 {
		return errors.New("empty zip archive")
	}

	for _, f := range r.File {
		// Sanitize path to prevent zip slip
		destPath := filepath.Join(targetDir, f.Name)
		if !strings.HasPrefix(destPath, filepath.Clean(targetDir)+string(os.PathSeparator)) {
			return errors.Newf("illegal file path in zip: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			os.MkdirAll(destPath, 0o755)
			continue
		}

		if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
			return errors.Wrap(err, "could not create directory")
		}

		outFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return errors.Wrap(err, "could not create file")
		}

		rc, err := f.Open()
		if err != nil {
			outFile.Close()
			return errors.Wrap(err, "could not open zip entry")
		}

		_, err = io.Copy(outFile, rc)
		rc.Close()
		outFile.Close()
		if err != nil {
			return errors.Wrap(err, "could not extract file")
		}
	}

	return nil
}
