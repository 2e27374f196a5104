package store

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/exp/mmap"

	"github.com/kartoza/solvency/internal/errors"
)

// Artifact names
const (
	ArtifactScaler    = "scaler"
	ArtifactLogistic  = "logistic"
	ArtifactKNN       = "knn"
	ArtifactKNNLegacy = "knn_legacy"
)

// ArtifactNames lists the artifacts in load order
func ArtifactNames() []string {
	return []string{ArtifactScaler, ArtifactLogistic, ArtifactKNN, ArtifactKNNLegacy}
}

// Source provides the raw bytes of named artifacts
type Source interface {
	// Read returns the full document of a primary artifact
	Read(ctx context.Context, name string) ([]byte, error)
	// OpenLegacy opens the alternate location of a legacy artifact for streaming
	OpenLegacy(ctx context.Context, name string) (io.ReadCloser, error)
	// Describe names the source for logs and the info endpoint
	Describe() string
	Close() error
}

// DirSource reads artifacts from files on disk
type DirSource struct {
	paths map[string]string
}

// NewDirSource maps artifact names to file paths
func NewDirSource(paths map[string]string) *DirSource {
	p := make(map[string]string, len(paths))
	for k, v := range paths {
		p[k] = v
	}
	return &DirSource{paths: p}
}

// Path returns the file configured for name
func (s *DirSource) Path(name string) (string, bool) {
	p, ok := s.paths[name]
	return p, ok && p != ""
}

// Read loads the whole file configured for name
func (s *DirSource) Read(_ context.Context, name string) ([]byte, error) {
	path, ok := s.Path(name)
	if !ok {
		return nil, errors.Newf("no path configured for artifact %q", name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithHintf(errors.Wrapf(err, "read %s", path), "artifact file %s is missing or unreadable", path)
	}
	return data, nil
}

// OpenLegacy memory-maps the file configured for name.
// The mapping is released when the returned reader is closed.
func (s *DirSource) OpenLegacy(_ context.Context, name string) (io.ReadCloser, error) {
	path, ok := s.Path(name)
	if !ok {
		return nil, errors.Newf("no path configured for artifact %q", name)
	}
	ra, err := mmap.Open(path)
	if err != nil {
		return nil, errors.WithHintf(errors.Wrapf(err, "mmap %s", path), "legacy artifact file %s is missing or unreadable", path)
	}
	return &mappedReader{
		SectionReader: io.NewSectionReader(ra, 0, int64(ra.Len())),
		ra:            ra,
	}, nil
}

// Describe lists the configured files
func (s *DirSource) Describe() string {
	return fmt.Sprintf("dir(scaler=%s, logistic=%s, knn=%s)", s.paths[ArtifactScaler], s.paths[ArtifactLogistic], s.paths[ArtifactKNN])
}

// Close is a no-op for files
func (s *DirSource) Close() error { return nil }

type mappedReader struct {
	*io.SectionReader
	ra *mmap.ReaderAt
}

func (m *mappedReader) Close() error {
	return m.ra.Close()
}
