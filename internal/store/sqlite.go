package store

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kartoza/solvency/internal/errors"
	"github.com/kartoza/solvency/internal/model"
)

const registrySchema = `
CREATE TABLE IF NOT EXISTS artifacts (
    name TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    format_version INTEGER NOT NULL,
    payload BLOB NOT NULL,
    imported_at DATETIME NOT NULL
)`

// SQLiteSource reads artifacts from a read-only sqlite registry
type SQLiteSource struct {
	db   *sql.DB
	path string
}

// ArtifactRecord describes one registry row
type ArtifactRecord struct {
	Name          string    `json:"name"`
	Kind          string    `json:"kind"`
	FormatVersion int       `json:"format_version"`
	Size          int       `json:"size"`
	ImportedAt    time.Time `json:"imported_at"`
}

// OpenSQLiteSource opens an existing registry and verifies its schema
func OpenSQLiteSource(path string) (*SQLiteSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.WithHintf(errors.Wrapf(err, "stat registry %s", path), "artifact registry %s not found", path)
	}

	db, err := sql.Open("sqlite3", path+"?mode=ro")
	if err != nil {
		return nil, errors.Wrapf(err, "open registry %s", path)
	}

	var count int
	err = db.QueryRow("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'artifacts'").Scan(&count)
	if err != nil || count == 0 {
		db.Close()
		if err == nil {
			err = errors.New("missing artifacts table")
		}
		return nil, errors.Wrapf(err, "%s is not an artifact registry", path)
	}

	return &SQLiteSource{db: db, path: path}, nil
}

// Read returns the payload stored under name
func (s *SQLiteSource) Read(ctx context.Context, name string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM artifacts WHERE name = ?", name).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, errors.WithHintf(errors.Newf("artifact %q not in registry %s", name, s.path), "artifact %q is missing from the registry", name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "query artifact %q", name)
	}
	return payload, nil
}

// OpenLegacy streams the payload stored under name
func (s *SQLiteSource) OpenLegacy(ctx context.Context, name string) (io.ReadCloser, error) {
	payload, err := s.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(payload)), nil
}

// List returns the registry contents ordered by name
func (s *SQLiteSource) List(ctx context.Context) ([]ArtifactRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, kind, format_version, length(payload), imported_at FROM artifacts ORDER BY name")
	if err != nil {
		return nil, errors.Wrap(err, "list artifacts")
	}
	defer rows.Close()

	var out []ArtifactRecord
	for rows.Next() {
		var r ArtifactRecord
		if err := rows.Scan(&r.Name, &r.Kind, &r.FormatVersion, &r.Size, &r.ImportedAt); err != nil {
			return nil, errors.Wrap(err, "scan artifact row")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Describe names the registry file
func (s *SQLiteSource) Describe() string {
	return fmt.Sprintf("sqlite(%s)", s.path)
}

// Close closes the database connection
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// Registry is a writable artifact registry used by the import command
type Registry struct {
	db *sql.DB
}

// CreateRegistry opens or creates a registry for writing
func CreateRegistry(path string) (*Registry, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open registry %s", path)
	}
	if _, err := db.Exec(registrySchema); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "create registry schema in %s", path)
	}
	return &Registry{db: db}, nil
}

// Put stores payload under name, replacing any previous version.
// The kind and version come from the document envelope; legacy documents are stored as kind "legacy".
func (r *Registry) Put(ctx context.Context, name string, payload []byte, expectedKind string) (ArtifactRecord, error) {
	rec := ArtifactRecord{Name: name, Size: len(payload), ImportedAt: time.Now().UTC()}

	h, err := model.CheckHeader(payload, expectedKind)
	switch {
	case err == nil:
		rec.Kind, rec.FormatVersion = h.Kind, h.FormatVersion
	case errors.Is(err, errors.ErrLegacyFormat):
		rec.Kind, rec.FormatVersion = "legacy", 0
	default:
		return ArtifactRecord{}, errors.Wrapf(err, "artifact %q", name)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO artifacts (name, kind, format_version, payload, imported_at) VALUES (?, ?, ?, ?, ?)`,
		rec.Name, rec.Kind, rec.FormatVersion, payload, rec.ImportedAt,
	)
	if err != nil {
		return ArtifactRecord{}, errors.Wrapf(err, "insert artifact %q", name)
	}
	return rec, nil
}

// Close closes the database connection
func (r *Registry) Close() error {
	return r.db.Close()
}

// ExpectedKind returns the document kind stored under an artifact name
func ExpectedKind(name string) string {
	switch name {
	case ArtifactScaler:
		return model.KindScaler
	case ArtifactLogistic:
		return model.KindLogistic
	default:
		return model.KindKNN
	}
}
