// Package errors provides error handling for the solvency service.
//
// It re-exports github.com/cockroachdb/errors (stack traces, wrapping, user hints)
// and defines the failure classes the service distinguishes:
//
//   - ErrArtifactLoad: a model artifact could not be read or decoded. Fatal at startup.
//   - ErrInference: scaling or classification failed. The submission yields no result
//     but the process keeps serving.
//   - ErrInvalidRecord: the client record violates the input constraints. A recoverable
//     inference failure reported as an input error.
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New       = crdb.New
	Newf      = crdb.Newf
	Wrap      = crdb.Wrap
	Wrapf     = crdb.Wrapf
	WithStack = crdb.WithStack
	Mark      = crdb.Mark
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is           = crdb.Is
	IsAny        = crdb.IsAny
	As           = crdb.As
	UnwrapAll    = crdb.UnwrapAll
	GetAllHints  = crdb.GetAllHints
	FlattenHints = crdb.FlattenHints
)

// Sentinel errors. Mark or wrap them to add context while keeping errors.Is working.
var (
	// ErrArtifactLoad indicates a scaler or classifier artifact is missing or unreadable
	ErrArtifactLoad = New("artifact load failed")

	// ErrLegacyFormat indicates an artifact document uses a layout the native decoder does not support
	ErrLegacyFormat = New("legacy artifact format")

	// ErrInference indicates scaling or classification of a record failed
	ErrInference = New("inference failed")

	// ErrInvalidRecord indicates a client record violates the input constraints
	ErrInvalidRecord = New("invalid client record")

	// ErrUnknownModel indicates the model selector does not name a loaded classifier
	ErrUnknownModel = New("unknown model")
)

// ArtifactLoad marks err as a fatal artifact load failure
func ArtifactLoad(err error, artifact string) error {
	if err == nil {
		return nil
	}
	return Mark(Wrapf(err, "load %s", artifact), ErrArtifactLoad)
}

// Inference marks err as a recoverable inference failure
func Inference(err error) error {
	if err == nil {
		return nil
	}
	return Mark(err, ErrInference)
}

// IsFatal reports whether err prevents the service from serving predictions
func IsFatal(err error) bool {
	return err != nil && Is(err, ErrArtifactLoad)
}

// IsInvalidRecord reports whether err is an input constraint violation
func IsInvalidRecord(err error) bool {
	return err != nil && Is(err, ErrInvalidRecord)
}

// UserMessage returns the first hint attached to err, or its message when none is set
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if hints := GetAllHints(err); len(hints) > 0 {
		return hints[0]
	}
	return err.Error()
}
