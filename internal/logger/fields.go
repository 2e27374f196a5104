package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for structured logging.
// Use these constants instead of raw strings.
const (
	FieldRequestID  = "request_id"
	FieldComponent  = "component"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldDurationMS = "duration_ms"
	FieldError      = "error"
	FieldAddress    = "address"
	FieldPort       = "port"

	FieldArtifact    = "artifact"
	FieldSource      = "source"
	FieldModel       = "model"
	FieldLabel       = "label"
	FieldProbability = "probability"
	FieldCache       = "cache"
)

type contextKey string

const requestIDKey contextKey = "logger_request_id"

// WithRequestID adds a request ID to the context for logging
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request ID stored in ctx, if any
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// FromContext returns a logger carrying the request ID from ctx.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if base == nil {
		base = Logger
	}
	if id := RequestID(ctx); id != "" {
		return base.With(FieldRequestID, id)
	}
	return base
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
