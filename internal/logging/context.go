package logging

import (
	"context"
	"log/slog"
	"strings"
)

// Standard field keys.
const (
	FieldComponent     = "component"
	FieldEventType     = "event_type"
	FieldErrorHint     = "error_hint"
	FieldImpact        = "impact"
	FieldCorrelationID = "correlation_id"
	FieldPath          = "path"
	FieldDevice        = "device"
)

type contextKey int

const (
	correlationIDKey contextKey = iota
	pathKey
)

// WithCorrelationID stores the arrangement correlation id on ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, correlationIDKey, strings.TrimSpace(id))
}

// CorrelationIDFromContext returns the correlation id stored on ctx, if any.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(correlationIDKey).(string)
	return id, ok && id != ""
}

// WithPath stores the path being processed on ctx.
func WithPath(ctx context.Context, path string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, pathKey, path)
}

// PathFromContext returns the path stored on ctx, if any.
func PathFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	path, ok := ctx.Value(pathKey).(string)
	return path, ok && path != ""
}

// WithContext returns a logger enriched with the correlation id and path
// carried by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	var attrs []any
	if id, ok := CorrelationIDFromContext(ctx); ok {
		attrs = append(attrs, String(FieldCorrelationID, id))
	}
	if path, ok := PathFromContext(ctx); ok {
		attrs = append(attrs, String(FieldPath, path))
	}
	if len(attrs) == 0 {
		return logger
	}
	return logger.With(attrs...)
}
