// Package ctxutil provides shared context key accessors.
//
// The request id travels in the context so that the planner, merger and
// lineage resolver can tag their log lines without threading an extra
// argument through every call.
package ctxutil

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	keyRequestID contextKey = "request_id"
	keyOperation contextKey = "operation"
)

// WithRequestID returns a new context carrying the given request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

// RequestIDFromContext extracts the request id from the context.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(keyRequestID).(string); ok {
		return v
	}
	return ""
}

// WithOperation returns a new context carrying the operation name
// ("search_runs", "load_more_runs", ...).
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, keyOperation, op)
}

// OperationFromContext extracts the operation name from the context.
func OperationFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(keyOperation).(string); ok {
		return v
	}
	return ""
}

// Logger returns logger annotated with the request id and operation found in
// ctx, if any.
func Logger(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id := RequestIDFromContext(ctx); id != "" {
		logger = logger.With("request_id", id)
	}
	if op := OperationFromContext(ctx); op != "" {
		logger = logger.With("operation", op)
	}
	return logger
}
