// Package ctxlog provides a context key for safely passing a slog.Logger
// instance through context.Context.
package ctxlog

import (
	"context"
	"log/slog"
)

// key is an unexported type to prevent collisions with context keys from other packages.
type key struct{}

// loggerKey is the key for the slog.Logger in a context.Context.
var loggerKey = key{}

// WithLogger returns a new context with the provided logger embedded.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the slog.Logger from a context. Library entry points
// may be reached without one, so a missing logger falls back to
// slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

type moduleKey struct{}

// WithModule scopes ctx's logger to module. The attribute is added once:
// if ctx is already scoped to module, ctx and its logger are returned as is.
func WithModule(ctx context.Context, module string) (context.Context, *slog.Logger) {
	if m, ok := ctx.Value(moduleKey{}).(string); ok && m == module {
		return ctx, FromContext(ctx)
	}
	logger := FromContext(ctx).With("module", module)
	ctx = context.WithValue(WithLogger(ctx, logger), moduleKey{}, module)
	return ctx, logger
}
