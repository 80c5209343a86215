// Package ctxlog carries a *slog.Logger through context.Context so that
// every layer of the pipeline logs with the attributes of its caller.
package ctxlog

import (
	"context"
	"log/slog"
)

// key is an unexported type so the context key cannot collide with keys
// defined by other packages.
type key struct{}

var loggerKey = key{}

// WithLogger returns a child context carrying the given logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the logger placed by WithLogger. Falling back to the
// process-wide default keeps library code usable from tests that never
// configure a logger.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
