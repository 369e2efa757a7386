package logging

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

var (
	defaultLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	defaultMu     sync.RWMutex
)

type ctxLoggerKey struct{}

// Default returns the process-wide logger.
func Default() *slog.Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the process-wide logger. A nil logger is ignored.
func SetDefault(logger *slog.Logger) {
	if logger == nil {
		return
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = logger
}

// With embeds logger into ctx.
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey{}, logger)
}

// From returns the logger embedded in ctx, or Default when none is set.
func From(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(ctxLoggerKey{}).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return Default()
}
