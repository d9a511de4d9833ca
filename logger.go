// Package tilestore ties together config, vfs, schema, and array into the
// storage engine's top-level entry points.
package tilestore

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with tilestore-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a copy of l; no values are taken from ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	return &Logger{
		Logger: l.Logger.With(),
	}
}

// WithArrayURI adds the array's URI to the logger.
func (l *Logger) WithArrayURI(uri string) *Logger {
	return &Logger{
		Logger: l.Logger.With("array_uri", uri),
	}
}

// WithFragmentID adds a fragment ID field to the logger.
func (l *Logger) WithFragmentID(fragmentID string) *Logger {
	return &Logger{
		Logger: l.Logger.With("fragment_id", fragmentID),
	}
}

// WithAttribute adds an attribute name field to the logger.
func (l *Logger) WithAttribute(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("attribute", name),
	}
}

// WithCellCount adds a cell count field to the logger.
func (l *Logger) WithCellCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("cell_count", count),
	}
}

// LogOpen logs an array Open operation.
func (l *Logger) LogOpen(ctx context.Context, arrayURI, mode string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "array open failed",
			"array_uri", arrayURI,
			"mode", mode,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "array opened",
			"array_uri", arrayURI,
			"mode", mode,
		)
	}
}

// LogWrite logs a Write or WriteSparse call.
func (l *Logger) LogWrite(ctx context.Context, fragmentID string, cellCount int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "write failed",
			"fragment_id", fragmentID,
			"cell_count", cellCount,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "write buffered",
			"fragment_id", fragmentID,
			"cell_count", cellCount,
		)
	}
}

// LogRead logs a Read call's outcome, including the query status.
func (l *Logger) LogRead(ctx context.Context, status string, cellsFilled int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "read failed",
			"status", status,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "read completed",
			"status", status,
			"cells_filled", cellsFilled,
		)
	}
}

// LogFinalize logs a fragment's Close/finalize, which flushes buffered
// tiles and writes the fragment's __offsets index.
func (l *Logger) LogFinalize(ctx context.Context, fragmentID string, tileCount int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "fragment finalize failed",
			"fragment_id", fragmentID,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "fragment finalized",
			"fragment_id", fragmentID,
			"tile_count", tileCount,
		)
	}
}

// LogParallelRead logs a VFS parallel-read's shard plan.
func (l *Logger) LogParallelRead(ctx context.Context, uri string, numShards int, totalBytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "parallel read failed",
			"uri", uri,
			"shards", numShards,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "parallel read completed",
			"uri", uri,
			"shards", numShards,
			"bytes", totalBytes,
		)
	}
}
