// Package logging wraps slog.Logger with helpers for the ingestion and serving paths,
// so that field names stay consistent across commands.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Logger wraps slog.Logger with megatable-specific helpers.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to w. format is "text" or "json"; level is one of
// debug, info, warn, error.
func New(w io.Writer, format, level string) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return &Logger{Logger: slog.New(handler)}, nil
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// ParseLevel maps a level name to a slog.Level. Empty means info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", level)
}

// With returns a Logger with the given attributes attached.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// LogBatchRetry logs a failed batch attempt that will be retried after delay.
func (l *Logger) LogBatchRetry(ctx context.Context, offset, attempt int, delay time.Duration, err error) {
	l.WarnContext(ctx, "batch attempt failed, retrying",
		"offset", offset,
		"attempt", attempt,
		"backoff", delay,
		"error", err,
	)
}

// LogBatchFailed logs a batch abandoned after its attempts were exhausted.
func (l *Logger) LogBatchFailed(ctx context.Context, offset, attempts int, err error) {
	l.ErrorContext(ctx, "batch abandoned",
		"offset", offset,
		"attempts", attempts,
		"error", err,
	)
}

// LogWave logs cumulative progress after a wave settles.
func (l *Logger) LogWave(ctx context.Context, wave, waves, processed, total int, elapsed time.Duration, rate float64) {
	l.InfoContext(ctx, "wave complete",
		"wave", wave,
		"waves", waves,
		"rows", processed,
		"total", total,
		"elapsed", elapsed.Round(time.Millisecond),
		"rows_per_sec", int64(rate),
	)
}

// LogRequest logs one served HTTP request.
func (l *Logger) LogRequest(ctx context.Context, requestID, method, path string, status int, latency time.Duration) {
	level := slog.LevelInfo
	if status >= 500 {
		level = slog.LevelError
	}
	l.Log(ctx, level, "request",
		"request_id", requestID,
		"method", method,
		"path", path,
		"status", status,
		"latency", latency,
	)
}
