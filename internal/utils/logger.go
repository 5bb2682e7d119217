package utils

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the structured logger shared by the services and the HTTP layer
type Logger struct {
	log *slog.Logger
}

// NewLogger creates a JSON logger on stdout at the given level
// ("debug", "info", "warn", "error"; anything else means info)
func NewLogger(level string) *Logger {
	return NewLoggerTo(os.Stdout, level)
}

// NewLoggerTo creates a JSON logger writing to w
func NewLoggerTo(w io.Writer, level string) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return &Logger{log: slog.New(handler)}
}

// NopLogger discards everything; used by tests
func NopLogger() *Logger {
	return NewLoggerTo(io.Discard, "error")
}

// ParseLevel maps a level name to a slog level
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Slog exposes the underlying logger, e.g. for slog.SetDefault
func (l *Logger) Slog() *slog.Logger {
	return l.log
}

// With returns a logger that adds args to every record
func (l *Logger) With(args ...any) *Logger {
	return &Logger{log: l.log.With(args...)}
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log.Debug(msg, args...)
}

// Info logs an informational message
func (l *Logger) Info(msg string, args ...any) {
	l.log.Info(msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log.Warn(msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...any) {
	l.log.Error(msg, args...)
}
