// Package logger configures the process-wide structured logger.
package logger

import (
	"log/slog"
	"os"
)

var defaultLogger *slog.Logger

// Init installs the global logger. format is "json" or "text".
func Init(level, format string) {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Get returns the installed logger, initializing a default one if needed.
func Get() *slog.Logger {
	if defaultLogger == nil {
		Init("info", "text")
	}
	return defaultLogger
}

// Info logs at the info level.
func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

// Debug logs at the debug level.
func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

// Warn logs at the warn level.
func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

// Error logs at the error level.
func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}

// Fatal logs at the error level and exits.
func Fatal(msg string, args ...any) {
	Get().Error(msg, args...)
	os.Exit(1)
}

// With returns a logger carrying the given attributes.
func With(args ...any) *slog.Logger {
	return Get().With(args...)
}
