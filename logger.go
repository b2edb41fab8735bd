package match

import (
	"log/slog"
	"os"
)

var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger allows setting a custom logger
func SetLogger(l *slog.Logger) {
	logger = l
}

// Logger returns the package logger, for adapters that log alongside the engine.
func Logger() *slog.Logger {
	return logger
}
