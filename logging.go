package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const logLevelEnv = "YTRSS_LOG_LEVEL"

// newLogger builds the base logger. The terminal belongs to the UI, so
// records go to a file next to the database.
func newLogger(path string, level string) (zerolog.Logger, io.Closer, error) {
	if path == "" {
		return zerolog.Nop(), io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerolog.Nop(), nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	return newLoggerTo(file, level), file, nil
}

func newLoggerTo(w io.Writer, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(w).Level(parseLogLevel(level)).With().
		Timestamp().
		Str("service", "ytrss").
		Logger()
}

func parseLogLevel(level string) zerolog.Level {
	if env := strings.TrimSpace(os.Getenv(logLevelEnv)); env != "" {
		level = env
	}
	if level == "" {
		return zerolog.InfoLevel
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	return parsed
}

func withComponent(base zerolog.Logger, component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}
