package infra

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger constructs the service logger on stdout: JSON at info level, or a
// console writer at debug level in development.
func NewLogger(appEnv string) zerolog.Logger {
	return NewLoggerTo(os.Stdout, appEnv, "")
}

// NewLoggerTo is NewLogger writing to w. A parseable level ("warn", "debug")
// overrides the environment default.
func NewLoggerTo(w io.Writer, appEnv, level string) zerolog.Logger {
	dev := appEnv == "development"
	lvl := zerolog.InfoLevel
	if dev {
		lvl = zerolog.DebugLevel
	}
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level))); err == nil && level != "" {
		lvl = parsed
	}

	if dev {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// NopLogger returns a logger that discards everything. Components use it when
// the caller does not supply one.
func NopLogger() *Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// Logger aliases zerolog.Logger so packages take a *infra.Logger in their
// options without importing zerolog themselves.
type Logger = zerolog.Logger
