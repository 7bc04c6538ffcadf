// Package logger builds the zerolog loggers used across the server and wires
// their error-level events through to Sentry.
package logger

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// New returns a logger writing JSON lines to w at the given verbosity.
// Recognised levels are trace, debug, info, warn and error; anything else
// falls back to info.
func New(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// ParseLevel maps a verbosity name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}
