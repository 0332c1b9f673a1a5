// Package telemetry wires up the process-wide zerolog logger, the ambient
// logging stack for everything outside the engine's own goroutine (which
// does not log fatal errors itself: engine.Run returns them to its caller).
package telemetry

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds a zerolog.Logger at the given level ("debug", "info",
// "warn", "error"), pretty-printing to stderr when pretty is true and
// emitting newline-delimited JSON otherwise.
func NewLogger(level string, pretty bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var w = os.Stderr
	logger := zerolog.New(w).With().Timestamp().Logger()
	if pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	}

	logger = logger.Level(parseLevel(level))
	return logger
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
