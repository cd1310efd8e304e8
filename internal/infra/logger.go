package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the logger type passed between packages.
type Logger = zerolog.Logger

// NewLogger builds the service logger. Development gets console output at
// debug level; anything else gets JSON at info unless level overrides it.
func NewLogger(appEnv string, level ...string) zerolog.Logger {
	return newLogger(os.Stdout, appEnv, level...)
}

func newLogger(out io.Writer, appEnv string, level ...string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if appEnv == "development" {
		lvl = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	if len(level) > 0 && level[0] != "" {
		if parsed, err := zerolog.ParseLevel(level[0]); err == nil {
			lvl = parsed
		}
	}
	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "photobooth").
		Str("env", appEnv).
		Logger()
}
