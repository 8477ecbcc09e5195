package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns the application logger. Production writes JSON at info level;
// other environments get a human-readable console at debug level.
func New(env string) zerolog.Logger {
	return newWithWriter(env, os.Stdout)
}

func newWithWriter(env string, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level := zerolog.DebugLevel
	out := w
	if env == "production" {
		level = zerolog.InfoLevel
	} else {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05", NoColor: env == "test"}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "lpr-service").
		Logger()
}
