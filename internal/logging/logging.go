// Package logging provides the process-wide structured logger, built on
// zerolog the way tracing.Logger wraps it in the example services this
// codebase descends from: one base logger with service/component fields,
// console output in development and JSON in production.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds the base logger for the scheduler process. format is
// "json" for structured production logs or anything else for a
// human-readable console writer.
func New(format, level string) zerolog.Logger {
	var w io.Writer = os.Stdout
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(lvl).With().
		Timestamp().
		Str("service", "scheduler").
		Logger()
}

// Component returns a child logger tagged with the owning component, e.g.
// "dispatcher", "monitor", "store".
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
