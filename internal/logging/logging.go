// Package logging builds the structured loggers used throughout the
// proxy, following the same shape as the teacher's
// internal/shared/monitoring.NewLogger: JSON output by default,
// human-readable console output in debug mode, one logger per
// component tagged with a "component" field.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the base logger. debug selects both the minimum level
// (debug vs info) and the output format (pretty console vs JSON).
func New(debug bool) zerolog.Logger {
	var output io.Writer = os.Stdout

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}
	zerolog.SetGlobalLevel(level)

	return zerolog.New(output).
		With().
		Timestamp().
		Str("service", "devtoolsproxy").
		Logger()
}

// Component returns a child logger tagged for one of the proxy's
// components, matching spec.md §6's log line prefixes
// ([CLIENT n], [BROWSER pageid], [HTTP METHOD] path, [WARN] ...)
// as structured fields instead of raw string prefixes.
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
