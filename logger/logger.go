// Package logger provides the structured application logger used across
// priceguard: leveled, field-rich logs consumed by whoever tails the
// process (adapter reconnects, alert sweeps, auth failures), via
// rs/zerolog's chained .Str()/.Int()/.Msg() builder.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Log is the process-wide structured logger.
var Log zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}).
		With().
		Timestamp().
		Logger()
}

// SetLevel adjusts the global logging level (debug, info, warn, error).
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		Log.Warn().Str("level", level).Msg("unknown log level, keeping current")
		return
	}
	zerolog.SetGlobalLevel(lvl)
}

// Named returns a child logger tagged with a component name, so a
// "component" field (e.g. "exchange.binance", "push.session") replaces a
// bracket-prefix convention like "[Market]"/"[WebSocket]" with something
// queryable.
func Named(component string) zerolog.Logger {
	return Log.With().Str("component", component).Logger()
}
