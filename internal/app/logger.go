package app

import (
	"io"
	"log/slog"
)

// newLogger creates the front end's logger. It does not set the global
// logger. DYNMOD_DEBUG (debug) lowers the level to debug whatever
// --log-level says, the same switch that turns on the library's own
// diagnostics.
func newLogger(cfg *Config, debug bool, outW io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	if debug {
		level = min(level, slog.LevelDebug)
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(outW, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(outW, handlerOpts))
}
