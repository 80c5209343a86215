package app

import (
	"io"
	"log/slog"
)

// newLogger builds an isolated slog.Logger for one App instance; the global
// default logger is never touched. Unrecognized levels fall back to info,
// unrecognized formats to JSON.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if formatStr == "text" {
		return slog.New(slog.NewTextHandler(outW, opts))
	}
	return slog.New(slog.NewJSONHandler(outW, opts))
}
