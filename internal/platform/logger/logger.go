package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger: structured JSON on stdout. Level defaults
// to info; set GATELOG_LOG_LEVEL=debug for cache and enrichment detail.
func New() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("GATELOG_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
