package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide slog.Logger. LOG_FORMAT=json switches
// to JSON output for log shippers; anything else stays human-readable.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
