package ectesting

import (
	"log/slog"
	"os"
)

// NewLogger returns a test logger. Verbosity is controlled by the DEBUG
// environment variable: 2 for debug, 1 for info, default errors only.
func NewLogger() *slog.Logger {
	debugLevel := os.Getenv("DEBUG")
	var level slog.Level
	switch debugLevel {
	case "2":
		level = slog.LevelDebug
	case "1":
		level = slog.LevelInfo
	default:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
