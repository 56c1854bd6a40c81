package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"

	"MeetingPrep/internal/config"
)

// New creates a console slog.Logger; when cfg.File is set, records are also
// written as JSON to that file. The returned func closes the file.
func New(cfg config.LoggingConfig) (*slog.Logger, func() error) {
	opts := &slog.HandlerOptions{Level: levelFromString(cfg.Level)}
	console := slog.NewTextHandler(os.Stdout, opts)

	if cfg.File == "" {
		return slog.New(console), func() error { return nil }
	}

	file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := slog.New(console)
		logger.Warn("cannot open log file, logging to stdout only", "file", cfg.File, "error", err)
		return logger, func() error { return nil }
	}

	logger := slog.New(slogmulti.Fanout(console, slog.NewJSONHandler(file, opts)))
	return logger, func() error {
		if err := file.Close(); err != nil {
			return fmt.Errorf("close log file: %w", err)
		}
		return nil
	}
}

func levelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
