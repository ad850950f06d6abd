package main

import (
	"fmt"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/cobra"
)

// setupLogger builds the process logger from the persistent flags.
// Logs always reach stderr; with --log-file they fan out to the file
// as well. The returned closer is a no-op when no file is open.
func setupLogger(cmd *cobra.Command) (*slog.Logger, func(), error) {
	levelName, err := cmd.Root().PersistentFlags().GetString("log-level")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get log-level flag: %w", err)
	}
	var level slog.Level
	switch levelName {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, nil, fmt.Errorf("unknown log level: %s", levelName)
	}

	opts := &slog.HandlerOptions{Level: level}
	handlers := []slog.Handler{slog.NewTextHandler(os.Stderr, opts)}
	closer := func() {}

	logPath, err := cmd.Root().PersistentFlags().GetString("log-file")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get log-file flag: %w", err)
	}
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, opts))
		closer = func() { _ = f.Close() }
	}

	return slog.New(slogmulti.Fanout(handlers...)), closer, nil
}
