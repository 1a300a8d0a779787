package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// setupLogger installs the default slog logger from the log.* settings.
func setupLogger() error {
	logger, err := newLogger(
		viper.GetString("log.level"),
		viper.GetString("log.format"),
		viper.GetString("log.output"),
		os.Stderr,
	)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

// newLogger builds a logger writing to console and, when output names a file
// or a directory (trailing slash), to that file as well.
func newLogger(level, format, output string, console io.Writer) (*slog.Logger, error) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info", "":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", level)
	}

	var writer io.Writer
	switch {
	case output == "" || output == "stderr":
		writer = console
	case strings.HasSuffix(output, "/"):
		// Directory - one file per day
		f, err := openLogFile(filepath.Join(output,
			fmt.Sprintf("avrflash-%s.log", time.Now().Format("2006-01-02"))))
		if err != nil {
			return nil, err
		}
		writer = io.MultiWriter(console, f)
	default:
		f, err := openLogFile(output)
		if err != nil {
			return nil, err
		}
		writer = io.MultiWriter(console, f)
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	case "text", "":
		handler = slog.NewTextHandler(writer, opts)
	default:
		return nil, fmt.Errorf("invalid log format: %s (must be json or text)", format)
	}

	return slog.New(handler), nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}
