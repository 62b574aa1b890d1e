// Package logging configures the application's slog loggers: a structured JSON
// logger for machine consumption, a human-readable text logger, and rotating
// per-service file loggers.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	structuredLogger    *slog.Logger
	humanReadableLogger *slog.Logger
)

// Init initializes the logging system with structured and human-readable loggers.
// JSON goes to stdout, text to stderr.
func Init(level slog.Leveler) {
	structuredLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	humanReadableLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(structuredLogger)
}

// SetOutput redirects logger output, e.g. to buffers in tests.
func SetOutput(structuredOutput, humanReadableOutput io.Writer, level slog.Leveler) {
	structuredLogger = slog.New(slog.NewJSONHandler(structuredOutput, &slog.HandlerOptions{
		Level: level,
	}))
	humanReadableLogger = slog.New(slog.NewTextHandler(humanReadableOutput, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(structuredLogger)
}

// Structured returns the globally configured structured (JSON) logger.
// Returns the default slog logger if Init() has not been called.
func Structured() *slog.Logger {
	if structuredLogger == nil {
		return slog.Default()
	}
	return structuredLogger
}

// HumanReadable returns the globally configured human-readable (Text) logger.
func HumanReadable() *slog.Logger {
	if humanReadableLogger == nil {
		return slog.Default()
	}
	return humanReadableLogger
}

// ForService creates a new logger instance with the 'service' attribute added.
// It uses the global structured logger as the base.
func ForService(serviceName string) *slog.Logger {
	return Structured().With("service", serviceName)
}

// NewFileLogger creates a slog.Logger writing JSON logs to filePath, rotated by
// lumberjack, with a 'service' attribute on every record. It returns the logger,
// a function to close the underlying writer, and an error if setup fails.
func NewFileLogger(filePath, serviceName string, level slog.Leveler) (*slog.Logger, func() error, error) {
	// lumberjack does not create directories
	logDir := filepath.Dir(filePath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	logWriter := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}

	fileHandler := slog.NewJSONHandler(logWriter, &slog.HandlerOptions{
		Level: level,
	})

	serviceLogger := slog.New(fileHandler).With("service", serviceName)

	return serviceLogger, logWriter.Close, nil
}
