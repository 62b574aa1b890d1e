package resolver

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/jylhava/coverd/internal/errors"
	"github.com/jylhava/coverd/internal/logging"
)

// Package-level logger shared by the orchestrator, facade and worker pool.
// Until InitializeLogger runs, or when file setup fails, records go through
// the shared structured logger.
var (
	svcLogger   *slog.Logger
	svcLevelVar = new(slog.LevelVar)
	loggerClose func() error
	loggerOnce  sync.Once
	loggerMu    sync.RWMutex
)

// InitializeLogger routes resolver logs to a rotating file under logDir.
// Only the first call takes effect; services constructed afterwards pick up
// the file logger.
func InitializeLogger(logDir string) error {
	var initErr error
	loggerOnce.Do(func() {
		svcLevelVar.Set(slog.LevelInfo)
		logFile := filepath.Join(logDir, "resolver.log")
		l, closeFn, err := logging.NewFileLogger(logFile, "resolver", svcLevelVar)
		if err != nil {
			initErr = errors.Newf("failed to initialize resolver file logger: %w", err).
				Category(errors.CategoryFileIO).
				Component("resolver").
				Context("log_file", logFile).
				Build()
			return
		}
		loggerMu.Lock()
		svcLogger = l
		loggerClose = closeFn
		loggerMu.Unlock()
	})
	return initErr
}

func serviceLogger() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if svcLogger != nil {
		return svcLogger
	}
	return logging.ForService("resolver")
}

// CloseLogger flushes and closes the resolver log file.
func CloseLogger() error {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if loggerClose != nil {
		return loggerClose()
	}
	return nil
}

// SetLogLevel adjusts the resolver file logger's level at runtime.
func SetLogLevel(level slog.Level) {
	svcLevelVar.Set(level)
}
