package datastore

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/jylhava/coverd/internal/errors"
	"github.com/jylhava/coverd/internal/logging"
)

// Package-level logger for database operations. Until InitializeLogger runs,
// or when file setup fails, records go through the shared structured logger.
var (
	dsLogger    *slog.Logger
	dsLevelVar  = new(slog.LevelVar)
	loggerClose func() error
	loggerOnce  sync.Once
	loggerMu    sync.RWMutex
)

// InitializeLogger routes datastore logs to a rotating file under logDir.
// Only the first call takes effect.
func InitializeLogger(logDir string) error {
	var initErr error
	loggerOnce.Do(func() {
		dsLevelVar.Set(slog.LevelInfo)
		logFile := filepath.Join(logDir, "datastore.log")
		l, closeFn, err := logging.NewFileLogger(logFile, "datastore", dsLevelVar)
		if err != nil {
			initErr = errors.Newf("failed to initialize datastore file logger: %w", err).
				Category(errors.CategoryFileIO).
				Component("datastore").
				Context("log_file", logFile).
				Build()
			return
		}
		loggerMu.Lock()
		dsLogger = l
		loggerClose = closeFn
		loggerMu.Unlock()
	})
	return initErr
}

func getLogger() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if dsLogger != nil {
		return dsLogger
	}
	return logging.ForService("datastore")
}

// CloseLogger flushes and closes the datastore log file.
func CloseLogger() error {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if loggerClose != nil {
		return loggerClose()
	}
	return nil
}

// SetLogLevel adjusts the datastore file logger's level at runtime.
func SetLogLevel(level slog.Level) {
	dsLevelVar.Set(level)
}
