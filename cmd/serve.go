package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jylhava/coverd/internal/api"
	"github.com/jylhava/coverd/internal/conf"
	"github.com/jylhava/coverd/internal/cover"
	"github.com/jylhava/coverd/internal/covercache"
	"github.com/jylhava/coverd/internal/datastore"
	"github.com/jylhava/coverd/internal/logging"
	"github.com/jylhava/coverd/internal/observability"
	"github.com/jylhava/coverd/internal/provider"
	"github.com/jylhava/coverd/internal/resolver"
	"github.com/jylhava/coverd/internal/storage"
)

const shutdownGrace = 30 * time.Second

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the cover resolution HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(conf.Setting())
		},
	}
}

// runServe wires the full pipeline and blocks until a shutdown signal.
func runServe(settings *conf.Settings) error {
	logger := initLogging(settings)
	defer closeServiceLoggers(logger)

	metrics, err := observability.NewResolverMetrics()
	if err != nil {
		return err
	}

	var db datastore.Interface
	if settings.Datastore.Enabled {
		store := datastore.NewSQLiteStore(settings.Datastore.Path)
		if err := store.Open(); err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn("failed to close datastore", "error", err)
			}
		}()
		db = store
	}

	providers := buildProviders(settings)
	sources := make([]cover.Source, 0, len(providers))
	for _, p := range providers {
		sources = append(sources, p.Name())
	}

	cache := covercache.New(&settings.Resolver, sources, db)
	if db != nil {
		if err := cache.WarmFromStore(); err != nil {
			logger.Warn("cover cache starting cold", "error", err)
		}
	}

	fileStore := storage.NewFileStore(settings.Storage)
	pool := resolver.NewPool(settings.Resolver.Workers, metrics)
	orch := resolver.NewOrchestrator(cache, fileStore, metrics)
	service := resolver.NewService(cache, orch, providers, pool, metrics)

	server := api.New(settings.WebServer, service, metrics)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("HTTP server shutdown failed", "error", err)
	}
	if err := pool.Shutdown(ctx); err != nil {
		logger.Warn("worker pool shutdown timed out", "error", err)
	}
	return nil
}

// initLogging sets up per-service file loggers under Main.LogPath and returns
// the main logger. File logger failures are not fatal: the affected service
// keeps logging through the shared structured logger.
func initLogging(settings *conf.Settings) *slog.Logger {
	logger := logging.ForService(settings.Main.Name)
	mainLevel := new(slog.LevelVar)
	mainLevel.Set(slog.LevelInfo)
	if settings.Debug {
		mainLevel.Set(slog.LevelDebug)
	}

	logFile := filepath.Join(settings.Main.LogPath, settings.Main.Name+".log")
	if fileLogger, closeFn, err := logging.NewFileLogger(logFile, settings.Main.Name, mainLevel); err != nil {
		logger.Warn("failed to initialize main file logger", "log_file", logFile, "error", err)
	} else {
		logger = fileLogger
		mainLoggerClose = closeFn
	}

	if err := datastore.InitializeLogger(settings.Main.LogPath); err != nil {
		logger.Warn("failed to initialize datastore file logger", "error", err)
	}
	if err := resolver.InitializeLogger(settings.Main.LogPath); err != nil {
		logger.Warn("failed to initialize resolver file logger", "error", err)
	}
	if settings.Debug {
		datastore.SetLogLevel(slog.LevelDebug)
		resolver.SetLogLevel(slog.LevelDebug)
	}
	return logger
}

// mainLoggerClose flushes the main log file on shutdown when file logging is
// active.
var mainLoggerClose func() error

func closeServiceLoggers(logger *slog.Logger) {
	if err := resolver.CloseLogger(); err != nil {
		logger.Warn("failed to close resolver log file", "error", err)
	}
	if err := datastore.CloseLogger(); err != nil {
		logger.Warn("failed to close datastore log file", "error", err)
	}
	if mainLoggerClose != nil {
		if err := mainLoggerClose(); err != nil {
			logging.ForService("main").Warn("failed to close main log file", "error", err)
		}
	}
}

// providerEntry pairs a constructed client with its resilience settings.
type providerEntry struct {
	client provider.ImageProvider
	cfg    conf.ProviderSettings
}

// buildProviders instantiates the enabled provider clients in the configured
// preference order, each behind the resilience wrapper tuned from its own
// settings.
func buildProviders(settings *conf.Settings) []provider.ImageProvider {
	available := map[string]providerEntry{}
	if settings.GoogleBooks.Enabled {
		available["googlebooks"] = providerEntry{provider.NewGoogleBooksClient(settings.GoogleBooks), settings.GoogleBooks}
	}
	if settings.OpenLibrary.Enabled {
		available["openlibrary"] = providerEntry{provider.NewOpenLibraryClient(settings.OpenLibrary), settings.OpenLibrary}
	}
	if settings.Longitood.Enabled {
		available["longitood"] = providerEntry{provider.NewLongitoodClient(settings.Longitood), settings.Longitood}
	}

	var providers []provider.ImageProvider
	for _, name := range settings.Resolver.ProviderOrder {
		if entry, ok := available[name]; ok {
			providers = append(providers, provider.WithResilience(
				entry.client, entry.cfg.Timeout, entry.cfg.FailureThreshold, entry.cfg.Cooldown))
			delete(available, name)
		}
	}
	return providers
}
