// Package cli provides common CLI initialization utilities shared by
// cmd/carteira and cmd/carteira-worker.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"carteira/internal/backend"
	"carteira/internal/config"
	"carteira/internal/core"
	"carteira/internal/log"
)

const sentryFlushTimeout = 2 * time.Second

// SetupLogger creates the process logger for component at level and makes
// it the slog default.
func SetupLogger(component, level string) *log.Logger {
	logger := log.NewWithLevel(component, level)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSentry enables error reporting when SENTRY_DSN is set. The returned
// function flushes buffered events and must be deferred by main.
func InitSentry(cfg *config.Config, logger *log.Logger, release string) func() {
	if cfg.SentryDSN == "" {
		return func() {}
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Release:     release,
	})
	if err != nil {
		logger.Error("Failed to initialize Sentry", log.FieldError, err)
		return func() {}
	}
	logger.Info("Sentry error reporting enabled", "environment", cfg.Environment)
	return func() { sentry.Flush(sentryFlushTimeout) }
}

// OpenBackend creates the configured store or exits the process.
func OpenBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", bcfg.Type)
		os.Exit(1)
	}
	return res
}

// DatasetImporter is the write side used by ImportFile.
type DatasetImporter interface {
	Import(ctx context.Context, ds core.Dataset) error
}

// ImportFile reads a dataset JSON document from path and imports it.
// It returns the number of transactions imported.
func ImportFile(ctx context.Context, importer DatasetImporter, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	var ds core.Dataset
	if err := json.NewDecoder(f).Decode(&ds); err != nil {
		return 0, fmt.Errorf("decode import file %s: %w", path, err)
	}
	if err := importer.Import(ctx, ds); err != nil {
		return 0, err
	}
	return len(ds.Transactions), nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
