package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	"carteira/internal/amqp"
	"carteira/internal/cache"
	"carteira/internal/cli"
	apphttp "carteira/internal/http"
	"carteira/internal/log"
	"carteira/internal/services"
)

var version = "dev"

const (
	shutdownTimeout = 30 * time.Second
	cacheSweepEvery = time.Minute
	importOpTimeout = 2 * time.Minute
)

func main() {
	importPath := flag.String("import", "", "import a dataset JSON file before serving")
	importOnly := flag.Bool("import-only", false, "exit after -import instead of serving")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	flush := cli.InitSentry(cfg, logger, version)
	defer flush()

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	store := cli.OpenBackend(ctx, logger, cfg)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()

	reportCache := cache.NewLRUCache[any](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(reportCache)
	cacheManager.Start(ctx, cacheSweepEvery)

	// Change events are optional: without a broker the worker falls back
	// to its periodic export.
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without change events", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	reports := services.NewReportService(store.Store, reportCache)
	transactions := services.NewTransactionService(store.Store, publisher, reports, logger)

	if *importPath != "" {
		importCtx, importCancel := context.WithTimeout(ctx, importOpTimeout)
		n, err := cli.ImportFile(importCtx, transactions, *importPath)
		importCancel()
		if err != nil {
			logger.Error("Import failed", log.FieldError, err, "path", *importPath)
			os.Exit(1)
		}
		logger.Info("Import completed", "path", *importPath, log.FieldCount, n)
	}
	if *importOnly {
		return
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Reports:            reports,
		Transactions:       transactions,
		Catalog:            services.NewCatalogService(store.Store, publisher, reports, logger),
		Getter:             store.Store,
		Pinger:             store.Store,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	go func() {
		logger.Info("Starting carteira server", "port", cfg.Port, "backend", cfg.DataBackend, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err)
	}
	cacheManager.Wait()
	logger.Info("Server stopped gracefully")
}
