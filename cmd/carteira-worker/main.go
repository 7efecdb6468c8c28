package main

import (
	"context"
	"errors"
	"os"
	"time"

	"carteira/internal/amqp"
	"carteira/internal/cli"
	"carteira/internal/log"
	"carteira/internal/services"
	"carteira/internal/sheets/google"
	"carteira/internal/worker"
)

var version = "dev"

const stopTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	flush := cli.InitSentry(cfg, logger, version)
	defer flush()

	if !cfg.SheetsEnabled() {
		logger.Error("GOOGLE_SPREADSHEET_ID is required by the export worker")
		os.Exit(1)
	}

	logger.Info("Starting carteira-worker", "version", version, "backend", cfg.DataBackend)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	store := cli.OpenBackend(ctx, logger, cfg)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()

	exporter, err := google.New(ctx, google.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets exporter", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets exporter initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	exportService := services.NewExportService(store.Store, exporter)

	// The periodic pass exports every year immediately and then on each
	// tick, covering messages missed while the worker was down.
	processor := services.NewExportProcessor(exportService, services.ExportProcessorConfig{Interval: cfg.ExportInterval})
	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start export processor", log.FieldError, err)
		os.Exit(1)
	}

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()

		exportWorker := worker.NewExportWorker(exportService)
		go func() {
			if err := client.ConsumeDatasetChanged(ctx, exportWorker.HandleDatasetChanged); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
				cancel()
			}
		}()
		logger.Info("Consuming dataset changed messages", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled, relying on periodic export only", "interval", cfg.ExportInterval)
	}

	<-ctx.Done()
	logger.Info("Shutting down worker...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	if err := processor.Stop(stopCtx); err != nil {
		logger.Warn("Export processor did not stop in time", log.FieldError, err)
	}
	logger.Info("Worker shutdown complete")
}
