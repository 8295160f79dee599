package main

import (
	"context"
	"os"
	"time"

	"budget/internal/backend"
	"budget/internal/cli"
	"budget/internal/log"
	"budget/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	boot := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat).WithComponent(log.ComponentWorker)

	logger.Info("Starting budget-worker")

	ctx := context.Background()
	result, bcfg, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	mirror, err := backend.NewFactory(logger.Slog()).CreateMirror(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize state mirror", log.FieldError, err)
		_ = result.Cleanup()
		os.Exit(1)
	}
	if cfg.GoogleSpreadsheetID == "" {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, mirroring in memory")
	}

	var consumer worker.Consumer
	if result.AMQP != nil {
		consumer = result.AMQP
	} else {
		logger.Info("AMQP disabled - relying on periodic resync", "interval", cfg.SyncInterval)
	}

	syncWorker := worker.NewSyncWorker(result.Repository, mirror, logger.Slog())

	runCtx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	if err := syncWorker.Run(runCtx, consumer, cfg.SyncInterval); err != nil {
		logger.Error("Sync worker stopped", log.FieldError, err)
	}

	if err := result.Cleanup(); err != nil {
		logger.Error("Backend cleanup error", log.FieldError, err)
	}
	if runCtx.Err() != nil {
		<-done
	}
	if version, ok := syncWorker.LastVersion(); ok {
		logger.Info("Worker stopped", log.FieldVersion, version)
	} else {
		logger.Info("Worker stopped")
	}
}
