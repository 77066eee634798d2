package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/lumbung-erp/lumbung-erp/internal/app"
	"github.com/lumbung-erp/lumbung-erp/internal/platform/db"
	"github.com/lumbung-erp/lumbung-erp/internal/shared"
	"github.com/lumbung-erp/lumbung-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	indexer := jobs.NewSearchIndexer(pool)
	idemStore := shared.NewIdempotencyStore(pool)

	nightlyScan, err := jobs.NewLowStockScanTask(jobs.LowStockScanPayload{})
	if err != nil {
		logger.Error("build low stock scan task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAdjustmentReindex, Handler: jobs.NewAdjustmentReindexHandler(indexer, logger)},
			{Type: jobs.TaskLowStockScan, Handler: jobs.NewLowStockScanHandler(pool, logger)},
			{Type: jobs.TaskIdempotencyCleanup, Handler: jobs.NewIdempotencyCleanupHandler(idemStore, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "45 1 * * *", Task: nightlyScan, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 3 * * 0", Task: jobs.NewIdempotencyCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
