package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/lumbung-erp/lumbung-erp/internal/adjustment"
	"github.com/lumbung-erp/lumbung-erp/internal/app"
	"github.com/lumbung-erp/lumbung-erp/internal/auth"
	"github.com/lumbung-erp/lumbung-erp/internal/inventory"
	"github.com/lumbung-erp/lumbung-erp/internal/masterdata"
	"github.com/lumbung-erp/lumbung-erp/internal/platform/cache"
	"github.com/lumbung-erp/lumbung-erp/internal/platform/db"
	"github.com/lumbung-erp/lumbung-erp/internal/purchasing"
	"github.com/lumbung-erp/lumbung-erp/internal/rbac"
	"github.com/lumbung-erp/lumbung-erp/internal/shared"
	"github.com/lumbung-erp/lumbung-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "lumbung_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	auditLogger := shared.NewAuditLogger(dbpool)
	approvalRecorder := shared.NewApprovalRecorder(dbpool, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	rbacService := rbac.NewService(dbpool)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	masterRepo := masterdata.NewRepository(dbpool)
	masterService := masterdata.NewService(masterRepo)
	codeChecker := masterdata.NewCodeChecker(masterRepo)
	masterHandler := masterdata.NewHandler(logger, masterService, codeChecker, rbacMiddleware)

	inventoryRepo := inventory.NewRepository(dbpool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, inventory.ServiceConfig{
		AllowNegativeStock: cfg.AllowNegativeStock,
	})

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("connect task queue", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("task queue close", slog.Any("error", err))
		}
	}()

	adjustmentRepo := adjustment.NewRepository(dbpool)
	adjustmentService := adjustment.NewService(logger, adjustmentRepo, inventoryService, auditLogger, approvalRecorder, idempotencyStore, jobsClient)
	adjustmentHandler := adjustment.NewHandler(logger, adjustmentService, rbacMiddleware)

	purchasingRepo := purchasing.NewRepository(dbpool)
	purchasingCalc := purchasing.NewCalculator(decimal.NewFromFloat(cfg.PPNRate))
	purchasingService := purchasing.NewService(logger, purchasingRepo, masterService, purchasingCalc, auditLogger, approvalRecorder, idempotencyStore)
	purchasingHandler := purchasing.NewHandler(logger, purchasingService, rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		AuthHandler:       authHandler,
		MasterDataHandler: masterHandler,
		AdjustmentHandler: adjustmentHandler,
		PurchasingHandler: purchasingHandler,
		JobHandler:        jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
