package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/reclaim-erp/reclaim-erp/internal/app"
	"github.com/reclaim-erp/reclaim-erp/internal/inbound"
	"github.com/reclaim-erp/reclaim-erp/internal/inventory"
	"github.com/reclaim-erp/reclaim-erp/internal/masterdata/materials"
	"github.com/reclaim-erp/reclaim-erp/internal/masterdata/warehouses"
	"github.com/reclaim-erp/reclaim-erp/internal/observability"
	"github.com/reclaim-erp/reclaim-erp/internal/outbound"
	"github.com/reclaim-erp/reclaim-erp/internal/platform/cache"
	"github.com/reclaim-erp/reclaim-erp/internal/platform/db"
	"github.com/reclaim-erp/reclaim-erp/internal/shared"
	"github.com/reclaim-erp/reclaim-erp/jobs"
)

func main() {
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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	validate := validator.New()
	metrics := observability.NewMetrics()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, metrics)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, validate)

	inboundRepo := inbound.NewRepository(pool)
	inboundService := inbound.NewService(inboundRepo, inventoryService, auditLogger, idempotencyStore)
	inboundHandler := inbound.NewHandler(logger, inboundService, validate)

	outboundRepo := outbound.NewRepository(pool)
	outboundService := outbound.NewService(outboundRepo, inventoryService, auditLogger, idempotencyStore)
	outboundHandler := outbound.NewHandler(logger, outboundService, validate)

	materialCache := materials.NewCache(redisClient, cfg.MaterialCacheTTL)
	materialsRepo := materials.NewRepository(pool)
	materialsService := materials.NewService(materialsRepo, materialCache)
	materialsHandler := materials.NewHandler(logger, materialsService)

	warehousesRepo := warehouses.NewRepository(pool)
	warehousesService := warehouses.NewService(warehousesRepo)
	warehousesHandler := warehouses.NewHandler(logger, warehousesService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		InventoryHandler:  inventoryHandler,
		InboundHandler:    inboundHandler,
		OutboundHandler:   outboundHandler,
		MaterialsHandler:  materialsHandler,
		WarehousesHandler: warehousesHandler,
		JobHandler:        jobHandler,
		Pool:              pool,
		Metrics:           metrics,
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
