package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/warelane/warelane/cmd/warelane/cli"
	"github.com/warelane/warelane/internal/app"
	"github.com/warelane/warelane/internal/container"
	"github.com/warelane/warelane/internal/count"
	"github.com/warelane/warelane/internal/masterdata"
	"github.com/warelane/warelane/internal/observability"
	"github.com/warelane/warelane/internal/scan"
	"github.com/warelane/warelane/internal/shared"
	"github.com/warelane/warelane/internal/stock"
	"github.com/warelane/warelane/jobs"
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

	if len(os.Args) > 2 && os.Args[1] == "jobs" {
		if err := runJobsCommand(ctx, cfg, os.Args[2:]); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	dbpool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	metrics := observability.NewMetrics()

	masterdataRepo := masterdata.NewRepository(dbpool)
	masterdataHandler := masterdata.NewHandler(logger, masterdataRepo)

	stockRepo := stock.NewRepository(dbpool)
	stockService := stock.NewService(stockRepo, masterdataRepo, auditLogger, idempotencyStore, metrics,
		stock.ServiceConfig{AllowNegative: cfg.AllowNegativeStock})
	stockHandler := stock.NewHandler(logger, stockService)

	containerRepo := container.NewRepository(dbpool)
	containerService := container.NewService(container.NewRunner(dbpool), containerRepo, masterdataRepo, stockService, auditLogger)
	containerHandler := container.NewHandler(logger, containerService)

	scanCache := scan.NewProductCache(redisClient, cfg.ScanCacheTTL)
	scanService := scan.NewService(masterdataRepo, containerRepo, scanCache, metrics, nil)
	scanHandler := scan.NewHandler(logger, scanService)

	countRepo := count.NewRepository(dbpool)
	countService := count.NewService(scanService, stockService, masterdataRepo, countRepo, auditLogger)
	countHandler := count.NewHandler(logger, countService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Config:            cfg,
		Logger:            logger,
		ScanHandler:       scanHandler,
		StockHandler:      stockHandler,
		ContainerHandler:  containerHandler,
		CountHandler:      countHandler,
		MasterDataHandler: masterdataHandler,
		JobHandler:        jobHandler,
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

// runJobsCommand handles `warelane jobs trigger <task>` and `warelane jobs inspect`.
func runJobsCommand(ctx context.Context, cfg *app.Config, args []string) error {
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() { _ = jobsCLI.Close() }()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return fmt.Errorf("usage: jobs trigger <task>")
		}
		info, err := jobsCLI.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", args[1], info.ID, info.Queue)
		return nil
	case "inspect":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return nil
	default:
		return fmt.Errorf("unknown jobs command %s", args[0])
	}
}
