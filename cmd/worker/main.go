// Package main is the entry point for the lpgstock background worker.
// It runs the scheduled ledger reconciliation and idempotency key cleanup.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"lpgstock/internal/config"
	"lpgstock/internal/domain/ledger"
	"lpgstock/internal/domain/stockreport"
	"lpgstock/internal/infrastructure/jobs"
	"lpgstock/internal/infrastructure/storage/postgres"
	"lpgstock/internal/infrastructure/storage/postgres/catalog_repo"
	"lpgstock/internal/infrastructure/storage/postgres/journal_repo"
	"lpgstock/internal/infrastructure/storage/postgres/location_repo"
	"lpgstock/internal/infrastructure/storage/postgres/register_repo"
	"lpgstock/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	log = log.WithComponent("worker")

	if cfg.RedisAddr == "" {
		log.Fatal("REDIS_ADDR is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	log.Infow("starting lpgstock worker", "env", cfg.AppEnv, "concurrency", cfg.WorkerConcurrency)

	pool, err := postgres.NewPool(ctx, postgres.PoolConfigFrom(cfg))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	txm := postgres.NewTxManager(pool)

	locationRepo := location_repo.New(txm)
	ledgerRepo := register_repo.NewLedgerRepo(txm)
	journalRepo := journal_repo.New(txm)
	catalogRepo := catalog_repo.NewAgencyProductRepo(txm)

	// Reconciliation compares against the source of truth, never the cache.
	reports := stockreport.NewService(catalogRepo, ledgerRepo, journalRepo, locationRepo, nil)
	ledgerService := ledger.NewService(ledgerRepo, locationRepo, catalogRepo)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() { _ = rdb.Close() }()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	client := jobs.NewClient(redisOpts)
	defer func() { _ = client.Close() }()

	metrics := jobs.NewMetrics(nil)
	reconcileJob := jobs.NewReconcileJob(
		ledgerRepo, reports, ledgerService, client,
		redislock.New(rdb), cfg.ReconcileLockTTL, metrics,
	)
	cleanupJob := jobs.NewCleanupJob(postgres.NewIdempotencyStore(txm, cfg.IdempotencyTTL), metrics)

	handlersList := reconcileJob.Handlers()
	handlersList = append(handlersList, jobs.TaskHandler{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle})

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Concurrency: cfg.WorkerConcurrency,
		Handlers:    handlersList,
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ReconcileCron, Task: jobs.NewReconcileAllTask(), Options: []asynq.Option{asynq.Queue(jobs.QueueDefault)}},
			{Spec: cfg.CleanupCron, Task: jobs.NewIdempotencyCleanupTask(), Options: []asynq.Option{asynq.Queue(jobs.QueueDefault)}},
		},
	})
	if err != nil {
		log.Fatalw("failed to build worker", "error", err)
	}

	// --- Metrics endpoint ---
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Infow("metrics listening", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("metrics server failed", "error", err)
		}
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorw("worker stopped with error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
	log.Info("worker stopped")
}
