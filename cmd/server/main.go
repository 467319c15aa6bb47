// Package main is the entry point for the lpgstock API server.
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

	"github.com/redis/go-redis/v9"

	"lpgstock/internal/config"
	"lpgstock/internal/domain/ledger"
	"lpgstock/internal/domain/location"
	"lpgstock/internal/domain/movement"
	"lpgstock/internal/domain/settlement"
	"lpgstock/internal/domain/stockreport"
	"lpgstock/internal/infrastructure/cache"
	v1 "lpgstock/internal/infrastructure/http/v1"
	"lpgstock/internal/infrastructure/http/v1/handlers"
	"lpgstock/internal/infrastructure/storage/postgres"
	"lpgstock/internal/infrastructure/storage/postgres/catalog_repo"
	"lpgstock/internal/infrastructure/storage/postgres/journal_repo"
	"lpgstock/internal/infrastructure/storage/postgres/location_repo"
	"lpgstock/internal/infrastructure/storage/postgres/register_repo"
	"lpgstock/pkg/logger"
	"lpgstock/pkg/numerator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	log.Infow("starting lpgstock server", "env", cfg.AppEnv)

	// --- Database ---
	pool, err := postgres.NewPool(ctx, postgres.PoolConfigFrom(cfg))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	txm := postgres.NewTxManager(pool)

	if err := postgres.Migrate(ctx, txm); err != nil {
		log.Fatalw("failed to migrate database", "error", err)
	}
	postgres.LogPoolStats(ctx, pool)

	// --- Repositories ---
	locationRepo := location_repo.New(txm)
	ledgerRepo := register_repo.NewLedgerRepo(txm)
	journalRepo := journal_repo.New(txm)
	catalogRepo := catalog_repo.NewAgencyProductRepo(txm)
	numbers := numerator.NewWithSource(func(ctx context.Context) numerator.Querier {
		return txm.GetQuerier(ctx)
	})

	auditLog, err := postgres.NewAuditLog(txm, cfg.AuditCompressThreshold)
	if err != nil {
		log.Fatalw("failed to initialize audit log", "error", err)
	}

	checks := []handlers.HealthCheck{{Name: "database", Target: txm}}

	// --- Live stock cache (optional) ---
	engineOpts := []movement.Option{
		movement.WithAudit(auditLog),
		movement.WithSequenceReset(cfg.SequenceReset),
	}
	var liveCache stockreport.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()

		stockCache := cache.NewLiveStock(rdb, cfg.LiveStockCacheTTL)
		liveCache = stockCache
		engineOpts = append(engineOpts, movement.WithInvalidators(stockCache))
		checks = append(checks, handlers.HealthCheck{Name: "redis", Target: stockCache, Optional: true})
		log.Infow("live stock cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.LiveStockCacheTTL)
	}

	// --- Domain services ---
	engine := movement.NewEngine(txm, locationRepo, ledgerRepo, journalRepo, catalogRepo, numbers, engineOpts...)
	locations := location.NewService(locationRepo, txm)
	ledgerService := ledger.NewService(ledgerRepo, locationRepo, catalogRepo)
	settlements := settlement.NewService(txm, engine, locationRepo, journalRepo, auditLog)
	reports := stockreport.NewService(catalogRepo, ledgerRepo, journalRepo, locationRepo, liveCache)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		HealthChecks: checks,
		Idempotency:  postgres.NewIdempotencyStore(txm, cfg.IdempotencyTTL),
		Engine:       engine,
		Journal:      journalRepo,
		AuditLog:     auditLog,
		Locations:    locations,
		Ledger:       ledgerService,
		Settlements:  settlements,
		Reports:      reports,
		Debug:        cfg.IsDevelopment(),
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("server starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- Graceful shutdown ---
	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Errorw("server failed", "error", err)
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	log.Info("server stopped")
}
