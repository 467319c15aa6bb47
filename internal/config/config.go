// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the API server and the worker.
type Config struct {
	AppEnv   string `envconfig:"APP_ENV" default:"development" validate:"oneof=development staging production test"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080" validate:"required"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true" validate:"required"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"20" validate:"gte=1"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"2" validate:"gte=0,ltefield=DBMaxConns"`

	// RedisAddr empty disables the live stock cache; the worker requires it.
	RedisAddr         string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	LiveStockCacheTTL time.Duration `envconfig:"LIVE_STOCK_CACHE_TTL" default:"5m" validate:"gte=0"`

	ReconcileCron     string        `envconfig:"RECONCILE_CRON" default:"30 2 * * *" validate:"required"`
	ReconcileLockTTL  time.Duration `envconfig:"RECONCILE_LOCK_TTL" default:"5m" validate:"gt=0"`
	CleanupCron       string        `envconfig:"CLEANUP_CRON" default:"0 * * * *" validate:"required"`
	WorkerConcurrency int           `envconfig:"WORKER_CONCURRENCY" default:"5" validate:"gte=1,lte=100"`
	MetricsAddr       string        `envconfig:"METRICS_ADDR" default:":9090"`

	// IdempotencyTTL is how long a completed X-Idempotency-Key is replayed.
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h" validate:"gt=0"`

	// AuditCompressThreshold is the payload size in bytes above which audit
	// payloads are stored zstd-compressed. Zero compresses everything.
	AuditCompressThreshold int `envconfig:"AUDIT_COMPRESS_THRESHOLD" default:"2048" validate:"gte=0"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s" validate:"gt=0"`
	SequenceReset   string        `envconfig:"SEQUENCE_RESET" default:"year" validate:"oneof=year month never"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// IsDevelopment returns true for local runs.
func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}
