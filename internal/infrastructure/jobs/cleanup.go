package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"lpgstock/pkg/logger"
)

// ExpiredKeyCleaner deletes expired idempotency keys.
type ExpiredKeyCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// CleanupJob handles TaskIdempotencyCleanup.
type CleanupJob struct {
	store   ExpiredKeyCleaner
	metrics *Metrics
}

func NewCleanupJob(store ExpiredKeyCleaner, metrics *Metrics) *CleanupJob {
	return &CleanupJob{store: store, metrics: metrics}
}

func (j *CleanupJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	tracker := j.metrics.Track(TaskIdempotencyCleanup)
	defer func() { err = tracker.End(err) }()

	n, err := j.store.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	if n > 0 {
		logger.Info(ctx, "cleaned up idempotency keys", "count", n)
	}
	return nil
}
