package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	appctx "lpgstock/internal/core/context"
	"lpgstock/internal/core/id"
	"lpgstock/internal/domain/ledger"
	"lpgstock/internal/domain/stockreport"
	"lpgstock/pkg/logger"
)

// fanOutLimit bounds concurrent enqueues in the fan-out task.
const fanOutLimit = 8

// AgencyLister lists the agencies that own ledger rows.
type AgencyLister interface {
	ListAgencies(ctx context.Context) ([]id.ID, error)
}

// Reconciler compares the stock views of an agency.
type Reconciler interface {
	Reconcile(ctx context.Context, agencyID id.ID) ([]stockreport.Mismatch, error)
}

// NegativeLister lists overdrawn ledger rows of an agency.
type NegativeLister interface {
	NegativeBalances(ctx context.Context, agencyID id.ID) ([]ledger.ProductBalance, error)
}

// ReconcileJob handles TaskReconcileAll and TaskReconcileAgency.
type ReconcileJob struct {
	agencies   AgencyLister
	reconciler Reconciler
	negatives  NegativeLister
	enqueuer   Enqueuer
	locker     *redislock.Client
	lockTTL    time.Duration
	metrics    *Metrics
}

// NewReconcileJob constructs the reconciliation job. locker may be nil, in
// which case agency runs are not single-flighted.
func NewReconcileJob(
	agencies AgencyLister,
	reconciler Reconciler,
	negatives NegativeLister,
	enqueuer Enqueuer,
	locker *redislock.Client,
	lockTTL time.Duration,
	metrics *Metrics,
) *ReconcileJob {
	return &ReconcileJob{
		agencies:   agencies,
		reconciler: reconciler,
		negatives:  negatives,
		enqueuer:   enqueuer,
		locker:     locker,
		lockTTL:    lockTTL,
		metrics:    metrics,
	}
}

// Handlers returns the task handlers for worker registration.
func (j *ReconcileJob) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskReconcileAll, Handler: j.HandleAll},
		{Type: TaskReconcileAgency, Handler: j.HandleAgency},
	}
}

// HandleAll enqueues one agency task per agency. Agencies whose task is
// still queued from an earlier run are skipped.
func (j *ReconcileJob) HandleAll(ctx context.Context, _ *asynq.Task) (err error) {
	tracker := j.metrics.Track(TaskReconcileAll)
	defer func() { err = tracker.End(err) }()

	agencies, err := j.agencies.ListAgencies(ctx)
	if err != nil {
		return fmt.Errorf("list agencies: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for _, agencyID := range agencies {
		g.Go(func() error {
			task, err := NewReconcileAgencyTask(agencyID)
			if err != nil {
				return err
			}
			err = j.enqueuer.Enqueue(gctx, task, asynq.Unique(j.lockTTL))
			if errors.Is(err, asynq.ErrDuplicateTask) {
				logger.Debug(gctx, "reconcile already queued", "agency_id", agencyID)
				return nil
			}
			if err != nil {
				return fmt.Errorf("enqueue reconcile for %s: %w", agencyID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info(ctx, "reconciliation fanned out", "agencies", len(agencies))
	return nil
}

// HandleAgency reconciles one agency under a per-agency lock. A held lock
// means another worker is on it, and the task completes without work.
func (j *ReconcileJob) HandleAgency(ctx context.Context, t *asynq.Task) (err error) {
	var payload ReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || id.IsNil(payload.AgencyID) {
		return asynq.SkipRetry
	}

	tracker := j.metrics.Track(TaskReconcileAgency)
	defer func() { err = tracker.End(err) }()

	ctx = logger.WithLogger(ctx, logger.FromContext(ctx).With("agency_id", payload.AgencyID))
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext())

	if j.locker != nil {
		lock, err := j.locker.Obtain(ctx, lockKey(payload.AgencyID), j.lockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			logger.Info(ctx, "reconcile skipped, lock held")
			return nil
		}
		if err != nil {
			return fmt.Errorf("obtain reconcile lock: %w", err)
		}
		defer func() {
			if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil && !errors.Is(releaseErr, redislock.ErrLockNotHeld) {
				logger.Warn(ctx, "release reconcile lock failed", "error", releaseErr)
			}
		}()
	}

	return j.reconcile(ctx, payload.AgencyID)
}

func (j *ReconcileJob) reconcile(ctx context.Context, agencyID id.ID) error {
	mismatches, err := j.reconciler.Reconcile(ctx, agencyID)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	for _, m := range mismatches {
		logger.Warn(ctx, "stock views disagree",
			"product_id", m.ProductID,
			"product", m.ProductName,
			"stock_field", m.StockField,
			"snapshot", m.Snapshot,
			"ledger", m.Ledger,
			"replay", m.Replay,
			"diff", m.Diff,
		)
	}
	j.metrics.AddMismatches(agencyID.String(), len(mismatches))

	negatives, err := j.negatives.NegativeBalances(ctx, agencyID)
	if err != nil {
		return fmt.Errorf("negative balances: %w", err)
	}
	for _, n := range negatives {
		for _, f := range n.Fields {
			logger.Warn(ctx, "negative balance",
				"product_id", n.ProductID,
				"product", n.ProductName,
				"location_id", n.LocationID,
				"location", n.LocationName,
				"stock_field", f.Field,
				"quantity", f.Quantity,
			)
		}
	}
	j.metrics.SetNegativeBalances(agencyID.String(), len(negatives))

	logger.Info(ctx, "reconciliation finished",
		"mismatches", len(mismatches),
		"negative_rows", len(negatives),
	)
	return nil
}

func lockKey(agencyID id.ID) string {
	return "lock:reconcile:" + agencyID.String()
}
