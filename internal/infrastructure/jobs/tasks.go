package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"lpgstock/internal/core/id"
)

const (
	// QueueDefault is the queue every task of this service uses.
	QueueDefault = "default"

	// TaskReconcileAll fans out one TaskReconcileAgency per agency.
	TaskReconcileAll = "ledger:reconcile-all"
	// TaskReconcileAgency compares the stock views of one agency.
	TaskReconcileAgency = "ledger:reconcile"
	// TaskIdempotencyCleanup deletes expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// ReconcilePayload identifies the agency to reconcile.
type ReconcilePayload struct {
	AgencyID id.ID `json:"agencyId"`
}

// NewReconcileAllTask constructs the cron fan-out task.
func NewReconcileAllTask() *asynq.Task {
	return asynq.NewTask(TaskReconcileAll, nil)
}

// NewReconcileAgencyTask constructs a per-agency reconciliation task.
func NewReconcileAgencyTask(agencyID id.ID) (*asynq.Task, error) {
	data, err := json.Marshal(ReconcilePayload{AgencyID: agencyID})
	if err != nil {
		return nil, fmt.Errorf("marshal reconcile payload: %w", err)
	}
	return asynq.NewTask(TaskReconcileAgency, data), nil
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}
