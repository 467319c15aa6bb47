package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpgstock/internal/core/entity"
	"lpgstock/internal/core/id"
	"lpgstock/internal/domain/ledger"
	"lpgstock/internal/domain/stockreport"
)

type fakeAgencies struct {
	ids []id.ID
	err error
}

func (f fakeAgencies) ListAgencies(context.Context) ([]id.ID, error) { return f.ids, f.err }

type fakeReconciler struct {
	mu         sync.Mutex
	calls      []id.ID
	mismatches []stockreport.Mismatch
	err        error
}

func (f *fakeReconciler) Reconcile(_ context.Context, agencyID id.ID) ([]stockreport.Mismatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, agencyID)
	return f.mismatches, f.err
}

type fakeNegatives struct {
	rows []ledger.ProductBalance
}

func (f fakeNegatives) NegativeBalances(context.Context, id.ID) ([]ledger.ProductBalance, error) {
	return f.rows, nil
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, task *asynq.Task, _ ...asynq.Option) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, task)
	return nil
}

func newLocker(t *testing.T) *redislock.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return redislock.New(rdb)
}

func agencyTask(t *testing.T, agencyID id.ID) *asynq.Task {
	t.Helper()
	task, err := NewReconcileAgencyTask(agencyID)
	require.NoError(t, err)
	return task
}

func TestHandleAll_EnqueuesOneTaskPerAgency(t *testing.T) {
	a, b := id.New(), id.New()
	enq := &fakeEnqueuer{}
	job := NewReconcileJob(fakeAgencies{ids: []id.ID{a, b}}, &fakeReconciler{}, fakeNegatives{}, enq, nil, time.Minute, NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, job.HandleAll(context.Background(), NewReconcileAllTask()))

	require.Len(t, enq.tasks, 2)
	got := map[id.ID]bool{}
	for _, task := range enq.tasks {
		assert.Equal(t, TaskReconcileAgency, task.Type())
		var p ReconcilePayload
		require.NoError(t, json.Unmarshal(task.Payload(), &p))
		got[p.AgencyID] = true
	}
	assert.True(t, got[a])
	assert.True(t, got[b])
}

func TestHandleAll_DuplicateTaskIsNotAFailure(t *testing.T) {
	enq := &fakeEnqueuer{err: asynq.ErrDuplicateTask}
	job := NewReconcileJob(fakeAgencies{ids: []id.ID{id.New()}}, &fakeReconciler{}, fakeNegatives{}, enq, nil, time.Minute, nil)

	assert.NoError(t, job.HandleAll(context.Background(), NewReconcileAllTask()))
}

func TestHandleAll_PropagatesErrors(t *testing.T) {
	job := NewReconcileJob(fakeAgencies{err: errors.New("db down")}, &fakeReconciler{}, fakeNegatives{}, &fakeEnqueuer{}, nil, time.Minute, nil)
	assert.Error(t, job.HandleAll(context.Background(), NewReconcileAllTask()))

	job = NewReconcileJob(fakeAgencies{ids: []id.ID{id.New()}}, &fakeReconciler{}, fakeNegatives{}, &fakeEnqueuer{err: errors.New("redis down")}, nil, time.Minute, nil)
	assert.Error(t, job.HandleAll(context.Background(), NewReconcileAllTask()))
}

func TestHandleAgency_RunsReconciliationAndRecordsMetrics(t *testing.T) {
	agencyID := id.New()
	rec := &fakeReconciler{mismatches: []stockreport.Mismatch{
		{ProductID: id.New(), ProductName: "14.2kg Domestic", StockField: entity.FieldFilled, Snapshot: 100, Ledger: 98, Replay: 100, Diff: -2},
	}}
	neg := fakeNegatives{rows: []ledger.ProductBalance{
		{ProductID: id.New(), LocationID: id.New(), Fields: []ledger.FieldValue{{Field: entity.FieldEmpty, Quantity: -3}}},
	}}
	metrics := NewMetrics(prometheus.NewRegistry())
	job := NewReconcileJob(fakeAgencies{}, rec, neg, &fakeEnqueuer{}, newLocker(t), time.Minute, metrics)

	require.NoError(t, job.HandleAgency(context.Background(), agencyTask(t, agencyID)))

	assert.Equal(t, []id.ID{agencyID}, rec.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.mismatches.WithLabelValues(agencyID.String())))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.negatives.WithLabelValues(agencyID.String())))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues(TaskReconcileAgency, "success")))
}

func TestHandleAgency_SkipsWhenLockHeld(t *testing.T) {
	agencyID := id.New()
	locker := newLocker(t)
	held, err := locker.Obtain(context.Background(), lockKey(agencyID), time.Minute, nil)
	require.NoError(t, err)
	defer func() { _ = held.Release(context.Background()) }()

	rec := &fakeReconciler{}
	job := NewReconcileJob(fakeAgencies{}, rec, fakeNegatives{}, &fakeEnqueuer{}, locker, time.Minute, nil)

	require.NoError(t, job.HandleAgency(context.Background(), agencyTask(t, agencyID)))
	assert.Empty(t, rec.calls)
}

func TestHandleAgency_ReleasesLock(t *testing.T) {
	agencyID := id.New()
	locker := newLocker(t)
	job := NewReconcileJob(fakeAgencies{}, &fakeReconciler{}, fakeNegatives{}, &fakeEnqueuer{}, locker, time.Minute, nil)

	require.NoError(t, job.HandleAgency(context.Background(), agencyTask(t, agencyID)))

	lock, err := locker.Obtain(context.Background(), lockKey(agencyID), time.Minute, nil)
	require.NoError(t, err)
	_ = lock.Release(context.Background())
}

func TestHandleAgency_FailureCounted(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	job := NewReconcileJob(fakeAgencies{}, &fakeReconciler{err: errors.New("boom")}, fakeNegatives{}, &fakeEnqueuer{}, nil, time.Minute, metrics)

	assert.Error(t, job.HandleAgency(context.Background(), agencyTask(t, id.New())))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.failures.WithLabelValues(TaskReconcileAgency)))
}

func TestHandleAgency_BadPayloadSkipsRetry(t *testing.T) {
	job := NewReconcileJob(fakeAgencies{}, &fakeReconciler{}, fakeNegatives{}, &fakeEnqueuer{}, nil, time.Minute, nil)

	err := job.HandleAgency(context.Background(), asynq.NewTask(TaskReconcileAgency, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.HandleAgency(context.Background(), asynq.NewTask(TaskReconcileAgency, []byte(`{}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type fakeCleaner struct{ n int64 }

func (f fakeCleaner) CleanupExpired(context.Context) (int64, error) { return f.n, nil }

func TestCleanupJob(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	job := NewCleanupJob(fakeCleaner{n: 3}, metrics)

	require.NoError(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues(TaskIdempotencyCleanup, "success")))
}
