// Package memstore provides in-memory implementations of the stock
// repositories for tests. A Store serializes transactions behind one mutex,
// snapshots its state on begin and restores it when the transaction fails,
// so atomicity can be asserted without Postgres.
//
// Writes made outside RunInTransaction are not isolated from a concurrent
// transaction that later rolls back.
package memstore

import (
	"context"
	"sync"

	"lpgstock/internal/core/id"
	"lpgstock/internal/core/tx"
	"lpgstock/internal/domain/audit"
	"lpgstock/internal/domain/catalog"
	"lpgstock/internal/domain/journal"
	"lpgstock/internal/domain/ledger"
	"lpgstock/internal/domain/location"
)

// Fault points accepted by FailOn.
const (
	OpLedgerApplyDelta      = "ledger.ApplyDelta"
	OpCatalogAggregate      = "catalog.ApplyAggregateDelta"
	OpJournalCreate         = "journal.Create"
	OpJournalSaveSettlement = "journal.SaveSettlement"
	OpAuditRecord           = "audit.Record"
	OpNumeratorNext         = "numerator.GetNextNumber"
)

type state struct {
	locations    map[id.ID]location.Location
	balances     map[ledger.Key]ledger.Balance
	transactions map[id.ID]journal.Transaction
	products     map[id.ID]catalog.AgencyProduct
	sequences    map[string]int64
	audit        []audit.Entry
}

func newState() *state {
	return &state{
		locations:    make(map[id.ID]location.Location),
		balances:     make(map[ledger.Key]ledger.Balance),
		transactions: make(map[id.ID]journal.Transaction),
		products:     make(map[id.ID]catalog.AgencyProduct),
		sequences:    make(map[string]int64),
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.locations {
		c.locations[k] = v
	}
	for k, v := range st.balances {
		c.balances[k] = v
	}
	for k, v := range st.transactions {
		v.Lines = append([]journal.Line(nil), v.Lines...)
		c.transactions[k] = v
	}
	for k, v := range st.products {
		c.products[k] = v
	}
	for k, v := range st.sequences {
		c.sequences[k] = v
	}
	c.audit = append([]audit.Entry(nil), st.audit...)
	return c
}

// Store is the shared in-memory database.
type Store struct {
	txMu sync.Mutex

	mu     sync.Mutex
	data   *state
	faults map[string]error
	begins int
}

// New creates an empty store.
func New() *Store {
	return &Store{data: newState(), faults: make(map[string]error)}
}

// FailOn makes every call of op return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

// fault must be called with s.mu held.
func (s *Store) fault(op string) error {
	return s.faults[op]
}

type txKey struct{}

// TxManager returns the store's transaction manager.
func (s *Store) TxManager() *TxManager {
	return &TxManager{store: s}
}

// TxManager implements tx.ReadOnlyManager over a Store.
type TxManager struct {
	store *Store
}

var _ tx.ReadOnlyManager = (*TxManager)(nil)

// RunInTransaction runs fn exclusively. Nested calls join the outer transaction.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s := m.store
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.begins++
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// Begins counts the outermost transactions started so far.
func (s *Store) Begins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begins
}

// ReadOnly runs fn in a transaction.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunInTransaction(ctx, fn)
}

// AuditEntries returns every recorded audit entry in order.
func (s *Store) AuditEntries() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Entry(nil), s.data.audit...)
}

// Audit returns the audit recorder.
func (s *Store) Audit() audit.Recorder {
	return auditRecorder{s}
}

type auditRecorder struct{ s *Store }

func (r auditRecorder) Record(_ context.Context, entry audit.Entry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpAuditRecord); err != nil {
		return err
	}
	r.s.data.audit = append(r.s.data.audit, entry)
	return nil
}
