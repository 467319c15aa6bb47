package memstore

import (
	"context"
	"sort"
	"time"

	"lpgstock/internal/core/apperror"
	"lpgstock/internal/core/entity"
	"lpgstock/internal/core/id"
	"lpgstock/internal/core/numerator"
	"lpgstock/internal/domain"
	"lpgstock/internal/domain/journal"
	numpkg "lpgstock/pkg/numerator"
)

// Journal returns the journal repository.
func (s *Store) Journal() journal.Repository {
	return journalRepo{s}
}

// Transactions returns every stored entry, oldest first.
func (s *Store) Transactions() []journal.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]journal.Transaction, 0, len(s.data.transactions))
	for _, t := range s.data.transactions {
		t.Lines = append([]journal.Line(nil), t.Lines...)
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReferenceNumber < out[j].ReferenceNumber })
	return out
}

type journalRepo struct{ s *Store }

func (r journalRepo) Create(_ context.Context, t *journal.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpJournalCreate); err != nil {
		return err
	}
	for _, other := range r.s.data.transactions {
		if other.AgencyID == t.AgencyID && other.ReferenceNumber == t.ReferenceNumber {
			return apperror.NewDuplicate("stock transaction", "reference_number", t.ReferenceNumber)
		}
	}
	stored := *t
	stored.Lines = append([]journal.Line(nil), t.Lines...)
	r.s.data.transactions[t.ID] = stored
	return nil
}

func (r journalRepo) GetByID(_ context.Context, agencyID, transactionID id.ID) (*journal.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.get(agencyID, transactionID)
}

// GetByIDForUpdate needs no row lock here: transactions already run exclusively.
func (r journalRepo) GetByIDForUpdate(ctx context.Context, agencyID, transactionID id.ID) (*journal.Transaction, error) {
	return r.GetByID(ctx, agencyID, transactionID)
}

func (r journalRepo) get(agencyID, transactionID id.ID) (*journal.Transaction, error) {
	t, ok := r.s.data.transactions[transactionID]
	if !ok || t.AgencyID != agencyID {
		return nil, apperror.NewNotFound("stock transaction", transactionID)
	}
	t.Lines = append([]journal.Line(nil), t.Lines...)
	return &t, nil
}

func (r journalRepo) List(_ context.Context, f journal.ListFilter) (domain.ListResult[*journal.Transaction], error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var matched []*journal.Transaction
	for _, t := range r.s.data.transactions {
		if !matches(t, f) {
			continue
		}
		t.Lines = append([]journal.Line(nil), t.Lines...)
		tc := t
		matched = append(matched, &tc)
	}
	sortNewestFirst(matched)

	page := f.Page.Normalize()
	return domain.NewListResult(pageOf(matched, page), int64(len(matched)), page), nil
}

func matches(t journal.Transaction, f journal.ListFilter) bool {
	if t.AgencyID != f.AgencyID {
		return false
	}
	if f.Type != nil && t.Type != *f.Type {
		return false
	}
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.ParentID != nil && !id.Equal(t.ParentTransactionID, f.ParentID) {
		return false
	}
	if f.LocationID != nil && !id.Equal(t.SourceLocationID, f.LocationID) && !id.Equal(t.DestinationLocationID, f.LocationID) {
		return false
	}
	if f.From != nil && t.TransactionDate.Before(*f.From) {
		return false
	}
	if f.To != nil && t.TransactionDate.After(*f.To) {
		return false
	}
	return true
}

func sortNewestFirst(items []*journal.Transaction) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].TransactionDate.Equal(items[j].TransactionDate) {
			return items[i].TransactionDate.After(items[j].TransactionDate)
		}
		return items[i].ReferenceNumber > items[j].ReferenceNumber
	})
}

func (r journalRepo) ListChildren(_ context.Context, agencyID, parentID id.ID) ([]*journal.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*journal.Transaction
	for _, t := range r.s.data.transactions {
		if t.AgencyID == agencyID && t.ParentTransactionID != nil && *t.ParentTransactionID == parentID {
			t.Lines = append([]journal.Line(nil), t.Lines...)
			tc := t
			out = append(out, &tc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReferenceNumber < out[j].ReferenceNumber })
	return out, nil
}

func (r journalRepo) SaveSettlement(_ context.Context, t *journal.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpJournalSaveSettlement); err != nil {
		return err
	}
	stored, ok := r.s.data.transactions[t.ID]
	if !ok || stored.AgencyID != t.AgencyID {
		return apperror.NewNotFound("stock transaction", t.ID)
	}
	stored.CashExpected = t.CashExpected
	stored.CashActual = t.CashActual
	stored.CashShortage = t.CashShortage
	stored.CashExcess = t.CashExcess
	stored.SettledAt = t.SettledAt
	stored.SettledBy = t.SettledBy
	stored.UpdatedAt = t.UpdatedAt
	r.s.data.transactions[t.ID] = stored
	return nil
}

func (r journalRepo) MarkCancelled(_ context.Context, agencyID, transactionID, by id.ID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.data.transactions[transactionID]
	if !ok || stored.AgencyID != agencyID {
		return apperror.NewNotFound("stock transaction", transactionID)
	}
	if stored.Status != journal.StatusConfirmed {
		return apperror.NewConflict("transaction is no longer confirmed").WithDetail("transaction_id", transactionID)
	}
	stored.Status = journal.StatusCancelled
	stored.CancelledBy = id.Ptr(by)
	stored.CancelledAt = &at
	stored.UpdatedAt = at
	r.s.data.transactions[transactionID] = stored
	return nil
}

func (r journalRepo) ReplayTotals(_ context.Context, agencyID id.ID) ([]journal.ReplayTotal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	type key struct {
		product id.ID
		field   entity.StockField
	}
	sums := make(map[key]int64)
	for _, t := range r.s.data.transactions {
		if t.AgencyID != agencyID || t.Status == journal.StatusDraft {
			continue
		}
		sign := t.Direction.Sign()
		if sign == 0 {
			continue
		}
		for _, l := range t.Lines {
			sums[key{l.ProductID, l.StockField}] += sign * l.Quantity
		}
	}

	out := make([]journal.ReplayTotal, 0, len(sums))
	for k, v := range sums {
		out = append(out, journal.ReplayTotal{ProductID: k.product, StockField: k.field, Quantity: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID.String() < out[j].ProductID.String()
		}
		return out[i].StockField < out[j].StockField
	})
	return out, nil
}

// Numerator returns a reference number generator backed by the store.
// Counters roll back with the transaction that advanced them.
func (s *Store) Numerator() numerator.Generator {
	return numberGen{s}
}

type numberGen struct{ s *Store }

func (g numberGen) GetNextNumber(_ context.Context, cfg numerator.Config, period time.Time) (string, error) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	if err := g.s.fault(OpNumeratorNext); err != nil {
		return "", err
	}
	key := numpkg.BuildKey(cfg, period)
	g.s.data.sequences[key]++
	return numpkg.FormatNumber(cfg, period, g.s.data.sequences[key]), nil
}
