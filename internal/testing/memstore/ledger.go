package memstore

import (
	"bytes"
	"context"
	"sort"
	"time"

	"lpgstock/internal/core/apperror"
	"lpgstock/internal/core/entity"
	"lpgstock/internal/core/id"
	"lpgstock/internal/domain/catalog"
	"lpgstock/internal/domain/ledger"
)

// Ledger returns the ledger repository.
func (s *Store) Ledger() ledger.Repository {
	return ledgerRepo{s}
}

// Balance reads one ledger row directly, bypassing transactions.
func (s *Store) Balance(agencyID, productID, locationID id.ID) entity.Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.balances[ledger.Key{AgencyID: agencyID, ProductID: productID, LocationID: locationID}].Counters
}

type ledgerRepo struct{ s *Store }

func (r ledgerRepo) Get(_ context.Context, key ledger.Key) (ledger.Balance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if b, ok := r.s.data.balances[key]; ok {
		return b, nil
	}
	return ledger.ZeroBalance(key), nil
}

func (r ledgerRepo) ApplyDelta(_ context.Context, key ledger.Key, field entity.StockField, delta int64, at time.Time) (ledger.Balance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpLedgerApplyDelta); err != nil {
		return ledger.Balance{}, err
	}

	b, ok := r.s.data.balances[key]
	if !ok {
		b = ledger.ZeroBalance(key)
		b.CreatedAt = at
	}
	b.Add(field, delta)
	stamp := at
	b.LastMovementAt = &stamp
	b.UpdatedAt = at
	r.s.data.balances[key] = b
	return b, nil
}

func (r ledgerRepo) ListByLocation(_ context.Context, agencyID, locationID id.ID, filter ledger.BalanceFilter) ([]ledger.Balance, error) {
	wanted := make(map[id.ID]bool, len(filter.ProductIDs))
	for _, p := range filter.ProductIDs {
		wanted[p] = true
	}
	return r.collect(func(b ledger.Balance) bool {
		if b.AgencyID != agencyID || b.LocationID != locationID {
			return false
		}
		if len(wanted) > 0 && !wanted[b.ProductID] {
			return false
		}
		return !filter.ExcludeZero || !b.Counters.IsZero()
	}), nil
}

func (r ledgerRepo) ListByProduct(_ context.Context, agencyID, productID id.ID) ([]ledger.Balance, error) {
	return r.collect(func(b ledger.Balance) bool {
		return b.AgencyID == agencyID && b.ProductID == productID
	}), nil
}

func (r ledgerRepo) ListByAgency(_ context.Context, agencyID id.ID) ([]ledger.Balance, error) {
	return r.collect(func(b ledger.Balance) bool { return b.AgencyID == agencyID }), nil
}

func (r ledgerRepo) ListNegative(_ context.Context, agencyID id.ID) ([]ledger.Balance, error) {
	return r.collect(func(b ledger.Balance) bool { return b.AgencyID == agencyID && b.IsNegative() }), nil
}

func (r ledgerRepo) ListAgencies(context.Context) ([]id.ID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := make(map[id.ID]bool)
	var out []id.ID
	for k := range r.s.data.balances {
		if !seen[k.AgencyID] {
			seen[k.AgencyID] = true
			out = append(out, k.AgencyID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out, nil
}

func (r ledgerRepo) collect(keep func(ledger.Balance) bool) []ledger.Balance {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []ledger.Balance
	for _, b := range r.s.data.balances {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := bytes.Compare(out[i].ProductID[:], out[j].ProductID[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(out[i].LocationID[:], out[j].LocationID[:]) < 0
	})
	return out
}

// Catalog returns the product catalog.
func (s *Store) Catalog() catalog.Catalog {
	return catalogRepo{s}
}

// PutProduct adds or replaces a product.
func (s *Store) PutProduct(p catalog.AgencyProduct) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.products[p.ID] = p
}

// Product reads a product regardless of its active flag.
func (s *Store) Product(productID id.ID) (catalog.AgencyProduct, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.products[productID]
	return p, ok
}

type catalogRepo struct{ s *Store }

func (r catalogRepo) GetProduct(_ context.Context, agencyID, productID id.ID) (catalog.AgencyProduct, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.data.products[productID]
	if !ok || p.AgencyID != agencyID || !p.IsActive {
		return catalog.AgencyProduct{}, apperror.NewNotFound("agency product", productID)
	}
	return p, nil
}

func (r catalogRepo) ListActiveProducts(_ context.Context, agencyID id.ID) ([]catalog.AgencyProduct, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []catalog.AgencyProduct
	for _, p := range r.s.data.products {
		if p.AgencyID == agencyID && p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r catalogRepo) ApplyAggregateDelta(_ context.Context, agencyID, productID id.ID, field entity.StockField, delta int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault(OpCatalogAggregate); err != nil {
		return err
	}
	p, ok := r.s.data.products[productID]
	if !ok || p.AgencyID != agencyID {
		return apperror.NewNotFound("agency product", productID)
	}
	p.Add(field, delta)
	r.s.data.products[productID] = p
	return nil
}
