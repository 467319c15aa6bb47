package stockreport

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"lpgstock/internal/core/entity"
	"lpgstock/internal/core/id"
	"lpgstock/internal/domain/catalog"
	"lpgstock/internal/domain/journal"
	"lpgstock/internal/domain/ledger"
	"lpgstock/internal/domain/location"
	"lpgstock/pkg/logger"
)

// Service computes stock reports. It only reads.
type Service struct {
	catalog   catalog.Catalog
	ledger    ledger.Repository
	journal   journal.Repository
	locations location.Repository
	cache     Cache
}

// NewService creates a report service. cache may be nil.
func NewService(cat catalog.Catalog, ledgerRepo ledger.Repository, journalRepo journal.Repository, locations location.Repository, cache Cache) *Service {
	return &Service{
		catalog:   cat,
		ledger:    ledgerRepo,
		journal:   journalRepo,
		locations: locations,
		cache:     cache,
	}
}

// CalculateLiveStock returns one row per (active product, condition) from
// the catalog's aggregate snapshot, read through the cache when configured.
func (s *Service) CalculateLiveStock(ctx context.Context, agencyID id.ID) ([]Row, error) {
	if s.cache != nil {
		rows, ok, err := s.cache.Load(ctx, agencyID)
		if err != nil {
			logger.Warn(ctx, "live stock cache read failed", "agency_id", agencyID, "error", err)
		} else if ok {
			return rows, nil
		}
	}

	rows, err := s.snapshot(ctx, agencyID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Store(ctx, agencyID, rows); err != nil {
			logger.Warn(ctx, "live stock cache write failed", "agency_id", agencyID, "error", err)
		}
	}
	return rows, nil
}

func (s *Service) snapshot(ctx context.Context, agencyID id.ID) ([]Row, error) {
	products, err := s.catalog.ListActiveProducts(ctx, agencyID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	rows := make([]Row, 0, len(products)*3)
	for _, p := range products {
		rows = append(rows, shape(p, p.Stock())...)
	}
	SortRows(rows)
	return rows, nil
}

// LedgerStock sums ledger rows across locations, in the same shape as
// CalculateLiveStock.
func (s *Service) LedgerStock(ctx context.Context, agencyID id.ID) ([]Row, error) {
	products, err := s.catalog.ListActiveProducts(ctx, agencyID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	totals, err := s.ledgerTotals(ctx, agencyID)
	if err != nil {
		return nil, err
	}
	return shapeAll(products, totals), nil
}

func (s *Service) ledgerTotals(ctx context.Context, agencyID id.ID) (map[id.ID]entity.Counters, error) {
	balances, err := s.ledger.ListByAgency(ctx, agencyID)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	totals := make(map[id.ID]entity.Counters)
	for _, b := range balances {
		totals[b.ProductID] = totals[b.ProductID].Plus(b.Counters)
	}
	return totals, nil
}

// ReplayJournal derives stock by summing the journal by direction.
func (s *Service) ReplayJournal(ctx context.Context, agencyID id.ID) ([]Row, error) {
	products, err := s.catalog.ListActiveProducts(ctx, agencyID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	totals, err := s.replayTotals(ctx, agencyID)
	if err != nil {
		return nil, err
	}
	return shapeAll(products, totals), nil
}

func (s *Service) replayTotals(ctx context.Context, agencyID id.ID) (map[id.ID]entity.Counters, error) {
	sums, err := s.journal.ReplayTotals(ctx, agencyID)
	if err != nil {
		return nil, fmt.Errorf("replay journal: %w", err)
	}
	totals := make(map[id.ID]entity.Counters)
	for _, t := range sums {
		c := totals[t.ProductID]
		c.Add(t.StockField, t.Quantity)
		totals[t.ProductID] = c
	}
	return totals, nil
}

func shapeAll(products []catalog.AgencyProduct, totals map[id.ID]entity.Counters) []Row {
	rows := make([]Row, 0, len(products)*3)
	for _, p := range products {
		rows = append(rows, shape(p, totals[p.ID])...)
	}
	SortRows(rows)
	return rows
}

// LocationBreakdown lists stock per (product, condition, location). Products
// no longer active are left out.
func (s *Service) LocationBreakdown(ctx context.Context, agencyID id.ID) ([]LocationRow, error) {
	products, err := s.catalog.ListActiveProducts(ctx, agencyID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	byID := make(map[id.ID]catalog.AgencyProduct, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	balances, err := s.ledger.ListByAgency(ctx, agencyID)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}

	names := make(map[id.ID]string)
	out := make([]LocationRow, 0, len(balances)*3)
	for _, b := range balances {
		p, ok := byID[b.ProductID]
		if !ok {
			continue
		}
		name, ok := names[b.LocationID]
		if !ok {
			loc, err := s.locations.GetByID(ctx, agencyID, b.LocationID)
			if err != nil {
				return nil, fmt.Errorf("resolve location %s: %w", b.LocationID, err)
			}
			name = loc.Name
			names[b.LocationID] = name
		}
		for _, r := range shape(p, b.Counters) {
			out = append(out, LocationRow{Row: r, LocationID: b.LocationID, LocationName: name})
		}
	}
	sortLocationRows(out)
	return out, nil
}

// Reconcile compares the aggregate snapshot, the ledger sum and the journal
// replay, loading them concurrently. The result lists every disagreement.
func (s *Service) Reconcile(ctx context.Context, agencyID id.ID) ([]Mismatch, error) {
	var (
		products []catalog.AgencyProduct
		ledgerBy map[id.ID]entity.Counters
		replayBy map[id.ID]entity.Counters
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = s.catalog.ListActiveProducts(gctx, agencyID)
		return err
	})
	g.Go(func() error {
		var err error
		ledgerBy, err = s.ledgerTotals(gctx, agencyID)
		return err
	})
	g.Go(func() error {
		var err error
		replayBy, err = s.replayTotals(gctx, agencyID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	mismatches := []Mismatch{}
	for _, p := range products {
		snap := p.Stock()
		for _, f := range p.Category.Fields() {
			sv, lv, rv := snap.Get(f), ledgerBy[p.ID].Get(f), replayBy[p.ID].Get(f)
			if sv == lv && lv == rv {
				continue
			}
			diff := lv - sv
			if diff == 0 {
				diff = rv - sv
			}
			mismatches = append(mismatches, Mismatch{
				ProductID:   p.ID,
				ProductName: p.Name,
				Condition:   ConditionOf(f),
				StockField:  f,
				Snapshot:    sv,
				Ledger:      lv,
				Replay:      rv,
				Diff:        diff,
			})
		}
	}
	return mismatches, nil
}
