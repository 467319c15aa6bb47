package ledger

import (
	"context"
	"time"

	"lpgstock/internal/core/entity"
	"lpgstock/internal/core/id"
)

// BalanceFilter narrows location listings.
type BalanceFilter struct {
	ProductIDs  []id.ID
	ExcludeZero bool
}

// Repository is the storage abstraction for ledger rows.
type Repository interface {
	// Get returns current counters, or the zero balance when no row exists.
	Get(ctx context.Context, key Key) (Balance, error)

	// ApplyDelta upserts the row and adds delta to one counter as a single
	// atomic statement, stamping lastMovementAt. It returns the row after the update.
	ApplyDelta(ctx context.Context, key Key, field entity.StockField, delta int64, at time.Time) (Balance, error)

	ListByLocation(ctx context.Context, agencyID, locationID id.ID, filter BalanceFilter) ([]Balance, error)
	ListByProduct(ctx context.Context, agencyID, productID id.ID) ([]Balance, error)
	ListByAgency(ctx context.Context, agencyID id.ID) ([]Balance, error)

	// ListNegative returns rows with at least one counter below zero.
	ListNegative(ctx context.Context, agencyID id.ID) ([]Balance, error)

	// ListAgencies returns every agency that owns at least one ledger row.
	ListAgencies(ctx context.Context) ([]id.ID, error)
}
