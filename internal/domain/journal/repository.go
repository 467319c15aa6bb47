package journal

import (
	"context"
	"time"

	"lpgstock/internal/core/entity"
	"lpgstock/internal/core/id"
	"lpgstock/internal/domain"
)

// ListFilter selects journal entries. LocationID matches either end of a movement.
type ListFilter struct {
	AgencyID   id.ID
	Type       *Type
	LocationID *id.ID
	ParentID   *id.ID
	Status     *Status
	From       *time.Time
	To         *time.Time
	Page       domain.Page
}

// ReplayTotal is the signed journal sum of one (product, field).
type ReplayTotal struct {
	ProductID  id.ID             `db:"product_id"`
	StockField entity.StockField `db:"stock_field"`
	Quantity   int64             `db:"quantity"`
}

// Repository persists journal entries.
type Repository interface {
	// Create inserts header and lines. A duplicate reference number yields a CONFLICT error.
	Create(ctx context.Context, t *Transaction) error

	GetByID(ctx context.Context, agencyID, transactionID id.ID) (*Transaction, error)

	// GetByIDForUpdate locks the header row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, agencyID, transactionID id.ID) (*Transaction, error)

	// List returns newest first.
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Transaction], error)

	ListChildren(ctx context.Context, agencyID, parentID id.ID) ([]*Transaction, error)

	// SaveSettlement writes the cash fields and settled markers of an issue.
	SaveSettlement(ctx context.Context, t *Transaction) error

	MarkCancelled(ctx context.Context, agencyID, transactionID, by id.ID, at time.Time) error

	// ReplayTotals sums lines by direction sign over every non-draft entry.
	ReplayTotals(ctx context.Context, agencyID id.ID) ([]ReplayTotal, error)
}
