package location

import (
	"context"

	"lpgstock/internal/core/id"
	"lpgstock/internal/domain"
)

// ListFilter narrows List results.
type ListFilter struct {
	AgencyID   id.ID
	Kind       *Kind
	ActiveOnly bool
	Search     string
	Page       domain.Page
}

// Repository defines persistence for stock locations.
// Every lookup is agency scoped: a location of another agency is reported as not found.
type Repository interface {
	// Create inserts a location; a duplicate (agency, name) yields a DUPLICATE_ENTRY error.
	Create(ctx context.Context, loc *Location) error

	// Update persists mutable attributes.
	Update(ctx context.Context, loc *Location) error

	GetByID(ctx context.Context, agencyID, locationID id.ID) (*Location, error)
	GetByVehicle(ctx context.Context, agencyID, vehicleID id.ID) (*Location, error)

	// FindDefaultGodown returns the oldest active GODOWN.
	FindDefaultGodown(ctx context.Context, agencyID id.ID) (*Location, error)

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Location], error)
}
