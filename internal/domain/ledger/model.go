// Package ledger provides the per (agency, product, location) stock balance accessor.
package ledger

import (
	"time"

	"lpgstock/internal/core/entity"
	"lpgstock/internal/core/id"
)

// Key identifies one ledger row.
type Key struct {
	AgencyID   id.ID
	ProductID  id.ID
	LocationID id.ID
}

// Balance is one ledger row. A key with no stored row has the zero balance
// returned by ZeroBalance, never an error.
type Balance struct {
	AgencyID   id.ID `db:"agency_id" json:"agencyId"`
	ProductID  id.ID `db:"product_id" json:"productId"`
	LocationID id.ID `db:"location_id" json:"locationId"`

	entity.Counters

	LastMovementAt *time.Time `db:"last_movement_at" json:"lastMovementAt,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// ZeroBalance is the balance of a key that was never touched.
func ZeroBalance(key Key) Balance {
	return Balance{
		AgencyID:   key.AgencyID,
		ProductID:  key.ProductID,
		LocationID: key.LocationID,
	}
}

// Key returns the row's identity.
func (b Balance) Key() Key {
	return Key{AgencyID: b.AgencyID, ProductID: b.ProductID, LocationID: b.LocationID}
}

// Stock returns the counters.
func (b Balance) Stock() entity.Counters {
	return b.Counters
}

// IsNegative reports an overdrawn row.
func (b Balance) IsNegative() bool {
	return b.HasNegative()
}
