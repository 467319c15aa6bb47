// Package catalog defines the product catalog contract the stock core consumes.
// Products are owned by the catalog collaborator; the core only reads them and
// keeps their aggregate stock snapshot in step with boundary-crossing movements.
package catalog

import (
	"context"
	"time"

	"lpgstock/internal/core/apperror"
	"lpgstock/internal/core/entity"
	"lpgstock/internal/core/id"
	"lpgstock/internal/core/types"
)

// AgencyProduct is one product as configured for one agency.
type AgencyProduct struct {
	ID              id.ID                  `db:"id" json:"id"`
	AgencyID        id.ID                  `db:"agency_id" json:"agencyId"`
	GlobalProductID *id.ID                 `db:"global_product_id" json:"globalProductId,omitempty"`
	Name            string                 `db:"name" json:"name"`
	Code            string                 `db:"code" json:"code"`
	Category        entity.ProductCategory `db:"category" json:"category"`

	// Stock is the denormalized aggregate across all locations.
	// It is a convenience value, not the source of truth for per-location balances.
	entity.Counters

	PurchasePrice types.Money `db:"purchase_price" json:"purchasePrice"`
	SalePrice     types.Money `db:"sale_price" json:"salePrice"`
	IsActive      bool        `db:"is_active" json:"isActive"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updatedAt"`
}

// Stock returns the aggregate snapshot.
func (p AgencyProduct) Stock() entity.Counters {
	return p.Counters
}

// CheckField rejects stock fields this product's category does not carry.
func (p AgencyProduct) CheckField(f entity.StockField) error {
	if !f.IsValid() || !p.Category.Allows(f) {
		return apperror.NewValidation("stock field is not valid for product category").
			WithDetail("product_id", p.ID).
			WithDetail("category", string(p.Category)).
			WithDetail("stock_field", string(f)).
			WithDetail("allowed", p.Category.Fields())
	}
	return nil
}

// Catalog is the collaborator contract.
type Catalog interface {
	// GetProduct returns an active product of the agency or a NOT_FOUND error.
	GetProduct(ctx context.Context, agencyID, productID id.ID) (AgencyProduct, error)

	// ListActiveProducts returns the agency's enabled products.
	ListActiveProducts(ctx context.Context, agencyID id.ID) ([]AgencyProduct, error)

	// ApplyAggregateDelta atomically adds delta to one counter of the snapshot.
	ApplyAggregateDelta(ctx context.Context, agencyID, productID id.ID, field entity.StockField, delta int64) error
}
