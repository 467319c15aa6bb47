// Package catalog_repo provides the PostgreSQL agency product catalog.
package catalog_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lpgstock/internal/core/apperror"
	"lpgstock/internal/core/entity"
	"lpgstock/internal/core/id"
	"lpgstock/internal/domain/catalog"
	"lpgstock/internal/infrastructure/storage/postgres"
)

const productsTable = "agency_products"

var _ catalog.Catalog = (*AgencyProductRepo)(nil)

// AgencyProductRepo reads agency products and maintains their aggregate stock.
type AgencyProductRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
	cols    []string
}

// NewAgencyProductRepo creates the catalog repository.
func NewAgencyProductRepo(txm *postgres.TxManager) *AgencyProductRepo {
	return &AgencyProductRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		cols:    postgres.ExtractDBColumns[catalog.AgencyProduct](),
	}
}

// GetProduct returns an active product of the agency.
func (r *AgencyProductRepo) GetProduct(ctx context.Context, agencyID, productID id.ID) (catalog.AgencyProduct, error) {
	sql, args, err := r.builder.Select(r.cols...).
		From(productsTable).
		Where(squirrel.Eq{"agency_id": agencyID, "id": productID, "is_active": true}).
		Limit(1).
		ToSql()
	if err != nil {
		return catalog.AgencyProduct{}, fmt.Errorf("build query: %w", err)
	}

	var p catalog.AgencyProduct
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return catalog.AgencyProduct{}, apperror.NewNotFound("product", productID)
		}
		return catalog.AgencyProduct{}, postgres.MapError("get product", err)
	}
	return p, nil
}

// ListActiveProducts returns the agency's enabled products by name.
func (r *AgencyProductRepo) ListActiveProducts(ctx context.Context, agencyID id.ID) ([]catalog.AgencyProduct, error) {
	sql, args, err := r.builder.Select(r.cols...).
		From(productsTable).
		Where(squirrel.Eq{"agency_id": agencyID, "is_active": true}).
		OrderBy("name", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var products []catalog.AgencyProduct
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &products, sql, args...); err != nil {
		return nil, postgres.MapError("list products", err)
	}
	return products, nil
}

// ApplyAggregateDelta adds delta to one snapshot counter in place.
func (r *AgencyProductRepo) ApplyAggregateDelta(ctx context.Context, agencyID, productID id.ID, field entity.StockField, delta int64) error {
	if !field.IsValid() {
		return fmt.Errorf("aggregate delta: unknown stock field %q", field)
	}
	col := field.Column()

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx,
		fmt.Sprintf(`UPDATE agency_products SET %[1]s = %[1]s + $1, updated_at = now() WHERE agency_id = $2 AND id = $3`, col),
		delta, agencyID, productID)
	if err != nil {
		return postgres.MapError("apply aggregate delta", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("product", productID)
	}
	return nil
}

// Upsert writes a product definition, leaving stored stock counters alone.
// The catalog service owns products; this entry point serves seeding and sync.
func (r *AgencyProductRepo) Upsert(ctx context.Context, p catalog.AgencyProduct) error {
	if !p.Category.IsValid() {
		return apperror.NewValidation("invalid product category").WithDetail("category", string(p.Category))
	}
	if strings.TrimSpace(p.Name) == "" {
		return apperror.NewValidation("product name is required").WithDetail("field", "name")
	}

	_, err := r.txm.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO agency_products (id, agency_id, global_product_id, name, code, category, purchase_price, sale_price, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    code = EXCLUDED.code,
		    purchase_price = EXCLUDED.purchase_price,
		    sale_price = EXCLUDED.sale_price,
		    is_active = EXCLUDED.is_active,
		    updated_at = EXCLUDED.updated_at
		WHERE agency_products.agency_id = EXCLUDED.agency_id`,
		p.ID, p.AgencyID, p.GlobalProductID, strings.TrimSpace(p.Name), p.Code, string(p.Category),
		p.PurchasePrice, p.SalePrice, p.IsActive)
	if err != nil {
		return postgres.MapError("upsert product", err)
	}
	return nil
}
