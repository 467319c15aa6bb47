// Package register_repo provides the PostgreSQL stock ledger.
package register_repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lpgstock/internal/core/entity"
	"lpgstock/internal/core/id"
	"lpgstock/internal/domain/ledger"
	"lpgstock/internal/infrastructure/storage/postgres"
)

const ledgerTable = "stock_ledger"

var _ ledger.Repository = (*LedgerRepo)(nil)

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
	cols    []string
}

// NewLedgerRepo creates a ledger repository.
func NewLedgerRepo(txm *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		cols:    postgres.ExtractDBColumns[ledger.Balance](),
	}
}

// Get returns the row, or the zero balance when the key was never touched.
func (r *LedgerRepo) Get(ctx context.Context, key ledger.Key) (ledger.Balance, error) {
	sql, args, err := r.builder.Select(r.cols...).
		From(ledgerTable).
		Where(squirrel.Eq{
			"agency_id":   key.AgencyID,
			"product_id":  key.ProductID,
			"location_id": key.LocationID,
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return ledger.Balance{}, fmt.Errorf("build query: %w", err)
	}

	var b ledger.Balance
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return ledger.ZeroBalance(key), nil
		}
		return ledger.Balance{}, postgres.MapError("get ledger row", err)
	}
	return b, nil
}

// ApplyDelta adds delta to one counter in a single upsert. The row lock the
// statement takes holds until the surrounding transaction ends, so the
// returned value is the one every later writer of the key will build on.
func (r *LedgerRepo) ApplyDelta(ctx context.Context, key ledger.Key, field entity.StockField, delta int64, at time.Time) (ledger.Balance, error) {
	if !field.IsValid() {
		return ledger.Balance{}, fmt.Errorf("apply delta: unknown stock field %q", field)
	}
	col := field.Column()

	sql := fmt.Sprintf(`
		INSERT INTO stock_ledger (agency_id, product_id, location_id, %[1]s, last_movement_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5, $5)
		ON CONFLICT (agency_id, product_id, location_id) DO UPDATE
		SET %[1]s = stock_ledger.%[1]s + EXCLUDED.%[1]s,
		    last_movement_at = EXCLUDED.last_movement_at,
		    updated_at = EXCLUDED.updated_at
		RETURNING %[2]s`, col, strings.Join(r.cols, ", "))

	var b ledger.Balance
	err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &b, sql,
		key.AgencyID, key.ProductID, key.LocationID, delta, at)
	if err != nil {
		return ledger.Balance{}, postgres.MapError("apply ledger delta", err)
	}
	return b, nil
}

// ListByLocation returns the rows held at one location.
func (r *LedgerRepo) ListByLocation(ctx context.Context, agencyID, locationID id.ID, filter ledger.BalanceFilter) ([]ledger.Balance, error) {
	q := r.selectAgency(agencyID).Where(squirrel.Eq{"location_id": locationID})

	if len(filter.ProductIDs) > 0 {
		q = q.Where(squirrel.Eq{"product_id": filter.ProductIDs})
	}
	if filter.ExcludeZero {
		q = q.Where(nonZero())
	}

	return r.selectRows(ctx, q.OrderBy("product_id"), "list ledger by location")
}

// ListByProduct returns one product's rows across locations.
func (r *LedgerRepo) ListByProduct(ctx context.Context, agencyID, productID id.ID) ([]ledger.Balance, error) {
	q := r.selectAgency(agencyID).Where(squirrel.Eq{"product_id": productID}).OrderBy("location_id")
	return r.selectRows(ctx, q, "list ledger by product")
}

// ListByAgency returns every row of the agency.
func (r *LedgerRepo) ListByAgency(ctx context.Context, agencyID id.ID) ([]ledger.Balance, error) {
	return r.selectRows(ctx, r.selectAgency(agencyID).OrderBy("product_id", "location_id"), "list ledger by agency")
}

// ListNegative returns rows with any counter below zero.
func (r *LedgerRepo) ListNegative(ctx context.Context, agencyID id.ID) ([]ledger.Balance, error) {
	var anyNegative squirrel.Or
	for _, f := range entity.AllStockFields() {
		anyNegative = append(anyNegative, squirrel.Lt{f.Column(): 0})
	}

	q := r.selectAgency(agencyID).Where(anyNegative).OrderBy("product_id", "location_id")
	return r.selectRows(ctx, q, "list negative ledger rows")
}

// ListAgencies returns every agency that owns ledger rows.
func (r *LedgerRepo) ListAgencies(ctx context.Context) ([]id.ID, error) {
	var agencies []id.ID
	err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &agencies,
		`SELECT DISTINCT agency_id FROM stock_ledger ORDER BY agency_id`)
	if err != nil {
		return nil, postgres.MapError("list ledger agencies", err)
	}
	return agencies, nil
}

func (r *LedgerRepo) selectAgency(agencyID id.ID) squirrel.SelectBuilder {
	return r.builder.Select(r.cols...).From(ledgerTable).Where(squirrel.Eq{"agency_id": agencyID})
}

func (r *LedgerRepo) selectRows(ctx context.Context, q squirrel.SelectBuilder, op string) ([]ledger.Balance, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []ledger.Balance
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, postgres.MapError(op, err)
	}
	return rows, nil
}

func nonZero() squirrel.Or {
	var or squirrel.Or
	for _, f := range entity.AllStockFields() {
		or = append(or, squirrel.NotEq{f.Column(): 0})
	}
	return or
}
