// Package journal_repo provides the PostgreSQL transaction journal.
package journal_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lpgstock/internal/core/apperror"
	"lpgstock/internal/core/id"
	"lpgstock/internal/domain"
	"lpgstock/internal/domain/journal"
	"lpgstock/internal/infrastructure/storage/postgres"
)

const (
	headerTable = "stock_transactions"
	linesTable  = "stock_transaction_lines"
)

var lineColumns = []string{
	"transaction_id", "line_no", "product_id", "product_label", "stock_field",
	"quantity", "unit_price", "total_value", "is_override",
}

var _ journal.Repository = (*Repo)(nil)

// Repo implements journal.Repository.
type Repo struct {
	txm      *postgres.TxManager
	builder  squirrel.StatementBuilderType
	inserter *postgres.BatchInserter
	cols     []string
}

// New creates a journal repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{
		txm:      txm,
		builder:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		inserter: postgres.NewBatchInserter(txm),
		cols:     postgres.ExtractDBColumns[journal.Transaction](),
	}
}

// Create inserts the header and its lines.
func (r *Repo) Create(ctx context.Context, t *journal.Transaction) error {
	sql, args, err := r.builder.Insert(headerTable).
		SetMap(postgres.Columns(postgres.StructToMap(t), r.cols)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError("insert stock transaction", err)
	}

	if len(t.Lines) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(t.Lines))
	for _, l := range t.Lines {
		rows = append(rows, []any{
			t.ID, l.LineNo, l.ProductID, l.ProductLabel, string(l.StockField),
			l.Quantity, l.UnitPrice, l.TotalValue, l.IsOverride,
		})
	}

	if r.txm.GetTx(ctx) != nil {
		if _, err := r.inserter.CopyFromSlice(ctx, linesTable, lineColumns, rows); err != nil {
			return fmt.Errorf("copy lines: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(linesTable).Columns(lineColumns...)
	for _, row := range rows {
		q = q.Values(row...)
	}
	sql, args, err = q.ToSql()
	if err != nil {
		return fmt.Errorf("build lines insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError("insert stock transaction lines", err)
	}
	return nil
}

// GetByID returns an entry with its lines.
func (r *Repo) GetByID(ctx context.Context, agencyID, transactionID id.ID) (*journal.Transaction, error) {
	return r.get(ctx, agencyID, transactionID, "")
}

// GetByIDForUpdate locks the header row until the transaction ends.
func (r *Repo) GetByIDForUpdate(ctx context.Context, agencyID, transactionID id.ID) (*journal.Transaction, error) {
	return r.get(ctx, agencyID, transactionID, "FOR UPDATE")
}

func (r *Repo) get(ctx context.Context, agencyID, transactionID id.ID, suffix string) (*journal.Transaction, error) {
	q := r.builder.Select(r.cols...).
		From(headerTable).
		Where(squirrel.Eq{"agency_id": agencyID, "id": transactionID})
	if suffix != "" {
		q = q.Suffix(suffix)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var t journal.Transaction
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock transaction", transactionID)
		}
		return nil, postgres.MapError("get stock transaction", err)
	}

	if err := r.attachLines(ctx, []*journal.Transaction{&t}); err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns a page of entries, newest first.
func (r *Repo) List(ctx context.Context, f journal.ListFilter) (domain.ListResult[*journal.Transaction], error) {
	q := r.builder.Select(r.cols...).From(headerTable).Where(filterWhere(f))
	querier := r.txm.GetQuerier(ctx)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").From(headerTable).Where(filterWhere(f)).ToSql()
	if err != nil {
		return domain.ListResult[*journal.Transaction]{}, fmt.Errorf("build count query: %w", err)
	}
	var total int64
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return domain.ListResult[*journal.Transaction]{}, postgres.MapError("count stock transactions", err)
	}

	page := f.Page.Normalize()
	sql, args, err := q.OrderBy("transaction_date DESC", "reference_number DESC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return domain.ListResult[*journal.Transaction]{}, fmt.Errorf("build query: %w", err)
	}

	var items []*journal.Transaction
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return domain.ListResult[*journal.Transaction]{}, postgres.MapError("list stock transactions", err)
	}
	if err := r.attachLines(ctx, items); err != nil {
		return domain.ListResult[*journal.Transaction]{}, err
	}
	return domain.NewListResult(items, total, f.Page), nil
}

// filterWhere translates a list filter. Pointer fields are dereferenced
// here because squirrel calls Value on driver.Valuer arguments.
func filterWhere(f journal.ListFilter) squirrel.And {
	where := squirrel.And{squirrel.Eq{"agency_id": f.AgencyID}}
	if f.Type != nil {
		where = append(where, squirrel.Eq{"transaction_type": string(*f.Type)})
	}
	if f.Status != nil {
		where = append(where, squirrel.Eq{"status": string(*f.Status)})
	}
	if f.ParentID != nil {
		where = append(where, squirrel.Eq{"parent_transaction_id": *f.ParentID})
	}
	if f.LocationID != nil {
		where = append(where, squirrel.Or{
			squirrel.Eq{"source_location_id": *f.LocationID},
			squirrel.Eq{"destination_location_id": *f.LocationID},
		})
	}
	if f.From != nil {
		where = append(where, squirrel.GtOrEq{"transaction_date": *f.From})
	}
	if f.To != nil {
		where = append(where, squirrel.LtOrEq{"transaction_date": *f.To})
	}
	return where
}

// ListChildren returns entries whose parent is parentID, oldest reference first.
func (r *Repo) ListChildren(ctx context.Context, agencyID, parentID id.ID) ([]*journal.Transaction, error) {
	sql, args, err := r.builder.Select(r.cols...).
		From(headerTable).
		Where(squirrel.Eq{"agency_id": agencyID, "parent_transaction_id": parentID}).
		OrderBy("reference_number").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*journal.Transaction
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, postgres.MapError("list child transactions", err)
	}
	if err := r.attachLines(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Repo) attachLines(ctx context.Context, items []*journal.Transaction) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, 0, len(items))
	byID := make(map[id.ID]*journal.Transaction, len(items))
	for _, t := range items {
		ids = append(ids, t.ID.String())
		byID[t.ID] = t
		t.Lines = []journal.Line{}
	}

	var lines []journal.Line
	err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &lines, `
		SELECT transaction_id, line_no, product_id, product_label, stock_field,
		       quantity, unit_price, total_value, is_override
		FROM stock_transaction_lines
		WHERE transaction_id = ANY($1::uuid[])
		ORDER BY transaction_id, line_no`, ids)
	if err != nil {
		return postgres.MapError("load transaction lines", err)
	}

	for _, l := range lines {
		if t, ok := byID[l.TransactionID]; ok {
			t.Lines = append(t.Lines, l)
		}
	}
	return nil
}

// SaveSettlement writes the cash outcome of an issue.
func (r *Repo) SaveSettlement(ctx context.Context, t *journal.Transaction) error {
	sql, args, err := r.builder.Update(headerTable).
		SetMap(map[string]any{
			"cash_expected": t.CashExpected,
			"cash_actual":   t.CashActual,
			"cash_shortage": t.CashShortage,
			"cash_excess":   t.CashExcess,
			"settled_at":    t.SettledAt,
			"settled_by":    t.SettledBy,
			"updated_at":    t.UpdatedAt,
		}).
		Where(squirrel.Eq{"agency_id": t.AgencyID, "id": t.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError("save settlement", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("stock transaction", t.ID)
	}
	return nil
}

// MarkCancelled flips a confirmed entry to CANCELLED.
func (r *Repo) MarkCancelled(ctx context.Context, agencyID, transactionID, by id.ID, at time.Time) error {
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, `
		UPDATE stock_transactions
		SET status = $1, cancelled_by = $2, cancelled_at = $3, updated_at = $3
		WHERE agency_id = $4 AND id = $5 AND status = $6`,
		string(journal.StatusCancelled), by, at, agencyID, transactionID, string(journal.StatusConfirmed))
	if err != nil {
		return postgres.MapError("cancel stock transaction", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConflict("transaction is no longer confirmed").WithDetail("transaction_id", transactionID)
	}
	return nil
}

// ReplayTotals sums lines by direction sign over every non-draft entry.
func (r *Repo) ReplayTotals(ctx context.Context, agencyID id.ID) ([]journal.ReplayTotal, error) {
	var totals []journal.ReplayTotal
	err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &totals, `
		SELECT l.product_id, l.stock_field,
		       SUM(CASE t.direction WHEN 'IN' THEN l.quantity ELSE -l.quantity END)::BIGINT AS quantity
		FROM stock_transaction_lines l
		JOIN stock_transactions t ON t.id = l.transaction_id
		WHERE t.agency_id = $1 AND t.status <> $2 AND t.direction <> $3
		GROUP BY l.product_id, l.stock_field
		ORDER BY l.product_id, l.stock_field`,
		agencyID, string(journal.StatusDraft), string(journal.DirectionNone))
	if err != nil {
		return nil, postgres.MapError("replay journal", err)
	}
	return totals, nil
}
