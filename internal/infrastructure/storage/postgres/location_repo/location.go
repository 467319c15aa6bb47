// Package location_repo provides the PostgreSQL location registry.
package location_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lpgstock/internal/core/apperror"
	"lpgstock/internal/core/id"
	"lpgstock/internal/domain"
	"lpgstock/internal/domain/location"
	"lpgstock/internal/infrastructure/storage/postgres"
)

const table = "stock_locations"

var _ location.Repository = (*Repo)(nil)

// Repo implements location.Repository.
type Repo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
	cols    []string
}

// New creates a location repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		cols:    postgres.ExtractDBColumns[location.Location](),
	}
}

// Create inserts a location.
func (r *Repo) Create(ctx context.Context, loc *location.Location) error {
	sql, args, err := r.builder.Insert(table).
		SetMap(postgres.Columns(postgres.StructToMap(loc), r.cols)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError("insert location", err)
	}
	return nil
}

// Update persists mutable attributes. Kind, vehicle link and agency never change.
func (r *Repo) Update(ctx context.Context, loc *location.Location) error {
	sql, args, err := r.builder.Update(table).
		SetMap(map[string]any{
			"name":       loc.Name,
			"code":       loc.Code,
			"address":    loc.Address,
			"contact":    loc.Contact,
			"notes":      loc.Notes,
			"is_active":  loc.IsActive,
			"updated_at": loc.UpdatedAt,
		}).
		Where(squirrel.Eq{"id": loc.ID, "agency_id": loc.AgencyID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError("update location", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("stock_location", loc.ID)
	}
	return nil
}

// GetByID returns an agency's location.
func (r *Repo) GetByID(ctx context.Context, agencyID, locationID id.ID) (*location.Location, error) {
	return r.getOne(ctx, squirrel.Eq{"agency_id": agencyID, "id": locationID}, locationID)
}

// GetByVehicle returns the location linked to a vehicle.
func (r *Repo) GetByVehicle(ctx context.Context, agencyID, vehicleID id.ID) (*location.Location, error) {
	return r.getOne(ctx, squirrel.Eq{"agency_id": agencyID, "vehicle_id": vehicleID}, vehicleID)
}

// FindDefaultGodown returns the oldest active godown.
func (r *Repo) FindDefaultGodown(ctx context.Context, agencyID id.ID) (*location.Location, error) {
	sql, args, err := r.builder.Select(r.cols...).
		From(table).
		Where(squirrel.Eq{"agency_id": agencyID, "kind": location.KindGodown, "is_active": true}).
		OrderBy("created_at", "id").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var loc location.Location
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &loc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("default_godown", agencyID)
		}
		return nil, postgres.MapError("find default godown", err)
	}
	return &loc, nil
}

// List returns locations ordered by name.
func (r *Repo) List(ctx context.Context, filter location.ListFilter) (domain.ListResult[*location.Location], error) {
	q := r.builder.Select(r.cols...).
		From(table).
		Where(squirrel.Eq{"agency_id": filter.AgencyID})

	if filter.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": *filter.Kind})
	}
	if filter.ActiveOnly {
		q = q.Where(squirrel.Eq{"is_active": true})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"code": pattern},
		})
	}

	querier := r.txm.GetQuerier(ctx)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return domain.ListResult[*location.Location]{}, fmt.Errorf("build count query: %w", err)
	}
	var total int64
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return domain.ListResult[*location.Location]{}, postgres.MapError("count locations", err)
	}

	page := filter.Page.Normalize()
	sql, args, err := q.OrderBy("name", "id").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return domain.ListResult[*location.Location]{}, fmt.Errorf("build query: %w", err)
	}

	var items []*location.Location
	if err := pgxscan.Select(ctx, querier, &items, sql, args...); err != nil {
		return domain.ListResult[*location.Location]{}, postgres.MapError("list locations", err)
	}
	return domain.NewListResult(items, total, filter.Page), nil
}

func (r *Repo) getOne(ctx context.Context, where squirrel.Eq, key id.ID) (*location.Location, error) {
	sql, args, err := r.builder.Select(r.cols...).From(table).Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var loc location.Location
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &loc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock_location", key)
		}
		return nil, postgres.MapError("get location", err)
	}
	return &loc, nil
}
