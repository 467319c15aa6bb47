package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"lpgstock/internal/core/apperror"
)

// PostgreSQL error codes the storage layer translates.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgQueryCanceled        = "57014"
)

// constraintFields names the column a unique constraint protects, so
// duplicates can be reported against the right field.
var constraintFields = map[string]struct{ entity, field string }{
	"stock_locations_agency_name_key":    {"stock_location", "name"},
	"stock_locations_agency_vehicle_key": {"stock_location", "vehicleId"},
	"stock_transactions_agency_ref_key":  {"stock_transaction", "referenceNumber"},
	"stock_transaction_lines_pkey":       {"stock_transaction_line", "lineNo"},
	"stock_transactions_pkey":            {"stock_transaction", "id"},
	"stock_locations_pkey":               {"stock_location", "id"},
}

// MapError converts a pgx error into an AppError. Errors that already are
// AppErrors pass through unchanged.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if apperror.IsAppError(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			if c, ok := constraintFields[pgErr.ConstraintName]; ok {
				return apperror.NewDuplicate(c.entity, c.field, pgErr.Detail).WithCause(err)
			}
			return apperror.NewConflict("unique constraint violated").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case pgSerializationFailure, pgDeadlockDetected:
			return apperror.NewConflict("concurrent update detected, retry the operation").
				WithDetail("operation", op).
				WithCause(err)
		case pgForeignKeyViolation, pgCheckViolation:
			return apperror.NewValidation("data violates a storage constraint").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case pgQueryCanceled:
			return apperror.NewDatabase(op, err).WithDetail("reason", "statement timeout")
		}
	}
	return apperror.NewDatabase(op, err)
}

// IsNoRows reports a query that matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
