package journal_repo

import (
	"testing"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpgstock/internal/core/id"
	"lpgstock/internal/domain/journal"
)

func toSQL(t *testing.T, f journal.ListFilter) (string, []any) {
	t.Helper()
	sql, args, err := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("id").From(headerTable).Where(filterWhere(f)).ToSql()
	require.NoError(t, err)
	return sql, args
}

func TestFilterWhere_AgencyOnly(t *testing.T) {
	sql, args := toSQL(t, journal.ListFilter{AgencyID: id.New()})

	assert.Equal(t, "SELECT id FROM stock_transactions WHERE (agency_id = $1)", sql)
	assert.Len(t, args, 1)
}

func TestFilterWhere_LocationMatchesEitherEnd(t *testing.T) {
	loc := id.New()
	sql, args := toSQL(t, journal.ListFilter{AgencyID: id.New(), LocationID: &loc})

	assert.Contains(t, sql, "(source_location_id = $2 OR destination_location_id = $3)")
	require.Len(t, args, 3)
}

func TestFilterWhere_AllFilters(t *testing.T) {
	typ := journal.TypeVehicleIssue
	status := journal.StatusConfirmed
	parent := id.New()
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	sql, args := toSQL(t, journal.ListFilter{
		AgencyID: id.New(),
		Type:     &typ,
		Status:   &status,
		ParentID: &parent,
		From:     &from,
		To:       &to,
	})

	for _, frag := range []string{"transaction_type = ", "status = ", "parent_transaction_id = ", "transaction_date >= ", "transaction_date <= "} {
		assert.Contains(t, sql, frag)
	}
	assert.Contains(t, args, "VEHICLE_ISSUE")
	assert.Contains(t, args, "CONFIRMED")
	assert.Len(t, args, 6)
}
