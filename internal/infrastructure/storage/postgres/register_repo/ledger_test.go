package register_repo

import (
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lpgstock/internal/core/id"
)

func TestNonZero_CoversEveryCounter(t *testing.T) {
	sql, args, err := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("1").From(ledgerTable).Where(nonZero()).ToSql()
	require.NoError(t, err)

	for _, col := range []string{"filled", "empty", "defective", "sound", "defective_pr", "quantity"} {
		assert.Contains(t, sql, col+" <> ")
	}
	assert.Len(t, args, 6)
}

func TestNewLedgerRepo_SelectList(t *testing.T) {
	r := NewLedgerRepo(nil)

	sql, args, err := r.selectAgency(id.New()).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM stock_ledger WHERE agency_id = $1")
	assert.Contains(t, sql, "defective_pr")
	assert.Len(t, args, 1)
}
