package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"lpgstock/internal/core/entity"
	"lpgstock/internal/core/id"
	"lpgstock/internal/domain/journal"
	"lpgstock/internal/domain/ledger"
)

func TestExtractDBColumns_FlattensEmbeddedCounters(t *testing.T) {
	cols := ExtractDBColumns[ledger.Balance]()

	assert.Equal(t, []string{
		"agency_id", "product_id", "location_id",
		"filled", "empty", "defective", "sound", "defective_pr", "quantity",
		"last_movement_at", "created_at", "updated_at",
	}, cols)
}

func TestExtractDBColumns_SkipsIgnoredFields(t *testing.T) {
	cols := ExtractDBColumns[journal.Transaction]()

	assert.Contains(t, cols, "reference_number")
	assert.Contains(t, cols, "cash_actual")
	assert.NotContains(t, cols, "lines")
	assert.NotContains(t, cols, "-")
}

func TestStructToMap(t *testing.T) {
	now := time.Now().UTC()
	b := ledger.Balance{
		AgencyID:       id.New(),
		ProductID:      id.New(),
		LocationID:     id.New(),
		Counters:       entity.Counters{Filled: 80, Empty: 4},
		LastMovementAt: &now,
	}

	m := StructToMap(&b)

	assert.Equal(t, b.AgencyID, m["agency_id"])
	assert.Equal(t, int64(80), m["filled"])
	assert.Equal(t, int64(4), m["empty"])
	assert.Equal(t, &now, m["last_movement_at"])
	assert.Len(t, m, 12)

	assert.Nil(t, StructToMap(42))
}

func TestColumns(t *testing.T) {
	data := map[string]any{"id": 1, "name": "Main Godown", "extra": true}

	got := Columns(data, []string{"id", "name", "missing"})

	assert.Equal(t, map[string]any{"id": 1, "name": "Main Godown"}, got)
}
