// Package stockreport answers agency-wide stock questions: the live snapshot,
// per-location breakdowns and the journal replay used to reconcile them.
package stockreport

import (
	"context"
	"sort"

	"lpgstock/internal/core/entity"
	"lpgstock/internal/core/id"
	"lpgstock/internal/domain/catalog"
)

// Condition is the display name of a stock field.
type Condition string

const (
	ConditionFilled    Condition = "FILLED"
	ConditionEmpty     Condition = "EMPTY"
	ConditionDefective Condition = "DEFECTIVE"
	ConditionSound     Condition = "SOUND"
	ConditionInStock   Condition = "IN_STOCK"
)

// ConditionOf maps a stock field to its condition. Both defective counters
// display as DEFECTIVE.
func ConditionOf(f entity.StockField) Condition {
	switch f {
	case entity.FieldFilled:
		return ConditionFilled
	case entity.FieldEmpty:
		return ConditionEmpty
	case entity.FieldDefective, entity.FieldDefectivePR:
		return ConditionDefective
	case entity.FieldSound:
		return ConditionSound
	}
	return ConditionInStock
}

// Row is the stock of one product in one condition.
type Row struct {
	ProductID   id.ID                  `json:"productId"`
	ProductName string                 `json:"productName"`
	ProductCode string                 `json:"productCode,omitempty"`
	Category    entity.ProductCategory `json:"category"`
	Condition   Condition              `json:"condition"`
	StockField  entity.StockField      `json:"stockField"`
	Quantity    int64                  `json:"quantity"`
}

// LocationRow is a Row held at one location.
type LocationRow struct {
	Row
	LocationID   id.ID  `json:"locationId"`
	LocationName string `json:"locationName"`
}

// Mismatch is a (product, field) where the three stock views disagree.
type Mismatch struct {
	ProductID   id.ID             `json:"productId"`
	ProductName string            `json:"productName"`
	Condition   Condition         `json:"condition"`
	StockField  entity.StockField `json:"stockField"`
	Snapshot    int64             `json:"snapshot"`
	Ledger      int64             `json:"ledger"`
	Replay      int64             `json:"replay"`
	Diff        int64             `json:"diff"`
}

// Cache stores computed live stock per agency.
type Cache interface {
	// Load returns ok=false on a miss.
	Load(ctx context.Context, agencyID id.ID) (rows []Row, ok bool, err error)
	Store(ctx context.Context, agencyID id.ID, rows []Row) error
}

// shape expands one product's counters into one row per meaningful condition.
func shape(p catalog.AgencyProduct, c entity.Counters) []Row {
	fields := p.Category.Fields()
	rows := make([]Row, 0, len(fields))
	for _, f := range fields {
		rows = append(rows, Row{
			ProductID:   p.ID,
			ProductName: p.Name,
			ProductCode: p.Code,
			Category:    p.Category,
			Condition:   ConditionOf(f),
			StockField:  f,
			Quantity:    c.Get(f),
		})
	}
	return rows
}

func less(a, b Row) bool {
	if a.Category.SortRank() != b.Category.SortRank() {
		return a.Category.SortRank() < b.Category.SortRank()
	}
	if a.ProductName != b.ProductName {
		return a.ProductName < b.ProductName
	}
	if a.Condition != b.Condition {
		return a.Condition < b.Condition
	}
	return a.ProductID.String() < b.ProductID.String()
}

// SortRows orders rows by category, product name, then condition.
func SortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
}

func sortLocationRows(rows []LocationRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Row, rows[j].Row
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		return rows[i].LocationName < rows[j].LocationName
	})
}
