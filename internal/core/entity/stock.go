// Package entity holds value types shared by every stock component.
package entity

import (
	"fmt"
)

// ProductCategory selects which stock counters are meaningful for a product.
type ProductCategory string

const (
	CategoryCylinder ProductCategory = "CYLINDER"
	CategoryPR       ProductCategory = "PR"
	CategoryNFR      ProductCategory = "NFR"
)

// StockField names one counter of a ledger row.
type StockField string

const (
	FieldFilled      StockField = "filled"
	FieldEmpty       StockField = "empty"
	FieldDefective   StockField = "defective"
	FieldSound       StockField = "sound"
	FieldDefectivePR StockField = "defectivePR"
	FieldQuantity    StockField = "quantity"
)

var categoryFields = map[ProductCategory][]StockField{
	CategoryCylinder: {FieldFilled, FieldEmpty, FieldDefective},
	CategoryPR:       {FieldSound, FieldDefectivePR},
	CategoryNFR:      {FieldQuantity},
}

// categoryOrder is the display order used by stock reports.
var categoryOrder = map[ProductCategory]int{
	CategoryCylinder: 0,
	CategoryPR:       1,
	CategoryNFR:      2,
}

// IsValid reports whether c is a known category.
func (c ProductCategory) IsValid() bool {
	_, ok := categoryFields[c]
	return ok
}

// Fields returns the counters a product of this category carries.
func (c ProductCategory) Fields() []StockField {
	fields := categoryFields[c]
	out := make([]StockField, len(fields))
	copy(out, fields)
	return out
}

// Allows reports whether f is one of c's counters.
func (c ProductCategory) Allows(f StockField) bool {
	for _, candidate := range categoryFields[c] {
		if candidate == f {
			return true
		}
	}
	return false
}

// SortRank orders categories for display; unknown categories sort last.
func (c ProductCategory) SortRank() int {
	if rank, ok := categoryOrder[c]; ok {
		return rank
	}
	return len(categoryOrder)
}

// AllStockFields lists every counter in storage order.
func AllStockFields() []StockField {
	return []StockField{FieldFilled, FieldEmpty, FieldDefective, FieldSound, FieldDefectivePR, FieldQuantity}
}

// IsValid reports whether f is one of the six counters.
func (f StockField) IsValid() bool {
	switch f {
	case FieldFilled, FieldEmpty, FieldDefective, FieldSound, FieldDefectivePR, FieldQuantity:
		return true
	}
	return false
}

// Column is the SQL column holding this counter.
func (f StockField) Column() string {
	if f == FieldDefectivePR {
		return "defective_pr"
	}
	return string(f)
}

// Counters is a full balance record. The zero value is a valid, empty balance.
type Counters struct {
	Filled      int64 `db:"filled" json:"filled"`
	Empty       int64 `db:"empty" json:"empty"`
	Defective   int64 `db:"defective" json:"defective"`
	Sound       int64 `db:"sound" json:"sound"`
	DefectivePR int64 `db:"defective_pr" json:"defectivePR"`
	Quantity    int64 `db:"quantity" json:"quantity"`
}

// Get returns the value of one counter.
func (c Counters) Get(f StockField) int64 {
	if p := c.ptr(f); p != nil {
		return *p
	}
	return 0
}

// Add applies a signed delta to one counter.
func (c *Counters) Add(f StockField, delta int64) {
	if p := c.ptr(f); p != nil {
		*p += delta
	}
}

// Plus returns the counter-wise sum of c and o.
func (c Counters) Plus(o Counters) Counters {
	for _, f := range AllStockFields() {
		c.Add(f, o.Get(f))
	}
	return c
}

// HasNegative reports whether any counter is below zero.
func (c Counters) HasNegative() bool {
	for _, f := range AllStockFields() {
		if c.Get(f) < 0 {
			return true
		}
	}
	return false
}

// IsZero reports whether every counter is zero.
func (c Counters) IsZero() bool {
	return c == Counters{}
}

func (c *Counters) ptr(f StockField) *int64 {
	switch f {
	case FieldFilled:
		return &c.Filled
	case FieldEmpty:
		return &c.Empty
	case FieldDefective:
		return &c.Defective
	case FieldSound:
		return &c.Sound
	case FieldDefectivePR:
		return &c.DefectivePR
	case FieldQuantity:
		return &c.Quantity
	}
	return nil
}

// ParseStockField validates a counter name coming from outside the core.
func ParseStockField(s string) (StockField, error) {
	f := StockField(s)
	if !f.IsValid() {
		return "", fmt.Errorf("unknown stock field %q", s)
	}
	return f, nil
}
