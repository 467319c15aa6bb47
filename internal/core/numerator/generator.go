package numerator

import (
	"context"
	"time"
)

// Generator generates sequential reference numbers.
// Implementations live in pkg/numerator and internal/testing/memstore.
//
// A number allocated inside a transaction must be released if that
// transaction rolls back, so callers get gapless sequences.
type Generator interface {
	// GetNextNumber generates the next number.
	// Pattern: PREFIX-YEAR-XXXXX (e.g., PUR-2026-00001)
	GetNextNumber(ctx context.Context, cfg Config, period time.Time) (string, error)
}
