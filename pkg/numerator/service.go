// Package numerator provides the sys_sequences backed reference number service.
// Numbers are allocated through the caller's transaction querier, so a
// rolled-back movement releases its number and sequences stay gapless.
package numerator

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	core "lpgstock/internal/core/numerator"
)

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierSource resolves the querier for ctx (the active transaction or the pool).
type QuerierSource func(ctx context.Context) Querier

// Service provides reference numbering functionality.
type Service struct {
	source QuerierSource
}

var _ core.Generator = (*Service)(nil)

// New creates a numerator service with a static querier.
// Use for tests and tools that run outside transactions.
func New(querier Querier) *Service {
	return &Service{source: func(context.Context) Querier { return querier }}
}

// NewWithSource creates a numerator service that resolves its querier per call.
func NewWithSource(source QuerierSource) *Service {
	return &Service{source: source}
}

// GetNextNumber generates the next number.
// Pattern: PREFIX-YEAR-XXXXX (e.g., PUR-2026-00001)
func (s *Service) GetNextNumber(ctx context.Context, cfg core.Config, period time.Time) (string, error) {
	if s == nil || s.source == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}
	if cfg.Prefix == "" {
		return "", fmt.Errorf("numerator: prefix is required")
	}

	key := BuildKey(cfg, period)

	var num int64
	err := s.source(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
		RETURNING current_val
	`, key).Scan(&num)
	if err != nil {
		return "", fmt.Errorf("next number for %s: %w", key, err)
	}

	return FormatNumber(cfg, period, num), nil
}

// BuildKey creates the sequence key based on config and period.
func BuildKey(cfg core.Config, period time.Time) string {
	base := cfg.Scope
	if base == "" {
		base = cfg.Prefix
	}

	switch cfg.ResetPeriod {
	case core.ResetMonth:
		return fmt.Sprintf("%s_%s", base, period.Format("2006_01"))
	case core.ResetYear:
		return fmt.Sprintf("%s_%s", base, period.Format("2006"))
	default:
		return base
	}
}

// FormatNumber creates the final number string.
func FormatNumber(cfg core.Config, period time.Time, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 5
	}

	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, period.Format("2006"), padWidth, num)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, padWidth, num)
}
