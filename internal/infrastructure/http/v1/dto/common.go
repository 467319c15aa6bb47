// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"fmt"
	"time"

	"lpgstock/internal/core/apperror"
	"lpgstock/internal/core/id"
	"lpgstock/internal/domain"
)

// --- Pagination ---

// PageQuery contains pagination parameters.
type PageQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// ToPage converts the query to a domain page.
func (p PageQuery) ToPage() domain.Page {
	return domain.Page{Page: p.Page, Limit: p.Limit}.Normalize()
}

// --- List Response ---

// ListResponse wraps list results with pagination.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// FromListResult mirrors a domain list result.
func FromListResult[T any](r domain.ListResult[T]) ListResponse[T] {
	return ListResponse[T]{Items: r.Items, TotalCount: r.TotalCount, Limit: r.Limit, Offset: r.Offset}
}

// ItemsResponse wraps an unpaginated list.
type ItemsResponse[T any] struct {
	Items []T `json:"items"`
}

// NewItemsResponse never serializes a nil slice as null.
func NewItemsResponse[T any](items []T) ItemsResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ItemsResponse[T]{Items: items}
}

// --- Query parsing ---

func parseOptionalID(field, raw string) (*id.ID, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := id.Parse(raw)
	if err != nil {
		return nil, apperror.NewValidation(fmt.Sprintf("invalid %s format", field)).WithDetail("field", field)
	}
	return &v, nil
}

// parseOptionalTime accepts RFC 3339 timestamps and plain dates.
func parseOptionalTime(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, apperror.NewValidation(fmt.Sprintf("invalid %s, expected RFC 3339 or YYYY-MM-DD", field)).
		WithDetail("field", field)
}
