package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPage_Normalize(t *testing.T) {
	tests := []struct {
		name       string
		in         Page
		wantLimit  int
		wantOffset int
	}{
		{"zero value", Page{}, DefaultLimit, 0},
		{"second page", Page{Page: 2, Limit: 20}, 20, 20},
		{"negative page", Page{Page: -3, Limit: 10}, 10, 0},
		{"limit capped", Page{Page: 1, Limit: 10_000}, MaxLimit, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantLimit, tt.in.Normalize().Limit)
			assert.Equal(t, tt.wantOffset, tt.in.Offset())
		})
	}
}

func TestNewListResult_NeverNilItems(t *testing.T) {
	res := NewListResult[int](nil, 0, Page{Page: 3, Limit: 5})

	assert.NotNil(t, res.Items)
	assert.Equal(t, 10, res.Offset)
	assert.Equal(t, 5, res.Limit)
}
