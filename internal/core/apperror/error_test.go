package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInsufficientStock_Details(t *testing.T) {
	err := NewInsufficientStock("p-1", "14.2kg Domestic", "filled", 80, 150)

	assert.Equal(t, CodeInsufficientStock, err.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, err.HTTPStatus)
	assert.Equal(t, int64(80), err.Details["available"])
	assert.Equal(t, int64(150), err.Details["requested"])
	assert.Equal(t, int64(70), err.Details["shortfall"])
	assert.Contains(t, err.Message, "Available: 80, Required: 150")
}

func TestAsAppError_WrappedChain(t *testing.T) {
	base := NewNotFound("stock location", "abc")
	wrapped := fmt.Errorf("resolve source: %w", base)

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Same(t, base, appErr)
	assert.True(t, IsNotFound(wrapped))
	assert.Equal(t, http.StatusNotFound, GetHTTPStatus(wrapped))
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"validation", NewValidation("bad"), IsValidation, true},
		{"conflict", NewConflict("race"), IsConflict, true},
		{"duplicate counts as conflict", NewDuplicate("stock location", "name", "Main"), IsConflict, true},
		{"plain error is not conflict", errors.New("boom"), IsConflict, false},
		{"insufficient", NewInsufficientStock("p", "P", "filled", 0, 1), IsInsufficientStock, true},
		{"not found vs validation", NewNotFound("x", 1), IsValidation, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestNewDatabase_KeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewDatabase("apply ledger delta", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(err))
	assert.Equal(t, "apply ledger delta", err.Details["operation"])
}
