package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"lpgstock/internal/core/id"
	"lpgstock/internal/domain/audit"
	"lpgstock/internal/domain/journal"
	"lpgstock/internal/domain/movement"
	"lpgstock/internal/infrastructure/http/v1/dto"
)

const historyLimit = 100

// AuditHistory reads the audit trail of one entity.
type AuditHistory interface {
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error)
}

// TransactionHandler serves the journal read paths.
type TransactionHandler struct {
	*BaseHandler
	journal journal.Repository
	history AuditHistory
}

// NewTransactionHandler creates the handler. history may be nil, which
// disables the history endpoint.
func NewTransactionHandler(base *BaseHandler, repo journal.Repository, history AuditHistory) *TransactionHandler {
	return &TransactionHandler{BaseHandler: base, journal: repo, history: history}
}

// List handles GET /transactions.
func (h *TransactionHandler) List(c *gin.Context) {
	var q dto.TransactionListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	agencyID, _ := h.Caller(c)
	filter, err := q.ToFilter(agencyID)
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.journal.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromListResult(result))
}

// Get handles GET /transactions/:id.
func (h *TransactionHandler) Get(c *gin.Context) {
	transactionID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	agencyID, _ := h.Caller(c)

	t, err := h.journal.GetByID(c.Request.Context(), agencyID, transactionID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, t)
}

// History handles GET /transactions/:id/history.
func (h *TransactionHandler) History(c *gin.Context) {
	transactionID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	agencyID, _ := h.Caller(c)
	ctx := c.Request.Context()

	// Scopes the lookup to the caller's agency before reading the trail.
	if _, err := h.journal.GetByID(ctx, agencyID, transactionID); err != nil {
		h.Error(c, err)
		return
	}
	entries, err := h.history.History(ctx, movement.EntityType, transactionID, historyLimit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewItemsResponse(entries))
}
