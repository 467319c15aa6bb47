package handlers

import (
	"github.com/gin-gonic/gin"

	"lpgstock/internal/domain/settlement"
	"lpgstock/internal/infrastructure/http/v1/dto"
)

// SettlementHandler exposes vehicle issues and their settlement.
type SettlementHandler struct {
	*BaseHandler
	service *settlement.Service
}

func NewSettlementHandler(base *BaseHandler, service *settlement.Service) *SettlementHandler {
	return &SettlementHandler{BaseHandler: base, service: service}
}

// Issue handles POST /vehicles/:vehicleId/issues.
func (h *SettlementHandler) Issue(c *gin.Context) {
	vehicleID, ok := h.ParamID(c, "vehicleId")
	if !ok {
		return
	}
	var req dto.IssueRequest
	if !h.BindJSON(c, &req) {
		return
	}
	agencyID, userID := h.Caller(c)

	res, err := h.service.Issue(c.Request.Context(), req.ToInput(agencyID, vehicleID, userID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, res)
}

// Settle handles POST /issues/:id/settle.
func (h *SettlementHandler) Settle(c *gin.Context) {
	issueID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.SettleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	agencyID, userID := h.Caller(c)

	out, err := h.service.Settle(c.Request.Context(), req.ToInput(agencyID, issueID, userID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, out)
}

// Get handles GET /issues/:id.
func (h *SettlementHandler) Get(c *gin.Context) {
	issueID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	agencyID, _ := h.Caller(c)

	state, err := h.service.State(c.Request.Context(), agencyID, issueID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, state)
}
