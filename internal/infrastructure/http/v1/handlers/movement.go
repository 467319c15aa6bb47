package handlers

import (
	"github.com/gin-gonic/gin"

	"lpgstock/internal/domain/movement"
	"lpgstock/internal/infrastructure/http/v1/dto"
)

// MovementHandler exposes the movement engine.
type MovementHandler struct {
	*BaseHandler
	engine *movement.Engine
}

// NewMovementHandler creates a movement handler.
func NewMovementHandler(base *BaseHandler, engine *movement.Engine) *MovementHandler {
	return &MovementHandler{BaseHandler: base, engine: engine}
}

// Execute handles POST /movements.
func (h *MovementHandler) Execute(c *gin.Context) {
	var req dto.MovementRequest
	if !h.BindJSON(c, &req) {
		return
	}
	agencyID, userID := h.Caller(c)

	res, err := h.engine.Execute(c.Request.Context(), req.ToParams(agencyID, userID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, res)
}

// Reverse handles POST /movements/:id/reverse.
func (h *MovementHandler) Reverse(c *gin.Context) {
	transactionID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ReverseRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}
	agencyID, userID := h.Caller(c)

	res, err := h.engine.Reverse(c.Request.Context(), req.ToParams(agencyID, transactionID, userID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, res)
}
