package handlers

import (
	"github.com/gin-gonic/gin"

	"lpgstock/internal/domain/ledger"
	"lpgstock/internal/domain/location"
	"lpgstock/internal/infrastructure/http/v1/dto"
)

// LocationHandler handles HTTP requests for the location registry.
type LocationHandler struct {
	*BaseHandler
	service *location.Service
	ledger  *ledger.Service
}

// NewLocationHandler creates a new location handler.
func NewLocationHandler(base *BaseHandler, service *location.Service, ledgerService *ledger.Service) *LocationHandler {
	return &LocationHandler{BaseHandler: base, service: service, ledger: ledgerService}
}

// List handles GET /locations.
func (h *LocationHandler) List(c *gin.Context) {
	var q dto.LocationListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	agencyID, _ := h.Caller(c)
	filter, err := q.ToFilter(agencyID)
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromListResult(result))
}

// Create handles POST /locations.
func (h *LocationHandler) Create(c *gin.Context) {
	var req dto.CreateLocationRequest
	if !h.BindJSON(c, &req) {
		return
	}
	agencyID, _ := h.Caller(c)

	loc, err := h.service.Create(c.Request.Context(), req.ToInput(agencyID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, loc)
}

// Get handles GET /locations/:id.
func (h *LocationHandler) Get(c *gin.Context) {
	locationID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	agencyID, _ := h.Caller(c)

	loc, err := h.service.Get(c.Request.Context(), agencyID, locationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, loc)
}

// Update handles PUT /locations/:id.
func (h *LocationHandler) Update(c *gin.Context) {
	locationID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateLocationRequest
	if !h.BindJSON(c, &req) {
		return
	}
	agencyID, _ := h.Caller(c)

	loc, err := h.service.Update(c.Request.Context(), req.ToInput(agencyID, locationID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, loc)
}

// Delete handles DELETE /locations/:id as a soft delete.
func (h *LocationHandler) Delete(c *gin.Context) {
	locationID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	agencyID, _ := h.Caller(c)

	if err := h.service.Deactivate(c.Request.Context(), agencyID, locationID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Stock handles GET /locations/:id/stock.
func (h *LocationHandler) Stock(c *gin.Context) {
	locationID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	agencyID, _ := h.Caller(c)

	stock, err := h.ledger.LocationBalance(c.Request.Context(), agencyID, locationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, stock)
}

// DefaultGodown handles POST /locations/default-godown.
func (h *LocationHandler) DefaultGodown(c *gin.Context) {
	agencyID, _ := h.Caller(c)

	loc, err := h.service.DefaultGodown(c.Request.Context(), agencyID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, loc)
}

// RegisterVehicle handles POST /vehicles/:vehicleId/location.
func (h *LocationHandler) RegisterVehicle(c *gin.Context) {
	vehicleID, ok := h.ParamID(c, "vehicleId")
	if !ok {
		return
	}
	var req dto.VehicleLocationRequest
	if !h.BindJSON(c, &req) {
		return
	}
	agencyID, _ := h.Caller(c)
	ctx := c.Request.Context()

	loc, err := h.service.RegisterVehicle(ctx, req.ToInput(agencyID, vehicleID))
	if err != nil {
		h.Error(c, err)
		return
	}
	if req.IsActive != nil && *req.IsActive != loc.IsActive {
		if err := h.service.SetVehicleActive(ctx, agencyID, vehicleID, *req.IsActive); err != nil {
			h.Error(c, err)
			return
		}
		loc.IsActive = *req.IsActive
	}
	h.Created(c, loc)
}

// SyncVehicle handles PUT /vehicles/:vehicleId/location.
func (h *LocationHandler) SyncVehicle(c *gin.Context) {
	vehicleID, ok := h.ParamID(c, "vehicleId")
	if !ok {
		return
	}
	var req dto.VehicleLocationRequest
	if !h.BindJSON(c, &req) {
		return
	}
	agencyID, _ := h.Caller(c)
	ctx := c.Request.Context()

	loc, err := h.service.SyncVehicle(ctx, req.ToInput(agencyID, vehicleID))
	if err != nil {
		h.Error(c, err)
		return
	}
	if req.IsActive != nil && *req.IsActive != loc.IsActive {
		if err := h.service.SetVehicleActive(ctx, agencyID, vehicleID, *req.IsActive); err != nil {
			h.Error(c, err)
			return
		}
		loc.IsActive = *req.IsActive
	}
	h.OK(c, loc)
}

// VehicleLocation handles GET /vehicles/:vehicleId/location.
func (h *LocationHandler) VehicleLocation(c *gin.Context) {
	vehicleID, ok := h.ParamID(c, "vehicleId")
	if !ok {
		return
	}
	agencyID, _ := h.Caller(c)

	loc, err := h.service.ForVehicle(c.Request.Context(), agencyID, vehicleID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, loc)
}
