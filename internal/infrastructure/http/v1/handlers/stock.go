package handlers

import (
	"github.com/gin-gonic/gin"

	"lpgstock/internal/domain/ledger"
	"lpgstock/internal/domain/stockreport"
	"lpgstock/internal/infrastructure/http/v1/dto"
)

// StockHandler serves agency-wide stock reports.
type StockHandler struct {
	*BaseHandler
	reports *stockreport.Service
	ledger  *ledger.Service
}

// NewStockHandler creates a new stock report handler.
func NewStockHandler(base *BaseHandler, reports *stockreport.Service, ledgerService *ledger.Service) *StockHandler {
	return &StockHandler{BaseHandler: base, reports: reports, ledger: ledgerService}
}

// Live handles GET /stock/live
func (h *StockHandler) Live(c *gin.Context) {
	agencyID, _ := h.Caller(c)
	rows, err := h.reports.CalculateLiveStock(c.Request.Context(), agencyID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewItemsResponse(rows))
}

// Ledger handles GET /stock/ledger
func (h *StockHandler) Ledger(c *gin.Context) {
	agencyID, _ := h.Caller(c)
	rows, err := h.reports.LedgerStock(c.Request.Context(), agencyID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewItemsResponse(rows))
}

// Breakdown handles GET /stock/breakdown
func (h *StockHandler) Breakdown(c *gin.Context) {
	agencyID, _ := h.Caller(c)
	rows, err := h.reports.LocationBreakdown(c.Request.Context(), agencyID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewItemsResponse(rows))
}

// Reconcile handles GET /stock/reconcile
func (h *StockHandler) Reconcile(c *gin.Context) {
	agencyID, _ := h.Caller(c)
	mismatches, err := h.reports.Reconcile(c.Request.Context(), agencyID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{
		"consistent": len(mismatches) == 0,
		"mismatches": mismatches,
	})
}

// Negative handles GET /stock/negative
func (h *StockHandler) Negative(c *gin.Context) {
	agencyID, _ := h.Caller(c)
	rows, err := h.ledger.NegativeBalances(c.Request.Context(), agencyID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewItemsResponse(rows))
}
