package v1

import (
	"github.com/gin-gonic/gin"
)

// ResourceRouteHandler defines the CRUD surface of a registry handler.
type ResourceRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

// StockRouteHandler is an optional interface for resources that expose their balances.
type StockRouteHandler interface {
	Stock(c *gin.Context)
}

// RegisterResourceRoutes registers standard CRUD routes for a registry.
// If the handler also implements StockRouteHandler, GET /:id/stock is registered too.
//
// Usage:
//
//	handler := handlers.NewLocationHandler(baseHandler, cfg.Locations, cfg.Ledger)
//	RegisterResourceRoutes(api.Group("/locations"), handler)
func RegisterResourceRoutes(group *gin.RouterGroup, handler ResourceRouteHandler) {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", handler.Update)
	group.DELETE("/:id", handler.Delete)

	if stockHandler, ok := handler.(StockRouteHandler); ok {
		group.GET("/:id/stock", stockHandler.Stock)
	}
}
