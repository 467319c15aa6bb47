// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"lpgstock/internal/domain/journal"
	"lpgstock/internal/domain/ledger"
	"lpgstock/internal/domain/location"
	"lpgstock/internal/domain/movement"
	"lpgstock/internal/domain/settlement"
	"lpgstock/internal/domain/stockreport"
	"lpgstock/internal/infrastructure/http/v1/handlers"
	"lpgstock/internal/infrastructure/http/v1/middleware"
	"lpgstock/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// HealthChecks are probed by /health/ready
	HealthChecks []handlers.HealthCheck

	// Idempotency enables replay of POST/PUT requests carrying X-Idempotency-Key.
	// Nil disables the middleware.
	Idempotency middleware.IdempotencyStore

	Engine      *movement.Engine
	Journal     journal.Repository
	AuditLog    handlers.AuditHistory
	Locations   *location.Service
	Ledger      *ledger.Service
	Settlements *settlement.Service
	Reports     *stockreport.Service

	// Debug keeps gin in debug mode
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no caller headers required)
	healthHandler := handlers.NewHealthHandler(cfg.HealthChecks...)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	api := router.Group("/api/v1")
	api.Use(middleware.CallerContext())
	if cfg.Idempotency != nil {
		api.Use(middleware.Idempotency(cfg.Idempotency))
	}

	baseHandler := handlers.NewBaseHandler()
	registerMovementRoutes(api, baseHandler, cfg)
	registerLocationRoutes(api, baseHandler, cfg)
	registerSettlementRoutes(api, baseHandler, cfg)
	registerStockRoutes(api, baseHandler, cfg)

	return router
}

// registerMovementRoutes registers movement and journal endpoints.
func registerMovementRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	movements := handlers.NewMovementHandler(base, cfg.Engine)
	rg.POST("/movements", movements.Execute)
	rg.POST("/movements/:id/reverse", movements.Reverse)

	transactions := handlers.NewTransactionHandler(base, cfg.Journal, cfg.AuditLog)
	rg.GET("/transactions", transactions.List)
	rg.GET("/transactions/:id", transactions.Get)
	if cfg.AuditLog != nil {
		rg.GET("/transactions/:id/history", transactions.History)
	}
}

// registerLocationRoutes registers the location registry and vehicle hooks.
func registerLocationRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	handler := handlers.NewLocationHandler(base, cfg.Locations, cfg.Ledger)

	locations := rg.Group("/locations")
	RegisterResourceRoutes(locations, handler)
	locations.POST("/default-godown", handler.DefaultGodown)

	vehicles := rg.Group("/vehicles/:vehicleId")
	vehicles.GET("/location", handler.VehicleLocation)
	vehicles.POST("/location", handler.RegisterVehicle)
	vehicles.PUT("/location", handler.SyncVehicle)
}

// registerSettlementRoutes registers vehicle issue and settlement endpoints.
func registerSettlementRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	handler := handlers.NewSettlementHandler(base, cfg.Settlements)
	rg.POST("/vehicles/:vehicleId/issues", handler.Issue)
	rg.POST("/issues/:id/settle", handler.Settle)
	rg.GET("/issues/:id", handler.Get)
}

// registerStockRoutes registers agency-wide stock reports.
func registerStockRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	handler := handlers.NewStockHandler(base, cfg.Reports, cfg.Ledger)

	stock := rg.Group("/stock")
	stock.GET("/live", handler.Live)
	stock.GET("/ledger", handler.Ledger)
	stock.GET("/breakdown", handler.Breakdown)
	stock.GET("/reconcile", handler.Reconcile)
	stock.GET("/negative", handler.Negative)
}
