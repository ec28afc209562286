// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"warelog/internal/domain/catalogs/taxrate"
	"warelog/internal/domain/catalogs/warehouse"
	"warelog/internal/domain/documents"
	"warelog/internal/domain/ordersync"
	"warelog/internal/domain/registers/batch"
	"warelog/internal/domain/registers/stock"
	"warelog/internal/infrastructure/http/v1/handlers"
	"warelog/internal/infrastructure/http/v1/middleware"
	"warelog/internal/infrastructure/storage/postgres"
	"warelog/pkg/logger"
)

// RouterConfig holds pre-built services for route registration.
type RouterConfig struct {
	// Pool is the database connection pool (for health checks)
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	Documents  *documents.Service
	Stock      *stock.Service
	Batches    *batch.Service
	Warehouses *warehouse.Service
	TaxRates   *taxrate.Service
	OrderSync  *ordersync.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no actor required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1
	api := router.Group("/api/v1")
	api.Use(middleware.Actor())
	{
		registerCatalogRoutes(api, cfg)
		registerDocumentRoutes(api, cfg)
		registerStockRoutes(api, cfg)
		registerOrderRoutes(api, cfg)
	}

	return router
}

// registerCatalogRoutes registers catalog endpoints.
func registerCatalogRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	catalogs := rg.Group("/catalog")
	baseHandler := handlers.NewBaseHandler()

	// --- WAREHOUSES ---
	{
		handler := handlers.NewWarehouseHandler(baseHandler, cfg.Warehouses)
		group := catalogs.Group("/warehouses")
		group.GET("/default", handler.GetDefault)
		RegisterCatalogRoutes(group, handler)
	}

	// --- TAX RATES ---
	{
		handler := handlers.NewTaxRateHandler(baseHandler, cfg.TaxRates)
		RegisterCatalogRoutes(catalogs.Group("/tax-rates"), handler)
	}
}

// registerDocumentRoutes registers workflow endpoints shared by all
// document types.
func registerDocumentRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewDocumentHandler(baseHandler, cfg.Documents)

	group := rg.Group("/documents")
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/types", handler.Types)
	group.POST("/inventory", handler.ProcessInventory)
	group.GET("/by-order/:ref", handler.GetByOrder)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", handler.Update)
	group.DELETE("/:id", handler.Delete)
	group.POST("/:id/close", handler.Close)
	group.POST("/:id/link", handler.Link)
}

// registerStockRoutes registers stock register read endpoints.
func registerStockRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewStockHandler(baseHandler, cfg.Stock, cfg.Batches)

	group := rg.Group("/stock")
	group.GET("/warehouse/:id", handler.WarehouseStock)
	group.GET("/warehouse/:id/variant/:variantId", handler.Level)
	group.GET("/variant/:variantId/availability", handler.Availability)
	group.GET("/variant/:variantId/batches", handler.Batches)
}

// registerOrderRoutes registers external order webhook endpoints.
func registerOrderRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewOrderSyncHandler(baseHandler, cfg.OrderSync)

	group := rg.Group("/orders")
	group.POST("/confirmed", handler.OrderConfirmed)
	group.POST("/status", handler.OrderStatusChanged)
}
