// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
)

// CatalogRouteHandler defines the interface for catalog handlers.
// All catalog handlers must implement these methods.
type CatalogRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	GetByCode(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
}

// RegisterCatalogRoutes registers standard CRUD routes for a catalog.
// This eliminates the need to manually wire up routes for each catalog.
//
// Usage:
//
//	repo := catalog_repo.NewTaxRateRepo(txManager)
//	service := taxrate.NewService(repo, txManager)
//	handler := handlers.NewTaxRateHandler(baseHandler, service)
//	RegisterCatalogRoutes(catalogs.Group("/tax-rates"), handler)
func RegisterCatalogRoutes(group *gin.RouterGroup, handler CatalogRouteHandler) {
	group.GET("", handler.List)
	group.POST("", handler.Create)
	group.GET("/:id", handler.Get)
	group.GET("/by-code/:code", handler.GetByCode)
	group.PUT("/:id", handler.Update)
	group.DELETE("/:id", handler.Delete)
}
