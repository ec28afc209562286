package handlers

import (
	"github.com/gin-gonic/gin"

	"warelog/internal/domain/catalogs/warehouse"
	"warelog/internal/infrastructure/http/v1/dto"
)

// WarehouseHandler handles warehouse catalog endpoints.
type WarehouseHandler struct {
	*CatalogHandler[*warehouse.Warehouse, dto.CreateWarehouseRequest, dto.UpdateWarehouseRequest]
	service *warehouse.Service
}

// NewWarehouseHandler creates a new warehouse handler.
func NewWarehouseHandler(base *BaseHandler, service *warehouse.Service) *WarehouseHandler {
	catalogHandler := NewCatalogHandler(base, CatalogHandlerConfig[*warehouse.Warehouse, dto.CreateWarehouseRequest, dto.UpdateWarehouseRequest]{
		Service:    service.CatalogService,
		EntityName: "warehouse",
		MapCreateDTO: func(req dto.CreateWarehouseRequest) (*warehouse.Warehouse, error) {
			return req.ToEntity(), nil
		},
		MapUpdateDTO: func(req dto.UpdateWarehouseRequest, existing *warehouse.Warehouse) (*warehouse.Warehouse, error) {
			req.ApplyTo(existing)
			return existing, nil
		},
		MapToDTO: func(wh *warehouse.Warehouse) any {
			return dto.FromWarehouse(wh)
		},
	})

	return &WarehouseHandler{
		CatalogHandler: catalogHandler,
		service:        service,
	}
}

// GetDefault handles GET /warehouses/default - the default order sync warehouse.
func (h *WarehouseHandler) GetDefault(c *gin.Context) {
	wh, err := h.service.GetDefault(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromWarehouse(wh))
}
