package handlers

import (
	"github.com/gin-gonic/gin"

	"warelog/internal/core/apperror"
	"warelog/internal/core/id"
	"warelog/internal/domain/registers/batch"
	"warelog/internal/domain/registers/stock"
	"warelog/internal/infrastructure/http/v1/dto"
)

// StockHandler handles stock level and cost batch read endpoints.
// Stock is never mutated directly over HTTP; all changes flow through
// document operations.
type StockHandler struct {
	*BaseHandler
	stock   *stock.Service
	batches *batch.Service
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, stockSvc *stock.Service, batchSvc *batch.Service) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		stock:       stockSvc,
		batches:     batchSvc,
	}
}

// WarehouseStock handles GET /stock/warehouse/:id - non-zero levels
// in one warehouse.
func (h *StockHandler) WarehouseStock(c *gin.Context) {
	warehouseID, ok := h.paramID(c)
	if !ok {
		return
	}

	var query dto.StockLevelsQuery
	if !h.BindQuery(c, &query) {
		return
	}
	filter, err := query.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	levels, err := h.stock.GetWarehouseStock(c.Request.Context(), warehouseID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.StockLevelResponse, 0, len(levels))
	for i := range levels {
		items = append(items, dto.FromStockLevel(&levels[i]))
	}
	h.OK(c, gin.H{"items": items})
}

// Level handles GET /stock/warehouse/:id/variant/:variantId - one
// (warehouse, variant) row, zeroed when never touched.
func (h *StockHandler) Level(c *gin.Context) {
	warehouseID, ok := h.paramID(c)
	if !ok {
		return
	}
	variantID, ok := h.paramVariantID(c)
	if !ok {
		return
	}

	level, err := h.stock.Get(c.Request.Context(), warehouseID, variantID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromStockLevel(level))
}

// Availability handles GET /stock/variant/:variantId/availability -
// total available quantity across warehouses.
func (h *StockHandler) Availability(c *gin.Context) {
	variantID, ok := h.paramVariantID(c)
	if !ok {
		return
	}

	available, err := h.stock.GetVariantAvailability(c.Request.Context(), variantID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.AvailabilityResponse{
		VariantID: variantID.String(),
		Available: available,
	})
}

// Batches handles GET /stock/variant/:variantId/batches - recent cost
// layers of a variant, newest first.
func (h *StockHandler) Batches(c *gin.Context) {
	variantID, ok := h.paramVariantID(c)
	if !ok {
		return
	}

	limit := h.ParseIntQuery(c, "limit", 50)
	offset := h.ParseIntQuery(c, "offset", 0)

	batches, err := h.batches.ListByVariant(c.Request.Context(), variantID, limit, offset)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]*dto.BatchResponse, 0, len(batches))
	for i := range batches {
		items = append(items, dto.FromBatch(&batches[i]))
	}
	h.OK(c, gin.H{"items": items})
}

func (h *BaseHandler) paramVariantID(c *gin.Context) (id.ID, bool) {
	parsed, err := id.Parse(c.Param("variantId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid variantId format"))
		return id.Nil(), false
	}
	return parsed, true
}
