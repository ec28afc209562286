package dto

import (
	"time"

	"warelog/internal/core/types"
	"warelog/internal/domain/registers/batch"
	"warelog/internal/domain/registers/stock"
)

// --- Query DTOs ---

// StockLevelsQuery contains warehouse stock list parameters.
type StockLevelsQuery struct {
	VariantIDs  []string `form:"variantIds"`
	MinQuantity *float64 `form:"minQuantity"`
	Limit       int      `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset      int      `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts query parameters to a level filter.
func (q *StockLevelsQuery) ToFilter() (stock.LevelFilter, error) {
	f := stock.LevelFilter{
		Limit:  q.Limit,
		Offset: q.Offset,
	}
	for _, raw := range q.VariantIDs {
		parsed, err := parseID("variantIds", raw)
		if err != nil {
			return f, err
		}
		f.VariantIDs = append(f.VariantIDs, parsed)
	}
	if q.MinQuantity != nil {
		min := types.NewQuantityFromFloat64(*q.MinQuantity)
		f.MinQuantity = &min
	}
	return f, nil
}

// --- Response DTOs ---

// StockLevelResponse is the response body for one stock level row.
type StockLevelResponse struct {
	WarehouseID string         `json:"warehouseId"`
	VariantID   string         `json:"variantId"`
	Quantity    types.Quantity `json:"quantity"`
	Reserved    types.Quantity `json:"reservedQuantity"`
	Incoming    types.Quantity `json:"incomingQuantity"`
	Available   types.Quantity `json:"availableQuantity"`
	Location    string         `json:"location,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// FromStockLevel creates response DTO from a level row.
func FromStockLevel(l *stock.Level) *StockLevelResponse {
	return &StockLevelResponse{
		WarehouseID: l.WarehouseID.String(),
		VariantID:   l.VariantID.String(),
		Quantity:    l.Quantity,
		Reserved:    l.Reserved,
		Incoming:    l.Incoming,
		Available:   l.Available(),
		Location:    l.Location,
		UpdatedAt:   l.UpdatedAt,
	}
}

// AvailabilityResponse is the total available quantity of a variant
// across all warehouses.
type AvailabilityResponse struct {
	VariantID string         `json:"variantId"`
	Available types.Quantity `json:"availableQuantity"`
}

// BatchResponse is the response body for one cost layer.
type BatchResponse struct {
	ID                 string         `json:"id"`
	VariantID          string         `json:"variantId"`
	WarehouseID        string         `json:"warehouseId"`
	QuantityTotal      types.Quantity `json:"quantityTotal"`
	QuantityAvailable  types.Quantity `json:"quantityAvailable"`
	PurchasePrice      types.Money    `json:"purchasePrice"`
	PurchaseDate       time.Time      `json:"purchaseDate"`
	SourceDocumentType string         `json:"sourceDocumentType"`
	SourceDocumentID   string         `json:"sourceDocumentId"`
}

// FromBatch creates response DTO from a cost layer.
func FromBatch(b *batch.Batch) *BatchResponse {
	return &BatchResponse{
		ID:                 b.ID.String(),
		VariantID:          b.VariantID.String(),
		WarehouseID:        b.WarehouseID.String(),
		QuantityTotal:      b.QuantityTotal,
		QuantityAvailable:  b.QuantityAvailable,
		PurchasePrice:      b.PurchasePrice,
		PurchaseDate:       b.PurchaseDate,
		SourceDocumentType: b.SourceDocumentType,
		SourceDocumentID:   b.SourceDocumentID.String(),
	}
}
