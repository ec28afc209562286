package dto

import (
	"warelog/internal/domain/catalogs/warehouse"
)

// --- Request DTOs ---

// CreateWarehouseRequest is the request body for creating a warehouse.
type CreateWarehouseRequest struct {
	Code      string                  `json:"code"`
	Name      string                  `json:"name" binding:"required"`
	Type      warehouse.WarehouseType `json:"type" binding:"required"`
	Address   *string                 `json:"address"`
	IsActive  bool                    `json:"isActive"`
	IsDefault bool                    `json:"isDefault"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateWarehouseRequest) ToEntity() *warehouse.Warehouse {
	wh := warehouse.NewWarehouse(r.Code, r.Name, r.Type)
	wh.Address = r.Address
	wh.IsActive = r.IsActive
	wh.IsDefault = r.IsDefault
	return wh
}

// UpdateWarehouseRequest is the request body for updating a warehouse.
type UpdateWarehouseRequest struct {
	Code      string                  `json:"code"`
	Name      string                  `json:"name" binding:"required"`
	Type      warehouse.WarehouseType `json:"type" binding:"required"`
	Address   *string                 `json:"address,omitempty"`
	IsActive  bool                    `json:"isActive"`
	IsDefault bool                    `json:"isDefault"`
	Version   int                     `json:"version" binding:"required"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateWarehouseRequest) ApplyTo(wh *warehouse.Warehouse) {
	wh.Code = r.Code
	wh.Name = r.Name
	wh.Type = r.Type
	wh.Address = r.Address
	wh.IsActive = r.IsActive
	wh.IsDefault = r.IsDefault
	wh.Version = r.Version
}

// --- Response DTOs ---

// WarehouseResponse is the response body for a warehouse.
type WarehouseResponse struct {
	ID        string                  `json:"id"`
	Code      string                  `json:"code"`
	Name      string                  `json:"name"`
	Type      warehouse.WarehouseType `json:"type"`
	Address   *string                 `json:"address,omitempty"`
	IsActive  bool                    `json:"isActive"`
	IsDefault bool                    `json:"isDefault"`
	Version   int                     `json:"version"`
}

// FromWarehouse creates response DTO from domain entity.
func FromWarehouse(wh *warehouse.Warehouse) *WarehouseResponse {
	return &WarehouseResponse{
		ID:        wh.ID.String(),
		Code:      wh.Code,
		Name:      wh.Name,
		Type:      wh.Type,
		Address:   wh.Address,
		IsActive:  wh.IsActive,
		IsDefault: wh.IsDefault,
		Version:   wh.Version,
	}
}
