// Package stock provides the per-warehouse stock level register.
package stock

import (
	"time"

	"warelog/internal/core/id"
	"warelog/internal/core/types"
)

// Level is the current stock state of one product variant in one warehouse.
// One row per (variant, warehouse); rows are created lazily on first touch.
type Level struct {
	ID          id.ID `db:"id" json:"id"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`
	VariantID   id.ID `db:"variant_id" json:"variantId"`

	// Quantity is physical stock on hand
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// Reserved is stock promised to open outbound documents
	Reserved types.Quantity `db:"reserved_quantity" json:"reservedQuantity"`

	// Incoming is stock expected from open inbound documents
	Incoming types.Quantity `db:"incoming_quantity" json:"incomingQuantity"`

	// Location is an optional bin/shelf hint, last writer wins
	Location string `db:"location" json:"location,omitempty"`

	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewLevel creates a zeroed stock level row for lazy initialization.
func NewLevel(warehouseID, variantID id.ID) *Level {
	return &Level{
		ID:          id.New(),
		WarehouseID: warehouseID,
		VariantID:   variantID,
		UpdatedAt:   time.Now().UTC(),
	}
}

// Available is stock on hand minus open reservations.
func (l *Level) Available() types.Quantity {
	return l.Quantity - l.Reserved
}

// Expected is stock on hand plus announced inbound quantity.
func (l *Level) Expected() types.Quantity {
	return l.Quantity + l.Incoming
}
