package stock

import (
	"context"

	"warelog/internal/core/id"
	"warelog/internal/core/types"
)

// Repository defines operations for the stock level register.
type Repository interface {
	// Get returns the stock level row, or a zeroed in-memory row when none
	// exists yet (read path never creates rows).
	Get(ctx context.Context, warehouseID, variantID id.ID) (*Level, error)

	// GetForUpdate returns the stock level with a row lock, creating a zeroed
	// row first when none exists. Must be called inside a transaction.
	GetForUpdate(ctx context.Context, warehouseID, variantID id.ID) (*Level, error)

	// Save persists the mutated level row.
	Save(ctx context.Context, level *Level) error

	// ListByWarehouse returns levels for a warehouse.
	ListByWarehouse(ctx context.Context, warehouseID id.ID, filter LevelFilter) ([]Level, error)

	// ListByVariant returns levels across all warehouses for a variant.
	ListByVariant(ctx context.Context, variantID id.ID) ([]Level, error)
}

// LevelFilter for filtering level queries.
type LevelFilter struct {
	VariantIDs  []id.ID
	ExcludeZero bool
	MinQuantity *types.Quantity
	Limit       int
	Offset      int
}
