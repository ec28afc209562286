package batch

import (
	"context"

	"warelog/internal/core/id"
	"warelog/internal/core/types"
)

// Repository defines operations for the batch cost layer.
type Repository interface {
	// Create inserts a new batch.
	Create(ctx context.Context, b *Batch) error

	// SumAvailable returns total available quantity for a (variant, warehouse)
	// pair. Must be called inside a transaction when used for issue checks.
	SumAvailable(ctx context.Context, variantID, warehouseID id.ID) (types.Quantity, error)

	// ListOpenForUpdate returns non-exhausted batches for a (variant,
	// warehouse) pair in FIFO order (purchase_date asc, id asc) with row
	// locks. Must be called inside a transaction.
	ListOpenForUpdate(ctx context.Context, variantID, warehouseID id.ID) ([]Batch, error)

	// UpdateAvailable persists available quantity after consumption.
	UpdateAvailable(ctx context.Context, batchID id.ID, available types.Quantity) error

	// ListByVariant returns batches for reporting, newest first.
	ListByVariant(ctx context.Context, variantID id.ID, limit, offset int) ([]Batch, error)
}
