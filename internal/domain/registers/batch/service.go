package batch

import (
	"context"
	"fmt"
	"time"

	"warelog/internal/core/apperror"
	"warelog/internal/core/id"
	"warelog/internal/core/tx"
	"warelog/internal/core/types"
	"warelog/pkg/logger"
)

// Service provides FIFO batch operations.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a new batch service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
	}
}

// AddBatch creates a cost layer for an inbound finalization.
func (s *Service) AddBatch(ctx context.Context, variantID, warehouseID id.ID, qty types.Quantity, unitCost types.Money, purchaseDate time.Time, src Provenance) (*Batch, error) {
	if !qty.IsPositive() {
		return nil, apperror.NewValidation("batch quantity must be positive").
			WithDetail("variant_id", variantID.String())
	}
	if unitCost.IsNegative() {
		return nil, apperror.NewValidation("batch unit cost cannot be negative").
			WithDetail("variant_id", variantID.String())
	}

	b := NewBatch(variantID, warehouseID, qty, unitCost, purchaseDate, src)
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	logger.Debug(ctx, "batch created",
		"batch_id", b.ID,
		"variant_id", variantID,
		"warehouse_id", warehouseID,
		"quantity", qty.String(),
	)
	return b, nil
}

// IssueFIFO consumes qty from the oldest open batches of a variant in a
// warehouse. The total available quantity is checked up front so a shortage
// never leaves batches partially consumed.
func (s *Service) IssueFIFO(ctx context.Context, variantID, warehouseID id.ID, qty types.Quantity) ([]Consumption, error) {
	if !qty.IsPositive() {
		return nil, apperror.NewValidation("issue quantity must be positive").
			WithDetail("variant_id", variantID.String())
	}

	var consumed []Consumption
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		batches, err := s.repo.ListOpenForUpdate(ctx, variantID, warehouseID)
		if err != nil {
			return fmt.Errorf("list open batches: %w", err)
		}

		var total types.Quantity
		for _, b := range batches {
			total += b.QuantityAvailable
		}
		if total < qty {
			return apperror.NewInsufficientBatchStock(
				variantID.String(),
				qty.String(),
				total.String(),
			)
		}

		left := qty
		for i := range batches {
			if left.IsZero() {
				break
			}
			b := &batches[i]

			take := left.Min(b.QuantityAvailable)
			if err := s.repo.UpdateAvailable(ctx, b.ID, b.QuantityAvailable-take); err != nil {
				return fmt.Errorf("update batch %s: %w", b.ID, err)
			}

			consumed = append(consumed, Consumption{
				BatchID:  b.ID,
				Quantity: take,
				UnitCost: b.PurchasePrice,
			})
			left -= take
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug(ctx, "fifo issue",
		"variant_id", variantID,
		"warehouse_id", warehouseID,
		"quantity", qty.String(),
		"batches", len(consumed),
	)
	return consumed, nil
}

// CostOfGoods computes the total cost of a FIFO consumption list.
func CostOfGoods(consumed []Consumption) types.Money {
	total := types.Zero()
	for _, c := range consumed {
		total = total.Add(c.Quantity.MulMoney(c.UnitCost))
	}
	return total
}

// SumAvailable returns total uncommitted batch quantity for a pair.
func (s *Service) SumAvailable(ctx context.Context, variantID, warehouseID id.ID) (types.Quantity, error) {
	return s.repo.SumAvailable(ctx, variantID, warehouseID)
}

// ListByVariant returns recent batches for a variant.
func (s *Service) ListByVariant(ctx context.Context, variantID id.ID, limit, offset int) ([]Batch, error) {
	return s.repo.ListByVariant(ctx, variantID, limit, offset)
}
