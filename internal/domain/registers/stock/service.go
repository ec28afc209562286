package stock

import (
	"context"
	"fmt"
	"time"

	"warelog/internal/core/apperror"
	"warelog/internal/core/id"
	"warelog/internal/core/tx"
	"warelog/internal/core/types"
	"warelog/internal/domain/event"
	"warelog/pkg/logger"
)

// Service provides atomic stock level mutations.
// Every change locks the (variant, warehouse) row, checks invariants and
// saves in one transaction. Nested calls join the caller's transaction.
type Service struct {
	repo      Repository
	txManager tx.Manager
	events    event.Publisher
}

// NewService creates a new stock level service.
func NewService(repo Repository, txManager tx.Manager, events event.Publisher) *Service {
	if events == nil {
		events = event.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		txManager: txManager,
		events:    events,
	}
}

// ChangeRequest describes one stock mutation.
type ChangeRequest struct {
	WarehouseID id.ID
	VariantID   id.ID
	Delta       types.Quantity
	// Location optionally updates the bin/shelf hint (last writer wins).
	Location string
}

// Change adjusts physical stock on hand by request.Delta.
// Fails with NEGATIVE_STOCK when the result would drop below zero.
func (s *Service) Change(ctx context.Context, req ChangeRequest) error {
	if req.Delta.IsZero() && req.Location == "" {
		return nil
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		level, err := s.repo.GetForUpdate(ctx, req.WarehouseID, req.VariantID)
		if err != nil {
			return fmt.Errorf("lock stock level: %w", err)
		}

		next := level.Quantity + req.Delta
		if next.IsNegative() {
			return apperror.NewNegativeStock(
				req.VariantID.String(),
				req.WarehouseID.String(),
				req.Delta.Abs().String(),
				level.Quantity.String(),
			)
		}

		level.Quantity = next
		if req.Location != "" {
			level.Location = req.Location
		}

		if err := s.repo.Save(ctx, level); err != nil {
			return fmt.Errorf("save stock level: %w", err)
		}

		return s.publishChanged(ctx, level, "quantity", req.Delta)
	})
}

// ChangeReservation adjusts the reserved quantity.
// Increasing a reservation requires available stock (on hand minus reserved)
// to cover the delta. Decreasing may not drive reserved below zero.
func (s *Service) ChangeReservation(ctx context.Context, req ChangeRequest) error {
	if req.Delta.IsZero() {
		return nil
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		level, err := s.repo.GetForUpdate(ctx, req.WarehouseID, req.VariantID)
		if err != nil {
			return fmt.Errorf("lock stock level: %w", err)
		}

		if req.Delta.IsPositive() && level.Available() < req.Delta {
			return apperror.NewInsufficientAvailable(
				req.VariantID.String(),
				req.WarehouseID.String(),
				req.Delta.String(),
				level.Available().String(),
			)
		}

		next := level.Reserved + req.Delta
		if next.IsNegative() {
			return apperror.NewNegativeReservation(
				req.VariantID.String(),
				req.WarehouseID.String(),
				req.Delta.Abs().String(),
				level.Reserved.String(),
			)
		}

		level.Reserved = next
		if err := s.repo.Save(ctx, level); err != nil {
			return fmt.Errorf("save stock level: %w", err)
		}

		return s.publishChanged(ctx, level, "reserved", req.Delta)
	})
}

// ChangeIncoming adjusts the announced inbound quantity.
// May not drive incoming below zero.
func (s *Service) ChangeIncoming(ctx context.Context, req ChangeRequest) error {
	if req.Delta.IsZero() {
		return nil
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		level, err := s.repo.GetForUpdate(ctx, req.WarehouseID, req.VariantID)
		if err != nil {
			return fmt.Errorf("lock stock level: %w", err)
		}

		next := level.Incoming + req.Delta
		if next.IsNegative() {
			return apperror.NewNegativeIncoming(
				req.VariantID.String(),
				req.WarehouseID.String(),
				req.Delta.Abs().String(),
				level.Incoming.String(),
			)
		}

		level.Incoming = next
		if err := s.repo.Save(ctx, level); err != nil {
			return fmt.Errorf("save stock level: %w", err)
		}

		return s.publishChanged(ctx, level, "incoming", req.Delta)
	})
}

func (s *Service) publishChanged(ctx context.Context, level *Level, field string, delta types.Quantity) error {
	err := s.events.Publish(ctx, event.TopicStockChanged, event.StockChanged{
		WarehouseID: level.WarehouseID,
		VariantID:   level.VariantID,
		Field:       field,
		Delta:       delta,
		Quantity:    level.Quantity,
		Reserved:    level.Reserved,
		Incoming:    level.Incoming,
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("publish stock.changed: %w", err)
	}

	logger.Debug(ctx, "stock level changed",
		"warehouse_id", level.WarehouseID,
		"variant_id", level.VariantID,
		"field", field,
		"delta", delta.String(),
	)
	return nil
}

// Get returns the current stock level (zeroed row when none exists).
func (s *Service) Get(ctx context.Context, warehouseID, variantID id.ID) (*Level, error) {
	return s.repo.Get(ctx, warehouseID, variantID)
}

// GetWarehouseStock returns all non-zero levels in a warehouse.
func (s *Service) GetWarehouseStock(ctx context.Context, warehouseID id.ID, filter LevelFilter) ([]Level, error) {
	filter.ExcludeZero = true
	return s.repo.ListByWarehouse(ctx, warehouseID, filter)
}

// GetVariantAvailability returns total available quantity across warehouses.
func (s *Service) GetVariantAvailability(ctx context.Context, variantID id.ID) (types.Quantity, error) {
	levels, err := s.repo.ListByVariant(ctx, variantID)
	if err != nil {
		return 0, fmt.Errorf("list levels: %w", err)
	}

	var total types.Quantity
	for _, l := range levels {
		total += l.Available()
	}
	return total, nil
}
