// Package ordersync turns external order notifications into warehouse
// documents. A confirmed order becomes an open WZ (goods issue) reserving
// stock; once the order passes the shipped threshold the WZ is closed and
// the stock physically leaves.
package ordersync

import (
	"context"

	"warelog/internal/core/apperror"
	appctx "warelog/internal/core/context"
	"warelog/internal/core/id"
	"warelog/internal/core/types"
	"warelog/internal/domain/catalogs/warehouse"
	"warelog/internal/domain/documents"
	"warelog/pkg/logger"
)

// Order is the normalized view of an external sales order.
type Order struct {
	// Ref is the external order reference
	Ref string

	// WarehouseID optionally overrides the default issue warehouse
	WarehouseID *id.ID

	Lines []OrderLine
}

// OrderLine is one ordered position.
type OrderLine struct {
	VariantID id.ID
	Quantity  types.Quantity
	PriceNet  types.Money
	TaxRateID *id.ID
}

// Config controls status handling.
type Config struct {
	// ShippedStatuses are the order statuses that trigger closing the WZ
	ShippedStatuses []string
}

// DefaultConfig matches the common storefront status flow.
func DefaultConfig() Config {
	return Config{
		ShippedStatuses: []string{"shipped", "delivered", "completed"},
	}
}

// Service reacts to order lifecycle notifications.
type Service struct {
	docs       *documents.Service
	warehouses *warehouse.Service
	cfg        Config
}

// NewService creates the order sync service.
func NewService(docs *documents.Service, warehouses *warehouse.Service, cfg Config) *Service {
	if len(cfg.ShippedStatuses) == 0 {
		cfg = DefaultConfig()
	}
	return &Service{
		docs:       docs,
		warehouses: warehouses,
		cfg:        cfg,
	}
}

// HandleOrderConfirmed creates an open WZ for the order, reserving stock
// for every line. A replayed confirmation for an order that already has an
// issue document returns the existing one without reserving again. Fails
// when the order has no lines or stock is short.
func (s *Service) HandleOrderConfirmed(ctx context.Context, order Order) (*documents.Document, error) {
	if order.Ref == "" {
		return nil, apperror.NewValidation("order reference is required")
	}
	if len(order.Lines) == 0 {
		return nil, apperror.NewValidation("order has no lines").
			WithDetail("order_ref", order.Ref)
	}

	ctx = s.actorContext(ctx)

	existing, err := s.docs.GetByRelatedOrder(ctx, order.Ref, documents.TypeWZ)
	if err == nil {
		logger.Info(ctx, "order already has an issue document, skipping",
			"order_ref", order.Ref,
			"document_id", existing.ID,
		)
		return existing, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	warehouseID, err := s.resolveWarehouse(ctx, order)
	if err != nil {
		return nil, err
	}

	doc := documents.NewDocument(documents.TypeWZ)
	doc.RelatedOrderID = &order.Ref
	doc.SetWarehouse(warehouseID)
	for _, line := range order.Lines {
		doc.AddItem(line.VariantID, line.Quantity, line.PriceNet, line.TaxRateID)
	}

	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}

	logger.Info(ctx, "order confirmed, issue document created",
		"order_ref", order.Ref,
		"document_id", doc.ID,
		"number", doc.Number,
	)
	return doc, nil
}

// HandleOrderStatusChanged closes the linked WZ once the order is shipped.
// Statuses before the threshold and repeated notifications are no-ops.
func (s *Service) HandleOrderStatusChanged(ctx context.Context, orderRef, status string) error {
	if !s.isShipped(status) {
		return nil
	}

	ctx = s.actorContext(ctx)

	wz, err := s.docs.GetByRelatedOrder(ctx, orderRef, documents.TypeWZ)
	if err != nil {
		if apperror.IsNotFound(err) {
			logger.Warn(ctx, "no issue document for shipped order", "order_ref", orderRef)
			return nil
		}
		return err
	}
	if wz.IsClosed() {
		return nil
	}

	if _, err := s.docs.Close(ctx, wz.ID); err != nil {
		return err
	}

	logger.Info(ctx, "order shipped, issue document closed",
		"order_ref", orderRef,
		"document_id", wz.ID,
	)
	return nil
}

func (s *Service) resolveWarehouse(ctx context.Context, order Order) (id.ID, error) {
	if order.WarehouseID != nil {
		return *order.WarehouseID, nil
	}

	wh, err := s.warehouses.GetDefault(ctx)
	if err != nil {
		return id.Nil(), err
	}
	return wh.ID, nil
}

func (s *Service) isShipped(status string) bool {
	for _, st := range s.cfg.ShippedStatuses {
		if st == status {
			return true
		}
	}
	return false
}

// actorContext marks documents created from order sync when no explicit
// actor is present.
func (s *Service) actorContext(ctx context.Context) context.Context {
	if appctx.GetActor(ctx) != nil {
		return ctx
	}
	return appctx.WithActor(ctx, &appctx.Actor{UserID: "ordersync", Source: "ordersync"})
}
