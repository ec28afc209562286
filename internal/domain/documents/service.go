package documents

import (
	"context"
	"fmt"
	"time"

	"warelog/internal/core/apperror"
	appctx "warelog/internal/core/context"
	"warelog/internal/core/id"
	"warelog/internal/core/numerator"
	"warelog/internal/core/tx"
	"warelog/internal/domain"
	"warelog/internal/domain/event"
	"warelog/internal/domain/registers/batch"
	"warelog/internal/domain/registers/stock"
	"warelog/pkg/logger"
)

// Service is the document workflow engine. It owns the open → closed state
// machine: provisional stock effects at creation, FIFO-backed finalization
// at close, full reversal on delete, and derived financial documents.
type Service struct {
	repo      Repository
	stock     *stock.Service
	batches   *batch.Service
	numbers   numerator.Generator
	taxes     TaxResolver
	txManager tx.Manager
	events    event.Publisher
	hooks     *domain.HookRegistry[*Document]
}

// NewService creates the workflow engine.
func NewService(
	repo Repository,
	stockSvc *stock.Service,
	batchSvc *batch.Service,
	numbers numerator.Generator,
	taxes TaxResolver,
	txManager tx.Manager,
	events event.Publisher,
) *Service {
	if events == nil {
		events = event.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		stock:     stockSvc,
		batches:   batchSvc,
		numbers:   numbers,
		taxes:     taxes,
		txManager: txManager,
		events:    events,
		hooks:     domain.NewHookRegistry[*Document](),
	}
}

// Hooks exposes the lifecycle hook registry.
func (s *Service) Hooks() *domain.HookRegistry[*Document] {
	return s.hooks
}

// Create validates, numbers and persists an open document, applying its
// provisional stock effects in the same transaction. A failed stock check
// rolls everything back - no document row survives.
func (s *Service) Create(ctx context.Context, doc *Document) error {
	def, err := doc.Definition()
	if err != nil {
		return err
	}
	if def.Immediate {
		return apperror.NewValidation("inventory counts are created through ProcessInventory").
			WithDetail("type", string(doc.Type))
	}

	if err := doc.Validate(ctx); err != nil {
		return err
	}
	if err := doc.ComputeTotals(ctx, s.taxes); err != nil {
		return err
	}
	s.stampActor(ctx, doc, true)

	if err := s.hooks.Run(ctx, domain.BeforeCreate, doc); err != nil {
		return err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if doc.Number == "" {
			number, err := s.nextNumber(ctx, doc)
			if err != nil {
				return err
			}
			doc.Number = number
		}

		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("persist document: %w", err)
		}

		if err := s.applyProvisional(ctx, def, doc, false); err != nil {
			return err
		}

		return s.publishDocumentEvent(ctx, event.TopicDocumentCreated, doc)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "document created",
		"document_id", doc.ID,
		"type", doc.Type,
		"number", doc.Number,
	)
	return s.hooks.Run(ctx, domain.AfterCreate, doc)
}

// Update replaces the header fields and reconciles line items of an open
// document. Provisional effects are re-applied from scratch: the stored
// items' effects are reversed and the incoming items' effects applied, so
// no stale reservation survives an edit.
func (s *Service) Update(ctx context.Context, doc *Document) error {
	def, err := doc.Definition()
	if err != nil {
		return err
	}
	if err := doc.Validate(ctx); err != nil {
		return err
	}
	if err := doc.ComputeTotals(ctx, s.taxes); err != nil {
		return err
	}
	s.stampActor(ctx, doc, false)

	if err := s.hooks.Run(ctx, domain.BeforeUpdate, doc); err != nil {
		return err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByIDForUpdate(ctx, doc.ID)
		if err != nil {
			return err
		}
		if err := existing.CanModify(string(existing.Type)); err != nil {
			return err
		}
		if existing.Type != doc.Type {
			return apperror.NewValidation("document type cannot be changed").
				WithDetail("document_id", doc.ID.String())
		}
		doc.Number = existing.Number

		if err := s.applyProvisional(ctx, def, existing, true); err != nil {
			return fmt.Errorf("reverse provisional effects: %w", err)
		}

		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("persist document: %w", err)
		}

		return s.applyProvisional(ctx, def, doc, false)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "document updated", "document_id", doc.ID, "number", doc.Number)
	return s.hooks.Run(ctx, domain.AfterUpdate, doc)
}

// Close finalizes an open document in one transaction. For every item the
// provisional effect is reversed, then the permanent effect applied:
// inbound sides gain on-hand stock and a new cost batch at the item price,
// outbound sides lose on-hand stock through FIFO consumption.
func (s *Service) Close(ctx context.Context, docID id.ID) (*Document, error) {
	var doc *Document
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetByIDForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if doc.IsClosed() {
			return apperror.NewAlreadyClosed(string(doc.Type), doc.Number)
		}

		def, err := doc.Definition()
		if err != nil {
			return err
		}

		if err := s.hooks.Run(ctx, domain.BeforeClose, doc); err != nil {
			return err
		}

		if !def.Financial {
			if err := s.finalize(ctx, def, doc); err != nil {
				return err
			}
		}

		doc.MarkClosed()
		s.stampActor(ctx, doc, false)
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("persist closed document: %w", err)
		}

		return s.publishDocumentEvent(ctx, event.TopicDocumentClosed, doc)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "document closed",
		"document_id", doc.ID,
		"type", doc.Type,
		"number", doc.Number,
	)
	if err := s.hooks.Run(ctx, domain.AfterClose, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete removes an open document after reversing its provisional effects.
// Deleting a closed document is rejected: finalized stock movements have no
// reversal path, corrections go through a compensating document.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetByIDForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		if doc.IsClosed() {
			return apperror.NewDocumentClosed(string(doc.Type), doc.Number)
		}

		def, err := doc.Definition()
		if err != nil {
			return err
		}

		if err := s.hooks.Run(ctx, domain.BeforeDelete, doc); err != nil {
			return err
		}

		if err := s.applyProvisional(ctx, def, doc, true); err != nil {
			return fmt.Errorf("reverse provisional effects: %w", err)
		}

		if err := s.repo.Delete(ctx, doc.ID); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}

		return s.publishDocumentEvent(ctx, event.TopicDocumentDeleted, doc)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "document deleted", "document_id", docID)
	return nil
}

// LinkOptions carries overrides for a derived financial document.
type LinkOptions struct {
	DocumentDate  *time.Time
	PaymentDate   *time.Time
	DeliveryDate  *time.Time
	PaymentMethod string
	Comment       string
}

// LinkFinancialDocument derives an invoice from a warehouse movement:
// WZ → FS (sales invoice), PZ → FVZ (purchase invoice). Line items are
// copied 1:1 and the child never touches stock - the parent movement
// already covers the physical effect.
func (s *Service) LinkFinancialDocument(ctx context.Context, parentID id.ID, opts LinkOptions) (*Document, error) {
	parent, err := s.repo.GetByID(ctx, parentID)
	if err != nil {
		return nil, err
	}

	var childType Type
	switch parent.Type {
	case TypeWZ:
		childType = TypeFS
	case TypePZ:
		childType = TypeFVZ
	default:
		return nil, apperror.NewBusinessRule(
			apperror.CodeUnsupportedDocumentType,
			fmt.Sprintf("cannot derive a financial document from %s", parent.Type),
		).WithDetail("parent_id", parentID.String())
	}

	child := NewDocument(childType)
	child.RelatedDocumentID = &parent.ID
	child.RelatedOrderID = parent.RelatedOrderID
	child.SupplierID = parent.SupplierID
	child.CustomerID = parent.CustomerID
	child.Comment = opts.Comment
	child.PaymentMethod = opts.PaymentMethod
	if opts.DocumentDate != nil {
		child.DocumentDate = *opts.DocumentDate
		child.IssueDate = *opts.DocumentDate
	}
	child.PaymentDate = opts.PaymentDate
	child.DeliveryDate = opts.DeliveryDate

	for _, item := range parent.Items {
		child.AddItem(item.VariantID, item.Quantity, item.PriceNet, item.TaxRateID)
	}

	if err := s.Create(ctx, child); err != nil {
		return nil, err
	}
	return child, nil
}

// ProcessInventory creates and immediately closes an INW document.
// Each count line snapshots the ledger quantity as expected, stores the
// counted value and applies the variance in the same transaction: positive
// differences add on-hand stock plus a cost batch, negative ones issue
// stock through FIFO. There is no provisional phase.
func (s *Service) ProcessInventory(ctx context.Context, doc *Document) error {
	if doc.Type != TypeINW {
		return apperror.NewValidation("ProcessInventory accepts only INW documents").
			WithDetail("type", string(doc.Type))
	}
	if err := doc.Validate(ctx); err != nil {
		return err
	}
	if len(doc.InventoryItems) == 0 {
		return apperror.NewValidation("inventory count requires count lines")
	}
	if doc.TargetWarehouseID == nil {
		return apperror.NewValidation("missing required fields").
			WithDetail("type", string(doc.Type)).
			WithDetail("missing", []string{FieldWarehouse})
	}
	s.stampActor(ctx, doc, true)

	warehouseID := *doc.TargetWarehouseID
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if doc.Number == "" {
			number, err := s.nextNumber(ctx, doc)
			if err != nil {
				return err
			}
			doc.Number = number
		}

		src := batch.Provenance{DocumentType: string(doc.Type), DocumentID: doc.ID}
		for i := range doc.InventoryItems {
			line := &doc.InventoryItems[i]
			if line.Counted.IsNegative() {
				return apperror.NewValidation("counted quantity cannot be negative").
					WithDetail("variant_id", line.VariantID.String())
			}

			level, err := s.stock.Get(ctx, warehouseID, line.VariantID)
			if err != nil {
				return fmt.Errorf("read stock level: %w", err)
			}
			line.Expected = level.Quantity
			line.Difference = line.Counted - line.Expected

			switch {
			case line.Difference.IsPositive():
				if err := s.stock.Change(ctx, stock.ChangeRequest{
					WarehouseID: warehouseID,
					VariantID:   line.VariantID,
					Delta:       line.Difference,
				}); err != nil {
					return err
				}
				if _, err := s.batches.AddBatch(ctx, line.VariantID, warehouseID,
					line.Difference, line.UnitCost, doc.DocumentDate, src); err != nil {
					return err
				}
			case line.Difference.IsNegative():
				if err := s.stock.Change(ctx, stock.ChangeRequest{
					WarehouseID: warehouseID,
					VariantID:   line.VariantID,
					Delta:       line.Difference,
				}); err != nil {
					return err
				}
				if _, err := s.batches.IssueFIFO(ctx, line.VariantID, warehouseID,
					line.Difference.Abs()); err != nil {
					return err
				}
			}
		}

		// Inventory counts are always terminal.
		doc.MarkClosed()
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("persist inventory document: %w", err)
		}

		if err := s.publishDocumentEvent(ctx, event.TopicDocumentCreated, doc); err != nil {
			return err
		}
		return s.publishDocumentEvent(ctx, event.TopicDocumentClosed, doc)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "inventory count processed",
		"document_id", doc.ID,
		"number", doc.Number,
		"lines", len(doc.InventoryItems),
	)
	return nil
}

// GetByID loads a document with lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*Document, error) {
	return s.repo.GetByID(ctx, docID)
}

// GetByRelatedOrder finds the latest document of a type linked to an order.
func (s *Service) GetByRelatedOrder(ctx context.Context, orderRef string, docType Type) (*Document, error) {
	return s.repo.GetByRelatedOrder(ctx, orderRef, docType)
}

// List returns documents matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[Document], error) {
	return s.repo.List(ctx, filter)
}

// --- internals ---

// applyProvisional applies (or reverses) the open-phase stock effects:
// target side announces incoming quantity, source side reserves available
// stock. Financial types never touch stock.
func (s *Service) applyProvisional(ctx context.Context, def Definition, doc *Document, reverse bool) error {
	if def.Financial || def.Immediate {
		return nil
	}

	for _, item := range doc.Items {
		delta := item.Quantity
		if reverse {
			delta = delta.Neg()
		}

		if def.WritesSource() {
			if err := s.stock.ChangeReservation(ctx, stock.ChangeRequest{
				WarehouseID: *doc.SourceWarehouseID,
				VariantID:   item.VariantID,
				Delta:       delta,
			}); err != nil {
				return err
			}
		}
		if def.WritesTarget() {
			if err := s.stock.ChangeIncoming(ctx, stock.ChangeRequest{
				WarehouseID: *doc.TargetWarehouseID,
				VariantID:   item.VariantID,
				Delta:       delta,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// finalize reverses each item's provisional effect and applies the
// permanent one. Runs inside the close transaction.
func (s *Service) finalize(ctx context.Context, def Definition, doc *Document) error {
	src := batch.Provenance{DocumentType: string(doc.Type), DocumentID: doc.ID}

	for _, item := range doc.Items {
		if def.WritesSource() {
			warehouseID := *doc.SourceWarehouseID

			if err := s.stock.ChangeReservation(ctx, stock.ChangeRequest{
				WarehouseID: warehouseID,
				VariantID:   item.VariantID,
				Delta:       item.Quantity.Neg(),
			}); err != nil {
				return fmt.Errorf("release reservation: %w", err)
			}
			if err := s.stock.Change(ctx, stock.ChangeRequest{
				WarehouseID: warehouseID,
				VariantID:   item.VariantID,
				Delta:       item.Quantity.Neg(),
			}); err != nil {
				return err
			}
			if _, err := s.batches.IssueFIFO(ctx, item.VariantID, warehouseID, item.Quantity); err != nil {
				return err
			}
		}

		if def.WritesTarget() {
			warehouseID := *doc.TargetWarehouseID

			if err := s.stock.ChangeIncoming(ctx, stock.ChangeRequest{
				WarehouseID: warehouseID,
				VariantID:   item.VariantID,
				Delta:       item.Quantity.Neg(),
			}); err != nil {
				return fmt.Errorf("release incoming: %w", err)
			}
			if err := s.stock.Change(ctx, stock.ChangeRequest{
				WarehouseID: warehouseID,
				VariantID:   item.VariantID,
				Delta:       item.Quantity,
			}); err != nil {
				return err
			}
			if _, err := s.batches.AddBatch(ctx, item.VariantID, warehouseID,
				item.Quantity, item.PriceNet, doc.DocumentDate, src); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) nextNumber(ctx context.Context, doc *Document) (string, error) {
	cfg := numerator.DefaultConfig(string(doc.Type))
	number, err := s.numbers.GetNextNumber(ctx, cfg, numerator.DefaultOptions(), doc.DocumentDate)
	if err != nil {
		return "", fmt.Errorf("generate document number: %w", err)
	}
	return number, nil
}

func (s *Service) stampActor(ctx context.Context, doc *Document, created bool) {
	actorID := appctx.GetActorID(ctx)
	if actorID == "" {
		return
	}
	if created {
		doc.CreatedBy = actorID
	}
	doc.UpdatedBy = actorID
}

func (s *Service) publishDocumentEvent(ctx context.Context, topic string, doc *Document) error {
	err := s.events.Publish(ctx, topic, event.DocumentEvent{
		DocumentID: doc.ID,
		Type:       string(doc.Type),
		Number:     doc.Number,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
