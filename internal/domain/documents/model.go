package documents

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"warelog/internal/core/apperror"
	"warelog/internal/core/entity"
	"warelog/internal/core/id"
	"warelog/internal/core/types"
)

// Document is a typed warehouse document with line items and an open/closed
// lifecycle. One struct covers all ten types; per-type behavior comes from
// the Definition table.
type Document struct {
	entity.Document

	Type Type `db:"type" json:"type"`

	// Warehouse sides. Which one is set depends on the type's role.
	SourceWarehouseID *id.ID `db:"source_warehouse_id" json:"sourceWarehouseId,omitempty"`
	TargetWarehouseID *id.ID `db:"target_warehouse_id" json:"targetWarehouseId,omitempty"`

	// Counterparties, mutually exclusive by type
	SupplierID *id.ID `db:"supplier_id" json:"supplierId,omitempty"`
	CustomerID *id.ID `db:"customer_id" json:"customerId,omitempty"`

	// RelatedDocumentID links a derived financial document to its parent
	RelatedDocumentID *id.ID `db:"related_document_id" json:"relatedDocumentId,omitempty"`

	// RelatedOrderID references the external sales order
	RelatedOrderID *string `db:"related_order_id" json:"relatedOrderId,omitempty"`

	DeliveryDate *time.Time `db:"delivery_date" json:"deliveryDate,omitempty"`
	PaymentDate  *time.Time `db:"payment_date" json:"paymentDate,omitempty"`

	// Computed totals, rounded to 2 decimals at document level
	TotalNet   types.Money `db:"total_net" json:"totalNet"`
	TotalGross types.Money `db:"total_gross" json:"totalGross"`

	Paid          bool        `db:"paid" json:"paid"`
	PaidAmount    types.Money `db:"paid_amount" json:"paidAmount"`
	PaymentMethod string      `db:"payment_method" json:"paymentMethod,omitempty"`

	// Items are the goods lines (all types except INW)
	Items []Item `db:"-" json:"items,omitempty"`

	// InventoryItems are the count lines (INW only)
	InventoryItems []InventoryItem `db:"-" json:"inventoryItems,omitempty"`

	// Attachments reference externally stored files (delivery notes, scans)
	Attachments []Attachment `db:"-" json:"attachments,omitempty"`
}

// Item is one goods line of a document.
type Item struct {
	ID         id.ID `db:"id" json:"id"`
	DocumentID id.ID `db:"document_id" json:"documentId"`
	VariantID  id.ID `db:"variant_id" json:"variantId"`

	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// PriceNet is the caller-supplied unit price
	PriceNet types.Money `db:"price_net" json:"priceNet"`

	// PriceGross = PriceNet × (1 + taxRate/100), computed, never caller-trusted
	PriceGross types.Money `db:"price_gross" json:"priceGross"`

	TaxRateID *id.ID `db:"tax_rate_id" json:"taxRateId,omitempty"`
}

// InventoryItem is one count line of an INW document.
type InventoryItem struct {
	ID         id.ID `db:"id" json:"id"`
	DocumentID id.ID `db:"document_id" json:"documentId"`
	VariantID  id.ID `db:"variant_id" json:"variantId"`

	// Expected is the ledger quantity snapshot at count time
	Expected types.Quantity `db:"expected_quantity" json:"expectedQuantity"`

	// Counted is the operator input
	Counted types.Quantity `db:"counted_quantity" json:"countedQuantity"`

	// Difference = Counted − Expected
	Difference types.Quantity `db:"difference" json:"difference"`

	// UnitCost values a positive variance batch (zero when unknown)
	UnitCost types.Money `db:"unit_cost" json:"unitCost"`
}

// Attachment is a reference to an externally stored file. The binary lives
// in the media service; only filename and media id are kept here.
type Attachment struct {
	ID         id.ID     `db:"id" json:"id"`
	DocumentID id.ID     `db:"document_id" json:"documentId"`
	FileName   string    `db:"file_name" json:"fileName"`
	MediaID    string    `db:"media_id" json:"mediaId"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// NewDocument creates an open document of the given type.
func NewDocument(t Type) *Document {
	return &Document{
		Document: entity.NewDocument(),
		Type:     t,
	}
}

// AddItem appends a goods line.
func (d *Document) AddItem(variantID id.ID, qty types.Quantity, priceNet types.Money, taxRateID *id.ID) *Item {
	item := Item{
		ID:         id.New(),
		DocumentID: d.ID,
		VariantID:  variantID,
		Quantity:   qty,
		PriceNet:   priceNet,
		TaxRateID:  taxRateID,
	}
	d.Items = append(d.Items, item)
	return &d.Items[len(d.Items)-1]
}

// AddAttachment appends a file reference.
func (d *Document) AddAttachment(fileName, mediaID string) {
	d.Attachments = append(d.Attachments, Attachment{
		ID:         id.New(),
		DocumentID: d.ID,
		FileName:   fileName,
		MediaID:    mediaID,
		CreatedAt:  time.Now().UTC(),
	})
}

// Definition returns the behavior table entry for the document's type.
func (d *Document) Definition() (Definition, error) {
	return Lookup(d.Type)
}

// Validate checks per-type required fields. Missing keys are listed in the
// error details, like the HTTP layer expects.
func (d *Document) Validate(ctx context.Context) error {
	def, err := d.Definition()
	if err != nil {
		return err
	}

	if err := d.Document.Validate(ctx); err != nil {
		return err
	}

	var missing []string
	for _, key := range def.Required {
		switch key {
		case FieldSupplier:
			if d.SupplierID == nil {
				missing = append(missing, key)
			}
		case FieldCustomer:
			if d.CustomerID == nil {
				missing = append(missing, key)
			}
		case FieldWarehouse:
			if d.warehouseForRole(def) == nil {
				missing = append(missing, key)
			}
		case FieldSourceWarehouse:
			if d.SourceWarehouseID == nil {
				missing = append(missing, key)
			}
		case FieldTargetWarehouse:
			if d.TargetWarehouseID == nil {
				missing = append(missing, key)
			}
		case FieldRelatedOrder:
			if d.RelatedOrderID == nil || *d.RelatedOrderID == "" {
				missing = append(missing, key)
			}
		}
	}

	if def.RequiresItems && len(d.Items) == 0 {
		missing = append(missing, "items")
	}

	if len(missing) > 0 {
		return apperror.NewValidation("missing required fields").
			WithDetail("type", string(d.Type)).
			WithDetail("missing", missing)
	}

	for i, item := range d.Items {
		if id.IsNil(item.VariantID) {
			return apperror.NewValidation("item variant is required").
				WithDetail("index", i)
		}
		if !item.Quantity.IsPositive() {
			return apperror.NewValidation("item quantity must be positive").
				WithDetail("index", i).
				WithDetail("variant_id", item.VariantID.String())
		}
		if item.PriceNet.IsNegative() {
			return apperror.NewValidation("item price cannot be negative").
				WithDetail("index", i).
				WithDetail("variant_id", item.VariantID.String())
		}
	}

	return nil
}

// warehouseForRole returns the warehouse field the "warehouse_id" key maps
// to for single-sided types.
func (d *Document) warehouseForRole(def Definition) *id.ID {
	switch def.Role {
	case RoleTarget:
		return d.TargetWarehouseID
	case RoleSource:
		return d.SourceWarehouseID
	default:
		return nil
	}
}

// SetWarehouse assigns a single warehouse id to the side the type writes.
// MM documents must set both sides explicitly instead.
func (d *Document) SetWarehouse(warehouseID id.ID) {
	def, err := d.Definition()
	if err != nil {
		return
	}
	switch def.Role {
	case RoleTarget:
		d.TargetWarehouseID = &warehouseID
	case RoleSource:
		d.SourceWarehouseID = &warehouseID
	}
}

// TaxResolver resolves a tax rate id to its percentage.
// A nil tax rate id always means 0%.
type TaxResolver interface {
	RatePercent(ctx context.Context, taxRateID id.ID) (decimal.Decimal, error)
}

// ComputeTotals recomputes per-item gross prices and document totals.
// Gross amounts keep full precision per line; rounding to 2 decimals happens
// once at the document level.
func (d *Document) ComputeTotals(ctx context.Context, taxes TaxResolver) error {
	hundred := decimal.NewFromInt(100)

	totalNet := decimal.Zero
	totalGross := decimal.Zero

	for i := range d.Items {
		item := &d.Items[i]

		rate := decimal.Zero
		if item.TaxRateID != nil {
			r, err := taxes.RatePercent(ctx, *item.TaxRateID)
			if err != nil {
				return err
			}
			rate = r
		}

		factor := decimal.NewFromInt(1).Add(rate.Div(hundred))
		item.PriceGross = item.PriceNet.Mul(factor)

		lineNet := item.Quantity.MulMoney(item.PriceNet)
		totalNet = totalNet.Add(lineNet)
		totalGross = totalGross.Add(lineNet.Mul(factor))
	}

	d.TotalNet = totalNet.Round(2)
	d.TotalGross = totalGross.Round(2)
	return nil
}
