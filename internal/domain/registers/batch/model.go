// Package batch provides the FIFO cost layer over stock.
// Each inbound finalization creates a batch at its purchase price;
// outbound finalizations consume batches oldest first.
package batch

import (
	"time"

	"warelog/internal/core/id"
	"warelog/internal/core/types"
)

// Batch is one cost layer of a variant in a warehouse. Append-only:
// remaining quantity only ever decreases after creation.
type Batch struct {
	ID          id.ID `db:"id" json:"id"`
	VariantID   id.ID `db:"variant_id" json:"variantId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	// QuantityTotal is the original batch size
	QuantityTotal types.Quantity `db:"quantity_total" json:"quantityTotal"`

	// QuantityAvailable is what FIFO consumption has not yet taken
	QuantityAvailable types.Quantity `db:"quantity_available" json:"quantityAvailable"`

	// PurchasePrice is the net unit cost, frozen at creation
	PurchasePrice types.Money `db:"purchase_price" json:"purchasePrice"`

	// PurchaseDate orders batches for FIFO (ties broken by id, which is
	// time-ordered UUIDv7)
	PurchaseDate time.Time `db:"purchase_date" json:"purchaseDate"`

	// Provenance: the document that created this batch
	SourceDocumentType string `db:"source_document_type" json:"sourceDocumentType"`
	SourceDocumentID   id.ID  `db:"source_document_id" json:"sourceDocumentId"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Provenance identifies the document a batch originated from.
type Provenance struct {
	DocumentType string
	DocumentID   id.ID
}

// NewBatch creates a full batch from an inbound finalization.
func NewBatch(variantID, warehouseID id.ID, qty types.Quantity, unitCost types.Money, purchaseDate time.Time, src Provenance) *Batch {
	return &Batch{
		ID:                 id.New(),
		VariantID:          variantID,
		WarehouseID:        warehouseID,
		QuantityTotal:      qty,
		QuantityAvailable:  qty,
		PurchasePrice:      unitCost,
		PurchaseDate:       purchaseDate,
		SourceDocumentType: src.DocumentType,
		SourceDocumentID:   src.DocumentID,
		CreatedAt:          time.Now().UTC(),
	}
}

// IsExhausted reports whether the batch has been fully consumed.
func (b *Batch) IsExhausted() bool {
	return b.QuantityAvailable.IsZero()
}

// Consumption records how much was taken from one batch during a FIFO issue.
type Consumption struct {
	BatchID  id.ID          `json:"batchId"`
	Quantity types.Quantity `json:"quantity"`
	UnitCost types.Money    `json:"unitCost"`
}
