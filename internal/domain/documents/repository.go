package documents

import (
	"context"
	"time"

	"warelog/internal/core/id"
	"warelog/internal/domain"
)

// Repository defines persistence for documents and their lines.
// Implementations live in infrastructure/storage/postgres.
type Repository interface {
	// Create inserts the document header and all lines.
	Create(ctx context.Context, doc *Document) error

	// GetByID loads a document with its lines.
	GetByID(ctx context.Context, docID id.ID) (*Document, error)

	// GetByIDForUpdate loads the header with a row lock for state
	// transitions. Must be called inside a transaction.
	GetByIDForUpdate(ctx context.Context, docID id.ID) (*Document, error)

	// GetByRelatedOrder finds the latest document of a type linked to an
	// external order.
	GetByRelatedOrder(ctx context.Context, orderRef string, docType Type) (*Document, error)

	// Update saves the header (optimistic locking) and reconciles lines:
	// lines missing from doc.Items are deleted, existing ones updated,
	// new ones inserted.
	Update(ctx context.Context, doc *Document) error

	// Delete removes the document and its lines. Only called for open
	// documents after their provisional effects were reversed.
	Delete(ctx context.Context, docID id.ID) error

	// List returns documents matching the filter, without lines.
	List(ctx context.Context, filter ListFilter) (domain.ListResult[Document], error)
}

// ListFilter narrows document list queries.
type ListFilter struct {
	domain.ListFilter

	Type        *Type
	WarehouseID *id.ID
	SupplierID  *id.ID
	CustomerID  *id.ID
	OnlyOpen    bool
	OnlyClosed  bool
	DateFrom    *time.Time
	DateTo      *time.Time
}

// DefaultListFilter returns list defaults ordered newest first.
func DefaultListFilter() ListFilter {
	f := ListFilter{ListFilter: domain.DefaultListFilter()}
	f.OrderBy = "document_date DESC"
	return f
}
