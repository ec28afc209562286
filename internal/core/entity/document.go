package entity

import (
	"context"
	"time"

	"warelog/internal/core/apperror"
	"warelog/internal/core/id"
)

// Document is the base header for business transactions.
// Examples: goods receipt (PZ), goods issue (WZ), stock transfer (MM).
type Document struct {
	BaseDocument

	// Number is the document number (auto-generated, unique within type+month)
	Number string `db:"number" json:"number"`

	// DocumentDate is the business date of the document
	DocumentDate time.Time `db:"document_date" json:"documentDate"`

	// IssueDate is the formal issue date (defaults to DocumentDate)
	IssueDate time.Time `db:"issue_date" json:"issueDate"`

	// ClosedAt is set when the document is finalized. A closed document is
	// immutable and its stock effects are permanent.
	ClosedAt *time.Time `db:"closed_at" json:"closedAt,omitempty"`

	// Comment is an optional user comment
	Comment string `db:"comment" json:"comment,omitempty"`
}

// NewDocument creates a new Document header with generated ID.
func NewDocument() Document {
	now := time.Now().UTC()
	return Document{
		BaseDocument: NewBaseDocument(),
		DocumentDate: now,
		IssueDate:    now,
	}
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if d.DocumentDate.IsZero() {
		return apperror.NewValidation("document date is required").
			WithDetail("field", "documentDate")
	}
	return nil
}

// IsClosed reports whether the document has been finalized.
func (d *Document) IsClosed() bool {
	return d.ClosedAt != nil
}

// CanModify checks if document can be modified.
// Closed documents are immutable.
func (d *Document) CanModify(docType string) error {
	if d.IsClosed() {
		return apperror.NewDocumentClosed(docType, d.Number).
			WithDetail("document_id", d.ID.String())
	}
	return nil
}

// MarkClosed stamps the closing time and bumps version.
func (d *Document) MarkClosed() {
	now := time.Now().UTC()
	d.ClosedAt = &now
	d.Touch()
}

// GetID returns the document ID.
func (d *Document) GetID() id.ID {
	return d.ID
}

// IsBackdated checks if document date is in the past.
func (d *Document) IsBackdated() bool {
	return d.DocumentDate.Before(time.Now().UTC().Truncate(24 * time.Hour))
}
