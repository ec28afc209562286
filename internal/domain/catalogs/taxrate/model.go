// Package taxrate provides the TaxRate catalog.
// Rates are read by the document workflow to compute gross prices and
// document totals.
package taxrate

import (
	"context"

	"github.com/shopspring/decimal"

	"warelog/internal/core/apperror"
	"warelog/internal/core/entity"
)

// TaxRate is a named VAT percentage.
type TaxRate struct {
	entity.Catalog

	// Rate is the percentage, e.g. 23 for 23% VAT
	Rate decimal.Decimal `db:"rate" json:"rate"`

	// IsActive indicates whether new documents may use this rate
	IsActive bool `db:"is_active" json:"isActive"`
}

// NewTaxRate creates a new TaxRate.
func NewTaxRate(code, name string, rate decimal.Decimal) *TaxRate {
	return &TaxRate{
		Catalog:  entity.NewCatalog(code, name),
		Rate:     rate,
		IsActive: true,
	}
}

// Validate implements entity.Validatable interface.
func (t *TaxRate) Validate(ctx context.Context) error {
	if err := t.Catalog.Validate(ctx); err != nil {
		return err
	}

	if t.Rate.IsNegative() {
		return apperror.NewValidation("tax rate cannot be negative").
			WithDetail("field", "rate").
			WithDetail("value", t.Rate.String())
	}

	return nil
}
