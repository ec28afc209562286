package dto

import (
	"github.com/shopspring/decimal"

	"warelog/internal/domain/catalogs/taxrate"
)

// CreateTaxRateRequest is the request body for creating a tax rate.
type CreateTaxRateRequest struct {
	Code     string          `json:"code"`
	Name     string          `json:"name" binding:"required"`
	Rate     decimal.Decimal `json:"rate"`
	IsActive bool            `json:"isActive"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateTaxRateRequest) ToEntity() *taxrate.TaxRate {
	t := taxrate.NewTaxRate(r.Code, r.Name, r.Rate)
	t.IsActive = r.IsActive
	return t
}

// UpdateTaxRateRequest is the request body for updating a tax rate.
type UpdateTaxRateRequest struct {
	Code     string          `json:"code"`
	Name     string          `json:"name" binding:"required"`
	Rate     decimal.Decimal `json:"rate"`
	IsActive bool            `json:"isActive"`
	Version  int             `json:"version" binding:"required"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateTaxRateRequest) ApplyTo(t *taxrate.TaxRate) {
	t.Code = r.Code
	t.Name = r.Name
	t.Rate = r.Rate
	t.IsActive = r.IsActive
	t.Version = r.Version
}

// TaxRateResponse is the response body for a tax rate.
type TaxRateResponse struct {
	ID       string          `json:"id"`
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Rate     decimal.Decimal `json:"rate"`
	IsActive bool            `json:"isActive"`
	Version  int             `json:"version"`
}

// FromTaxRate creates response DTO from domain entity.
func FromTaxRate(t *taxrate.TaxRate) *TaxRateResponse {
	return &TaxRateResponse{
		ID:       t.ID.String(),
		Code:     t.Code,
		Name:     t.Name,
		Rate:     t.Rate,
		IsActive: t.IsActive,
		Version:  t.Version,
	}
}
