package handlers

import (
	"warelog/internal/domain/catalogs/taxrate"
	"warelog/internal/infrastructure/http/v1/dto"
)

// TaxRateHandler handles tax rate catalog endpoints.
type TaxRateHandler struct {
	*CatalogHandler[*taxrate.TaxRate, dto.CreateTaxRateRequest, dto.UpdateTaxRateRequest]
}

// NewTaxRateHandler creates a new tax rate handler.
func NewTaxRateHandler(base *BaseHandler, service *taxrate.Service) *TaxRateHandler {
	catalogHandler := NewCatalogHandler(base, CatalogHandlerConfig[*taxrate.TaxRate, dto.CreateTaxRateRequest, dto.UpdateTaxRateRequest]{
		Service:    service.CatalogService,
		EntityName: "tax_rate",
		MapCreateDTO: func(req dto.CreateTaxRateRequest) (*taxrate.TaxRate, error) {
			return req.ToEntity(), nil
		},
		MapUpdateDTO: func(req dto.UpdateTaxRateRequest, existing *taxrate.TaxRate) (*taxrate.TaxRate, error) {
			req.ApplyTo(existing)
			return existing, nil
		},
		MapToDTO: func(t *taxrate.TaxRate) any {
			return dto.FromTaxRate(t)
		},
	})

	return &TaxRateHandler{CatalogHandler: catalogHandler}
}
