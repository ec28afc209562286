package catalog_repo

import (
	"warelog/internal/domain/catalogs/taxrate"
	"warelog/internal/infrastructure/storage/postgres"
)

const taxRateTable = "cat_tax_rates"

// TaxRateRepo implements taxrate.Repository.
type TaxRateRepo struct {
	*BaseCatalogRepo[*taxrate.TaxRate]
}

// NewTaxRateRepo creates a new tax rate repository.
func NewTaxRateRepo(txManager *postgres.TxManager) *TaxRateRepo {
	return &TaxRateRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[*taxrate.TaxRate](
			txManager,
			taxRateTable,
			postgres.ExtractDBColumns[taxrate.TaxRate](),
			func() *taxrate.TaxRate { return &taxrate.TaxRate{} },
		),
	}
}
