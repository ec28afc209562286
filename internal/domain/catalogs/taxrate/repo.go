package taxrate

import (
	"warelog/internal/domain"
)

// Repository defines the interface for TaxRate persistence.
type Repository interface {
	domain.CatalogRepository[*TaxRate]
}
