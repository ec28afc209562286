package warehouse

import (
	"context"

	"warelog/internal/core/tx"
	"warelog/internal/domain"
)

// Service provides business logic for the Warehouse catalog.
// Uses composition with domain.CatalogService for common CRUD operations.
type Service struct {
	*domain.CatalogService[*Warehouse]
	repo Repository
}

// NewService creates a new Warehouse service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Warehouse]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "warehouse",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
	}

	base.Hooks().On(domain.BeforeCreate, svc.prepareDefault)
	base.Hooks().On(domain.BeforeUpdate, svc.prepareDefault)

	return svc
}

// prepareDefault keeps at most one default warehouse.
func (s *Service) prepareDefault(ctx context.Context, wh *Warehouse) error {
	if wh.IsDefault {
		return s.repo.ClearDefault(ctx)
	}
	return nil
}

// GetDefault returns the default warehouse for order sync.
func (s *Service) GetDefault(ctx context.Context) (*Warehouse, error) {
	return s.repo.GetDefault(ctx)
}
