package taxrate

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"warelog/internal/core/id"
	"warelog/internal/core/tx"
	"warelog/internal/domain"
)

// Service provides business logic for the TaxRate catalog and implements
// the workflow engine's rate resolution. Rates change rarely, so resolved
// values are cached in memory and invalidated on writes.
type Service struct {
	*domain.CatalogService[*TaxRate]
	repo Repository

	mu    sync.RWMutex
	cache map[id.ID]decimal.Decimal
}

// NewService creates a new TaxRate service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*TaxRate]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "tax_rate",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
		cache:          make(map[id.ID]decimal.Decimal),
	}

	invalidate := func(ctx context.Context, t *TaxRate) error {
		svc.mu.Lock()
		delete(svc.cache, t.ID)
		svc.mu.Unlock()
		return nil
	}
	base.Hooks().On(domain.AfterUpdate, invalidate)
	base.Hooks().On(domain.AfterDelete, invalidate)

	return svc
}

// RatePercent resolves a tax rate id to its percentage.
func (s *Service) RatePercent(ctx context.Context, taxRateID id.ID) (decimal.Decimal, error) {
	s.mu.RLock()
	rate, ok := s.cache[taxRateID]
	s.mu.RUnlock()
	if ok {
		return rate, nil
	}

	t, err := s.GetByID(ctx, taxRateID)
	if err != nil {
		return decimal.Zero, err
	}

	s.mu.Lock()
	s.cache[taxRateID] = t.Rate
	s.mu.Unlock()
	return t.Rate, nil
}
