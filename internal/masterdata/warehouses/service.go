package warehouses

import (
	"context"
	"fmt"

	"github.com/reclaim-erp/reclaim-erp/internal/shared"
)

// Service exposes warehouse operations.
type Service struct {
	repo Repository
}

// NewService constructs warehouses service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, scope shared.Scope, filters ListFilters) ([]Warehouse, int, error) {
	return s.repo.List(ctx, scope.TenantID, filters)
}

func (s *Service) Get(ctx context.Context, scope shared.Scope, id int64) (Warehouse, error) {
	if id <= 0 {
		return Warehouse{}, fmt.Errorf("%w: invalid warehouse id", shared.ErrInvalidArgument)
	}
	return s.repo.Get(ctx, scope.TenantID, id)
}

func (s *Service) Create(ctx context.Context, scope shared.Scope, warehouse Warehouse) (Warehouse, error) {
	warehouse.TenantID = scope.TenantID
	if err := validate(warehouse); err != nil {
		return Warehouse{}, err
	}
	return s.repo.Create(ctx, warehouse)
}

func (s *Service) Update(ctx context.Context, scope shared.Scope, id int64, warehouse Warehouse) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid warehouse id", shared.ErrInvalidArgument)
	}
	warehouse.TenantID = scope.TenantID
	warehouse.ID = id
	if err := validate(warehouse); err != nil {
		return err
	}
	return s.repo.Update(ctx, warehouse)
}

func (s *Service) Deactivate(ctx context.Context, scope shared.Scope, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid warehouse id", shared.ErrInvalidArgument)
	}
	return s.repo.Deactivate(ctx, scope.TenantID, id)
}
