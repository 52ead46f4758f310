package materials

import (
	"context"
	"fmt"
	"strconv"

	"github.com/reclaim-erp/reclaim-erp/internal/shared"
)

// Service exposes material type operations with read-through caching.
type Service struct {
	repo  Repository
	cache *Cache
}

// NewService constructs materials service.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// List returns material types, served from cache when possible.
func (s *Service) List(ctx context.Context, scope shared.Scope, filters ListFilters) ([]MaterialType, int, error) {
	type payload struct {
		Materials []MaterialType `json:"materials"`
		Total     int            `json:"total"`
	}
	key := ""
	if s.cache != nil {
		var err error
		key, err = s.cache.BuildKey(ctx, scope.TenantID, "list", filters.Category, filters.Search,
			strconv.Itoa(filters.Page), strconv.Itoa(filters.Limit), activeToken(filters.Active))
		if err != nil {
			key = ""
		}
	}
	var result payload
	err := s.cache.FetchJSON(ctx, key, &result, func(ctx context.Context) (any, error) {
		materials, total, err := s.repo.List(ctx, scope.TenantID, filters)
		if err != nil {
			return nil, err
		}
		return payload{Materials: materials, Total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return result.Materials, result.Total, nil
}

// Get returns one material type.
func (s *Service) Get(ctx context.Context, scope shared.Scope, id int64) (MaterialType, error) {
	if id <= 0 {
		return MaterialType{}, fmt.Errorf("%w: invalid material id", shared.ErrInvalidArgument)
	}
	key := ""
	if s.cache != nil {
		var err error
		key, err = s.cache.BuildKey(ctx, scope.TenantID, "get", strconv.FormatInt(id, 10))
		if err != nil {
			key = ""
		}
	}
	var material MaterialType
	err := s.cache.FetchJSON(ctx, key, &material, func(ctx context.Context) (any, error) {
		return s.repo.Get(ctx, scope.TenantID, id)
	})
	return material, err
}

// Create registers a material type and invalidates the cache.
func (s *Service) Create(ctx context.Context, scope shared.Scope, material MaterialType) (MaterialType, error) {
	material.TenantID = scope.TenantID
	if err := validate(material); err != nil {
		return MaterialType{}, err
	}
	created, err := s.repo.Create(ctx, material)
	if err != nil {
		return MaterialType{}, err
	}
	_ = s.cache.Bump(ctx)
	return created, nil
}

// Update edits a material type and invalidates the cache.
func (s *Service) Update(ctx context.Context, scope shared.Scope, id int64, material MaterialType) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid material id", shared.ErrInvalidArgument)
	}
	material.TenantID = scope.TenantID
	material.ID = id
	if err := validate(material); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, material); err != nil {
		return err
	}
	return s.cache.Bump(ctx)
}

// Deactivate soft-deletes a material type and invalidates the cache.
func (s *Service) Deactivate(ctx context.Context, scope shared.Scope, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid material id", shared.ErrInvalidArgument)
	}
	if err := s.repo.Deactivate(ctx, scope.TenantID, id); err != nil {
		return err
	}
	return s.cache.Bump(ctx)
}

func activeToken(active *bool) string {
	if active == nil {
		return "all"
	}
	return strconv.FormatBool(*active)
}
