package warehouses

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reclaim-erp/reclaim-erp/internal/shared"
)

type mockRepo struct {
	warehouses map[int64]Warehouse
	nextID     int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{warehouses: make(map[int64]Warehouse)}
}

func (m *mockRepo) List(ctx context.Context, tenantID int64, filters ListFilters) ([]Warehouse, int, error) {
	result := []Warehouse{}
	for _, w := range m.warehouses {
		if w.TenantID != tenantID {
			continue
		}
		if filters.Active != nil && w.IsActive != *filters.Active {
			continue
		}
		result = append(result, w)
	}
	return result, len(result), nil
}

func (m *mockRepo) Get(ctx context.Context, tenantID, id int64) (Warehouse, error) {
	w, ok := m.warehouses[id]
	if !ok || w.TenantID != tenantID {
		return Warehouse{}, shared.ErrNotFound
	}
	return w, nil
}

func (m *mockRepo) Create(ctx context.Context, warehouse Warehouse) (Warehouse, error) {
	m.nextID++
	warehouse.ID = m.nextID
	warehouse.IsActive = true
	warehouse.CreatedAt = time.Now()
	warehouse.UpdatedAt = warehouse.CreatedAt
	m.warehouses[warehouse.ID] = warehouse
	return warehouse, nil
}

func (m *mockRepo) Update(ctx context.Context, warehouse Warehouse) error {
	if _, ok := m.warehouses[warehouse.ID]; !ok {
		return shared.ErrNotFound
	}
	m.warehouses[warehouse.ID] = warehouse
	return nil
}

func (m *mockRepo) Deactivate(ctx context.Context, tenantID, id int64) error {
	w, ok := m.warehouses[id]
	if !ok || w.TenantID != tenantID {
		return shared.ErrNotFound
	}
	w.IsActive = false
	m.warehouses[id] = w
	return nil
}

var testScope = shared.Scope{TenantID: 1, ActorID: 2}

func TestCreateWarehouse(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	created, err := svc.Create(ctx, testScope, Warehouse{Code: "WH-01", Name: "Main yard", CapacityKg: 50000})
	require.NoError(t, err)
	require.True(t, created.IsActive)
	require.Equal(t, testScope.TenantID, created.TenantID)
}

func TestCreateWarehouseValidation(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, testScope, Warehouse{Name: "no code"})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = svc.Create(ctx, testScope, Warehouse{Code: "WH-02"})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = svc.Create(ctx, testScope, Warehouse{Code: "WH-03", Name: "bad capacity", CapacityKg: -1})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestDeactivateWarehouse(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, testScope, Warehouse{Code: "WH-01", Name: "Main yard"})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, testScope, created.ID))
	require.False(t, repo.warehouses[created.ID].IsActive)

	active := true
	_, total, err := svc.List(ctx, testScope, ListFilters{Active: &active})
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestWarehouseTenantIsolation(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	created, err := svc.Create(ctx, testScope, Warehouse{Code: "WH-01", Name: "Main yard"})
	require.NoError(t, err)

	other := shared.Scope{TenantID: 2, ActorID: 9}
	_, err = svc.Get(ctx, other, created.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
