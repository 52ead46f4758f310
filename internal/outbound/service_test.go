package outbound

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reclaim-erp/reclaim-erp/internal/inventory"
	"github.com/reclaim-erp/reclaim-erp/internal/shared"
)

type memoryRepo struct {
	orders map[int64]DispatchOrder
	nextID int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orders: make(map[int64]DispatchOrder)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetOrder(ctx context.Context, tenantID, orderID int64) (DispatchOrder, error) {
	order, ok := r.orders[orderID]
	if !ok || order.TenantID != tenantID {
		return DispatchOrder{}, shared.ErrNotFound
	}
	return order, nil
}

func (r *memoryRepo) ListOrders(ctx context.Context, tenantID int64, filter OrderFilter) ([]DispatchOrder, int, error) {
	result := []DispatchOrder{}
	for _, order := range r.orders {
		if order.TenantID != tenantID {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		result = append(result, order)
	}
	return result, len(result), nil
}

func (tx *memoryTx) GetOrderForUpdate(ctx context.Context, tenantID, orderID int64) (DispatchOrder, error) {
	return tx.repo.GetOrder(ctx, tenantID, orderID)
}

func (tx *memoryTx) InsertOrder(ctx context.Context, order DispatchOrder) (int64, error) {
	tx.repo.nextID++
	order.ID = tx.repo.nextID
	tx.repo.orders[order.ID] = order
	return order.ID, nil
}

func (tx *memoryTx) UpdateOrder(ctx context.Context, order DispatchOrder) error {
	if _, ok := tx.repo.orders[order.ID]; !ok {
		return shared.ErrNotFound
	}
	tx.repo.orders[order.ID] = order
	return nil
}

// fakeInventory keeps one lot and mimics the dispatch semantics the
// real service enforces.
type fakeInventory struct {
	lot        inventory.Lot
	dispatched []inventory.DispatchInput
}

func (f *fakeInventory) GetLot(ctx context.Context, scope shared.Scope, lotID int64) (inventory.LotDetail, error) {
	if f.lot.ID != lotID || f.lot.TenantID != scope.TenantID {
		return inventory.LotDetail{}, shared.ErrNotFound
	}
	return inventory.LotDetail{Lot: f.lot}, nil
}

func (f *fakeInventory) Dispatch(ctx context.Context, scope shared.Scope, input inventory.DispatchInput) (inventory.Lot, error) {
	if f.lot.ID != input.LotID || f.lot.TenantID != scope.TenantID {
		return inventory.Lot{}, shared.ErrNotFound
	}
	if f.lot.Status.Terminal() {
		return inventory.Lot{}, shared.ErrInvalidState
	}
	if input.Quantity > f.lot.CurrentQuantity {
		return inventory.Lot{}, &shared.InsufficientStockError{Requested: input.Quantity, Available: f.lot.CurrentQuantity, Unit: f.lot.UnitOfMeasure}
	}
	f.lot.CurrentQuantity -= input.Quantity
	if f.lot.CurrentQuantity == 0 {
		f.lot.Status = inventory.LotStatusSold
	}
	f.dispatched = append(f.dispatched, input)
	return f.lot, nil
}

var testScope = shared.Scope{TenantID: 1, ActorID: 3}

func newTestService(available float64) (*Service, *fakeInventory) {
	inv := &fakeInventory{lot: inventory.Lot{
		ID:              42,
		TenantID:        1,
		LotNumber:       "LOT-42",
		WarehouseID:     1,
		InitialQuantity: available,
		CurrentQuantity: available,
		UnitOfMeasure:   "kg",
		Status:          inventory.LotStatusOpen,
	}}
	return NewService(newMemoryRepo(), inv, nil, nil), inv
}

func createPendingOrder(t *testing.T, svc *Service, qty float64) DispatchOrder {
	t.Helper()
	order, err := svc.CreateOrder(context.Background(), testScope, CreateOrderInput{LotID: 42, Quantity: qty, PricePerUnit: 12})
	require.NoError(t, err)
	return order
}

func TestCreateOrder(t *testing.T) {
	svc, _ := newTestService(100)

	order := createPendingOrder(t, svc, 60)
	require.Equal(t, OrderStatusPending, order.Status)
	require.Contains(t, order.Number, "DSP-")
	require.Equal(t, int64(1), order.WarehouseID)
	require.Equal(t, "kg", order.UnitOfMeasure)
}

func TestCreateOrderValidation(t *testing.T) {
	svc, _ := newTestService(100)
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, testScope, CreateOrderInput{Quantity: 5})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = svc.CreateOrder(ctx, testScope, CreateOrderInput{LotID: 42, Quantity: 0})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = svc.CreateOrder(ctx, testScope, CreateOrderInput{LotID: 42, WarehouseID: 9, Quantity: 5})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = svc.CreateOrder(ctx, testScope, CreateOrderInput{LotID: 42, Quantity: 150})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	_, err = svc.CreateOrder(ctx, testScope, CreateOrderInput{LotID: 7, Quantity: 5})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestConfirmDispatchDebitsLot(t *testing.T) {
	svc, inv := newTestService(100)
	order := createPendingOrder(t, svc, 60)

	confirmed, err := svc.ConfirmDispatch(context.Background(), testScope, order.ID)
	require.NoError(t, err)
	require.Equal(t, OrderStatusDispatched, confirmed.Status)
	require.NotNil(t, confirmed.DispatchedAt)

	require.Len(t, inv.dispatched, 1)
	require.InDelta(t, 60.0, inv.dispatched[0].Quantity, 0.0001)
	require.Equal(t, order.Number, inv.dispatched[0].ReferenceNumber)
	require.InDelta(t, 40.0, inv.lot.CurrentQuantity, 0.0001)
}

func TestConfirmDispatchDrainsLotToSold(t *testing.T) {
	svc, inv := newTestService(50)
	order := createPendingOrder(t, svc, 50)

	_, err := svc.ConfirmDispatch(context.Background(), testScope, order.ID)
	require.NoError(t, err)
	require.Equal(t, inventory.LotStatusSold, inv.lot.Status)
}

func TestConfirmDispatchTwiceFails(t *testing.T) {
	svc, inv := newTestService(100)
	order := createPendingOrder(t, svc, 30)
	ctx := context.Background()

	_, err := svc.ConfirmDispatch(ctx, testScope, order.ID)
	require.NoError(t, err)

	_, err = svc.ConfirmDispatch(ctx, testScope, order.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	require.Len(t, inv.dispatched, 1)
}

func TestConfirmDispatchRechecksBalance(t *testing.T) {
	svc, inv := newTestService(100)
	first := createPendingOrder(t, svc, 70)
	second := createPendingOrder(t, svc, 70)
	ctx := context.Background()

	_, err := svc.ConfirmDispatch(ctx, testScope, first.ID)
	require.NoError(t, err)

	// Both orders passed the create-time check; only one fits at confirm.
	_, err = svc.ConfirmDispatch(ctx, testScope, second.ID)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.InDelta(t, 30.0, inv.lot.CurrentQuantity, 0.0001)

	stored, err := svc.GetOrder(ctx, testScope, second.ID)
	require.NoError(t, err)
	require.Equal(t, OrderStatusPending, stored.Status)
}

func TestCompleteDelivery(t *testing.T) {
	svc, _ := newTestService(100)
	order := createPendingOrder(t, svc, 10)
	ctx := context.Background()

	_, err := svc.CompleteDelivery(ctx, testScope, order.ID, DeliveryInput{})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = svc.ConfirmDispatch(ctx, testScope, order.ID)
	require.NoError(t, err)

	delivered, err := svc.CompleteDelivery(ctx, testScope, order.ID, DeliveryInput{VehicleNumber: "B 9001 XY", DriverName: "Sari"})
	require.NoError(t, err)
	require.Equal(t, OrderStatusDelivered, delivered.Status)
	require.NotNil(t, delivered.DeliveredAt)
	require.Equal(t, "B 9001 XY", delivered.VehicleNumber)

	_, err = svc.CompleteDelivery(ctx, testScope, order.ID, DeliveryInput{})
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestCancelOrder(t *testing.T) {
	svc, inv := newTestService(100)
	order := createPendingOrder(t, svc, 10)
	ctx := context.Background()

	cancelled, err := svc.CancelOrder(ctx, testScope, order.ID, "buyer withdrew")
	require.NoError(t, err)
	require.Equal(t, OrderStatusCancelled, cancelled.Status)
	require.Empty(t, inv.dispatched)

	_, err = svc.ConfirmDispatch(ctx, testScope, order.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestCancelConfirmedOrderFails(t *testing.T) {
	svc, _ := newTestService(100)
	order := createPendingOrder(t, svc, 10)
	ctx := context.Background()

	_, err := svc.ConfirmDispatch(ctx, testScope, order.ID)
	require.NoError(t, err)

	_, err = svc.CancelOrder(ctx, testScope, order.ID, "too late")
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestOrderTenantIsolation(t *testing.T) {
	svc, _ := newTestService(100)
	order := createPendingOrder(t, svc, 10)

	other := shared.Scope{TenantID: 2, ActorID: 1}
	_, err := svc.GetOrder(context.Background(), other, order.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.ConfirmDispatch(context.Background(), other, order.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
