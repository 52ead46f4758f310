package inbound

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reclaim-erp/reclaim-erp/internal/inventory"
	"github.com/reclaim-erp/reclaim-erp/internal/shared"
)

type memoryRepo struct {
	receipts map[int64]GoodsReceipt
	nextID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{receipts: make(map[int64]GoodsReceipt)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetReceipt(ctx context.Context, tenantID, receiptID int64) (GoodsReceipt, error) {
	receipt, ok := r.receipts[receiptID]
	if !ok || receipt.TenantID != tenantID {
		return GoodsReceipt{}, shared.ErrNotFound
	}
	return receipt, nil
}

func (r *memoryRepo) ListReceipts(ctx context.Context, tenantID int64, filter ReceiptFilter) ([]GoodsReceipt, int, error) {
	result := []GoodsReceipt{}
	for _, receipt := range r.receipts {
		if receipt.TenantID != tenantID {
			continue
		}
		if filter.Status != "" && receipt.Status != filter.Status {
			continue
		}
		result = append(result, receipt)
	}
	return result, len(result), nil
}

func (tx *memoryTx) GetReceiptForUpdate(ctx context.Context, tenantID, receiptID int64) (GoodsReceipt, error) {
	return tx.repo.GetReceipt(ctx, tenantID, receiptID)
}

func (tx *memoryTx) InsertReceipt(ctx context.Context, receipt GoodsReceipt) (int64, error) {
	tx.repo.nextID++
	receipt.ID = tx.repo.nextID
	tx.repo.receipts[receipt.ID] = receipt
	return receipt.ID, nil
}

func (tx *memoryTx) UpdateReceiptDecision(ctx context.Context, receipt GoodsReceipt) error {
	if _, ok := tx.repo.receipts[receipt.ID]; !ok {
		return shared.ErrNotFound
	}
	tx.repo.receipts[receipt.ID] = receipt
	return nil
}

type fakeInventory struct {
	opened []inventory.OpenLotInput
	fail   error
	nextID int64
}

func (f *fakeInventory) OpenLot(ctx context.Context, scope shared.Scope, input inventory.OpenLotInput) (inventory.Lot, error) {
	if f.fail != nil {
		return inventory.Lot{}, f.fail
	}
	f.opened = append(f.opened, input)
	f.nextID++
	return inventory.Lot{
		ID:              f.nextID,
		TenantID:        scope.TenantID,
		InitialQuantity: input.Quantity,
		CurrentQuantity: input.Quantity,
		Status:          inventory.LotStatusOpen,
	}, nil
}

var testScope = shared.Scope{TenantID: 1, ActorID: 5}

func createPendingReceipt(t *testing.T, svc *Service) GoodsReceipt {
	t.Helper()
	receipt, err := svc.CreateReceipt(context.Background(), testScope, CreateReceiptInput{
		MaterialTypeID: 10,
		WarehouseID:    1,
		Quantity:       250,
		CostPerUnit:    4,
		Notes:          "mixed scrap",
	})
	require.NoError(t, err)
	return receipt
}

func TestCreateReceipt(t *testing.T) {
	svc := NewService(newMemoryRepo(), &fakeInventory{}, nil, nil)

	receipt := createPendingReceipt(t, svc)
	require.Equal(t, ReceiptStatusPending, receipt.Status)
	require.Contains(t, receipt.Number, "GRN-")
	require.Equal(t, "kg", receipt.UnitOfMeasure)
	require.Zero(t, receipt.LotID)
}

func TestCreateReceiptValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), &fakeInventory{}, nil, nil)
	ctx := context.Background()

	_, err := svc.CreateReceipt(ctx, testScope, CreateReceiptInput{WarehouseID: 1, Quantity: 10})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = svc.CreateReceipt(ctx, testScope, CreateReceiptInput{MaterialTypeID: 10, WarehouseID: 1, Quantity: 0})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = svc.CreateReceipt(ctx, testScope, CreateReceiptInput{MaterialTypeID: 10, WarehouseID: 1, Quantity: 5, CostPerUnit: -1})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestApproveReceiptOpensLot(t *testing.T) {
	inv := &fakeInventory{}
	svc := NewService(newMemoryRepo(), inv, nil, nil)
	receipt := createPendingReceipt(t, svc)

	approved, err := svc.ApproveReceipt(context.Background(), testScope, receipt.ID)
	require.NoError(t, err)
	require.Equal(t, ReceiptStatusApproved, approved.Status)
	require.Equal(t, testScope.ActorID, approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)
	require.NotZero(t, approved.LotID)

	require.Len(t, inv.opened, 1)
	require.InDelta(t, 250.0, inv.opened[0].Quantity, 0.0001)
	require.Equal(t, receipt.Number, inv.opened[0].ReferenceNumber)
	require.Equal(t, "GRN", inv.opened[0].ReferenceType)
}

func TestApproveReceiptTwiceFails(t *testing.T) {
	svc := NewService(newMemoryRepo(), &fakeInventory{}, nil, nil)
	receipt := createPendingReceipt(t, svc)
	ctx := context.Background()

	_, err := svc.ApproveReceipt(ctx, testScope, receipt.ID)
	require.NoError(t, err)

	_, err = svc.ApproveReceipt(ctx, testScope, receipt.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestApproveReceiptInventoryFailureKeepsPending(t *testing.T) {
	inv := &fakeInventory{fail: errors.New("warehouse offline")}
	repo := newMemoryRepo()
	svc := NewService(repo, inv, nil, nil)
	receipt := createPendingReceipt(t, svc)
	ctx := context.Background()

	_, err := svc.ApproveReceipt(ctx, testScope, receipt.ID)
	require.Error(t, err)

	stored, err := repo.GetReceipt(ctx, testScope.TenantID, receipt.ID)
	require.NoError(t, err)
	require.Equal(t, ReceiptStatusPending, stored.Status)

	// A retry after the failure clears must succeed.
	inv.fail = nil
	approved, err := svc.ApproveReceipt(ctx, testScope, receipt.ID)
	require.NoError(t, err)
	require.Equal(t, ReceiptStatusApproved, approved.Status)
}

func TestRejectReceipt(t *testing.T) {
	inv := &fakeInventory{}
	svc := NewService(newMemoryRepo(), inv, nil, nil)
	receipt := createPendingReceipt(t, svc)
	ctx := context.Background()

	_, err := svc.RejectReceipt(ctx, testScope, receipt.ID, "")
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	rejected, err := svc.RejectReceipt(ctx, testScope, receipt.ID, "contaminated load")
	require.NoError(t, err)
	require.Equal(t, ReceiptStatusRejected, rejected.Status)
	require.Equal(t, "contaminated load", rejected.RejectReason)
	require.Empty(t, inv.opened)

	_, err = svc.ApproveReceipt(ctx, testScope, receipt.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestReceiptTenantIsolation(t *testing.T) {
	svc := NewService(newMemoryRepo(), &fakeInventory{}, nil, nil)
	receipt := createPendingReceipt(t, svc)

	other := shared.Scope{TenantID: 2, ActorID: 1}
	_, err := svc.GetReceipt(context.Background(), other, receipt.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.ApproveReceipt(context.Background(), other, receipt.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListReceiptsRejectsUnknownStatus(t *testing.T) {
	svc := NewService(newMemoryRepo(), &fakeInventory{}, nil, nil)
	_, _, err := svc.ListReceipts(context.Background(), testScope, ReceiptFilter{Status: "archived"})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}
