package inventory

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reclaim-erp/reclaim-erp/internal/shared"
)

type memoryRepo struct {
	mu         sync.Mutex
	lots       map[int64]Lot
	movements  []StockMovement
	summaries  map[SummaryKey]Summary
	warehouses map[int64]bool
	materials  map[int64]bool
	nextLotID  int64
	nextMoveID int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		lots:       make(map[int64]Lot),
		summaries:  make(map[SummaryKey]Summary),
		warehouses: map[int64]bool{1: true, 2: true},
		materials:  map[int64]bool{10: true, 11: true},
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetLot(ctx context.Context, tenantID, lotID int64) (Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lot, ok := r.lots[lotID]
	if !ok || lot.TenantID != tenantID {
		return Lot{}, shared.ErrNotFound
	}
	return lot, nil
}

func (r *memoryRepo) ListLotMovements(ctx context.Context, tenantID, lotID int64) ([]StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []StockMovement{}
	for i := len(r.movements) - 1; i >= 0; i-- {
		m := r.movements[i]
		if m.TenantID == tenantID && m.LotID == lotID {
			result = append(result, m)
		}
	}
	return result, nil
}

func (r *memoryRepo) ListLots(ctx context.Context, tenantID int64, filter LotFilter) ([]Lot, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []Lot{}
	for _, lot := range r.lots {
		if lot.TenantID != tenantID {
			continue
		}
		if filter.Status != "" && lot.Status != filter.Status {
			continue
		}
		if filter.WarehouseID != 0 && lot.WarehouseID != filter.WarehouseID {
			continue
		}
		result = append(result, lot)
	}
	return result, len(result), nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, tenantID int64, filter MovementFilter) ([]StockMovement, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []StockMovement{}
	for _, m := range r.movements {
		if m.TenantID != tenantID {
			continue
		}
		if filter.LotID != 0 && m.LotID != filter.LotID {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		result = append(result, m)
	}
	return result, len(result), nil
}

func (r *memoryRepo) ListSummaries(ctx context.Context, tenantID int64, filter SummaryFilter) ([]Summary, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []Summary{}
	for key, s := range r.summaries {
		if key.TenantID != tenantID {
			continue
		}
		if filter.WarehouseID != 0 && key.WarehouseID != filter.WarehouseID {
			continue
		}
		if filter.MaterialTypeID != 0 && key.MaterialTypeID != filter.MaterialTypeID {
			continue
		}
		result = append(result, s)
	}
	return result, len(result), nil
}

func (r *memoryRepo) ActiveLots(ctx context.Context, tenantID int64, warehouseID int64) ([]Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []Lot{}
	for _, lot := range r.lots {
		if lot.TenantID != tenantID || !lot.Status.Active() {
			continue
		}
		if warehouseID != 0 && lot.WarehouseID != warehouseID {
			continue
		}
		result = append(result, lot)
	}
	return result, nil
}

func (r *memoryRepo) ListSummaryKeys(ctx context.Context) ([]SummaryKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[SummaryKey]bool{}
	keys := []SummaryKey{}
	for _, lot := range r.lots {
		key := SummaryKey{TenantID: lot.TenantID, WarehouseID: lot.WarehouseID, MaterialTypeID: lot.MaterialTypeID}
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys, nil
}

func (r *memoryRepo) ScanLedgerDrift(ctx context.Context) ([]LotDrift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	drifts := []LotDrift{}
	for _, lot := range r.lots {
		var sum float64
		for _, m := range r.movements {
			if m.LotID == lot.ID {
				sum += m.Quantity
			}
		}
		if math.Abs(lot.CurrentQuantity-sum) > 0.0001 {
			drifts = append(drifts, LotDrift{
				LotID:           lot.ID,
				LotNumber:       lot.LotNumber,
				CurrentQuantity: lot.CurrentQuantity,
				LedgerQuantity:  sum,
			})
		}
	}
	return drifts, nil
}

func (tx *memoryTx) WarehouseExists(ctx context.Context, tenantID, warehouseID int64) (bool, error) {
	return tx.repo.warehouses[warehouseID], nil
}

func (tx *memoryTx) MaterialTypeExists(ctx context.Context, tenantID, materialTypeID int64) (bool, error) {
	return tx.repo.materials[materialTypeID], nil
}

func (tx *memoryTx) GetLotForUpdate(ctx context.Context, tenantID, lotID int64) (Lot, error) {
	lot, ok := tx.repo.lots[lotID]
	if !ok || lot.TenantID != tenantID {
		return Lot{}, shared.ErrNotFound
	}
	return lot, nil
}

func (tx *memoryTx) InsertLot(ctx context.Context, lot Lot) (int64, error) {
	tx.repo.nextLotID++
	lot.ID = tx.repo.nextLotID
	tx.repo.lots[lot.ID] = lot
	return lot.ID, nil
}

func (tx *memoryTx) UpdateLotBalance(ctx context.Context, lot Lot) error {
	stored, ok := tx.repo.lots[lot.ID]
	if !ok {
		return shared.ErrNotFound
	}
	stored.CurrentQuantity = lot.CurrentQuantity
	stored.Status = lot.Status
	stored.ClosedAt = lot.ClosedAt
	tx.repo.lots[lot.ID] = stored
	return nil
}

func (tx *memoryTx) UpdateLotMetadata(ctx context.Context, lot Lot) error {
	stored, ok := tx.repo.lots[lot.ID]
	if !ok {
		return shared.ErrNotFound
	}
	stored.ValueOfMaterial = lot.ValueOfMaterial
	stored.Notes = lot.Notes
	tx.repo.lots[lot.ID] = stored
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m StockMovement) (int64, error) {
	tx.repo.nextMoveID++
	m.ID = tx.repo.nextMoveID
	tx.repo.movements = append(tx.repo.movements, m)
	return m.ID, nil
}

func (tx *memoryTx) RecomputeSummary(ctx context.Context, tenantID, warehouseID, materialTypeID int64) (Summary, error) {
	key := SummaryKey{TenantID: tenantID, WarehouseID: warehouseID, MaterialTypeID: materialTypeID}
	summary := Summary{TenantID: tenantID, WarehouseID: warehouseID, MaterialTypeID: materialTypeID, LastUpdated: time.Now()}
	for _, lot := range tx.repo.lots {
		if lot.TenantID != tenantID || lot.WarehouseID != warehouseID || lot.MaterialTypeID != materialTypeID {
			continue
		}
		if !lot.Status.Active() {
			continue
		}
		summary.TotalQuantity += lot.CurrentQuantity
		summary.TotalValue += lot.TotalCost
	}
	tx.repo.summaries[key] = summary
	return summary, nil
}

var testScope = shared.Scope{TenantID: 1, ActorID: 7}

func newTestService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	return NewService(repo, nil, nil), repo
}

func openTestLot(t *testing.T, svc *Service, qty, cost float64) Lot {
	t.Helper()
	lot, err := svc.OpenLot(context.Background(), testScope, OpenLotInput{
		MaterialTypeID:  10,
		WarehouseID:     1,
		Quantity:        qty,
		CostPerUnit:     cost,
		ReferenceNumber: "GRN-TEST",
		ReferenceType:   "GRN",
	})
	require.NoError(t, err)
	return lot
}

func TestOpenLotRecordsIntake(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	lot := openTestLot(t, svc, 100, 5)
	require.Equal(t, LotStatusOpen, lot.Status)
	require.InDelta(t, 100.0, lot.InitialQuantity, 0.0001)
	require.InDelta(t, 100.0, lot.CurrentQuantity, 0.0001)
	require.InDelta(t, 500.0, lot.TotalCost, 0.0001)
	require.Equal(t, "kg", lot.UnitOfMeasure)

	movements, err := repo.ListLotMovements(ctx, testScope.TenantID, lot.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.Equal(t, TransactionInbound, movements[0].Type)
	require.InDelta(t, 100.0, movements[0].Quantity, 0.0001)

	summary := repo.summaries[SummaryKey{TenantID: 1, WarehouseID: 1, MaterialTypeID: 10}]
	require.InDelta(t, 100.0, summary.TotalQuantity, 0.0001)
	require.InDelta(t, 500.0, summary.TotalValue, 0.0001)
}

func TestOpenLotValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.OpenLot(ctx, testScope, OpenLotInput{MaterialTypeID: 10, WarehouseID: 1, Quantity: 0})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = svc.OpenLot(ctx, testScope, OpenLotInput{MaterialTypeID: 10, WarehouseID: 1, Quantity: 5, CostPerUnit: -1})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = svc.OpenLot(ctx, testScope, OpenLotInput{MaterialTypeID: 10, WarehouseID: 99, Quantity: 5})
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.OpenLot(ctx, testScope, OpenLotInput{MaterialTypeID: 99, WarehouseID: 1, Quantity: 5})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDispatchPartialThenDrain(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	lot := openTestLot(t, svc, 100, 5)

	updated, err := svc.Dispatch(ctx, testScope, DispatchInput{LotID: lot.ID, Quantity: 40})
	require.NoError(t, err)
	require.InDelta(t, 60.0, updated.CurrentQuantity, 0.0001)
	require.Equal(t, LotStatusOpen, updated.Status)

	updated, err = svc.Dispatch(ctx, testScope, DispatchInput{LotID: lot.ID, Quantity: 60})
	require.NoError(t, err)
	require.InDelta(t, 0.0, updated.CurrentQuantity, 0.0001)
	require.Equal(t, LotStatusSold, updated.Status)
	require.NotNil(t, updated.ClosedAt)

	movements, err := repo.ListLotMovements(ctx, testScope.TenantID, lot.ID)
	require.NoError(t, err)
	require.Len(t, movements, 3)
	require.Equal(t, TransactionOutbound, movements[0].Type)
	require.InDelta(t, -60.0, movements[0].Quantity, 0.0001)

	summary := repo.summaries[SummaryKey{TenantID: 1, WarehouseID: 1, MaterialTypeID: 10}]
	require.InDelta(t, 0.0, summary.TotalQuantity, 0.0001)
}

func TestDispatchInsufficientStock(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	lot := openTestLot(t, svc, 10, 5)

	_, err := svc.Dispatch(ctx, testScope, DispatchInput{LotID: lot.ID, Quantity: 10.5})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	var stockErr *shared.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.InDelta(t, 10.5, stockErr.Requested, 0.0001)
	require.InDelta(t, 10.0, stockErr.Available, 0.0001)

	stored, err := repo.GetLot(ctx, testScope.TenantID, lot.ID)
	require.NoError(t, err)
	require.InDelta(t, 10.0, stored.CurrentQuantity, 0.0001)
	movements, err := repo.ListLotMovements(ctx, testScope.TenantID, lot.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
}

func TestDispatchWrongWarehouse(t *testing.T) {
	svc, _ := newTestService()
	lot := openTestLot(t, svc, 10, 5)

	_, err := svc.Dispatch(context.Background(), testScope, DispatchInput{LotID: lot.ID, WarehouseID: 2, Quantity: 5})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestAdjustBothDirections(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	lot := openTestLot(t, svc, 100, 5)

	updated, err := svc.Adjust(ctx, testScope, AdjustInput{LotID: lot.ID, Delta: -20, Reason: "sorting shrinkage"})
	require.NoError(t, err)
	require.InDelta(t, 80.0, updated.CurrentQuantity, 0.0001)

	updated, err = svc.Adjust(ctx, testScope, AdjustInput{LotID: lot.ID, Delta: 15, Reason: "recount"})
	require.NoError(t, err)
	require.InDelta(t, 95.0, updated.CurrentQuantity, 0.0001)

	movements, err := repo.ListLotMovements(ctx, testScope.TenantID, lot.ID)
	require.NoError(t, err)
	require.Len(t, movements, 3)
	require.Equal(t, TransactionAdjustment, movements[0].Type)
	require.Equal(t, "recount", movements[0].Notes)
}

func TestAdjustGuards(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	lot := openTestLot(t, svc, 50, 5)

	_, err := svc.Adjust(ctx, testScope, AdjustInput{LotID: lot.ID, Delta: 0, Reason: "noop"})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = svc.Adjust(ctx, testScope, AdjustInput{LotID: lot.ID, Delta: -5})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = svc.Adjust(ctx, testScope, AdjustInput{LotID: lot.ID, Delta: -60, Reason: "overshoot"})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	_, err = svc.Adjust(ctx, testScope, AdjustInput{LotID: lot.ID, Delta: 10, Reason: "raise above intake"})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestSummaryKeysCoverLotsWithoutSummaryRows(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	lot := openTestLot(t, svc, 40, 2)

	// A rollup row that was never written, or was lost, must still be
	// visited by the reconcile sweep.
	key := SummaryKey{TenantID: 1, WarehouseID: 1, MaterialTypeID: 10}
	delete(repo.summaries, key)

	keys, err := svc.SummaryKeys(ctx)
	require.NoError(t, err)
	require.Contains(t, keys, key)

	_, err = svc.Refresh(ctx, testScope, key.WarehouseID, key.MaterialTypeID)
	require.NoError(t, err)
	summary, ok := repo.summaries[key]
	require.True(t, ok)
	require.InDelta(t, lot.CurrentQuantity, summary.TotalQuantity, 0.0001)
}

func TestTerminalLotsAreImmutable(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	closed := openTestLot(t, svc, 50, 5)
	_, err := svc.CloseLot(ctx, testScope, closed.ID)
	require.NoError(t, err)

	sold := openTestLot(t, svc, 20, 5)
	_, err = svc.Dispatch(ctx, testScope, DispatchInput{LotID: sold.ID, Quantity: 20})
	require.NoError(t, err)

	for _, lotID := range []int64{closed.ID, sold.ID} {
		_, err = svc.Dispatch(ctx, testScope, DispatchInput{LotID: lotID, Quantity: 1})
		require.ErrorIs(t, err, shared.ErrInvalidState)

		_, err = svc.Adjust(ctx, testScope, AdjustInput{LotID: lotID, Delta: -1, Reason: "late fix"})
		require.ErrorIs(t, err, shared.ErrInvalidState)

		notes := "late annotation"
		_, err = svc.UpdateLotMetadata(ctx, testScope, lotID, MetadataUpdate{Notes: &notes})
		require.ErrorIs(t, err, shared.ErrInvalidState)
	}

	_, err = svc.CloseLot(ctx, testScope, closed.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestCloseLotExcludesFromSummary(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	keep := openTestLot(t, svc, 100, 2)
	drop := openTestLot(t, svc, 40, 2)

	_, err := svc.CloseLot(ctx, testScope, drop.ID)
	require.NoError(t, err)

	summary := repo.summaries[SummaryKey{TenantID: 1, WarehouseID: 1, MaterialTypeID: 10}]
	require.InDelta(t, 100.0, summary.TotalQuantity, 0.0001)
	require.InDelta(t, 200.0, summary.TotalValue, 0.0001)

	stored, err := repo.GetLot(ctx, testScope.TenantID, drop.ID)
	require.NoError(t, err)
	require.Equal(t, LotStatusClosed, stored.Status)
	require.InDelta(t, 40.0, stored.CurrentQuantity, 0.0001)
	_ = keep
}

func TestRefreshIsIdempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	openTestLot(t, svc, 30, 10)
	openTestLot(t, svc, 70, 10)

	first, err := svc.Refresh(ctx, testScope, 1, 10)
	require.NoError(t, err)
	second, err := svc.Refresh(ctx, testScope, 1, 10)
	require.NoError(t, err)

	require.InDelta(t, first.TotalQuantity, second.TotalQuantity, 0.0001)
	require.InDelta(t, 100.0, second.TotalQuantity, 0.0001)
	require.InDelta(t, 1000.0, second.TotalValue, 0.0001)
}

func TestValuationIgnoresCachedSummary(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	openTestLot(t, svc, 10, 100)
	openTestLot(t, svc, 5, 100)

	// Poison the cache. Valuation must not read it.
	repo.summaries[SummaryKey{TenantID: 1, WarehouseID: 1, MaterialTypeID: 10}] = Summary{TotalValue: -1}

	valuation, err := svc.Valuation(ctx, testScope, 0)
	require.NoError(t, err)
	require.Equal(t, 2, valuation.TotalLots)
	require.InDelta(t, 1500.0, valuation.TotalValue, 0.0001)
}

func TestLedgerReplayMatchesBalances(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	lot := openTestLot(t, svc, 100, 5)

	_, err := svc.Dispatch(ctx, testScope, DispatchInput{LotID: lot.ID, Quantity: 30})
	require.NoError(t, err)
	_, err = svc.Adjust(ctx, testScope, AdjustInput{LotID: lot.ID, Delta: -10, Reason: "moisture loss"})
	require.NoError(t, err)
	_, err = svc.Adjust(ctx, testScope, AdjustInput{LotID: lot.ID, Delta: 5, Reason: "recount"})
	require.NoError(t, err)

	drifts, err := svc.IntegrityScan(ctx)
	require.NoError(t, err)
	require.Empty(t, drifts)

	// Corrupt a balance directly. The scan must report it.
	stored := repo.lots[lot.ID]
	stored.CurrentQuantity += 3
	repo.lots[lot.ID] = stored

	drifts, err = svc.IntegrityScan(ctx)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	require.Equal(t, lot.ID, drifts[0].LotID)
}

func TestUpdateLotMetadata(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	lot := openTestLot(t, svc, 10, 5)

	value := 123.45
	notes := "grade A after inspection"
	updated, err := svc.UpdateLotMetadata(ctx, testScope, lot.ID, MetadataUpdate{ValueOfMaterial: &value, Notes: &notes})
	require.NoError(t, err)
	require.NotNil(t, updated.ValueOfMaterial)
	require.InDelta(t, 123.45, *updated.ValueOfMaterial, 0.0001)

	// Annotation only: no movement appended, balance untouched.
	movements, err := repo.ListLotMovements(ctx, testScope.TenantID, lot.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	stored, err := repo.GetLot(ctx, testScope.TenantID, lot.ID)
	require.NoError(t, err)
	require.InDelta(t, 10.0, stored.CurrentQuantity, 0.0001)
}

func TestTenantIsolation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	lot := openTestLot(t, svc, 10, 5)

	other := shared.Scope{TenantID: 2, ActorID: 1}
	_, err := svc.GetLot(ctx, other, lot.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.Dispatch(ctx, other, DispatchInput{LotID: lot.ID, Quantity: 1})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestConcurrentDispatchesNeverOversell(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	lot := openTestLot(t, svc, 100, 1)

	var wg sync.WaitGroup
	errs := make(chan error, 25)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Dispatch(ctx, testScope, DispatchInput{LotID: lot.ID, Quantity: 10})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if !shared.IsTypedError(err) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 10, succeeded)

	stored, err := repo.GetLot(ctx, testScope.TenantID, lot.ID)
	require.NoError(t, err)
	require.InDelta(t, 0.0, stored.CurrentQuantity, 0.0001)
	require.Equal(t, LotStatusSold, stored.Status)

	drifts, err := svc.IntegrityScan(ctx)
	require.NoError(t, err)
	require.Empty(t, drifts)
}

func TestListLotsRejectsUnknownStatus(t *testing.T) {
	svc, _ := newTestService()
	_, _, err := svc.ListLots(context.Background(), testScope, LotFilter{Status: "shipped"})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestListMovementsRejectsUnknownType(t *testing.T) {
	svc, _ := newTestService()
	_, _, err := svc.ListMovements(context.Background(), testScope, MovementFilter{Type: "teleport"})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestGenerateNumberPrefix(t *testing.T) {
	n := generateNumber("LOT")
	require.Contains(t, n, "LOT-")
	require.NotEqual(t, n, fmt.Sprintf("LOT-%d", 0))
}
