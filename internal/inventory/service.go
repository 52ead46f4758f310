package inventory

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/reclaim-erp/reclaim-erp/internal/shared"
)

const qtyEpsilon = 0.0001

// Service coordinates lot, ledger and summary operations. Each mutating
// operation runs inside one repository transaction so the lot row, the
// appended movement and the recomputed summary commit or roll back together.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	metrics MetricsPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, metrics MetricsPort) *Service {
	return &Service{repo: repo, audit: audit, metrics: metrics}
}

// OpenLot records approved material intake: a new lot, its first inbound
// ledger entry and a refreshed summary for the (warehouse, material) key.
func (s *Service) OpenLot(ctx context.Context, scope shared.Scope, input OpenLotInput) (Lot, error) {
	if input.WarehouseID == 0 || input.MaterialTypeID == 0 {
		return Lot{}, fmt.Errorf("%w: warehouse and material type required", shared.ErrInvalidArgument)
	}
	if input.Quantity <= 0 {
		return Lot{}, fmt.Errorf("%w: quantity must be positive", shared.ErrInvalidArgument)
	}
	if input.CostPerUnit < 0 {
		return Lot{}, fmt.Errorf("%w: cost per unit must be >= 0", shared.ErrInvalidArgument)
	}

	now := time.Now().UTC()
	lot := Lot{
		TenantID:        scope.TenantID,
		LotNumber:       generateNumber("LOT"),
		JobID:           input.JobID,
		DealID:          input.DealID,
		MaterialTypeID:  input.MaterialTypeID,
		WarehouseID:     input.WarehouseID,
		InitialQuantity: input.Quantity,
		CurrentQuantity: input.Quantity,
		UnitOfMeasure:   defaultString(input.UnitOfMeasure, "kg"),
		CostPerUnit:     input.CostPerUnit,
		TotalCost:       input.Quantity * input.CostPerUnit,
		Status:          LotStatusOpen,
		OpenedAt:        now,
		Notes:           input.Notes,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.WarehouseExists(ctx, scope.TenantID, input.WarehouseID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: warehouse %d", shared.ErrNotFound, input.WarehouseID)
		}
		ok, err = tx.MaterialTypeExists(ctx, scope.TenantID, input.MaterialTypeID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: material type %d", shared.ErrNotFound, input.MaterialTypeID)
		}

		lotID, err := tx.InsertLot(ctx, lot)
		if err != nil {
			return err
		}
		lot.ID = lotID

		movement := StockMovement{
			TenantID:        scope.TenantID,
			LotID:           lotID,
			WarehouseID:     input.WarehouseID,
			MaterialTypeID:  input.MaterialTypeID,
			Type:            TransactionInbound,
			TransactionDate: defaultTime(input.TransactionDate, now),
			ReferenceNumber: input.ReferenceNumber,
			ReferenceType:   defaultString(input.ReferenceType, "GRN"),
			ReferenceID:     input.ReferenceID,
			Quantity:        input.Quantity,
			UnitOfMeasure:   lot.UnitOfMeasure,
			CostPerUnit:     input.CostPerUnit,
			TotalCost:       lot.TotalCost,
			Notes:           input.Notes,
			CreatedBy:       scope.ActorID,
		}
		if _, err := tx.InsertMovement(ctx, movement); err != nil {
			return err
		}

		_, err = tx.RecomputeSummary(ctx, scope.TenantID, input.WarehouseID, input.MaterialTypeID)
		return err
	})
	if err != nil {
		return Lot{}, err
	}

	s.observe(TransactionInbound)
	s.recordAudit(ctx, scope, "inventory:open_lot", lot.ID, map[string]any{
		"lot_number":   lot.LotNumber,
		"warehouse_id": lot.WarehouseID,
		"qty":          lot.InitialQuantity,
	})
	return lot, nil
}

// Dispatch releases quantity from a lot. The balance check, decrement,
// terminal transition at zero, outbound ledger entry and summary refresh
// run under one transaction with the lot row locked.
func (s *Service) Dispatch(ctx context.Context, scope shared.Scope, input DispatchInput) (Lot, error) {
	if input.Quantity <= 0 {
		return Lot{}, fmt.Errorf("%w: quantity must be positive", shared.ErrInvalidArgument)
	}

	var lot Lot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		lot, err = tx.GetLotForUpdate(ctx, scope.TenantID, input.LotID)
		if err != nil {
			return err
		}
		if input.WarehouseID != 0 && input.WarehouseID != lot.WarehouseID {
			return fmt.Errorf("%w: lot %s is held in warehouse %d", shared.ErrInvalidArgument, lot.LotNumber, lot.WarehouseID)
		}
		if lot.Status.Terminal() {
			return fmt.Errorf("%w: lot %s is %s", shared.ErrInvalidState, lot.LotNumber, lot.Status)
		}
		if input.Quantity > lot.CurrentQuantity+qtyEpsilon {
			return &shared.InsufficientStockError{
				Requested: input.Quantity,
				Available: lot.CurrentQuantity,
				Unit:      lot.UnitOfMeasure,
			}
		}

		now := time.Now().UTC()
		lot.CurrentQuantity -= input.Quantity
		if math.Abs(lot.CurrentQuantity) < qtyEpsilon {
			lot.CurrentQuantity = 0
			lot.Status = LotStatusSold
			lot.ClosedAt = &now
		}
		if err := tx.UpdateLotBalance(ctx, lot); err != nil {
			return err
		}

		movement := StockMovement{
			TenantID:        scope.TenantID,
			LotID:           lot.ID,
			WarehouseID:     lot.WarehouseID,
			MaterialTypeID:  lot.MaterialTypeID,
			Type:            TransactionOutbound,
			TransactionDate: defaultTime(input.TransactionDate, now),
			ReferenceNumber: input.ReferenceNumber,
			ReferenceType:   defaultString(input.ReferenceType, "OUTBOUND"),
			ReferenceID:     input.ReferenceID,
			Quantity:        -input.Quantity,
			UnitOfMeasure:   lot.UnitOfMeasure,
			Notes:           input.Notes,
			CreatedBy:       scope.ActorID,
		}
		if _, err := tx.InsertMovement(ctx, movement); err != nil {
			return err
		}

		_, err = tx.RecomputeSummary(ctx, scope.TenantID, lot.WarehouseID, lot.MaterialTypeID)
		return err
	})
	if err != nil {
		return Lot{}, err
	}

	s.observe(TransactionOutbound)
	s.recordAudit(ctx, scope, "inventory:dispatch", lot.ID, map[string]any{
		"lot_number": lot.LotNumber,
		"qty":        input.Quantity,
		"status":     string(lot.Status),
	})
	return lot, nil
}

// Adjust applies a signed correction to a lot balance. It is the only path
// that moves quantity in either direction outside intake and dispatch, and
// it is always explained by a reason.
func (s *Service) Adjust(ctx context.Context, scope shared.Scope, input AdjustInput) (Lot, error) {
	if math.Abs(input.Delta) < qtyEpsilon {
		return Lot{}, fmt.Errorf("%w: delta must be non zero", shared.ErrInvalidArgument)
	}
	if input.Reason == "" {
		return Lot{}, fmt.Errorf("%w: reason required", shared.ErrInvalidArgument)
	}

	var lot Lot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		lot, err = tx.GetLotForUpdate(ctx, scope.TenantID, input.LotID)
		if err != nil {
			return err
		}
		if lot.Status.Terminal() {
			return fmt.Errorf("%w: lot %s is %s", shared.ErrInvalidState, lot.LotNumber, lot.Status)
		}

		newQuantity := lot.CurrentQuantity + input.Delta
		if newQuantity < -qtyEpsilon {
			return &shared.InsufficientStockError{
				Requested: -input.Delta,
				Available: lot.CurrentQuantity,
				Unit:      lot.UnitOfMeasure,
			}
		}
		if newQuantity > lot.InitialQuantity+qtyEpsilon {
			// Raising the balance above the original intake is a re-intake,
			// not a correction.
			return fmt.Errorf("%w: adjustment would exceed initial quantity %.2f", shared.ErrInvalidArgument, lot.InitialQuantity)
		}
		if math.Abs(newQuantity) < qtyEpsilon {
			newQuantity = 0
		}
		lot.CurrentQuantity = newQuantity
		if err := tx.UpdateLotBalance(ctx, lot); err != nil {
			return err
		}

		now := time.Now().UTC()
		movement := StockMovement{
			TenantID:        scope.TenantID,
			LotID:           lot.ID,
			WarehouseID:     lot.WarehouseID,
			MaterialTypeID:  lot.MaterialTypeID,
			Type:            TransactionAdjustment,
			TransactionDate: now,
			ReferenceNumber: generateNumber("ADJ"),
			Quantity:        input.Delta,
			UnitOfMeasure:   lot.UnitOfMeasure,
			Notes:           input.Reason,
			CreatedBy:       scope.ActorID,
		}
		if _, err := tx.InsertMovement(ctx, movement); err != nil {
			return err
		}

		_, err = tx.RecomputeSummary(ctx, scope.TenantID, lot.WarehouseID, lot.MaterialTypeID)
		return err
	})
	if err != nil {
		return Lot{}, err
	}

	s.observe(TransactionAdjustment)
	s.recordAudit(ctx, scope, "inventory:adjust", lot.ID, map[string]any{
		"lot_number": lot.LotNumber,
		"delta":      input.Delta,
		"reason":     input.Reason,
	})
	return lot, nil
}

// CloseLot performs the explicit terminal transition. The balance is left
// untouched, but the lot stops contributing to summaries, so the rollup is
// recomputed in the same transaction.
func (s *Service) CloseLot(ctx context.Context, scope shared.Scope, lotID int64) (Lot, error) {
	var lot Lot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		lot, err = tx.GetLotForUpdate(ctx, scope.TenantID, lotID)
		if err != nil {
			return err
		}
		if lot.Status.Terminal() {
			return fmt.Errorf("%w: lot %s already %s", shared.ErrInvalidState, lot.LotNumber, lot.Status)
		}
		now := time.Now().UTC()
		lot.Status = LotStatusClosed
		lot.ClosedAt = &now
		if err := tx.UpdateLotBalance(ctx, lot); err != nil {
			return err
		}
		_, err = tx.RecomputeSummary(ctx, scope.TenantID, lot.WarehouseID, lot.MaterialTypeID)
		return err
	})
	if err != nil {
		return Lot{}, err
	}

	s.recordAudit(ctx, scope, "inventory:close_lot", lot.ID, map[string]any{"lot_number": lot.LotNumber})
	return lot, nil
}

// UpdateLotMetadata edits the operator-entered fields of an active lot.
// The value-of-material figure is an annotation: it generates no ledger
// movement and never participates in summary value.
func (s *Service) UpdateLotMetadata(ctx context.Context, scope shared.Scope, lotID int64, update MetadataUpdate) (Lot, error) {
	var lot Lot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		lot, err = tx.GetLotForUpdate(ctx, scope.TenantID, lotID)
		if err != nil {
			return err
		}
		if lot.Status.Terminal() {
			return fmt.Errorf("%w: cannot update %s lot", shared.ErrInvalidState, lot.Status)
		}
		if update.ValueOfMaterial != nil {
			lot.ValueOfMaterial = update.ValueOfMaterial
		}
		if update.Notes != nil {
			lot.Notes = *update.Notes
		}
		return tx.UpdateLotMetadata(ctx, lot)
	})
	if err != nil {
		return Lot{}, err
	}
	return lot, nil
}

// GetLot returns a lot with its movements ordered newest first.
func (s *Service) GetLot(ctx context.Context, scope shared.Scope, lotID int64) (LotDetail, error) {
	lot, err := s.repo.GetLot(ctx, scope.TenantID, lotID)
	if err != nil {
		return LotDetail{}, err
	}
	movements, err := s.repo.ListLotMovements(ctx, scope.TenantID, lotID)
	if err != nil {
		return LotDetail{}, err
	}
	return LotDetail{Lot: lot, Movements: movements}, nil
}

// ListLots returns lots ordered by opened_at descending.
func (s *Service) ListLots(ctx context.Context, scope shared.Scope, filter LotFilter) ([]Lot, shared.Pagination, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown status %q", shared.ErrInvalidArgument, filter.Status)
	}
	lots, total, err := s.repo.ListLots(ctx, scope.TenantID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return lots, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// ListMovements returns raw ledger entries for reporting collaborators.
func (s *Service) ListMovements(ctx context.Context, scope shared.Scope, filter MovementFilter) ([]StockMovement, shared.Pagination, error) {
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown transaction type %q", shared.ErrInvalidArgument, filter.Type)
	}
	movements, total, err := s.repo.ListMovements(ctx, scope.TenantID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return movements, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// ListSummaries returns the cached per (warehouse, material type) rollups.
func (s *Service) ListSummaries(ctx context.Context, scope shared.Scope, filter SummaryFilter) ([]Summary, shared.Pagination, error) {
	summaries, total, err := s.repo.ListSummaries(ctx, scope.TenantID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return summaries, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Refresh recomputes one summary row from active lots. Safe to call
// repeatedly; this and the in-transaction recompute are the only writers
// of summary rows.
func (s *Service) Refresh(ctx context.Context, scope shared.Scope, warehouseID, materialTypeID int64) (Summary, error) {
	if warehouseID == 0 || materialTypeID == 0 {
		return Summary{}, fmt.Errorf("%w: warehouse and material type required", shared.ErrInvalidArgument)
	}
	var summary Summary
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		summary, err = tx.RecomputeSummary(ctx, scope.TenantID, warehouseID, materialTypeID)
		return err
	})
	return summary, err
}

// Valuation sums active lots directly, bypassing the cached summaries so
// callers can detect drift.
func (s *Service) Valuation(ctx context.Context, scope shared.Scope, warehouseID int64) (Valuation, error) {
	lots, err := s.repo.ActiveLots(ctx, scope.TenantID, warehouseID)
	if err != nil {
		return Valuation{}, err
	}
	var total float64
	for _, lot := range lots {
		total += lot.TotalCost
	}
	return Valuation{Lots: lots, TotalLots: len(lots), TotalValue: total}, nil
}

// IntegrityScan replays every lot's ledger and reports balances the
// movement sum cannot reproduce. Summing movements signed by type from
// zero must land exactly on current_quantity.
func (s *Service) IntegrityScan(ctx context.Context) ([]LotDrift, error) {
	return s.repo.ScanLedgerDrift(ctx)
}

// SummaryKeys lists every rollup key across tenants for background
// reconciliation. Keys come from the lots, so a missing summary row is
// created on the next sweep.
func (s *Service) SummaryKeys(ctx context.Context) ([]SummaryKey, error) {
	return s.repo.ListSummaryKeys(ctx)
}

func (s *Service) observe(txType TransactionType) {
	if s.metrics != nil {
		s.metrics.ObserveMovement(string(txType))
	}
}

func (s *Service) recordAudit(ctx context.Context, scope shared.Scope, action string, lotID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		TenantID: scope.TenantID,
		ActorID:  scope.ActorID,
		Action:   action,
		Entity:   "lot",
		EntityID: fmt.Sprintf("%d", lotID),
		Meta:     meta,
	})
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func defaultString(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func defaultTime(value time.Time, fallback time.Time) time.Time {
	if value.IsZero() {
		return fallback
	}
	return value
}
