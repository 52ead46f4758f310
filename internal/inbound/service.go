package inbound

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/reclaim-erp/reclaim-erp/internal/inventory"
	"github.com/reclaim-erp/reclaim-erp/internal/shared"
)

// Service orchestrates the goods receipt workflow.
type Service struct {
	repo        RepositoryPort
	inventory   InventoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
}

// NewService constructs inbound service.
func NewService(repo RepositoryPort, inv InventoryPort, audit AuditPort, idem *shared.IdempotencyStore) *Service {
	return &Service{repo: repo, inventory: inv, audit: audit, idempotency: idem}
}

// CreateReceipt registers a pending goods receipt. No stock exists until
// the receipt is approved.
func (s *Service) CreateReceipt(ctx context.Context, scope shared.Scope, input CreateReceiptInput) (GoodsReceipt, error) {
	if input.MaterialTypeID == 0 || input.WarehouseID == 0 {
		return GoodsReceipt{}, fmt.Errorf("%w: warehouse and material type required", shared.ErrInvalidArgument)
	}
	if input.Quantity <= 0 {
		return GoodsReceipt{}, fmt.Errorf("%w: quantity must be positive", shared.ErrInvalidArgument)
	}
	if input.CostPerUnit < 0 {
		return GoodsReceipt{}, fmt.Errorf("%w: cost per unit must be >= 0", shared.ErrInvalidArgument)
	}

	receipt := GoodsReceipt{
		TenantID:       scope.TenantID,
		Number:         defaultString(input.Number, generateNumber("GRN")),
		JobID:          input.JobID,
		DealID:         input.DealID,
		SupplierID:     input.SupplierID,
		MaterialTypeID: input.MaterialTypeID,
		WarehouseID:    input.WarehouseID,
		Quantity:       input.Quantity,
		UnitOfMeasure:  defaultString(input.UnitOfMeasure, "kg"),
		CostPerUnit:    input.CostPerUnit,
		Status:         ReceiptStatusPending,
		ReceivedAt:     defaultTime(input.ReceivedAt),
		Notes:          input.Notes,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertReceipt(ctx, receipt)
		if err != nil {
			return err
		}
		receipt.ID = id
		return nil
	})
	if err != nil {
		return GoodsReceipt{}, err
	}
	s.recordAudit(ctx, scope, "inbound:create", receipt.ID, map[string]any{"number": receipt.Number})
	return receipt, nil
}

// ApproveReceipt accepts a pending receipt and opens the backing lot.
// The receipt number guards the idempotency key, so retried approvals
// cannot create a second lot.
func (s *Service) ApproveReceipt(ctx context.Context, scope shared.Scope, receiptID int64) (GoodsReceipt, error) {
	var receipt GoodsReceipt
	current, err := s.repo.GetReceipt(ctx, scope.TenantID, receiptID)
	if err != nil {
		return GoodsReceipt{}, err
	}

	key := uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("GRN:%d:%s", scope.TenantID, current.Number))).String()
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "inbound.grn"); err != nil {
			return GoodsReceipt{}, err
		}
		inserted = true
	}

	// The lot opens inside the inventory service on its own connection.
	// A crash between that commit and this one leaves the receipt pending
	// with the key held: recovery is deleting the idempotency key and
	// closing the orphaned lot with an adjustment.
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		receipt, err = tx.GetReceiptForUpdate(ctx, scope.TenantID, receiptID)
		if err != nil {
			return err
		}
		if receipt.Status != ReceiptStatusPending {
			return fmt.Errorf("%w: receipt %s is %s", shared.ErrInvalidState, receipt.Number, receipt.Status)
		}

		lot, err := s.inventory.OpenLot(ctx, scope, inventory.OpenLotInput{
			JobID:           receipt.JobID,
			DealID:          receipt.DealID,
			MaterialTypeID:  receipt.MaterialTypeID,
			WarehouseID:     receipt.WarehouseID,
			Quantity:        receipt.Quantity,
			UnitOfMeasure:   receipt.UnitOfMeasure,
			CostPerUnit:     receipt.CostPerUnit,
			ReferenceNumber: receipt.Number,
			ReferenceType:   "GRN",
			ReferenceID:     receipt.ID,
			TransactionDate: receipt.ReceivedAt,
			Notes:           receipt.Notes,
		})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		receipt.Status = ReceiptStatusApproved
		receipt.ApprovedBy = scope.ActorID
		receipt.ApprovedAt = &now
		receipt.LotID = lot.ID
		return tx.UpdateReceiptDecision(ctx, receipt)
	})
	if err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, key)
		}
		return GoodsReceipt{}, err
	}

	s.recordAudit(ctx, scope, "inbound:approve", receipt.ID, map[string]any{
		"number": receipt.Number,
		"lot_id": receipt.LotID,
	})
	return receipt, nil
}

// RejectReceipt declines a pending receipt. No lot or movement is created.
func (s *Service) RejectReceipt(ctx context.Context, scope shared.Scope, receiptID int64, reason string) (GoodsReceipt, error) {
	if reason == "" {
		return GoodsReceipt{}, fmt.Errorf("%w: reject reason required", shared.ErrInvalidArgument)
	}
	var receipt GoodsReceipt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		receipt, err = tx.GetReceiptForUpdate(ctx, scope.TenantID, receiptID)
		if err != nil {
			return err
		}
		if receipt.Status != ReceiptStatusPending {
			return fmt.Errorf("%w: receipt %s is %s", shared.ErrInvalidState, receipt.Number, receipt.Status)
		}
		now := time.Now().UTC()
		receipt.Status = ReceiptStatusRejected
		receipt.ApprovedBy = scope.ActorID
		receipt.ApprovedAt = &now
		receipt.RejectReason = reason
		return tx.UpdateReceiptDecision(ctx, receipt)
	})
	if err != nil {
		return GoodsReceipt{}, err
	}
	s.recordAudit(ctx, scope, "inbound:reject", receipt.ID, map[string]any{
		"number": receipt.Number,
		"reason": reason,
	})
	return receipt, nil
}

// GetReceipt returns one receipt.
func (s *Service) GetReceipt(ctx context.Context, scope shared.Scope, receiptID int64) (GoodsReceipt, error) {
	return s.repo.GetReceipt(ctx, scope.TenantID, receiptID)
}

// ListReceipts returns receipts ordered by received_at descending.
func (s *Service) ListReceipts(ctx context.Context, scope shared.Scope, filter ReceiptFilter) ([]GoodsReceipt, shared.Pagination, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown status %q", shared.ErrInvalidArgument, filter.Status)
	}
	receipts, total, err := s.repo.ListReceipts(ctx, scope.TenantID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return receipts, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

func (s *Service) recordAudit(ctx context.Context, scope shared.Scope, action string, receiptID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		TenantID: scope.TenantID,
		ActorID:  scope.ActorID,
		Action:   action,
		Entity:   "goods_receipt",
		EntityID: fmt.Sprintf("%d", receiptID),
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

func defaultTime(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now().UTC()
	}
	return value
}
