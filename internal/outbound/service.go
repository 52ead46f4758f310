package outbound

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/reclaim-erp/reclaim-erp/internal/inventory"
	"github.com/reclaim-erp/reclaim-erp/internal/shared"
)

// Service orchestrates the dispatch workflow.
type Service struct {
	repo        RepositoryPort
	inventory   InventoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
}

// NewService constructs outbound service.
func NewService(repo RepositoryPort, inv InventoryPort, audit AuditPort, idem *shared.IdempotencyStore) *Service {
	return &Service{repo: repo, inventory: inv, audit: audit, idempotency: idem}
}

// CreateOrder registers a pending dispatch order against a lot. The lot
// balance is validated up front for an early error, but quantity is only
// taken when the dispatch is confirmed.
func (s *Service) CreateOrder(ctx context.Context, scope shared.Scope, input CreateOrderInput) (DispatchOrder, error) {
	if input.LotID == 0 {
		return DispatchOrder{}, fmt.Errorf("%w: lot required", shared.ErrInvalidArgument)
	}
	if input.Quantity <= 0 {
		return DispatchOrder{}, fmt.Errorf("%w: quantity must be positive", shared.ErrInvalidArgument)
	}
	if input.PricePerUnit < 0 {
		return DispatchOrder{}, fmt.Errorf("%w: price per unit must be >= 0", shared.ErrInvalidArgument)
	}

	detail, err := s.inventory.GetLot(ctx, scope, input.LotID)
	if err != nil {
		return DispatchOrder{}, err
	}
	lot := detail.Lot
	if lot.Status.Terminal() {
		return DispatchOrder{}, fmt.Errorf("%w: lot %s is %s", shared.ErrInvalidState, lot.LotNumber, lot.Status)
	}
	if input.WarehouseID != 0 && input.WarehouseID != lot.WarehouseID {
		return DispatchOrder{}, fmt.Errorf("%w: lot %s is held in warehouse %d", shared.ErrInvalidArgument, lot.LotNumber, lot.WarehouseID)
	}
	if input.Quantity > lot.CurrentQuantity {
		return DispatchOrder{}, &shared.InsufficientStockError{
			Requested: input.Quantity,
			Available: lot.CurrentQuantity,
			Unit:      lot.UnitOfMeasure,
		}
	}

	order := DispatchOrder{
		TenantID:      scope.TenantID,
		Number:        defaultString(input.Number, generateNumber("DSP")),
		LotID:         input.LotID,
		WarehouseID:   lot.WarehouseID,
		BuyerID:       input.BuyerID,
		Quantity:      input.Quantity,
		UnitOfMeasure: defaultString(input.UnitOfMeasure, lot.UnitOfMeasure),
		PricePerUnit:  input.PricePerUnit,
		Status:        OrderStatusPending,
		CreatedAt:     time.Now().UTC(),
		Notes:         input.Notes,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		return nil
	})
	if err != nil {
		return DispatchOrder{}, err
	}
	s.recordAudit(ctx, scope, "outbound:create", order.ID, map[string]any{"number": order.Number, "lot_id": order.LotID})
	return order, nil
}

// ConfirmDispatch releases the ordered quantity from the lot. The balance
// check happens again under the lot row lock, so two confirmations racing
// over the same lot cannot oversell it. The order number guards the
// idempotency key against double submission.
func (s *Service) ConfirmDispatch(ctx context.Context, scope shared.Scope, orderID int64) (DispatchOrder, error) {
	current, err := s.repo.GetOrder(ctx, scope.TenantID, orderID)
	if err != nil {
		return DispatchOrder{}, err
	}

	key := uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("DSP:%d:%s", scope.TenantID, current.Number))).String()
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "outbound.dispatch"); err != nil {
			return DispatchOrder{}, err
		}
		inserted = true
	}

	var order DispatchOrder
	// The stock debit commits inside the inventory service on its own
	// connection. A crash between that commit and this one leaves the
	// order pending with the key held: recovery is deleting the
	// idempotency key and reversing the debit with an adjustment.
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, scope.TenantID, orderID)
		if err != nil {
			return err
		}
		if order.Status != OrderStatusPending {
			return fmt.Errorf("%w: order %s is %s", shared.ErrInvalidState, order.Number, order.Status)
		}

		now := time.Now().UTC()
		if _, err := s.inventory.Dispatch(ctx, scope, inventory.DispatchInput{
			LotID:           order.LotID,
			WarehouseID:     order.WarehouseID,
			Quantity:        order.Quantity,
			ReferenceNumber: order.Number,
			ReferenceType:   "DISPATCH",
			ReferenceID:     order.ID,
			TransactionDate: now,
			Notes:           order.Notes,
		}); err != nil {
			return err
		}

		order.Status = OrderStatusDispatched
		order.DispatchedAt = &now
		return tx.UpdateOrder(ctx, order)
	})
	if err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, key)
		}
		return DispatchOrder{}, err
	}

	s.recordAudit(ctx, scope, "outbound:dispatch", order.ID, map[string]any{
		"number": order.Number,
		"lot_id": order.LotID,
		"qty":    order.Quantity,
	})
	return order, nil
}

// CompleteDelivery records proof of delivery. No stock moves; the lot was
// already debited at dispatch confirmation.
func (s *Service) CompleteDelivery(ctx context.Context, scope shared.Scope, orderID int64, input DeliveryInput) (DispatchOrder, error) {
	var order DispatchOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, scope.TenantID, orderID)
		if err != nil {
			return err
		}
		if order.Status != OrderStatusDispatched {
			return fmt.Errorf("%w: order %s is %s", shared.ErrInvalidState, order.Number, order.Status)
		}
		now := time.Now().UTC()
		order.Status = OrderStatusDelivered
		order.DeliveredAt = &now
		order.VehicleNumber = defaultString(input.VehicleNumber, order.VehicleNumber)
		order.DriverName = defaultString(input.DriverName, order.DriverName)
		order.Notes = defaultString(input.Notes, order.Notes)
		return tx.UpdateOrder(ctx, order)
	})
	if err != nil {
		return DispatchOrder{}, err
	}
	s.recordAudit(ctx, scope, "outbound:deliver", order.ID, map[string]any{"number": order.Number})
	return order, nil
}

// CancelOrder voids a pending order. Confirmed dispatches cannot be
// cancelled; the stock already left the lot.
func (s *Service) CancelOrder(ctx context.Context, scope shared.Scope, orderID int64, reason string) (DispatchOrder, error) {
	var order DispatchOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, scope.TenantID, orderID)
		if err != nil {
			return err
		}
		if order.Status != OrderStatusPending {
			return fmt.Errorf("%w: order %s is %s", shared.ErrInvalidState, order.Number, order.Status)
		}
		order.Status = OrderStatusCancelled
		order.Notes = defaultString(reason, order.Notes)
		return tx.UpdateOrder(ctx, order)
	})
	if err != nil {
		return DispatchOrder{}, err
	}
	s.recordAudit(ctx, scope, "outbound:cancel", order.ID, map[string]any{"number": order.Number, "reason": reason})
	return order, nil
}

// GetOrder returns one dispatch order.
func (s *Service) GetOrder(ctx context.Context, scope shared.Scope, orderID int64) (DispatchOrder, error) {
	return s.repo.GetOrder(ctx, scope.TenantID, orderID)
}

// ListOrders returns dispatch orders ordered by created_at descending.
func (s *Service) ListOrders(ctx context.Context, scope shared.Scope, filter OrderFilter) ([]DispatchOrder, shared.Pagination, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, shared.Pagination{}, fmt.Errorf("%w: unknown status %q", shared.ErrInvalidArgument, filter.Status)
	}
	orders, total, err := s.repo.ListOrders(ctx, scope.TenantID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return orders, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

func (s *Service) recordAudit(ctx context.Context, scope shared.Scope, action string, orderID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		TenantID: scope.TenantID,
		ActorID:  scope.ActorID,
		Action:   action,
		Entity:   "dispatch_order",
		EntityID: fmt.Sprintf("%d", orderID),
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
