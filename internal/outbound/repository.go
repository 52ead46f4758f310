package outbound

import (
	"context"

	"github.com/reclaim-erp/reclaim-erp/internal/inventory"
	"github.com/reclaim-erp/reclaim-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, tenantID, orderID int64) (DispatchOrder, error)
	ListOrders(ctx context.Context, tenantID int64, filter OrderFilter) ([]DispatchOrder, int, error)
}

// TxRepository exposes transactional order writes.
type TxRepository interface {
	GetOrderForUpdate(ctx context.Context, tenantID, orderID int64) (DispatchOrder, error)
	InsertOrder(ctx context.Context, order DispatchOrder) (int64, error)
	UpdateOrder(ctx context.Context, order DispatchOrder) error
}

// InventoryPort exposes the required inventory integration.
type InventoryPort interface {
	GetLot(ctx context.Context, scope shared.Scope, lotID int64) (inventory.LotDetail, error)
	Dispatch(ctx context.Context, scope shared.Scope, input inventory.DispatchInput) (inventory.Lot, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}
