package inbound

import (
	"context"

	"github.com/reclaim-erp/reclaim-erp/internal/inventory"
	"github.com/reclaim-erp/reclaim-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetReceipt(ctx context.Context, tenantID, receiptID int64) (GoodsReceipt, error)
	ListReceipts(ctx context.Context, tenantID int64, filter ReceiptFilter) ([]GoodsReceipt, int, error)
}

// TxRepository exposes transactional receipt writes.
type TxRepository interface {
	GetReceiptForUpdate(ctx context.Context, tenantID, receiptID int64) (GoodsReceipt, error)
	InsertReceipt(ctx context.Context, receipt GoodsReceipt) (int64, error)
	UpdateReceiptDecision(ctx context.Context, receipt GoodsReceipt) error
}

// InventoryPort exposes the required inventory integration.
type InventoryPort interface {
	OpenLot(ctx context.Context, scope shared.Scope, input inventory.OpenLotInput) (inventory.Lot, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}
