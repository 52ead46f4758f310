package inventory

import (
	"context"

	"github.com/reclaim-erp/reclaim-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetLot(ctx context.Context, tenantID, lotID int64) (Lot, error)
	ListLotMovements(ctx context.Context, tenantID, lotID int64) ([]StockMovement, error)
	ListLots(ctx context.Context, tenantID int64, filter LotFilter) ([]Lot, int, error)
	ListMovements(ctx context.Context, tenantID int64, filter MovementFilter) ([]StockMovement, int, error)
	ListSummaries(ctx context.Context, tenantID int64, filter SummaryFilter) ([]Summary, int, error)
	ActiveLots(ctx context.Context, tenantID int64, warehouseID int64) ([]Lot, error)
	ListSummaryKeys(ctx context.Context) ([]SummaryKey, error)
	ScanLedgerDrift(ctx context.Context) ([]LotDrift, error)
}

// TxRepository exposes the operations used inside a single transaction.
// Every mutating workflow reads the lot under a row lock, validates,
// writes the lot, appends the ledger row and recomputes the summary
// before the transaction commits.
type TxRepository interface {
	WarehouseExists(ctx context.Context, tenantID, warehouseID int64) (bool, error)
	MaterialTypeExists(ctx context.Context, tenantID, materialTypeID int64) (bool, error)
	GetLotForUpdate(ctx context.Context, tenantID, lotID int64) (Lot, error)
	InsertLot(ctx context.Context, lot Lot) (int64, error)
	UpdateLotBalance(ctx context.Context, lot Lot) error
	UpdateLotMetadata(ctx context.Context, lot Lot) error
	InsertMovement(ctx context.Context, movement StockMovement) (int64, error)
	RecomputeSummary(ctx context.Context, tenantID, warehouseID, materialTypeID int64) (Summary, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort abstracts movement metrics.
type MetricsPort interface {
	ObserveMovement(txType string)
}
