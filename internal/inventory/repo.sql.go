package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reclaim-erp/reclaim-erp/internal/platform/db"
	"github.com/reclaim-erp/reclaim-erp/internal/shared"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

const lotColumns = `id, tenant_id, lot_number, COALESCE(job_id,0), COALESCE(deal_id,0), material_type_id, warehouse_id,
initial_quantity, current_quantity, unit_of_measure, cost_per_unit, total_cost, value_of_material, status, opened_at, closed_at, COALESCE(notes,'')`

const movementColumns = `id, tenant_id, COALESCE(lot_id,0), warehouse_id, material_type_id, transaction_type, transaction_date,
COALESCE(reference_number,''), COALESCE(reference_type,''), COALESCE(reference_id,0), quantity, COALESCE(unit_of_measure,''),
COALESCE(cost_per_unit,0), COALESCE(total_cost,0), COALESCE(from_warehouse_id,0), COALESCE(to_warehouse_id,0), COALESCE(notes,''), COALESCE(created_by,0)`

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *Repository) GetLot(ctx context.Context, tenantID, lotID int64) (Lot, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+lotColumns+` FROM lots WHERE tenant_id=$1 AND id=$2`, tenantID, lotID)
	return scanLot(row)
}

func (r *Repository) ListLotMovements(ctx context.Context, tenantID, lotID int64) ([]StockMovement, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+movementColumns+` FROM stock_movements
WHERE tenant_id=$1 AND lot_id=$2
ORDER BY transaction_date DESC, id DESC`, tenantID, lotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMovements(rows)
}

func (r *Repository) ListLots(ctx context.Context, tenantID int64, filter LotFilter) ([]Lot, int, error) {
	where := "WHERE tenant_id=$1"
	args := []any{tenantID}
	pos := 2
	if filter.Status != "" {
		where += fmt.Sprintf(" AND status=$%d", pos)
		args = append(args, string(filter.Status))
		pos++
	}
	if filter.WarehouseID != 0 {
		where += fmt.Sprintf(" AND warehouse_id=$%d", pos)
		args = append(args, filter.WarehouseID)
		pos++
	}
	if filter.JobID != 0 {
		where += fmt.Sprintf(" AND job_id=$%d", pos)
		args = append(args, filter.JobID)
		pos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM lots `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	query := fmt.Sprintf(`SELECT `+lotColumns+` FROM lots %s ORDER BY opened_at DESC, id DESC LIMIT $%d OFFSET $%d`, where, pos, pos+1)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	lots := []Lot{}
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, 0, err
		}
		lots = append(lots, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return lots, total, nil
}

func (r *Repository) ListMovements(ctx context.Context, tenantID int64, filter MovementFilter) ([]StockMovement, int, error) {
	where := "WHERE tenant_id=$1"
	args := []any{tenantID}
	pos := 2
	if filter.LotID != 0 {
		where += fmt.Sprintf(" AND lot_id=$%d", pos)
		args = append(args, filter.LotID)
		pos++
	}
	if filter.WarehouseID != 0 {
		where += fmt.Sprintf(" AND warehouse_id=$%d", pos)
		args = append(args, filter.WarehouseID)
		pos++
	}
	if filter.Type != "" {
		where += fmt.Sprintf(" AND transaction_type=$%d", pos)
		args = append(args, string(filter.Type))
		pos++
	}
	if !filter.From.IsZero() {
		where += fmt.Sprintf(" AND transaction_date >= $%d", pos)
		args = append(args, filter.From)
		pos++
	}
	if !filter.To.IsZero() {
		where += fmt.Sprintf(" AND transaction_date <= $%d", pos)
		args = append(args, filter.To)
		pos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_movements `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	query := fmt.Sprintf(`SELECT `+movementColumns+` FROM stock_movements %s ORDER BY transaction_date DESC, id DESC LIMIT $%d OFFSET $%d`, where, pos, pos+1)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	movements, err := collectMovements(rows)
	if err != nil {
		return nil, 0, err
	}
	return movements, total, nil
}

func (r *Repository) ListSummaries(ctx context.Context, tenantID int64, filter SummaryFilter) ([]Summary, int, error) {
	where := "WHERE tenant_id=$1"
	args := []any{tenantID}
	pos := 2
	if filter.WarehouseID != 0 {
		where += fmt.Sprintf(" AND warehouse_id=$%d", pos)
		args = append(args, filter.WarehouseID)
		pos++
	}
	if filter.MaterialTypeID != 0 {
		where += fmt.Sprintf(" AND material_type_id=$%d", pos)
		args = append(args, filter.MaterialTypeID)
		pos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_summaries `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	query := fmt.Sprintf(`SELECT tenant_id, warehouse_id, material_type_id, total_quantity, total_value, last_updated
FROM inventory_summaries %s ORDER BY last_updated DESC LIMIT $%d OFFSET $%d`, where, pos, pos+1)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.TenantID, &s.WarehouseID, &s.MaterialTypeID, &s.TotalQuantity, &s.TotalValue, &s.LastUpdated); err != nil {
			return nil, 0, err
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return summaries, total, nil
}

func (r *Repository) ActiveLots(ctx context.Context, tenantID int64, warehouseID int64) ([]Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM lots WHERE tenant_id=$1 AND status IN ('open','work_in_progress')`
	args := []any{tenantID}
	if warehouseID != 0 {
		query += ` AND warehouse_id=$2`
		args = append(args, warehouseID)
	}
	query += ` ORDER BY opened_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lots := []Lot{}
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

// ListSummaryKeys derives rollup keys from the lots themselves rather than
// from inventory_summaries, so a key whose summary row was never written,
// or was lost, is still recomputed by the sweep.
func (r *Repository) ListSummaryKeys(ctx context.Context) ([]SummaryKey, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT tenant_id, warehouse_id, material_type_id FROM lots ORDER BY tenant_id, warehouse_id, material_type_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []SummaryKey{}
	for rows.Next() {
		var k SummaryKey
		if err := rows.Scan(&k.TenantID, &k.WarehouseID, &k.MaterialTypeID); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (r *Repository) ScanLedgerDrift(ctx context.Context) ([]LotDrift, error) {
	rows, err := r.pool.Query(ctx, `SELECT l.id, l.lot_number, l.current_quantity, COALESCE(SUM(m.quantity),0) AS ledger_qty
FROM lots l
LEFT JOIN stock_movements m ON m.lot_id = l.id
GROUP BY l.id, l.lot_number, l.current_quantity
HAVING ABS(l.current_quantity - COALESCE(SUM(m.quantity),0)) > 0.0001
ORDER BY l.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drifts := []LotDrift{}
	for rows.Next() {
		var d LotDrift
		if err := rows.Scan(&d.LotID, &d.LotNumber, &d.CurrentQuantity, &d.LedgerQuantity); err != nil {
			return nil, err
		}
		drifts = append(drifts, d)
	}
	return drifts, rows.Err()
}

func (r *txRepository) WarehouseExists(ctx context.Context, tenantID, warehouseID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM warehouses WHERE tenant_id=$1 AND id=$2 AND is_active)`, tenantID, warehouseID).Scan(&exists)
	return exists, err
}

func (r *txRepository) MaterialTypeExists(ctx context.Context, tenantID, materialTypeID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM material_types WHERE tenant_id=$1 AND id=$2 AND is_active)`, tenantID, materialTypeID).Scan(&exists)
	return exists, err
}

func (r *txRepository) GetLotForUpdate(ctx context.Context, tenantID, lotID int64) (Lot, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+lotColumns+` FROM lots WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, lotID)
	return scanLot(row)
}

func (r *txRepository) InsertLot(ctx context.Context, lot Lot) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO lots (tenant_id, lot_number, job_id, deal_id, material_type_id, warehouse_id,
initial_quantity, current_quantity, unit_of_measure, cost_per_unit, total_cost, value_of_material, status, opened_at, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15) RETURNING id`,
		lot.TenantID, lot.LotNumber, nullInt(lot.JobID), nullInt(lot.DealID), lot.MaterialTypeID, lot.WarehouseID,
		lot.InitialQuantity, lot.CurrentQuantity, lot.UnitOfMeasure, lot.CostPerUnit, lot.TotalCost,
		lot.ValueOfMaterial, string(lot.Status), lot.OpenedAt, lot.Notes).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: lot number %s", shared.ErrConflict, lot.LotNumber)
		}
		return 0, err
	}
	return id, nil
}

func (r *txRepository) UpdateLotBalance(ctx context.Context, lot Lot) error {
	tag, err := r.tx.Exec(ctx, `UPDATE lots SET current_quantity=$1, status=$2, closed_at=$3 WHERE tenant_id=$4 AND id=$5`,
		lot.CurrentQuantity, string(lot.Status), lot.ClosedAt, lot.TenantID, lot.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: lot %d", shared.ErrNotFound, lot.ID)
	}
	return nil
}

func (r *txRepository) UpdateLotMetadata(ctx context.Context, lot Lot) error {
	tag, err := r.tx.Exec(ctx, `UPDATE lots SET value_of_material=$1, notes=$2 WHERE tenant_id=$3 AND id=$4`,
		lot.ValueOfMaterial, lot.Notes, lot.TenantID, lot.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: lot %d", shared.ErrNotFound, lot.ID)
	}
	return nil
}

func (r *txRepository) InsertMovement(ctx context.Context, m StockMovement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (tenant_id, lot_id, warehouse_id, material_type_id, transaction_type,
transaction_date, reference_number, reference_type, reference_id, quantity, unit_of_measure, cost_per_unit, total_cost,
from_warehouse_id, to_warehouse_id, notes, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,NOW()) RETURNING id`,
		m.TenantID, nullInt(m.LotID), m.WarehouseID, m.MaterialTypeID, string(m.Type),
		m.TransactionDate, m.ReferenceNumber, m.ReferenceType, nullInt(m.ReferenceID), m.Quantity, m.UnitOfMeasure,
		m.CostPerUnit, m.TotalCost, nullInt(m.FromWarehouseID), nullInt(m.ToWarehouseID), m.Notes, nullInt(m.CreatedBy)).Scan(&id)
	return id, err
}

func (r *txRepository) RecomputeSummary(ctx context.Context, tenantID, warehouseID, materialTypeID int64) (Summary, error) {
	summary := Summary{TenantID: tenantID, WarehouseID: warehouseID, MaterialTypeID: materialTypeID}
	err := r.tx.QueryRow(ctx, `INSERT INTO inventory_summaries (tenant_id, warehouse_id, material_type_id, total_quantity, total_value, last_updated)
SELECT $1, $2, $3, COALESCE(SUM(current_quantity),0), COALESCE(SUM(total_cost),0), NOW()
FROM lots
WHERE tenant_id=$1 AND warehouse_id=$2 AND material_type_id=$3 AND status IN ('open','work_in_progress')
ON CONFLICT (tenant_id, warehouse_id, material_type_id)
DO UPDATE SET total_quantity=EXCLUDED.total_quantity, total_value=EXCLUDED.total_value, last_updated=EXCLUDED.last_updated
RETURNING total_quantity, total_value, last_updated`,
		tenantID, warehouseID, materialTypeID).Scan(&summary.TotalQuantity, &summary.TotalValue, &summary.LastUpdated)
	return summary, err
}

func scanLot(row pgx.Row) (Lot, error) {
	var lot Lot
	var status string
	err := row.Scan(&lot.ID, &lot.TenantID, &lot.LotNumber, &lot.JobID, &lot.DealID, &lot.MaterialTypeID, &lot.WarehouseID,
		&lot.InitialQuantity, &lot.CurrentQuantity, &lot.UnitOfMeasure, &lot.CostPerUnit, &lot.TotalCost,
		&lot.ValueOfMaterial, &status, &lot.OpenedAt, &lot.ClosedAt, &lot.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lot{}, shared.ErrNotFound
		}
		return Lot{}, err
	}
	lot.Status = LotStatus(status)
	return lot, nil
}

func collectMovements(rows pgx.Rows) ([]StockMovement, error) {
	movements := []StockMovement{}
	for rows.Next() {
		var m StockMovement
		var txType string
		if err := rows.Scan(&m.ID, &m.TenantID, &m.LotID, &m.WarehouseID, &m.MaterialTypeID, &txType, &m.TransactionDate,
			&m.ReferenceNumber, &m.ReferenceType, &m.ReferenceID, &m.Quantity, &m.UnitOfMeasure,
			&m.CostPerUnit, &m.TotalCost, &m.FromWarehouseID, &m.ToWarehouseID, &m.Notes, &m.CreatedBy); err != nil {
			return nil, err
		}
		m.Type = TransactionType(txType)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
