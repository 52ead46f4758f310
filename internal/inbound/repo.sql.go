package inbound

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

// Repository persists goods receipts in PostgreSQL.
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

const receiptColumns = `id, tenant_id, number, COALESCE(job_id,0), COALESCE(deal_id,0), COALESCE(supplier_id,0),
material_type_id, warehouse_id, quantity, unit_of_measure, cost_per_unit, status, received_at,
COALESCE(approved_by,0), approved_at, COALESCE(reject_reason,''), COALESCE(lot_id,0), COALESCE(notes,'')`

// WithTx runs the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *Repository) GetReceipt(ctx context.Context, tenantID, receiptID int64) (GoodsReceipt, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+receiptColumns+` FROM goods_receipts WHERE tenant_id=$1 AND id=$2`, tenantID, receiptID)
	return scanReceipt(row)
}

func (r *Repository) ListReceipts(ctx context.Context, tenantID int64, filter ReceiptFilter) ([]GoodsReceipt, int, error) {
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
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM goods_receipts `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	query := fmt.Sprintf(`SELECT `+receiptColumns+` FROM goods_receipts %s ORDER BY received_at DESC, id DESC LIMIT $%d OFFSET $%d`, where, pos, pos+1)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	receipts := []GoodsReceipt{}
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, 0, err
		}
		receipts = append(receipts, receipt)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return receipts, total, nil
}

func (r *txRepository) GetReceiptForUpdate(ctx context.Context, tenantID, receiptID int64) (GoodsReceipt, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+receiptColumns+` FROM goods_receipts WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, receiptID)
	return scanReceipt(row)
}

func (r *txRepository) InsertReceipt(ctx context.Context, receipt GoodsReceipt) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO goods_receipts (tenant_id, number, job_id, deal_id, supplier_id, material_type_id,
warehouse_id, quantity, unit_of_measure, cost_per_unit, status, received_at, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING id`,
		receipt.TenantID, receipt.Number, nullInt(receipt.JobID), nullInt(receipt.DealID), nullInt(receipt.SupplierID),
		receipt.MaterialTypeID, receipt.WarehouseID, receipt.Quantity, receipt.UnitOfMeasure, receipt.CostPerUnit,
		string(receipt.Status), receipt.ReceivedAt, receipt.Notes).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("%w: receipt number %s", shared.ErrConflict, receipt.Number)
		}
		return 0, err
	}
	return id, nil
}

func (r *txRepository) UpdateReceiptDecision(ctx context.Context, receipt GoodsReceipt) error {
	tag, err := r.tx.Exec(ctx, `UPDATE goods_receipts
SET status=$1, approved_by=$2, approved_at=$3, reject_reason=$4, lot_id=$5
WHERE tenant_id=$6 AND id=$7`,
		string(receipt.Status), nullInt(receipt.ApprovedBy), receipt.ApprovedAt, receipt.RejectReason,
		nullInt(receipt.LotID), receipt.TenantID, receipt.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: receipt %d", shared.ErrNotFound, receipt.ID)
	}
	return nil
}

func scanReceipt(row pgx.Row) (GoodsReceipt, error) {
	var receipt GoodsReceipt
	var status string
	err := row.Scan(&receipt.ID, &receipt.TenantID, &receipt.Number, &receipt.JobID, &receipt.DealID, &receipt.SupplierID,
		&receipt.MaterialTypeID, &receipt.WarehouseID, &receipt.Quantity, &receipt.UnitOfMeasure, &receipt.CostPerUnit,
		&status, &receipt.ReceivedAt, &receipt.ApprovedBy, &receipt.ApprovedAt, &receipt.RejectReason, &receipt.LotID, &receipt.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GoodsReceipt{}, shared.ErrNotFound
		}
		return GoodsReceipt{}, err
	}
	receipt.Status = ReceiptStatus(status)
	return receipt, nil
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
