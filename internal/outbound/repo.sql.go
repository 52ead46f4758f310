package outbound

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

// Repository persists dispatch orders in PostgreSQL.
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

const orderColumns = `id, tenant_id, number, lot_id, warehouse_id, COALESCE(buyer_id,0), quantity, unit_of_measure,
COALESCE(price_per_unit,0), status, created_at, dispatched_at, delivered_at,
COALESCE(vehicle_number,''), COALESCE(driver_name,''), COALESCE(notes,'')`

// WithTx runs the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *Repository) GetOrder(ctx context.Context, tenantID, orderID int64) (DispatchOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM dispatch_orders WHERE tenant_id=$1 AND id=$2`, tenantID, orderID)
	return scanOrder(row)
}

func (r *Repository) ListOrders(ctx context.Context, tenantID int64, filter OrderFilter) ([]DispatchOrder, int, error) {
	where := "WHERE tenant_id=$1"
	args := []any{tenantID}
	pos := 2
	if filter.Status != "" {
		where += fmt.Sprintf(" AND status=$%d", pos)
		args = append(args, string(filter.Status))
		pos++
	}
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

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dispatch_orders `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	query := fmt.Sprintf(`SELECT `+orderColumns+` FROM dispatch_orders %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, where, pos, pos+1)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	orders := []DispatchOrder{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *txRepository) GetOrderForUpdate(ctx context.Context, tenantID, orderID int64) (DispatchOrder, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM dispatch_orders WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, orderID)
	return scanOrder(row)
}

func (r *txRepository) InsertOrder(ctx context.Context, order DispatchOrder) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO dispatch_orders (tenant_id, number, lot_id, warehouse_id, buyer_id, quantity,
unit_of_measure, price_per_unit, status, created_at, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
		order.TenantID, order.Number, order.LotID, order.WarehouseID, nullInt(order.BuyerID), order.Quantity,
		order.UnitOfMeasure, order.PricePerUnit, string(order.Status), order.CreatedAt, order.Notes).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("%w: order number %s", shared.ErrConflict, order.Number)
		}
		return 0, err
	}
	return id, nil
}

func (r *txRepository) UpdateOrder(ctx context.Context, order DispatchOrder) error {
	tag, err := r.tx.Exec(ctx, `UPDATE dispatch_orders
SET status=$1, dispatched_at=$2, delivered_at=$3, vehicle_number=$4, driver_name=$5, notes=$6
WHERE tenant_id=$7 AND id=$8`,
		string(order.Status), order.DispatchedAt, order.DeliveredAt, order.VehicleNumber, order.DriverName, order.Notes,
		order.TenantID, order.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %d", shared.ErrNotFound, order.ID)
	}
	return nil
}

func scanOrder(row pgx.Row) (DispatchOrder, error) {
	var order DispatchOrder
	var status string
	err := row.Scan(&order.ID, &order.TenantID, &order.Number, &order.LotID, &order.WarehouseID, &order.BuyerID,
		&order.Quantity, &order.UnitOfMeasure, &order.PricePerUnit, &status, &order.CreatedAt,
		&order.DispatchedAt, &order.DeliveredAt, &order.VehicleNumber, &order.DriverName, &order.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DispatchOrder{}, shared.ErrNotFound
		}
		return DispatchOrder{}, err
	}
	order.Status = OrderStatus(status)
	return order, nil
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
