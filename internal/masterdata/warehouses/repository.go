package warehouses

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reclaim-erp/reclaim-erp/internal/shared"
)

// Repository describes warehouse persistence.
type Repository interface {
	List(ctx context.Context, tenantID int64, filters ListFilters) ([]Warehouse, int, error)
	Get(ctx context.Context, tenantID, id int64) (Warehouse, error)
	Create(ctx context.Context, warehouse Warehouse) (Warehouse, error)
	Update(ctx context.Context, warehouse Warehouse) error
	Deactivate(ctx context.Context, tenantID, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const columns = `id, tenant_id, code, name, COALESCE(address,''), COALESCE(capacity_kg,0), is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, tenantID int64, filters ListFilters) ([]Warehouse, int, error) {
	query := `SELECT ` + columns + ` FROM warehouses WHERE tenant_id = $1`
	countQuery := `SELECT COUNT(*) FROM warehouses WHERE tenant_id = $1`
	args := []any{tenantID}
	argCount := 1

	if filters.Active != nil {
		argCount++
		clause := ` AND is_active = $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, *filters.Active)
	}
	if filters.Search != "" {
		argCount++
		clause := ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR code ILIKE $` + strconv.Itoa(argCount) + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var warehouses []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.TenantID, &w.Code, &w.Name, &w.Address, &w.CapacityKg, &w.IsActive, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, 0, err
		}
		warehouses = append(warehouses, w)
	}
	return warehouses, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, tenantID, id int64) (Warehouse, error) {
	var w Warehouse
	err := r.pool.QueryRow(ctx, `SELECT `+columns+` FROM warehouses WHERE tenant_id = $1 AND id = $2`, tenantID, id).
		Scan(&w.ID, &w.TenantID, &w.Code, &w.Name, &w.Address, &w.CapacityKg, &w.IsActive, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Warehouse{}, shared.ErrNotFound
	}
	return w, err
}

func (r *repository) Create(ctx context.Context, warehouse Warehouse) (Warehouse, error) {
	now := time.Now()
	err := r.pool.QueryRow(ctx, `INSERT INTO warehouses (tenant_id, code, name, address, capacity_kg, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,TRUE,$6,$6) RETURNING id, is_active, created_at, updated_at`,
		warehouse.TenantID, warehouse.Code, warehouse.Name, warehouse.Address, warehouse.CapacityKg, now).
		Scan(&warehouse.ID, &warehouse.IsActive, &warehouse.CreatedAt, &warehouse.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Warehouse{}, shared.ErrConflict
		}
		return Warehouse{}, err
	}
	return warehouse, nil
}

func (r *repository) Update(ctx context.Context, warehouse Warehouse) error {
	tag, err := r.pool.Exec(ctx, `UPDATE warehouses
SET code=$1, name=$2, address=$3, capacity_kg=$4, updated_at=NOW()
WHERE tenant_id=$5 AND id=$6`,
		warehouse.Code, warehouse.Name, warehouse.Address, warehouse.CapacityKg, warehouse.TenantID, warehouse.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrConflict
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Deactivate soft-deletes the warehouse. Lots and movements keep their
// references, so rows are never removed.
func (r *repository) Deactivate(ctx context.Context, tenantID, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE warehouses SET is_active=FALSE, updated_at=NOW() WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
