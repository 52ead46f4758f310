package materials

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

// Repository describes material type persistence.
type Repository interface {
	List(ctx context.Context, tenantID int64, filters ListFilters) ([]MaterialType, int, error)
	Get(ctx context.Context, tenantID, id int64) (MaterialType, error)
	Create(ctx context.Context, material MaterialType) (MaterialType, error)
	Update(ctx context.Context, material MaterialType) error
	Deactivate(ctx context.Context, tenantID, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const columns = `id, tenant_id, code, name, category, default_unit, is_hazardous, COALESCE(hazard_class,''), recycling_rate, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, tenantID int64, filters ListFilters) ([]MaterialType, int, error) {
	query := `SELECT ` + columns + ` FROM material_types WHERE tenant_id = $1`
	countQuery := `SELECT COUNT(*) FROM material_types WHERE tenant_id = $1`
	args := []any{tenantID}
	argCount := 1

	if filters.Category != "" {
		argCount++
		clause := ` AND category = $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, filters.Category)
	}
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

	query += ` ORDER BY code`
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

	var materials []MaterialType
	for rows.Next() {
		var m MaterialType
		if err := rows.Scan(&m.ID, &m.TenantID, &m.Code, &m.Name, &m.Category, &m.DefaultUnit, &m.IsHazardous, &m.HazardClass, &m.RecyclingRate, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, 0, err
		}
		materials = append(materials, m)
	}
	return materials, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, tenantID, id int64) (MaterialType, error) {
	var m MaterialType
	err := r.pool.QueryRow(ctx, `SELECT `+columns+` FROM material_types WHERE tenant_id = $1 AND id = $2`, tenantID, id).
		Scan(&m.ID, &m.TenantID, &m.Code, &m.Name, &m.Category, &m.DefaultUnit, &m.IsHazardous, &m.HazardClass, &m.RecyclingRate, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return MaterialType{}, shared.ErrNotFound
	}
	return m, err
}

func (r *repository) Create(ctx context.Context, material MaterialType) (MaterialType, error) {
	now := time.Now()
	err := r.pool.QueryRow(ctx, `INSERT INTO material_types (tenant_id, code, name, category, default_unit, is_hazardous, hazard_class, recycling_rate, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,TRUE,$9,$9) RETURNING id, is_active, created_at, updated_at`,
		material.TenantID, material.Code, material.Name, material.Category, material.DefaultUnit, material.IsHazardous, material.HazardClass, material.RecyclingRate, now).
		Scan(&material.ID, &material.IsActive, &material.CreatedAt, &material.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return MaterialType{}, shared.ErrConflict
		}
		return MaterialType{}, err
	}
	return material, nil
}

func (r *repository) Update(ctx context.Context, material MaterialType) error {
	tag, err := r.pool.Exec(ctx, `UPDATE material_types
SET code=$1, name=$2, category=$3, default_unit=$4, is_hazardous=$5, hazard_class=$6, recycling_rate=$7, updated_at=NOW()
WHERE tenant_id=$8 AND id=$9`,
		material.Code, material.Name, material.Category, material.DefaultUnit, material.IsHazardous, material.HazardClass, material.RecyclingRate, material.TenantID, material.ID)
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

// Deactivate soft-deletes the material type. Lots may still reference it,
// so rows are never removed.
func (r *repository) Deactivate(ctx context.Context, tenantID, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE material_types SET is_active=FALSE, updated_at=NOW() WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
