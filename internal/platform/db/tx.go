package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reclaim-erp/reclaim-erp/internal/shared"
)

// WithTx executes a function within a transaction using the RepeatableRead
// isolation level. Ledger writes and summary recomputation rely on this
// boundary instead of in-process locks.
//
// Under RepeatableRead, the loser of two transactions racing on one row is
// aborted by Postgres with a serialization failure once the winner commits.
// That loss is mapped to shared.ErrConflict so callers answer 409 and the
// client can retry against the committed balance.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return mapRetryable(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapRetryable(fmt.Errorf("platform/db: commit tx: %w", err))
	}

	return nil
}

// SQLSTATE 40001 is serialization_failure, 40P01 is deadlock_detected.
// Both mean the transaction lost a race and is safe to retry.
func mapRetryable(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return fmt.Errorf("%w: concurrent update, retry the request", shared.ErrConflict)
	}
	return err
}
