package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/reclaim-erp/reclaim-erp/internal/inventory"
	"github.com/reclaim-erp/reclaim-erp/internal/shared"
)

const reconcileConcurrency = 4

// InventoryTasks binds the inventory background handlers to their
// dependencies.
type InventoryTasks struct {
	service     *inventory.Service
	idempotency *shared.IdempotencyStore
	metrics     DriftMetrics
	logger      *slog.Logger
}

// DriftMetrics records ledger drift findings.
type DriftMetrics interface {
	SetLedgerDrift(count int)
}

// NewInventoryTasks constructs the handlers.
func NewInventoryTasks(service *inventory.Service, idem *shared.IdempotencyStore, metrics DriftMetrics, logger *slog.Logger) *InventoryTasks {
	return &InventoryTasks{service: service, idempotency: idem, metrics: metrics, logger: logger}
}

// HandleSummaryReconcile recomputes every summary row from its active
// lots. The per-key recompute is idempotent, so a crashed run simply
// repeats work on the next schedule.
func (t *InventoryTasks) HandleSummaryReconcile(ctx context.Context, task *asynq.Task) error {
	var payload SummaryReconcilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	keys, err := t.service.SummaryKeys(ctx)
	if err != nil {
		return err
	}
	var refreshed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileConcurrency)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			scope := shared.Scope{TenantID: key.TenantID}
			if _, err := t.service.Refresh(gctx, scope, key.WarehouseID, key.MaterialTypeID); err != nil {
				// A single bad key must not abort the sweep.
				t.logger.Error("summary reconcile",
					slog.Int64("tenant_id", key.TenantID),
					slog.Int64("warehouse_id", key.WarehouseID),
					slog.Int64("material_type_id", key.MaterialTypeID),
					slog.Any("error", err))
				return nil
			}
			refreshed.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	t.logger.Info("summary reconcile finished",
		slog.Int("keys", len(keys)),
		slog.Int64("refreshed", refreshed.Load()),
		slog.Time("scheduled_for", payload.ScheduledFor))
	return nil
}

// HandleLedgerIntegrity replays each lot's movement ledger and reports
// lots whose stored balance the ledger cannot reproduce.
func (t *InventoryTasks) HandleLedgerIntegrity(ctx context.Context, task *asynq.Task) error {
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	drifts, err := t.service.IntegrityScan(ctx)
	if err != nil {
		return err
	}
	if t.metrics != nil {
		t.metrics.SetLedgerDrift(len(drifts))
	}
	for _, drift := range drifts {
		t.logger.Warn("ledger drift detected",
			slog.Int64("lot_id", drift.LotID),
			slog.String("lot_number", drift.LotNumber),
			slog.Float64("balance", drift.CurrentQuantity),
			slog.Float64("ledger", drift.LedgerQuantity))
	}
	if len(drifts) == 0 {
		t.logger.Info("ledger integrity clean")
	}
	return nil
}

// HandleIdempotencyCleanup prunes keys older than the retention window.
func (t *InventoryTasks) HandleIdempotencyCleanup(ctx context.Context, task *asynq.Task) error {
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := time.Duration(payload.RetentionHours) * time.Hour
	if retention <= 0 {
		retention = 72 * time.Hour
	}
	if err := t.idempotency.Cleanup(ctx, retention); err != nil {
		return err
	}
	t.logger.Info("idempotency cleanup finished", slog.Duration("retention", retention))
	return nil
}
