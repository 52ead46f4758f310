package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reclaim-erp/reclaim-erp/internal/inbound"
	"github.com/reclaim-erp/reclaim-erp/internal/inventory"
	"github.com/reclaim-erp/reclaim-erp/internal/masterdata/materials"
	"github.com/reclaim-erp/reclaim-erp/internal/masterdata/warehouses"
	"github.com/reclaim-erp/reclaim-erp/internal/observability"
	"github.com/reclaim-erp/reclaim-erp/internal/outbound"
	"github.com/reclaim-erp/reclaim-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	InventoryHandler  *inventory.Handler
	InboundHandler    *inbound.Handler
	OutboundHandler   *outbound.Handler
	MaterialsHandler  *materials.Handler
	WarehousesHandler *warehouses.Handler
	JobHandler        *jobs.Handler
	Pool              *pgxpool.Pool
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Reclaim defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(TenantScope(params.Logger))

		api.Route("/inventory", func(sub chi.Router) {
			params.InventoryHandler.MountRoutes(sub)
		})
		api.Route("/inbound", func(sub chi.Router) {
			params.InboundHandler.MountRoutes(sub)
		})
		api.Route("/outbound", func(sub chi.Router) {
			params.OutboundHandler.MountRoutes(sub)
		})
		api.Route("/masterdata", func(sub chi.Router) {
			params.MaterialsHandler.MountRoutes(sub)
			params.WarehousesHandler.MountRoutes(sub)
		})
		if params.JobHandler != nil {
			api.Route("/jobs", func(sub chi.Router) {
				params.JobHandler.MountRoutes(sub)
			})
		}
	})

	return r
}
