package warehouses

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/reclaim-erp/reclaim-erp/internal/platform/httpx"
	"github.com/reclaim-erp/reclaim-erp/internal/shared"
)

// Handler wires HTTP endpoints for warehouses.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs warehouses handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers warehouse routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/warehouses", h.handleList)
	r.Post("/warehouses", h.handleCreate)
	r.Get("/warehouses/{warehouseID}", h.handleGet)
	r.Put("/warehouses/{warehouseID}", h.handleUpdate)
	r.Delete("/warehouses/{warehouseID}", h.handleDeactivate)
}

type warehouseRequest struct {
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	CapacityKg float64 `json:"capacity_kg"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	q := r.URL.Query()
	filters := ListFilters{Search: q.Get("q")}
	if raw := q.Get("active"); raw != "" {
		active := raw == "true"
		filters.Active = &active
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.Limit, _ = strconv.Atoi(q.Get("limit"))

	warehouses, total, err := h.service.List(r.Context(), scope, filters)
	if err != nil {
		h.logger.Error("list warehouses", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": warehouses, "total": total})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	id, _ := strconv.ParseInt(chi.URLParam(r, "warehouseID"), 10, 64)
	warehouse, err := h.service.Get(r.Context(), scope, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, warehouse)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	var req warehouseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed JSON body")
		return
	}
	warehouse, err := h.service.Create(r.Context(), scope, Warehouse{
		Code:       req.Code,
		Name:       req.Name,
		Address:    req.Address,
		CapacityKg: req.CapacityKg,
	})
	if err != nil {
		h.logger.Error("create warehouse", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, warehouse)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	id, _ := strconv.ParseInt(chi.URLParam(r, "warehouseID"), 10, 64)
	var req warehouseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed JSON body")
		return
	}
	err := h.service.Update(r.Context(), scope, id, Warehouse{
		Code:       req.Code,
		Name:       req.Name,
		Address:    req.Address,
		CapacityKg: req.CapacityKg,
	})
	if err != nil {
		h.logger.Error("update warehouse", slog.Int64("warehouse_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	id, _ := strconv.ParseInt(chi.URLParam(r, "warehouseID"), 10, 64)
	if err := h.service.Deactivate(r.Context(), scope, id); err != nil {
		h.logger.Error("deactivate warehouse", slog.Int64("warehouse_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
