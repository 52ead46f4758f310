package materials

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/reclaim-erp/reclaim-erp/internal/platform/httpx"
	"github.com/reclaim-erp/reclaim-erp/internal/shared"
)

// Handler wires HTTP endpoints for material types.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs materials handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers material routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/materials", h.handleList)
	r.Post("/materials", h.handleCreate)
	r.Get("/materials/{materialID}", h.handleGet)
	r.Put("/materials/{materialID}", h.handleUpdate)
	r.Delete("/materials/{materialID}", h.handleDeactivate)
}

type materialRequest struct {
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	DefaultUnit   string  `json:"default_unit"`
	IsHazardous   bool    `json:"is_hazardous"`
	HazardClass   string  `json:"hazard_class"`
	RecyclingRate float64 `json:"recycling_rate"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	q := r.URL.Query()
	filters := ListFilters{
		Category: q.Get("category"),
		Search:   q.Get("q"),
	}
	if raw := q.Get("active"); raw != "" {
		active := raw == "true"
		filters.Active = &active
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.Limit, _ = strconv.Atoi(q.Get("limit"))

	materials, total, err := h.service.List(r.Context(), scope, filters)
	if err != nil {
		h.logger.Error("list materials", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": materials, "total": total})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	id, _ := strconv.ParseInt(chi.URLParam(r, "materialID"), 10, 64)
	material, err := h.service.Get(r.Context(), scope, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, material)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	var req materialRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed JSON body")
		return
	}
	material, err := h.service.Create(r.Context(), scope, MaterialType{
		Code:          req.Code,
		Name:          req.Name,
		Category:      req.Category,
		DefaultUnit:   req.DefaultUnit,
		IsHazardous:   req.IsHazardous,
		HazardClass:   req.HazardClass,
		RecyclingRate: req.RecyclingRate,
	})
	if err != nil {
		h.logger.Error("create material", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, material)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	id, _ := strconv.ParseInt(chi.URLParam(r, "materialID"), 10, 64)
	var req materialRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed JSON body")
		return
	}
	err := h.service.Update(r.Context(), scope, id, MaterialType{
		Code:          req.Code,
		Name:          req.Name,
		Category:      req.Category,
		DefaultUnit:   req.DefaultUnit,
		IsHazardous:   req.IsHazardous,
		HazardClass:   req.HazardClass,
		RecyclingRate: req.RecyclingRate,
	})
	if err != nil {
		h.logger.Error("update material", slog.Int64("material_id", id), slog.Any("error", err))
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
	id, _ := strconv.ParseInt(chi.URLParam(r, "materialID"), 10, 64)
	if err := h.service.Deactivate(r.Context(), scope, id); err != nil {
		h.logger.Error("deactivate material", slog.Int64("material_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
