package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/reclaim-erp/reclaim-erp/internal/platform/httpx"
	"github.com/reclaim-erp/reclaim-erp/internal/shared"
)

// Handler wires HTTP endpoints for the inventory module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/lots", h.handleListLots)
	r.Get("/lots/{lotID}", h.handleGetLot)
	r.Patch("/lots/{lotID}", h.handleUpdateLot)
	r.Post("/lots/{lotID}/adjust", h.handleAdjust)
	r.Post("/lots/{lotID}/close", h.handleCloseLot)
	r.Get("/movements", h.handleListMovements)
	r.Get("/summary", h.handleListSummaries)
	r.Post("/summary/refresh", h.handleRefresh)
	r.Get("/valuation", h.handleValuation)
}

type adjustRequest struct {
	Delta  float64 `json:"delta" validate:"required"`
	Reason string  `json:"reason" validate:"required,max=500"`
}

type updateLotRequest struct {
	ValueOfMaterial *float64 `json:"value_of_material" validate:"omitempty,gte=0"`
	Notes           *string  `json:"notes" validate:"omitempty,max=2000"`
}

type refreshRequest struct {
	WarehouseID    int64 `json:"warehouse_id" validate:"required,gt=0"`
	MaterialTypeID int64 `json:"material_type_id" validate:"required,gt=0"`
}

type listResponse struct {
	Data any               `json:"data"`
	Meta shared.Pagination `json:"meta"`
}

func (h *Handler) handleListLots(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	q := r.URL.Query()
	filter := LotFilter{
		Status:      LotStatus(q.Get("status")),
		WarehouseID: parseID(q.Get("warehouse_id")),
		JobID:       parseID(q.Get("job_id")),
		Page:        parsePage(q.Get("page")),
		PerPage:     parsePage(q.Get("per_page")),
	}
	lots, page, err := h.service.ListLots(r.Context(), scope, filter)
	if err != nil {
		h.logger.Error("list lots", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: lots, Meta: page})
}

func (h *Handler) handleGetLot(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	lotID := parseID(chi.URLParam(r, "lotID"))
	if lotID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "lot id must be numeric")
		return
	}
	detail, err := h.service.GetLot(r.Context(), scope, lotID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) handleUpdateLot(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	lotID := parseID(chi.URLParam(r, "lotID"))
	var req updateLotRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}
	lot, err := h.service.UpdateLotMetadata(r.Context(), scope, lotID, MetadataUpdate{
		ValueOfMaterial: req.ValueOfMaterial,
		Notes:           req.Notes,
	})
	if err != nil {
		h.logger.Error("update lot", slog.Int64("lot_id", lotID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lot)
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	lotID := parseID(chi.URLParam(r, "lotID"))
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}
	lot, err := h.service.Adjust(r.Context(), scope, AdjustInput{LotID: lotID, Delta: req.Delta, Reason: req.Reason})
	if err != nil {
		h.logger.Error("adjust lot", slog.Int64("lot_id", lotID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("lot adjusted",
		slog.Int64("lot_id", lotID),
		slog.Float64("delta", req.Delta))
	httpx.JSON(w, http.StatusOK, lot)
}

func (h *Handler) handleCloseLot(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	lotID := parseID(chi.URLParam(r, "lotID"))
	lot, err := h.service.CloseLot(r.Context(), scope, lotID)
	if err != nil {
		h.logger.Error("close lot", slog.Int64("lot_id", lotID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("lot closed", slog.Int64("lot_id", lotID), slog.String("lot_number", lot.LotNumber))
	httpx.JSON(w, http.StatusOK, lot)
}

func (h *Handler) handleListMovements(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	q := r.URL.Query()
	filter := MovementFilter{
		LotID:       parseID(q.Get("lot_id")),
		WarehouseID: parseID(q.Get("warehouse_id")),
		Type:        TransactionType(q.Get("type")),
		Page:        parsePage(q.Get("page")),
		PerPage:     parsePage(q.Get("per_page")),
	}
	var err error
	if filter.From, err = parseDate(q.Get("from"), false); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "from must be YYYY-MM-DD")
		return
	}
	if filter.To, err = parseDate(q.Get("to"), true); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "to must be YYYY-MM-DD")
		return
	}
	movements, page, err := h.service.ListMovements(r.Context(), scope, filter)
	if err != nil {
		h.logger.Error("list movements", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: movements, Meta: page})
}

func (h *Handler) handleListSummaries(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	q := r.URL.Query()
	filter := SummaryFilter{
		WarehouseID:    parseID(q.Get("warehouse_id")),
		MaterialTypeID: parseID(q.Get("material_type_id")),
		Page:           parsePage(q.Get("page")),
		PerPage:        parsePage(q.Get("per_page")),
	}
	summaries, page, err := h.service.ListSummaries(r.Context(), scope, filter)
	if err != nil {
		h.logger.Error("list summaries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: summaries, Meta: page})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	var req refreshRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}
	summary, err := h.service.Refresh(r.Context(), scope, req.WarehouseID, req.MaterialTypeID)
	if err != nil {
		h.logger.Error("refresh summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleValuation(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	valuation, err := h.service.Valuation(r.Context(), scope, parseID(r.URL.Query().Get("warehouse_id")))
	if err != nil {
		h.logger.Error("valuation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, valuation)
}

func parseID(raw string) int64 {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

func parsePage(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parseDate(raw string, endOfDay bool) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
