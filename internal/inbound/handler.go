package inbound

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

// Handler wires HTTP endpoints for the inbound module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs inbound handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers inbound routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/receipts", h.handleCreate)
	r.Get("/receipts", h.handleList)
	r.Get("/receipts/{receiptID}", h.handleGet)
	r.Post("/receipts/{receiptID}/approve", h.handleApprove)
	r.Post("/receipts/{receiptID}/reject", h.handleReject)
}

type createReceiptRequest struct {
	Number         string  `json:"number" validate:"omitempty,max=64"`
	JobID          int64   `json:"job_id" validate:"omitempty,gt=0"`
	DealID         int64   `json:"deal_id" validate:"omitempty,gt=0"`
	SupplierID     int64   `json:"supplier_id" validate:"omitempty,gt=0"`
	MaterialTypeID int64   `json:"material_type_id" validate:"required,gt=0"`
	WarehouseID    int64   `json:"warehouse_id" validate:"required,gt=0"`
	Quantity       float64 `json:"quantity" validate:"required,gt=0"`
	UnitOfMeasure  string  `json:"unit_of_measure" validate:"omitempty,max=16"`
	CostPerUnit    float64 `json:"cost_per_unit" validate:"gte=0"`
	ReceivedAt     string  `json:"received_at" validate:"omitempty,datetime=2006-01-02"`
	Notes          string  `json:"notes" validate:"omitempty,max=2000"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	var req createReceiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}
	var receivedAt time.Time
	if req.ReceivedAt != "" {
		receivedAt, _ = time.Parse("2006-01-02", req.ReceivedAt)
	}
	receipt, err := h.service.CreateReceipt(r.Context(), scope, CreateReceiptInput{
		Number:         req.Number,
		JobID:          req.JobID,
		DealID:         req.DealID,
		SupplierID:     req.SupplierID,
		MaterialTypeID: req.MaterialTypeID,
		WarehouseID:    req.WarehouseID,
		Quantity:       req.Quantity,
		UnitOfMeasure:  req.UnitOfMeasure,
		CostPerUnit:    req.CostPerUnit,
		ReceivedAt:     receivedAt,
		Notes:          req.Notes,
	})
	if err != nil {
		h.logger.Error("create receipt", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("receipt created", slog.String("number", receipt.Number))
	httpx.JSON(w, http.StatusCreated, receipt)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	q := r.URL.Query()
	filter := ReceiptFilter{
		Status:      ReceiptStatus(q.Get("status")),
		WarehouseID: parseID(q.Get("warehouse_id")),
		JobID:       parseID(q.Get("job_id")),
		Page:        parsePage(q.Get("page")),
		PerPage:     parsePage(q.Get("per_page")),
	}
	receipts, page, err := h.service.ListReceipts(r.Context(), scope, filter)
	if err != nil {
		h.logger.Error("list receipts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": receipts, "meta": page})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	receipt, err := h.service.GetReceipt(r.Context(), scope, parseID(chi.URLParam(r, "receiptID")))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, receipt)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	receiptID := parseID(chi.URLParam(r, "receiptID"))
	receipt, err := h.service.ApproveReceipt(r.Context(), scope, receiptID)
	if err != nil {
		h.logger.Error("approve receipt", slog.Int64("receipt_id", receiptID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("receipt approved",
		slog.String("number", receipt.Number),
		slog.Int64("lot_id", receipt.LotID))
	httpx.JSON(w, http.StatusOK, receipt)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	receiptID := parseID(chi.URLParam(r, "receiptID"))
	var req rejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}
	receipt, err := h.service.RejectReceipt(r.Context(), scope, receiptID, req.Reason)
	if err != nil {
		h.logger.Error("reject receipt", slog.Int64("receipt_id", receiptID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, receipt)
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
