package outbound

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/reclaim-erp/reclaim-erp/internal/platform/httpx"
	"github.com/reclaim-erp/reclaim-erp/internal/shared"
)

// Handler wires HTTP endpoints for the outbound module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs outbound handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers outbound routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/dispatches", h.handleCreate)
	r.Get("/dispatches", h.handleList)
	r.Get("/dispatches/{orderID}", h.handleGet)
	r.Post("/dispatches/{orderID}/confirm", h.handleConfirm)
	r.Post("/dispatches/{orderID}/deliver", h.handleDeliver)
	r.Post("/dispatches/{orderID}/cancel", h.handleCancel)
}

type createOrderRequest struct {
	Number        string  `json:"number" validate:"omitempty,max=64"`
	LotID         int64   `json:"lot_id" validate:"required,gt=0"`
	WarehouseID   int64   `json:"warehouse_id" validate:"omitempty,gt=0"`
	BuyerID       int64   `json:"buyer_id" validate:"omitempty,gt=0"`
	Quantity      float64 `json:"quantity" validate:"required,gt=0"`
	UnitOfMeasure string  `json:"unit_of_measure" validate:"omitempty,max=16"`
	PricePerUnit  float64 `json:"price_per_unit" validate:"gte=0"`
	Notes         string  `json:"notes" validate:"omitempty,max=2000"`
}

type deliveryRequest struct {
	VehicleNumber string `json:"vehicle_number" validate:"omitempty,max=32"`
	DriverName    string `json:"driver_name" validate:"omitempty,max=128"`
	Notes         string `json:"notes" validate:"omitempty,max=2000"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}
	order, err := h.service.CreateOrder(r.Context(), scope, CreateOrderInput{
		Number:        req.Number,
		LotID:         req.LotID,
		WarehouseID:   req.WarehouseID,
		BuyerID:       req.BuyerID,
		Quantity:      req.Quantity,
		UnitOfMeasure: req.UnitOfMeasure,
		PricePerUnit:  req.PricePerUnit,
		Notes:         req.Notes,
	})
	if err != nil {
		h.logger.Error("create dispatch order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("dispatch order created", slog.String("number", order.Number), slog.Int64("lot_id", order.LotID))
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	q := r.URL.Query()
	filter := OrderFilter{
		Status:      OrderStatus(q.Get("status")),
		LotID:       parseID(q.Get("lot_id")),
		WarehouseID: parseID(q.Get("warehouse_id")),
		Page:        parsePage(q.Get("page")),
		PerPage:     parsePage(q.Get("per_page")),
	}
	orders, page, err := h.service.ListOrders(r.Context(), scope, filter)
	if err != nil {
		h.logger.Error("list dispatch orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": orders, "meta": page})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	order, err := h.service.GetOrder(r.Context(), scope, parseID(chi.URLParam(r, "orderID")))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	orderID := parseID(chi.URLParam(r, "orderID"))
	order, err := h.service.ConfirmDispatch(r.Context(), scope, orderID)
	if err != nil {
		h.logger.Error("confirm dispatch", slog.Int64("order_id", orderID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("dispatch confirmed",
		slog.String("number", order.Number),
		slog.Float64("qty", order.Quantity))
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleDeliver(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	orderID := parseID(chi.URLParam(r, "orderID"))
	var req deliveryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
		return
	}
	order, err := h.service.CompleteDelivery(r.Context(), scope, orderID, DeliveryInput{
		VehicleNumber: req.VehicleNumber,
		DriverName:    req.DriverName,
		Notes:         req.Notes,
	})
	if err != nil {
		h.logger.Error("complete delivery", slog.Int64("order_id", orderID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	scope, ok := shared.ScopeFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "tenant scope missing")
		return
	}
	orderID := parseID(chi.URLParam(r, "orderID"))
	var req cancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed JSON body")
		return
	}
	order, err := h.service.CancelOrder(r.Context(), scope, orderID, req.Reason)
	if err != nil {
		h.logger.Error("cancel dispatch", slog.Int64("order_id", orderID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
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
