package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"ordertrace/internal/application"
	"ordertrace/internal/domain"
	"ordertrace/internal/storage"
	"ordertrace/pkg/idempotency"
)

type Handler struct {
	log      *slog.Logger
	orders   *application.OrderService
	payments *application.PaymentService
	post     func(http.Handler) http.Handler
	tracer   trace.Tracer
}

// NewHandler builds the front door. idem may be nil; POST endpoints then run
// without duplicate-submission protection.
func NewHandler(log *slog.Logger, orders *application.OrderService, payments *application.PaymentService, idem *idempotency.Store) *Handler {
	post := func(next http.Handler) http.Handler { return next }
	if idem != nil {
		post = idem.Middleware
	}
	return &Handler{
		log:      log,
		orders:   orders,
		payments: payments,
		post:     post,
		tracer:   otel.Tracer("ordertrace-http"),
	}
}

type createOrderReq struct {
	ExternalOrderID string          `json:"external_order_id"`
	Amount          decimal.Decimal `json:"amount"`
}

type createPaymentReq struct {
	OrderID uuid.UUID       `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
}

// Routes is the full static route table; every endpoint is registered here,
// once, at startup.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.With(h.post).Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)

	r.With(h.post).Post("/payments", h.createPayment)
	r.Get("/payments", h.listPayments)
	r.Get("/payments/{id}", h.getPayment)

	r.Get("/transactions", h.listTransactions)
	r.Get("/transactions/{id}", h.getTransaction)

	return r
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errBody("invalid request body"))
		return
	}

	o, err := h.orders.Create(ctx, req.ExternalOrderID, req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, o)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreatePayment")
	defer span.End()

	var req createPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errBody("invalid request body"))
		return
	}

	p, err := h.payments.Create(ctx, req.OrderID, req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, p)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, err := h.payments.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.payments.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, payments)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	var orderID *uuid.UUID
	if raw := r.URL.Query().Get("orderId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, errBody("invalid orderId"))
			return
		}
		orderID = &id
	}

	txs, err := h.payments.Transactions(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, txs)
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	tx, err := h.payments.Transaction(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

// pathID parses the {id} route parameter; a malformed id reads as a missing
// resource.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeJSON(w, http.StatusNotFound, errBody("not found"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		status = http.StatusConflict
	default:
		h.log.Error("request failed", "err", err)
	}
	h.writeJSON(w, status, errBody(err.Error()))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("response encode failed", "err", err)
	}
}

func errBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
