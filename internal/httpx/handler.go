package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/storefront-labs/order-core/internal/checkout"
	kafkax "github.com/storefront-labs/order-core/internal/kafka"
	"github.com/storefront-labs/order-core/internal/orders"
	"github.com/storefront-labs/order-core/internal/redisx"
	"github.com/storefront-labs/order-core/internal/stock"
)

// CheckoutService is the placement/settlement surface the handler exposes.
type CheckoutService interface {
	PlaceImmediate(ctx context.Context, in checkout.PlacementInput) (*orders.Order, error)
	PlaceDeferred(ctx context.Context, in checkout.PlacementInput) (*orders.Order, string, error)
	Settle(ctx context.Context, orderID string, success bool) error
}

// OrderDirectory serves reads and lifecycle transitions.
type OrderDirectory interface {
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]orders.Order, error)
	ChangeStatus(ctx context.Context, orderID string, next orders.Status) (*orders.Order, error)
}

// StockAdmin exposes the per-SKU read and clamped delta adjustment.
type StockAdmin interface {
	Quantity(ctx context.Context, sku string) (int, error)
	AdjustQuantity(ctx context.Context, sku string, delta int) (int, error)
}

type Handler struct {
	Checkout CheckoutService
	Orders   OrderDirectory
	Stock    StockAdmin
	Events   checkout.Publisher
	Redis    *redis.Client
	Log      *zap.Logger
	Service  string
}

func (h *Handler) Register(r *chi.Mux) {
	r.Post("/checkout/cash", h.placeImmediate)
	r.Post("/checkout/redirect", h.placeDeferred)
	r.Post("/payments/callback", h.paymentCallback)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
	r.Get("/orders", h.listOrders)
	r.Patch("/orders/{id}/status", h.changeStatus)
	r.Get("/stock/{sku}", h.getStock)
	r.Patch("/stock/{sku}", h.adjustStock)
}

type placeResp struct {
	OrderID    string `json:"order_id"`
	TotalCents int64  `json:"total_cents"`
	Settled    bool   `json:"settled"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

func (h *Handler) placeImmediate(w http.ResponseWriter, r *http.Request) {
	in, ok := decodePlacement(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Checkout.PlaceImmediate(ctx, in)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.cacheStatus(ctx, o.ID, o.Status)
	writeJSON(w, http.StatusCreated, placeResp{OrderID: o.ID, TotalCents: o.TotalCents, Settled: true})
}

func (h *Handler) placeDeferred(w http.ResponseWriter, r *http.Request) {
	in, ok := decodePlacement(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, redirect, err := h.Checkout.PlaceDeferred(ctx, in)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.cacheStatus(ctx, o.ID, o.Status)
	writeJSON(w, http.StatusCreated, placeResp{OrderID: o.ID, TotalCents: o.TotalCents, RedirectTo: redirect})
}

func (h *Handler) paymentCallback(w http.ResponseWriter, r *http.Request) {
	var req orders.PaymentResultPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid json", "BAD_REQUEST"))
		return
	}
	if req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, errBody("missing order_id", "BAD_REQUEST"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Checkout.Settle(ctx, req.OrderID, req.Success); err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "ok"})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getOrderStatus serves from the redis cache when warm, falling back to the
// store.
func (h *Handler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}
	o, err := h.Orders.Get(ctx, orderID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.cacheStatus(ctx, o.ID, o.Status)
	writeJSON(w, http.StatusOK, map[string]any{"status": o.Status})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	buyerID := r.URL.Query().Get("buyer_id")
	if buyerID == "" {
		writeJSON(w, http.StatusBadRequest, errBody("missing buyer_id", "BAD_REQUEST"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Orders.ListByBuyer(ctx, buyerID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		writeJSON(w, http.StatusBadRequest, errBody("missing status", "BAD_REQUEST"))
		return
	}
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.ChangeStatus(ctx, orderID, orders.Status(req.Status))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.cacheStatus(ctx, o.ID, o.Status)
	h.publishStatusEvent(r, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) getStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	sku := chi.URLParam(r, "sku")
	q, err := h.Stock.Quantity(ctx, sku)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sku": sku, "quantity": q})
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid json", "BAD_REQUEST"))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	sku := chi.URLParam(r, "sku")
	q, err := h.Stock.AdjustQuantity(ctx, sku, req.Delta)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sku": sku, "quantity": q})
}

func decodePlacement(w http.ResponseWriter, r *http.Request) (checkout.PlacementInput, bool) {
	var in checkout.PlacementInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid json", "BAD_REQUEST"))
		return in, false
	}
	if in.BuyerID == "" {
		writeJSON(w, http.StatusBadRequest, errBody("missing buyer_id", "BAD_REQUEST"))
		return in, false
	}
	return in, true
}

func (h *Handler) cacheStatus(ctx context.Context, orderID string, s orders.Status) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body, _ := json.Marshal(map[string]any{"status": s})
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}

func (h *Handler) publishStatusEvent(r *http.Request, o *orders.Order) {
	if h.Events == nil {
		return
	}
	eventType := orders.EventOrderStatusChanged
	var payload any = orders.OrderStatusChangedPayload{OrderID: o.ID, Status: o.Status}
	if o.Status == orders.StatusCanceled {
		eventType = orders.EventOrderCanceled
		payload = orders.OrderCanceledPayload{OrderID: o.ID, Restored: o.PaymentSettled}
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: o.ID,
		Payload:       kafkax.MustMarshal(payload),
	}
	h.Events.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func errBody(msg, code string) map[string]string {
	return map[string]string{"error": msg, "code": code}
}

// writeErr maps domain errors onto HTTP statuses: buyer mistakes are 4xx
// with machine-readable codes, anything else is a server error.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	var oos *stock.OutOfStockError
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		writeJSON(w, http.StatusBadRequest, errBody(err.Error(), "EMPTY_CART"))
	case errors.As(err, &oos):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     oos.Error(),
			"code":      "OUT_OF_STOCK",
			"sku":       oos.SKU,
			"name":      oos.Name,
			"requested": oos.Requested,
			"available": oos.Available,
		})
	case errors.Is(err, orders.ErrOrderNotFound), errors.Is(err, stock.ErrSKUNotFound):
		writeJSON(w, http.StatusNotFound, errBody(err.Error(), "NOT_FOUND"))
	case errors.Is(err, orders.ErrOrderLocked):
		writeJSON(w, http.StatusConflict, errBody(err.Error(), "ORDER_LOCKED"))
	default:
		h.Log.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errBody("internal error", "INTERNAL"))
	}
}
