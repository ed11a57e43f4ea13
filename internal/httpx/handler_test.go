package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storefront-labs/order-core/internal/checkout"
	"github.com/storefront-labs/order-core/internal/orders"
	"github.com/storefront-labs/order-core/internal/stock"
)

type stubCheckout struct {
	placeErr  error
	settleErr error
	order     *orders.Order
}

func (s *stubCheckout) PlaceImmediate(_ context.Context, _ checkout.PlacementInput) (*orders.Order, error) {
	return s.order, s.placeErr
}

func (s *stubCheckout) PlaceDeferred(_ context.Context, _ checkout.PlacementInput) (*orders.Order, string, error) {
	if s.placeErr != nil {
		return nil, "", s.placeErr
	}
	return s.order, "https://pay.test/session/" + s.order.ID, nil
}

func (s *stubCheckout) Settle(_ context.Context, _ string, _ bool) error {
	return s.settleErr
}

type stubDirectory struct {
	order     *orders.Order
	getErr    error
	changeErr error
}

func (s *stubDirectory) Get(_ context.Context, _ string) (*orders.Order, error) {
	return s.order, s.getErr
}

func (s *stubDirectory) ListByBuyer(_ context.Context, _ string) ([]orders.Order, error) {
	if s.order == nil {
		return nil, nil
	}
	return []orders.Order{*s.order}, nil
}

func (s *stubDirectory) ChangeStatus(_ context.Context, _ string, next orders.Status) (*orders.Order, error) {
	if s.changeErr != nil {
		return nil, s.changeErr
	}
	o := *s.order
	o.Status = next
	return &o, nil
}

type stubStock struct {
	qty map[string]int
}

func (s *stubStock) Quantity(_ context.Context, sku string) (int, error) {
	q, ok := s.qty[sku]
	if !ok {
		return 0, stock.ErrSKUNotFound
	}
	return q, nil
}

func (s *stubStock) AdjustQuantity(_ context.Context, sku string, delta int) (int, error) {
	q, ok := s.qty[sku]
	if !ok {
		return 0, stock.ErrSKUNotFound
	}
	q += delta
	if q < 0 {
		q = 0
	}
	s.qty[sku] = q
	return q, nil
}

func newTestHandler(co *stubCheckout, dir *stubDirectory, st *stubStock) http.Handler {
	h := &Handler{
		Checkout: co,
		Orders:   dir,
		Stock:    st,
		Log:      zap.NewNop(),
		Service:  "test",
	}
	r := NewRouter()
	h.Register(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func sampleOrder() *orders.Order {
	return &orders.Order{
		ID:      "o1",
		BuyerID: "b1",
		Items:   []orders.LineItem{{SKU: "A", Name: "Item A", UnitPriceCents: 500, Qty: 2}},
		Status:  orders.StatusProcessing,
	}
}

func TestPlaceImmediate_Created(t *testing.T) {
	h := newTestHandler(&stubCheckout{order: sampleOrder()}, &stubDirectory{}, &stubStock{})

	w := do(t, h, http.MethodPost, "/checkout/cash",
		`{"buyer_id":"b1","items":[{"id":"A","qty":2}],"total_cents":1000}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "o1", body["order_id"])
	assert.Equal(t, true, body["settled"])
}

func TestPlaceImmediate_EmptyCart(t *testing.T) {
	h := newTestHandler(&stubCheckout{placeErr: checkout.ErrEmptyCart}, &stubDirectory{}, &stubStock{})

	w := do(t, h, http.MethodPost, "/checkout/cash", `{"buyer_id":"b1","items":[]}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "EMPTY_CART", decodeBody(t, w)["code"])
}

func TestPlaceImmediate_OutOfStockIsConflict(t *testing.T) {
	h := newTestHandler(&stubCheckout{
		placeErr: &stock.OutOfStockError{SKU: "A", Name: "Item A", Requested: 5, Available: 3},
	}, &stubDirectory{}, &stubStock{})

	w := do(t, h, http.MethodPost, "/checkout/cash",
		`{"buyer_id":"b1","items":[{"id":"A","qty":5}]}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "OUT_OF_STOCK", body["code"])
	assert.Equal(t, "A", body["sku"])
	assert.Equal(t, "Item A", body["name"])
	assert.Equal(t, float64(5), body["requested"])
}

func TestPlaceImmediate_MissingBuyer(t *testing.T) {
	h := newTestHandler(&stubCheckout{}, &stubDirectory{}, &stubStock{})
	w := do(t, h, http.MethodPost, "/checkout/cash", `{"items":[{"id":"A"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPlaceDeferred_ReturnsRedirect(t *testing.T) {
	h := newTestHandler(&stubCheckout{order: sampleOrder()}, &stubDirectory{}, &stubStock{})

	w := do(t, h, http.MethodPost, "/checkout/redirect",
		`{"buyer_id":"b1","items":[{"id":"A","qty":2}],"total_cents":1000}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "https://pay.test/session/o1", decodeBody(t, w)["redirect_to"])
}

func TestPaymentCallback_UnknownOrder(t *testing.T) {
	h := newTestHandler(&stubCheckout{settleErr: orders.ErrOrderNotFound}, &stubDirectory{}, &stubStock{})

	w := do(t, h, http.MethodPost, "/payments/callback", `{"order_id":"ghost","success":true}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentCallback_OK(t *testing.T) {
	h := newTestHandler(&stubCheckout{}, &stubDirectory{}, &stubStock{})

	w := do(t, h, http.MethodPost, "/payments/callback", `{"order_id":"o1","success":false}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetOrder_NotFound(t *testing.T) {
	h := newTestHandler(&stubCheckout{}, &stubDirectory{getErr: orders.ErrOrderNotFound}, &stubStock{})

	w := do(t, h, http.MethodGet, "/orders/ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeBody(t, w)["code"])
}

func TestChangeStatus_LockedIsRejected(t *testing.T) {
	h := newTestHandler(&stubCheckout{}, &stubDirectory{
		order:     sampleOrder(),
		changeErr: orders.ErrOrderLocked,
	}, &stubStock{})

	w := do(t, h, http.MethodPatch, "/orders/o1/status", `{"status":"Canceled"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ORDER_LOCKED", decodeBody(t, w)["code"])
}

func TestChangeStatus_OK(t *testing.T) {
	h := newTestHandler(&stubCheckout{}, &stubDirectory{order: sampleOrder()}, &stubStock{})

	w := do(t, h, http.MethodPatch, "/orders/o1/status", `{"status":"OutForDelivery"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OutForDelivery", decodeBody(t, w)["status"])
}

func TestGetStock(t *testing.T) {
	h := newTestHandler(&stubCheckout{}, &stubDirectory{}, &stubStock{qty: map[string]int{"A": 3}})

	w := do(t, h, http.MethodGet, "/stock/A", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decodeBody(t, w)["quantity"])

	w = do(t, h, http.MethodGet, "/stock/ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdjustStock_ClampsAtZero(t *testing.T) {
	h := newTestHandler(&stubCheckout{}, &stubDirectory{}, &stubStock{qty: map[string]int{"A": 3}})

	w := do(t, h, http.MethodPatch, "/stock/A", `{"delta":-10}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decodeBody(t, w)["quantity"])
}

func TestListOrders_RequiresBuyer(t *testing.T) {
	h := newTestHandler(&stubCheckout{}, &stubDirectory{order: sampleOrder()}, &stubStock{})

	w := do(t, h, http.MethodGet, "/orders", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/orders?buyer_id=b1", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
