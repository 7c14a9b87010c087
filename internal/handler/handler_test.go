package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendhub/marketplace/internal/domain/auth"
	"github.com/vendhub/marketplace/internal/domain/cart"
	"github.com/vendhub/marketplace/internal/domain/coupon"
	"github.com/vendhub/marketplace/internal/domain/inventory"
	"github.com/vendhub/marketplace/internal/domain/order"
	"github.com/vendhub/marketplace/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID map[string]*product.Product
}

func (m *mockProductRepo) List(_ context.Context, _ product.Filter) ([]product.Product, error) {
	var out []product.Product
	for _, p := range m.byID {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) Create(_ context.Context, _ *product.Product) error { return nil }

func (m *mockProductRepo) Update(_ context.Context, _ *product.Product) error { return nil }

type mockCartService struct {
	cart    *cart.Cart
	item    *cart.Item
	addErr  error
	lastQty int
}

func (m *mockCartService) Get(_ context.Context, _ string) (*cart.Cart, error) { return m.cart, nil }

func (m *mockCartService) Add(_ context.Context, _, _, _ string, qty int) (*cart.Item, error) {
	m.lastQty = qty
	return m.item, m.addErr
}

func (m *mockCartService) UpdateItem(_ context.Context, _, _ string, _ int) (*cart.Item, error) {
	return m.item, m.addErr
}

func (m *mockCartService) Remove(_ context.Context, _, _ string) error { return m.addErr }
func (m *mockCartService) Clear(_ context.Context, _ string) error     { return nil }

func (m *mockCartService) ApplyCoupon(_ context.Context, _, code string) (*cart.AppliedCoupon, error) {
	if m.addErr != nil {
		return nil, m.addErr
	}
	return &cart.AppliedCoupon{Code: code, DiscountType: coupon.DiscountFixed, DiscountValue: decimal.New(10, 0)}, nil
}

func (m *mockCartService) RemoveCoupon(_ context.Context, _ string) error { return nil }

func (m *mockCartService) Quote(_ context.Context, _ string) (*cart.QuoteResult, error) {
	return &cart.QuoteResult{Cart: m.cart}, nil
}

type mockOrderService struct {
	order      *order.Order
	err        error
	lastStatus order.Status
	lastActor  order.Actor
}

func (m *mockOrderService) Create(_ context.Context, _ string, _ order.CreateRequest) (*order.Order, error) {
	return m.order, m.err
}

func (m *mockOrderService) CreateGuest(_ context.Context, _ order.GuestRequest) (*order.Order, error) {
	return m.order, m.err
}

func (m *mockOrderService) Get(_ context.Context, _ string, _ order.Actor) (*order.Order, error) {
	return m.order, m.err
}

func (m *mockOrderService) ListByUser(_ context.Context, _ string, _, _ int) ([]order.Order, error) {
	if m.order == nil {
		return nil, m.err
	}
	return []order.Order{*m.order}, m.err
}

func (m *mockOrderService) UpdateStatus(_ context.Context, _ string, actor order.Actor, to order.Status, _, _, _ string) (*order.Order, error) {
	m.lastStatus, m.lastActor = to, actor
	return m.order, m.err
}

func (m *mockOrderService) Cancel(_ context.Context, _, _, _ string) (*order.Order, error) {
	return m.order, m.err
}

func (m *mockOrderService) ProcessRefund(_ context.Context, _ string, _ order.Actor, _ decimal.Decimal, _, _ string) (*order.Order, error) {
	return m.order, m.err
}

type mockCouponRepo struct {
	created *coupon.Coupon
	err     error
}

func (m *mockCouponRepo) FindByCode(_ context.Context, _ string) (*coupon.Coupon, error) {
	return nil, coupon.ErrNotFound
}

func (m *mockCouponRepo) Create(_ context.Context, c *coupon.Coupon) error {
	m.created = c
	return m.err
}

func (m *mockCouponRepo) List(_ context.Context, _, _ int) ([]coupon.Coupon, error) {
	return nil, m.err
}

func (m *mockCouponRepo) SetActive(_ context.Context, _ string, _ bool) error { return m.err }

type mockInventory struct {
	entry *inventory.Entry
	err   error
}

func (m *mockInventory) Adjust(_ context.Context, ref inventory.ItemRef, newStock int, reason, actor string) (*inventory.Entry, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &inventory.Entry{Ref: ref, NewStock: newStock, Reason: reason, Actor: actor}, nil
}

func (m *mockInventory) History(_ context.Context, _ inventory.HistoryFilter) ([]inventory.Entry, error) {
	if m.entry == nil {
		return nil, m.err
	}
	return []inventory.Entry{*m.entry}, m.err
}

type mockAPIKeyRepo struct {
	info *auth.APIKeyInfo
	err  error
}

func (m *mockAPIKeyRepo) FindByHash(_ context.Context, _ string) (*auth.APIKeyInfo, error) {
	return m.info, m.err
}

// --- Helpers ---

const testPepper = "test-pepper"

func keyAndHash(key string) (string, string) {
	mac := hmac.New(sha256.New, []byte(testPepper))
	mac.Write([]byte(key))
	return key, hex.EncodeToString(mac.Sum(nil))
}

type fixture struct {
	mux    *http.ServeMux
	carts  *mockCartService
	orders *mockOrderService
	stock  *mockInventory
	keys   *mockAPIKeyRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	_, hash := keyAndHash("secret-key")
	f := &fixture{
		mux: http.NewServeMux(),
		carts: &mockCartService{
			cart: &cart.Cart{UserID: "u1"},
			item: &cart.Item{ID: "line-1", ProductID: "p1", Quantity: 2},
		},
		orders: &mockOrderService{order: &order.Order{
			ID:     "o1",
			Number: "ORD-000001",
			UserID: "u1",
			Status: order.StatusPending,
		}},
		stock: &mockInventory{},
		keys: &mockAPIKeyRepo{info: &auth.APIKeyInfo{
			ID:      "k1",
			KeyHash: hash,
			UserID:  "u1",
			Scopes:  []string{auth.ScopeAdmin},
		}},
	}

	products := &mockProductRepo{byID: map[string]*product.Product{
		"p1": {ID: "p1", Title: "Mug", Price: decimal.New(20, 0), Stock: 10},
	}}
	h := New(products, f.carts, f.orders, &mockCouponRepo{}, f.stock)
	sec := NewSecurity(f.keys, []byte(testPepper))
	wh := NewWebhookHandler(f.orders, []byte("webhook-secret"))
	h.Routes(f.mux, sec, wh)
	return f
}

func (f *fixture) do(method, path string, body any, apiKey string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestAuthentication(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/cart", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "missing key")

	f.keys.err = auth.ErrNotFound
	rec = f.do(http.MethodGet, "/api/cart", nil, "wrong-key")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "unknown key")

	f.keys.err = nil
	rec = f.do(http.MethodGet, "/api/cart", nil, "secret-key")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminScopeRequired(t *testing.T) {
	f := newFixture(t)
	f.keys.info.Scopes = nil

	rec := f.do(http.MethodGet, "/api/admin/coupons", nil, "secret-key")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	f.keys.info.Scopes = []string{auth.ScopeAdmin}
	rec = f.do(http.MethodGet, "/api/admin/coupons", nil, "secret-key")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAddCartItem(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/cart/items",
		map[string]any{"product_id": "p1", "quantity": 2}, "secret-key")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 2, f.carts.lastQty)

	var resp struct {
		Item cartItemView `json:"item"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "line-1", resp.Item.ID)
}

func TestAddCartItemValidation(t *testing.T) {
	f := newFixture(t)

	// Missing product_id.
	rec := f.do(http.MethodPost, "/api/cart/items", map[string]any{"quantity": 2}, "secret-key")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Zero quantity.
	rec = f.do(http.MethodPost, "/api/cart/items",
		map[string]any{"product_id": "p1", "quantity": 0}, "secret-key")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddCartItemInsufficientStock(t *testing.T) {
	f := newFixture(t)
	f.carts.addErr = &inventory.InsufficientStockError{
		Ref: inventory.ItemRef{ProductID: "p1"}, Requested: 5, Available: 2,
	}

	rec := f.do(http.MethodPost, "/api/cart/items",
		map[string]any{"product_id": "p1", "quantity": 5}, "secret-key")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "available 2")
}

func TestGetOrderErrors(t *testing.T) {
	f := newFixture(t)

	f.orders.err = order.ErrForbidden
	f.orders.order = nil
	rec := f.do(http.MethodGet, "/api/orders/o1", nil, "secret-key")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	f.orders.err = order.ErrNotFound
	rec = f.do(http.MethodGet, "/api/orders/ghost", nil, "secret-key")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPut, "/api/admin/orders/o1/status",
		map[string]any{"status": "processing"}, "secret-key")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, order.StatusProcessing, f.orders.lastStatus)
	assert.True(t, f.orders.lastActor.Admin)
}

func TestUpdateOrderStatusIllegal(t *testing.T) {
	f := newFixture(t)
	f.orders.err = &order.IllegalTransitionError{From: order.StatusShipped, To: order.StatusPending}
	f.orders.order = nil

	rec := f.do(http.MethodPut, "/api/admin/orders/o1/status",
		map[string]any{"status": "pending"}, "secret-key")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefundOrder(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/admin/orders/o1/refund",
		map[string]any{"amount": "25.00", "reason": "damaged"}, "secret-key")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPost, "/api/admin/orders/o1/refund",
		map[string]any{"amount": "not-a-number"}, "secret-key")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdjustInventory(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/admin/inventory/adjust",
		map[string]any{"product_id": "p1", "new_stock": 40, "reason": "restock"}, "secret-key")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Entry ledgerEntryView `json:"entry"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 40, resp.Entry.NewStock)
	assert.Equal(t, "u1", resp.Entry.Actor)
}

func TestPaymentWebhook(t *testing.T) {
	f := newFixture(t)
	secret := []byte("webhook-secret")

	sign := func(body []byte) string {
		mac := hmac.New(sha256.New, secret)
		mac.Write(body)
		return hex.EncodeToString(mac.Sum(nil))
	}
	post := func(body []byte, sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", bytes.NewReader(body))
		if sig != "" {
			req.Header.Set("X-Webhook-Signature", sig)
		}
		rec := httptest.NewRecorder()
		f.mux.ServeHTTP(rec, req)
		return rec
	}

	body := []byte(`{"order_id":"o1","status":"succeeded","transaction_id":"tx1"}`)

	rec := post(body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "missing signature")

	rec = post(body, sign([]byte("tampered")))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "wrong signature")

	rec = post(body, sign(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, order.StatusProcessing, f.orders.lastStatus)

	// A redelivered webhook hits an already-transitioned order; it is
	// acknowledged instead of retried forever.
	f.orders.err = &order.IllegalTransitionError{From: order.StatusProcessing, To: order.StatusProcessing}
	f.orders.order = nil
	rec = post(body, sign(body))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "already processed")
}

func TestCreateCoupon(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/admin/coupons", map[string]any{
		"code": "SAVE20", "discount_type": "percentage", "value": "20",
		"maximum_discount": "50",
	}, "secret-key")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPost, "/api/admin/coupons", map[string]any{
		"code": "BAD", "discount_type": "bogus", "value": "20",
	}, "secret-key")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
