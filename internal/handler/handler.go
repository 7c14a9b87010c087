// Package handler exposes the HTTP API: catalog, cart, checkout, order
// lifecycle, and the admin surface. Handlers decode and validate input,
// delegate to domain services, and map domain errors to HTTP statuses.
package handler

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vendhub/marketplace/internal/domain/cart"
	"github.com/vendhub/marketplace/internal/domain/coupon"
	"github.com/vendhub/marketplace/internal/domain/inventory"
	"github.com/vendhub/marketplace/internal/domain/order"
	"github.com/vendhub/marketplace/internal/domain/product"
)

// CartService is the cart surface the handlers depend on.
type CartService interface {
	Get(ctx context.Context, userID string) (*cart.Cart, error)
	Add(ctx context.Context, userID, productID, variantID string, qty int) (*cart.Item, error)
	UpdateItem(ctx context.Context, userID, itemID string, qty int) (*cart.Item, error)
	Remove(ctx context.Context, userID, itemID string) error
	Clear(ctx context.Context, userID string) error
	ApplyCoupon(ctx context.Context, userID, code string) (*cart.AppliedCoupon, error)
	RemoveCoupon(ctx context.Context, userID string) error
	Quote(ctx context.Context, userID string) (*cart.QuoteResult, error)
}

// OrderService is the order lifecycle surface the handlers depend on.
type OrderService interface {
	Create(ctx context.Context, userID string, req order.CreateRequest) (*order.Order, error)
	CreateGuest(ctx context.Context, req order.GuestRequest) (*order.Order, error)
	Get(ctx context.Context, id string, actor order.Actor) (*order.Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]order.Order, error)
	UpdateStatus(ctx context.Context, id string, actor order.Actor, to order.Status, note, tracking, carrier string) (*order.Order, error)
	Cancel(ctx context.Context, id, requesterID, reason string) (*order.Order, error)
	ProcessRefund(ctx context.Context, id string, actor order.Actor, amount decimal.Decimal, reason, transactionID string) (*order.Order, error)
}

// Inventory is the admin stock surface: direct adjustment plus ledger reads.
type Inventory interface {
	Adjust(ctx context.Context, ref inventory.ItemRef, newStock int, reason, actor string) (*inventory.Entry, error)
	History(ctx context.Context, f inventory.HistoryFilter) ([]inventory.Entry, error)
}

// Handler routes HTTP requests to the domain services.
type Handler struct {
	validate *validator.Validate

	products product.Repository
	carts    CartService
	orders   OrderService
	coupons  coupon.Repository
	stock    Inventory
}

// New constructs a Handler with the required domain dependencies.
func New(
	products product.Repository,
	carts CartService,
	orders OrderService,
	coupons coupon.Repository,
	stock Inventory,
) *Handler {
	return &Handler{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		products: products,
		carts:    carts,
		orders:   orders,
		coupons:  coupons,
		stock:    stock,
	}
}

// Routes registers every API route on the mux. All /api routes require an
// authenticated key; /api/admin additionally requires the admin scope. Guest
// checkout and the payment webhook are the unauthenticated exceptions.
func (h *Handler) Routes(mux *http.ServeMux, sec *Security, webhooks *WebhookHandler) {
	authed := sec.Authenticate
	admin := func(next http.HandlerFunc) http.Handler { return sec.Authenticate(sec.RequireAdmin(next)) }

	mux.Handle("GET /api/products", authed(h.listProducts))
	mux.Handle("GET /api/products/{id}", authed(h.getProduct))

	mux.Handle("GET /api/cart", authed(h.getCart))
	mux.Handle("GET /api/cart/total", authed(h.getCartTotal))
	mux.Handle("POST /api/cart/items", authed(h.addCartItem))
	mux.Handle("PUT /api/cart/items/{itemID}", authed(h.updateCartItem))
	mux.Handle("DELETE /api/cart/items/{itemID}", authed(h.removeCartItem))
	mux.Handle("DELETE /api/cart", authed(h.clearCart))
	mux.Handle("POST /api/cart/coupon", authed(h.applyCoupon))
	mux.Handle("DELETE /api/cart/coupon", authed(h.removeCoupon))

	mux.Handle("POST /api/orders", authed(h.createOrder))
	mux.HandleFunc("POST /api/orders/guest", h.createGuestOrder)
	mux.Handle("GET /api/orders", authed(h.listOrders))
	mux.Handle("GET /api/orders/{id}", authed(h.getOrder))
	mux.Handle("POST /api/orders/{id}/cancel", authed(h.cancelOrder))

	mux.Handle("POST /api/admin/products", admin(h.createProduct))
	mux.Handle("PUT /api/admin/products/{id}", admin(h.updateProduct))
	mux.Handle("PUT /api/admin/orders/{id}/status", admin(h.updateOrderStatus))
	mux.Handle("POST /api/admin/orders/{id}/refund", admin(h.refundOrder))
	mux.Handle("POST /api/admin/coupons", admin(h.createCoupon))
	mux.Handle("GET /api/admin/coupons", admin(h.listCoupons))
	mux.Handle("PATCH /api/admin/coupons/{code}", admin(h.toggleCoupon))
	mux.Handle("POST /api/admin/inventory/adjust", admin(h.adjustInventory))
	mux.Handle("GET /api/admin/inventory/history", admin(h.inventoryHistory))

	mux.HandleFunc("POST /api/webhooks/payment", webhooks.Payment)
}
