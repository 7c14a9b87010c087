package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendhub/marketplace/internal/domain/cart"
	"github.com/vendhub/marketplace/internal/domain/coupon"
	"github.com/vendhub/marketplace/internal/domain/pricing"
	"github.com/vendhub/marketplace/internal/domain/product"
	"github.com/vendhub/marketplace/internal/domain/user"
	"github.com/vendhub/marketplace/internal/event"
)

// Events is the subset of the event bus the order service publishes to.
type Events interface {
	PublishOrderCreated(ctx context.Context, e event.OrderCreated)
	PublishOrderStatusChanged(ctx context.Context, e event.OrderStatusChanged)
}

// Actor identifies who is performing a lifecycle operation.
type Actor struct {
	ID    string
	Admin bool
}

// CreateRequest holds the checkout input for a registered user.
type CreateRequest struct {
	ShippingAddress Address
	BillingAddress  *Address
	PaymentMethod   string
	ShippingMethod  string
	Notes           string
}

// GuestItem is one requested line of a guest checkout.
type GuestItem struct {
	ProductID string
	VariantID string
	Quantity  int
}

// GuestRequest holds the checkout input for a guest.
type GuestRequest struct {
	Email           string
	Name            string
	Items           []GuestItem
	ShippingAddress Address
	BillingAddress  *Address
	PaymentMethod   string
	ShippingMethod  string
	CouponCode      string
	Notes           string
}

// Service implements the order lifecycle.
type Service struct {
	orders   Repository
	carts    cart.Store
	products product.Repository
	users    user.Repository
	coupons  *coupon.Validator
	pricing  pricing.Config
	events   Events
	now      func() time.Time
}

// NewService creates an order Service with the required dependencies.
func NewService(
	orders Repository,
	carts cart.Store,
	products product.Repository,
	users user.Repository,
	coupons *coupon.Validator,
	cfg pricing.Config,
	events Events,
) *Service {
	return &Service{
		orders:   orders,
		carts:    carts,
		products: products,
		users:    users,
		coupons:  coupons,
		pricing:  cfg,
		events:   events,
		now:      time.Now,
	}
}

// Create materializes the user's cart into an order. Prices and discounts are
// resolved at checkout time (last-look pricing), the cart's coupon is
// re-validated and consumed, and the cart is emptied in the same transaction
// that commits the order. Stock is untouched here: the cart lines already
// hold the reservation.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (*Order, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	snapshot := make([]GuestItem, len(c.Items))
	for i, it := range c.Items {
		snapshot[i] = GuestItem{ProductID: it.ProductID, VariantID: it.VariantID, Quantity: it.Quantity}
	}
	items, lines, err := s.buildItems(ctx, snapshot)
	if err != nil {
		return nil, err
	}

	couponCode := ""
	if c.Coupon != nil {
		couponCode = c.Coupon.Code
	}
	rule, usage, err := s.resolveCoupon(ctx, couponCode, userID, lines)
	if err != nil {
		return nil, err
	}

	o := s.assemble(items, lines, rule, req.ShippingMethod)
	o.UserID = userID
	o.ShippingAddress = req.ShippingAddress
	o.BillingAddress = req.BillingAddress
	o.PaymentMethod = req.PaymentMethod
	o.Notes = req.Notes

	if usage != nil {
		usage.OrderID = o.ID
		usage.UserID = userID
	}
	if err := s.orders.CreateFromCart(ctx, o, usage); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	s.events.PublishOrderCreated(ctx, event.OrderCreated{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		Email:       u.Email,
		Total:       o.Total.StringFixed(2),
		ItemCount:   len(o.Items),
		CreatedAt:   o.CreatedAt,
	})
	return o, nil
}

// CreateGuest places an order from an explicit item list. There is no prior
// cart reservation, so the repository reserves stock inline per item with the
// same insufficient-stock semantics as a cart add.
func (s *Service) CreateGuest(ctx context.Context, req GuestRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}
	for _, it := range req.Items {
		if it.Quantity < 1 {
			return nil, cart.ErrInvalidQuantity
		}
	}

	items, lines, err := s.buildItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	rule, usage, err := s.resolveCoupon(ctx, req.CouponCode, "", lines)
	if err != nil {
		return nil, err
	}

	o := s.assemble(items, lines, rule, req.ShippingMethod)
	o.Guest = &GuestDetails{Email: req.Email, Name: req.Name}
	o.ShippingAddress = req.ShippingAddress
	o.BillingAddress = req.BillingAddress
	o.PaymentMethod = req.PaymentMethod
	o.Notes = req.Notes

	if usage != nil {
		usage.OrderID = o.ID
	}
	if err := s.orders.CreateGuest(ctx, o, usage); err != nil {
		return nil, errors.Wrap(err, "create guest order")
	}

	s.events.PublishOrderCreated(ctx, event.OrderCreated{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		Email:       req.Email,
		Total:       o.Total.StringFixed(2),
		ItemCount:   len(o.Items),
		CreatedAt:   o.CreatedAt,
	})
	return o, nil
}

// Get returns an order. Non-admin requesters must own it.
func (s *Service) Get(ctx context.Context, id string, actor Actor) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && o.UserID != actor.ID {
		return nil, ErrForbidden
	}
	return o, nil
}

// ListByUser returns the user's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID, limit, offset)
}

// UpdateStatus moves an order to a new status under the lifecycle rules,
// appending a history entry. First entry into cancelled or refunded restores
// the order's stock exactly once.
func (s *Service) UpdateStatus(ctx context.Context, id string, actor Actor, to Status, note, tracking, carrier string) (*Order, error) {
	if !to.ValidUpdateTarget() {
		return nil, &IllegalTransitionError{To: to}
	}

	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, to, actor.Admin) {
		return nil, &IllegalTransitionError{From: o.Status, To: to}
	}

	entry := HistoryEntry{Status: to, At: s.now(), Note: note}
	restore := RestoresStock(to) && !o.StockRestored
	if err := s.orders.Transition(ctx, id, o.Status, to, entry, restore, tracking, carrier); err != nil {
		return nil, err
	}
	return s.afterTransition(ctx, id, entry)
}

// Cancel is the customer-facing cancellation: restricted to the order's
// owner, and only while the order has not shipped.
func (s *Service) Cancel(ctx context.Context, id, requesterID, reason string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != requesterID {
		return nil, ErrForbidden
	}
	if !CanTransition(o.Status, StatusCancelled, false) {
		return nil, &IllegalTransitionError{From: o.Status, To: StatusCancelled}
	}

	note := reason
	if note == "" {
		note = "cancelled by customer"
	}
	entry := HistoryEntry{Status: StatusCancelled, At: s.now(), Note: note}
	restore := !o.StockRestored
	if err := s.orders.Transition(ctx, id, o.Status, StatusCancelled, entry, restore, "", ""); err != nil {
		return nil, err
	}
	return s.afterTransition(ctx, id, entry)
}

// ProcessRefund refunds part or all of an order. A full refund moves the
// order to refunded and restores stock (once); a partial refund moves it to
// partial-refund and leaves stock alone.
func (s *Service) ProcessRefund(ctx context.Context, id string, actor Actor, amount decimal.Decimal, reason, transactionID string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() || amount.GreaterThan(o.Total) {
		return nil, &InvalidRefundAmountError{Amount: amount, Total: o.Total}
	}

	to := StatusPartialRefund
	full := amount.GreaterThanOrEqual(o.Total)
	if full {
		to = StatusRefunded
	}
	if !CanTransition(o.Status, to, actor.Admin) {
		return nil, &IllegalTransitionError{From: o.Status, To: to}
	}

	r := Refund{
		Amount:        amount,
		At:            s.now(),
		TransactionID: transactionID,
		Reason:        reason,
		ProcessedBy:   actor.ID,
	}
	note := reason
	if note == "" {
		note = fmt.Sprintf("refund of %s processed", amount.StringFixed(2))
	}
	entry := HistoryEntry{Status: to, At: r.At, Note: note}
	restore := full && !o.StockRestored
	if err := s.orders.RecordRefund(ctx, id, o.Status, to, r, entry, restore); err != nil {
		return nil, err
	}
	return s.afterTransition(ctx, id, entry)
}

// afterTransition reloads the committed order and publishes the status event.
func (s *Service) afterTransition(ctx context.Context, id string, entry HistoryEntry) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	email := ""
	if o.Guest != nil {
		email = o.Guest.Email
	} else if u, err := s.users.GetByID(ctx, o.UserID); err == nil {
		email = u.Email
	}

	s.events.PublishOrderStatusChanged(ctx, event.OrderStatusChanged{
		OrderID:        o.ID,
		OrderNumber:    o.Number,
		Email:          email,
		Status:         string(entry.Status),
		Note:           entry.Note,
		TrackingNumber: o.TrackingNumber,
		Carrier:        o.Carrier,
		ChangedAt:      entry.At,
	})
	return o, nil
}

// buildItems resolves products in one batch and prices every requested line
// at current catalog prices.
func (s *Service) buildItems(ctx context.Context, reqs []GuestItem) ([]Item, []pricing.Line, error) {
	ids := make([]string, 0, len(reqs))
	seen := make(map[string]struct{}, len(reqs))
	for _, r := range reqs {
		if _, ok := seen[r.ProductID]; !ok {
			seen[r.ProductID] = struct{}{}
			ids = append(ids, r.ProductID)
		}
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]*product.Product, len(fetched))
	for i := range fetched {
		byID[fetched[i].ID] = &fetched[i]
	}

	items := make([]Item, 0, len(reqs))
	lines := make([]pricing.Line, 0, len(reqs))
	for _, r := range reqs {
		p, ok := byID[r.ProductID]
		if !ok {
			return nil, nil, product.ErrNotFound
		}
		unit, err := p.UnitPrice(r.VariantID)
		if err != nil {
			return nil, nil, err
		}

		name := p.Title
		if r.VariantID != "" {
			v, err := p.Variant(r.VariantID)
			if err != nil {
				return nil, nil, err
			}
			name = p.Title + " (" + v.Name + ")"
		}

		line := pricing.Line{UnitPrice: unit, Discount: p.Discount, Quantity: r.Quantity}
		items = append(items, Item{
			ProductID: r.ProductID,
			VariantID: r.VariantID,
			Name:      name,
			UnitPrice: unit,
			Discount:  p.Discount,
			Quantity:  r.Quantity,
			Total:     line.NetTotal(),
		})
		lines = append(lines, line)
	}
	return items, lines, nil
}

// resolveCoupon validates the coupon (if any) against the pre-coupon subtotal
// and prepares the usage row recorded by the order transaction.
func (s *Service) resolveCoupon(ctx context.Context, code, userID string, lines []pricing.Line) (*coupon.Coupon, *coupon.Usage, error) {
	if code == "" {
		return nil, nil, nil
	}

	subtotal := pricing.Quote(s.pricing, lines, nil, "").Subtotal
	rule, err := s.coupons.Eligible(ctx, code, userID, subtotal)
	if err != nil {
		return nil, nil, err
	}
	return rule, &coupon.Usage{Code: rule.Code, UserID: userID, UsedAt: s.now()}, nil
}

// assemble builds the order snapshot with pricing totals, a fresh ID, and the
// initial history entry. The number is assigned by the repository.
func (s *Service) assemble(items []Item, lines []pricing.Line, rule *coupon.Coupon, shippingMethod string) *Order {
	totals := pricing.Quote(s.pricing, lines, rule, shippingMethod)
	now := s.now()

	o := &Order{
		ID:              uuid.New().String(),
		Items:           items,
		ShippingMethod:  shippingMethod,
		Subtotal:        totals.Subtotal,
		ProductDiscount: totals.ProductDiscount,
		CouponDiscount:  totals.CouponDiscount,
		Tax:             totals.Tax,
		ShippingCost:    totals.Shipping,
		Total:           totals.Total,
		Status:          StatusPending,
		History:         []HistoryEntry{{Status: StatusPending, At: now, Note: "order created"}},
		CreatedAt:       now,
	}
	if rule != nil {
		o.CouponCode = rule.Code
	}
	return o
}
