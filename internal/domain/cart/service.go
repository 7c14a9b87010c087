package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/vendhub/marketplace/internal/domain/coupon"
	"github.com/vendhub/marketplace/internal/domain/inventory"
	"github.com/vendhub/marketplace/internal/domain/pricing"
	"github.com/vendhub/marketplace/internal/domain/product"
)

// Service implements the cart and reservation operations. All stock effects
// happen inside the Store's transactions; the service validates input,
// resolves catalog data, and computes quotes.
type Service struct {
	carts    Store
	products product.Repository
	coupons  *coupon.Validator
	pricing  pricing.Config
}

// NewService creates a cart Service with the required dependencies.
func NewService(carts Store, products product.Repository, coupons *coupon.Validator, cfg pricing.Config) *Service {
	return &Service{
		carts:    carts,
		products: products,
		coupons:  coupons,
		pricing:  cfg,
	}
}

// Get returns the user's cart.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	return s.carts.Get(ctx, userID)
}

// Add reserves qty units of the product (or variant) and adds them to the
// cart, merging with an existing line for the same selection. Fails with
// product.ErrNotFound, a VariantNotFoundError, or an InsufficientStockError.
func (s *Service) Add(ctx context.Context, userID, productID, variantID string, qty int) (*Item, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}

	// Resolve the selection first so a bad variant fails with NotFound
	// instead of surfacing as a failed stock update.
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if variantID != "" {
		if _, err := p.Variant(variantID); err != nil {
			return nil, err
		}
	}

	item, err := s.carts.AddItem(ctx, userID, inventory.ItemRef{ProductID: productID, VariantID: variantID}, qty)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItem sets the line to an absolute quantity of at least 1, reserving
// or releasing the difference against stock.
func (s *Service) UpdateItem(ctx context.Context, userID, itemID string, qty int) (*Item, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}
	return s.carts.SetItemQuantity(ctx, userID, itemID, qty)
}

// Remove releases the line's reservation and deletes it.
func (s *Service) Remove(ctx context.Context, userID, itemID string) error {
	return s.carts.RemoveItem(ctx, userID, itemID)
}

// Clear releases every reservation and empties the cart.
func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.carts.Clear(ctx, userID)
}

// ApplyCoupon validates the coupon against the cart's discounted subtotal and
// attaches a snapshot of it. Stock is untouched.
func (s *Service) ApplyCoupon(ctx context.Context, userID, code string) (*AppliedCoupon, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	lines, err := s.priceLines(ctx, c)
	if err != nil {
		return nil, err
	}
	subtotal := pricing.Quote(s.pricing, lines, nil, "").Subtotal

	rule, err := s.coupons.Eligible(ctx, code, userID, subtotal)
	if err != nil {
		return nil, err
	}

	ac := &AppliedCoupon{
		Code:          rule.Code,
		DiscountType:  rule.DiscountType,
		DiscountValue: rule.Value,
	}
	if err := s.carts.SetCoupon(ctx, userID, ac); err != nil {
		return nil, errors.Wrap(err, "set coupon")
	}
	return ac, nil
}

// RemoveCoupon detaches any applied coupon from the cart.
func (s *Service) RemoveCoupon(ctx context.Context, userID string) error {
	return s.carts.ClearCoupon(ctx, userID)
}

// QuoteResult pairs a cart with its price breakdown.
type QuoteResult struct {
	Cart   *Cart
	Totals pricing.Totals
}

// Quote recomputes the cart's price breakdown: subtotal after per-product
// discounts, the applied coupon's discount, tax, and shipping. It is a pure
// projection and idempotent under repeated calls.
func (s *Service) Quote(ctx context.Context, userID string) (*QuoteResult, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	lines, err := s.priceLines(ctx, c)
	if err != nil {
		return nil, err
	}

	var rule *coupon.Coupon
	if c.Coupon != nil {
		// The snapshot carries enough to evaluate; the full rule is
		// re-validated at checkout.
		rule = &coupon.Coupon{
			Code:         c.Coupon.Code,
			DiscountType: c.Coupon.DiscountType,
			Value:        c.Coupon.DiscountValue,
		}
	}

	return &QuoteResult{
		Cart:   c,
		Totals: pricing.Quote(s.pricing, lines, rule, ""),
	}, nil
}

// priceLines resolves current catalog prices for every cart line
// (last-look pricing: the price at quote time, not at add time).
func (s *Service) priceLines(ctx context.Context, c *Cart) ([]pricing.Line, error) {
	if len(c.Items) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(c.Items))
	seen := make(map[string]struct{}, len(c.Items))
	for _, it := range c.Items {
		if _, ok := seen[it.ProductID]; !ok {
			seen[it.ProductID] = struct{}{}
			ids = append(ids, it.ProductID)
		}
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]*product.Product, len(fetched))
	for i := range fetched {
		byID[fetched[i].ID] = &fetched[i]
	}

	lines := make([]pricing.Line, 0, len(c.Items))
	for _, it := range c.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			return nil, product.ErrNotFound
		}
		unit, err := p.UnitPrice(it.VariantID)
		if err != nil {
			return nil, err
		}
		lines = append(lines, pricing.Line{
			UnitPrice: unit,
			Discount:  p.Discount,
			Quantity:  it.Quantity,
		})
	}
	return lines, nil
}
