// Package pricing holds the checkout arithmetic shared by cart quotes and
// order creation: per-product discounts, coupon discounts, tax, and shipping.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/vendhub/marketplace/internal/domain/coupon"
)

// Shipping method identifiers accepted at checkout. Anything else falls back
// to the flat free-above-threshold rule.
const (
	ShippingExpress  = "express"
	ShippingStandard = "standard"
)

var hundred = decimal.NewFromInt(100)

// Config holds the pricing knobs. Defaults match the production rates.
type Config struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	StandardShippingFee   decimal.Decimal
	ExpressShippingFee    decimal.Decimal
}

// DefaultConfig returns the production pricing configuration: 7% tax, free
// shipping above 50, otherwise 5.99 flat; express 15.99, standard 5.99.
func DefaultConfig() Config {
	return Config{
		TaxRate:               decimal.RequireFromString("0.07"),
		FreeShippingThreshold: decimal.NewFromInt(50),
		FlatShippingFee:       decimal.RequireFromString("5.99"),
		StandardShippingFee:   decimal.RequireFromString("5.99"),
		ExpressShippingFee:    decimal.RequireFromString("15.99"),
	}
}

// Line is one priced cart or order line.
type Line struct {
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal // product discount percent, 0-100
	Quantity  int
}

// GrossTotal is unit price times quantity before any discount.
func (l Line) GrossTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// NetTotal applies the per-product percentage discount to the gross total,
// rounded to cents.
func (l Line) NetTotal() decimal.Decimal {
	factor := hundred.Sub(l.Discount).Div(hundred)
	return l.GrossTotal().Mul(factor).Round(2)
}

// Totals is the complete price breakdown for a cart or order.
type Totals struct {
	ItemsTotal      decimal.Decimal // gross, before any discount
	Subtotal        decimal.Decimal // after per-product discounts
	ProductDiscount decimal.Decimal
	CouponDiscount  decimal.Decimal
	Tax             decimal.Decimal
	Shipping        decimal.Decimal
	Total           decimal.Decimal
}

// Quote computes the full breakdown. The coupon may be nil. The coupon
// discount applies to the post-product-discount subtotal; tax applies to the
// taxable amount after all discounts; shipping is chosen by method, falling
// back to the flat free-above-threshold rule. Quote is a pure function: it is
// idempotent and has no side effects.
func Quote(cfg Config, lines []Line, c *coupon.Coupon, shippingMethod string) Totals {
	var t Totals
	t.ItemsTotal = decimal.Zero
	t.Subtotal = decimal.Zero
	for _, l := range lines {
		t.ItemsTotal = t.ItemsTotal.Add(l.GrossTotal())
		t.Subtotal = t.Subtotal.Add(l.NetTotal())
	}
	t.ProductDiscount = t.ItemsTotal.Sub(t.Subtotal)

	t.CouponDiscount = decimal.Zero
	if c != nil {
		t.CouponDiscount = coupon.Evaluate(c, t.Subtotal)
	}

	taxable := t.Subtotal.Sub(t.CouponDiscount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	t.Tax = taxable.Mul(cfg.TaxRate).Round(2)
	t.Shipping = shippingCost(cfg, shippingMethod, t.Subtotal)
	t.Total = taxable.Add(t.Tax).Add(t.Shipping).Round(2)
	return t
}

func shippingCost(cfg Config, method string, subtotal decimal.Decimal) decimal.Decimal {
	switch method {
	case ShippingExpress:
		return cfg.ExpressShippingFee
	case ShippingStandard:
		return cfg.StandardShippingFee
	default:
		if subtotal.GreaterThanOrEqual(cfg.FreeShippingThreshold) {
			return decimal.Zero
		}
		return cfg.FlatShippingFee
	}
}
