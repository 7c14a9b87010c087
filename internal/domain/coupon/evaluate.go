package coupon

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Evaluate computes the discount amount for the given coupon and base amount.
// The result is never negative, never exceeds base, and is rounded to two
// decimal places (half away from zero on cents).
//
// Percentage coupons are additionally capped by MaximumDiscount when set;
// fixed coupons are capped at the base amount. An unknown discount type
// yields zero.
func Evaluate(c *Coupon, base decimal.Decimal) decimal.Decimal {
	if base.IsNegative() || base.IsZero() {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		amount = base.Mul(c.Value).Div(hundred)
		if c.MaximumDiscount.IsPositive() {
			amount = decimal.Min(amount, c.MaximumDiscount)
		}
	case DiscountFixed:
		amount = c.Value
	default:
		return decimal.Zero
	}

	amount = decimal.Min(amount, base)
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount.Round(2)
}
