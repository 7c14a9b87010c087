package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		coupon Coupon
		base   string
		want   string
	}{
		{
			name:   "percentage",
			coupon: Coupon{DiscountType: DiscountPercentage, Value: dec("10")},
			base:   "100",
			want:   "10",
		},
		{
			name: "percentage capped by maximum discount",
			coupon: Coupon{
				DiscountType:    DiscountPercentage,
				Value:           dec("20"),
				MaximumDiscount: dec("15"),
			},
			base: "100",
			want: "15",
		},
		{
			name: "percentage under maximum discount",
			coupon: Coupon{
				DiscountType:    DiscountPercentage,
				Value:           dec("10"),
				MaximumDiscount: dec("15"),
			},
			base: "100",
			want: "10",
		},
		{
			name:   "percentage 100 equals base",
			coupon: Coupon{DiscountType: DiscountPercentage, Value: dec("100")},
			base:   "42.50",
			want:   "42.50",
		},
		{
			name:   "percentage rounds cents half up",
			coupon: Coupon{DiscountType: DiscountPercentage, Value: dec("15")},
			base:   "33.33", // 4.9995 -> 5.00
			want:   "5.00",
		},
		{
			name:   "fixed",
			coupon: Coupon{DiscountType: DiscountFixed, Value: dec("10")},
			base:   "100",
			want:   "10",
		},
		{
			name:   "fixed capped at base",
			coupon: Coupon{DiscountType: DiscountFixed, Value: dec("25")},
			base:   "12.40",
			want:   "12.40",
		},
		{
			name:   "zero base yields zero",
			coupon: Coupon{DiscountType: DiscountFixed, Value: dec("5")},
			base:   "0",
			want:   "0",
		},
		{
			name:   "negative base yields zero",
			coupon: Coupon{DiscountType: DiscountPercentage, Value: dec("10")},
			base:   "-3",
			want:   "0",
		},
		{
			name:   "unknown type yields zero",
			coupon: Coupon{DiscountType: "bogus", Value: dec("10")},
			base:   "100",
			want:   "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(&tt.coupon, dec(tt.base))
			assert.True(t, dec(tt.want).Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

// The discount must always land in [0, base] whatever the rule says.
func TestEvaluateBounds(t *testing.T) {
	bases := []string{"0.01", "1", "49.99", "100", "12345.67"}
	coupons := []Coupon{
		{DiscountType: DiscountPercentage, Value: dec("150")},
		{DiscountType: DiscountPercentage, Value: dec("0")},
		{DiscountType: DiscountFixed, Value: dec("99999")},
		{DiscountType: DiscountFixed, Value: dec("0.01")},
	}

	for _, b := range bases {
		base := dec(b)
		for _, c := range coupons {
			got := Evaluate(&c, base)
			assert.False(t, got.IsNegative(), "negative discount for base %s", b)
			assert.True(t, got.LessThanOrEqual(base), "discount %s exceeds base %s", got, b)
		}
	}
}
