package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCouponRepo struct {
	coupon *Coupon
	err    error
}

func (m *mockCouponRepo) FindByCode(_ context.Context, _ string) (*Coupon, error) {
	return m.coupon, m.err
}
func (m *mockCouponRepo) Create(_ context.Context, _ *Coupon) error           { return nil }
func (m *mockCouponRepo) List(_ context.Context, _, _ int) ([]Coupon, error)  { return nil, nil }
func (m *mockCouponRepo) SetActive(_ context.Context, _ string, _ bool) error { return nil }

type mockUsageRepo struct {
	count int
	err   error
}

func (m *mockUsageRepo) CountByUser(_ context.Context, _, _ string) (int, error) {
	return m.count, m.err
}

func TestValidatorEligible(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	past := fixedNow.Add(-time.Hour)
	future := fixedNow.Add(time.Hour)

	tests := []struct {
		name     string
		coupon   *Coupon
		repoErr  error
		used     int
		subtotal string
		wantErr  error
	}{
		{
			name:     "active unrestricted coupon is eligible",
			coupon:   &Coupon{Code: "SAVE10", DiscountType: DiscountPercentage, Value: dec("10"), Active: true},
			subtotal: "100",
		},
		{
			name:     "unknown code",
			repoErr:  ErrNotFound,
			subtotal: "100",
			wantErr:  ErrNotFound,
		},
		{
			name:     "deactivated coupon",
			coupon:   &Coupon{Code: "OFF", Active: false},
			subtotal: "100",
			wantErr:  ErrInactive,
		},
		{
			name:     "expired coupon",
			coupon:   &Coupon{Code: "OLD", Active: true, ExpiresAt: &past},
			subtotal: "100",
			wantErr:  ErrExpired,
		},
		{
			name:     "unexpired coupon passes",
			coupon:   &Coupon{Code: "FRESH", Active: true, ExpiresAt: &future},
			subtotal: "100",
		},
		{
			name:     "subtotal below minimum purchase",
			coupon:   &Coupon{Code: "MIN50", Active: true, MinimumPurchase: dec("50")},
			subtotal: "49.99",
			wantErr:  &MinimumPurchaseError{},
		},
		{
			name:     "subtotal at minimum purchase passes",
			coupon:   &Coupon{Code: "MIN50", Active: true, MinimumPurchase: dec("50")},
			subtotal: "50",
		},
		{
			name:     "global usage limit reached",
			coupon:   &Coupon{Code: "CAP", Active: true, UsageLimit: 100, UsageCount: 100},
			subtotal: "100",
			wantErr:  ErrUsageLimitReached,
		},
		{
			name:     "global usage under limit passes",
			coupon:   &Coupon{Code: "CAP", Active: true, UsageLimit: 100, UsageCount: 99},
			subtotal: "100",
		},
		{
			name:     "one-time coupon already redeemed by user",
			coupon:   &Coupon{Code: "ONCE", Active: true, OneTimeUse: true},
			used:     1,
			subtotal: "100",
			wantErr:  ErrAlreadyUsed,
		},
		{
			name:     "per-user limit exhausted",
			coupon:   &Coupon{Code: "TWICE", Active: true, UsageLimitPerUser: 2},
			used:     2,
			subtotal: "100",
			wantErr:  ErrAlreadyUsed,
		},
		{
			name:     "per-user limit with room passes",
			coupon:   &Coupon{Code: "TWICE", Active: true, UsageLimitPerUser: 2},
			used:     1,
			subtotal: "100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(
				&mockCouponRepo{coupon: tt.coupon, err: tt.repoErr},
				&mockUsageRepo{count: tt.used},
			)
			v.now = func() time.Time { return fixedNow }

			got, err := v.Eligible(context.Background(), "CODE", "u1", dec(tt.subtotal))

			if tt.wantErr != nil {
				if _, ok := tt.wantErr.(*MinimumPurchaseError); ok {
					var mpe *MinimumPurchaseError
					require.ErrorAs(t, err, &mpe)
				} else {
					require.ErrorIs(t, err, tt.wantErr)
				}
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.coupon.Code, got.Code)
		})
	}
}

// Guest checkouts have no user identity, so per-user limits cannot apply.
func TestValidatorEligibleGuestSkipsPerUserLimit(t *testing.T) {
	v := NewValidator(
		&mockCouponRepo{coupon: &Coupon{Code: "ONCE", Active: true, OneTimeUse: true}},
		&mockUsageRepo{count: 5},
	)

	got, err := v.Eligible(context.Background(), "ONCE", "", decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, "ONCE", got.Code)
}
