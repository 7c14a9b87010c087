package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validator checks whether a user may redeem a coupon against a given
// discounted subtotal. It performs no mutation; redemptions are recorded by
// the order transaction that consumes the coupon.
type Validator struct {
	coupons Repository
	usages  UsageRepository
	now     func() time.Time
}

// NewValidator creates a Validator backed by the given repositories.
func NewValidator(coupons Repository, usages UsageRepository) *Validator {
	return &Validator{coupons: coupons, usages: usages, now: time.Now}
}

// Eligible looks up the coupon and verifies every redemption constraint:
// existence, active flag, expiry, minimum purchase (against the discounted
// subtotal), the global usage limit, and the per-user/one-time limits.
// It returns the coupon definition so callers can evaluate the discount.
func (v *Validator) Eligible(ctx context.Context, code, userID string, subtotal decimal.Decimal) (*Coupon, error) {
	c, err := v.coupons.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if !c.Active {
		return nil, ErrInactive
	}
	if c.ExpiresAt != nil && v.now().After(*c.ExpiresAt) {
		return nil, ErrExpired
	}
	if c.MinimumPurchase.IsPositive() && subtotal.LessThan(c.MinimumPurchase) {
		return nil, &MinimumPurchaseError{Code: c.Code, Minimum: c.MinimumPurchase}
	}
	if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
		return nil, ErrUsageLimitReached
	}

	perUser := c.UsageLimitPerUser
	if c.OneTimeUse && (perUser == 0 || perUser > 1) {
		perUser = 1
	}
	if perUser > 0 && userID != "" {
		used, err := v.usages.CountByUser(ctx, c.Code, userID)
		if err != nil {
			return nil, errors.Wrap(err, "count coupon usage")
		}
		if used >= perUser {
			return nil, ErrAlreadyUsed
		}
	}

	return c, nil
}
