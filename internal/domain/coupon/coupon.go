package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount, optionally
	// capped by MaximumDiscount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the base amount.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrNotFound is returned when a coupon code does not exist.
	ErrNotFound = errors.New("coupon not found")
	// ErrInactive is returned when a coupon exists but has been deactivated.
	ErrInactive = errors.New("coupon is not active")
	// ErrExpired is returned when a coupon is past its expiry date.
	ErrExpired = errors.New("coupon expired")
	// ErrUsageLimitReached is returned when a coupon has exhausted its global uses.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrAlreadyUsed is returned when the user has exhausted their personal
	// allowance for the coupon (one-time or per-user limit).
	ErrAlreadyUsed = errors.New("coupon already used")
	// ErrDuplicateCode is returned when creating a coupon whose code exists.
	ErrDuplicateCode = errors.New("coupon code already exists")
)

// MinimumPurchaseError indicates the cart subtotal is below the coupon's
// minimum purchase threshold.
type MinimumPurchaseError struct {
	Code    string
	Minimum decimal.Decimal
}

func (e *MinimumPurchaseError) Error() string {
	return "coupon " + e.Code + " requires a minimum purchase of " + e.Minimum.StringFixed(2)
}

// Coupon defines a discount code and its eligibility constraints.
// Zero values disable the corresponding limit: MaximumDiscount zero means
// uncapped, UsageLimit zero means unlimited, and so on.
type Coupon struct {
	Code              string
	DiscountType      DiscountType
	Value             decimal.Decimal
	MinimumPurchase   decimal.Decimal
	MaximumDiscount   decimal.Decimal
	ExpiresAt         *time.Time
	UsageLimit        int
	UsageLimitPerUser int
	OneTimeUse        bool
	Active            bool
	UsageCount        int
	Description       string
	CreatedAt         time.Time
}

// Usage records a single redemption of a coupon, one row per
// (coupon, user, order). Used to enforce per-user and one-time limits.
type Usage struct {
	Code    string
	UserID  string
	OrderID string
	UsedAt  time.Time
}

// Repository provides lookup and mutation of coupon definitions.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	List(ctx context.Context, limit, offset int) ([]Coupon, error)
	SetActive(ctx context.Context, code string, active bool) error
}

// UsageRepository provides access to redemption records.
type UsageRepository interface {
	CountByUser(ctx context.Context, code, userID string) (int, error)
}
