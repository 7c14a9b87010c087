package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendhub/marketplace/internal/domain/coupon"
)

const (
	couponColumns = `code, discount_type, value, minimum_purchase, maximum_discount,
		expires_at, usage_limit, usage_limit_per_user, one_time_use, active,
		usage_count, description, created_at`

	getCouponByCodeSQL = `SELECT ` + couponColumns + `
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	listCouponsSQL = `SELECT ` + couponColumns + `
		FROM coupons ORDER BY created_at DESC, code LIMIT $1 OFFSET $2`

	insertCouponSQL = `INSERT INTO coupons (code, discount_type, value, minimum_purchase,
		maximum_discount, expires_at, usage_limit, usage_limit_per_user, one_time_use,
		active, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	setCouponActiveSQL = `UPDATE coupons SET active = $2 WHERE UPPER(code) = UPPER($1)`

	countCouponUsagesSQL = `SELECT COUNT(*) FROM coupon_usages
		WHERE UPPER(code) = UPPER($1) AND user_id = $2`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL. Coupon
// codes are case-insensitive.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code, case-insensitively. Returns
// coupon.ErrNotFound when no such coupon exists; eligibility (active, expiry,
// limits) is the validator's concern.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "finding coupon %q", code)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrapf(err, "finding coupon %q", code)
	}
	return &c, nil
}

// Create inserts a coupon definition. Returns coupon.ErrDuplicateCode when
// the code is already taken.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, insertCouponSQL,
		c.Code, c.DiscountType, c.Value, c.MinimumPurchase,
		c.MaximumDiscount, c.ExpiresAt, c.UsageLimit, c.UsageLimitPerUser, c.OneTimeUse,
		c.Active, c.Description,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return coupon.ErrDuplicateCode
		}
		return errors.Wrapf(err, "creating coupon %q", c.Code)
	}
	return nil
}

// List returns coupon definitions, newest first.
func (r *CouponRepository) List(ctx context.Context, limit, offset int) ([]coupon.Coupon, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, listCouponsSQL, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "listing coupons")
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// SetActive toggles a coupon on or off.
func (r *CouponRepository) SetActive(ctx context.Context, code string, active bool) error {
	tag, err := r.pool.Exec(ctx, setCouponActiveSQL, code, active)
	if err != nil {
		return errors.Wrapf(err, "toggling coupon %q", code)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var c coupon.Coupon
	err := row.Scan(
		&c.Code, &c.DiscountType, &c.Value, &c.MinimumPurchase, &c.MaximumDiscount,
		&c.ExpiresAt, &c.UsageLimit, &c.UsageLimitPerUser, &c.OneTimeUse, &c.Active,
		&c.UsageCount, &c.Description, &c.CreatedAt,
	)
	return c, err
}

var _ coupon.UsageRepository = (*CouponUsageRepository)(nil)

// CouponUsageRepository reads redemption records. Writes happen inside the
// order transaction.
type CouponUsageRepository struct {
	pool *pgxpool.Pool
}

// NewCouponUsageRepository returns a CouponUsageRepository that uses the given pool.
func NewCouponUsageRepository(pool *pgxpool.Pool) *CouponUsageRepository {
	return &CouponUsageRepository{pool: pool}
}

// CountByUser returns how many times the user has redeemed the coupon.
func (r *CouponUsageRepository) CountByUser(ctx context.Context, code, userID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countCouponUsagesSQL, code, userID).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "counting usages of coupon %q", code)
	}
	return n, nil
}
