package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendhub/marketplace/internal/domain/cart"
	"github.com/vendhub/marketplace/internal/domain/inventory"
	"github.com/vendhub/marketplace/internal/domain/user"
)

const (
	userExistsSQL = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`

	listCartItemsSQL = `SELECT id, product_id, variant_id, quantity, added_at
		FROM cart_items WHERE user_id = $1 ORDER BY added_at, id`

	getCartCouponSQL = `SELECT code, discount_type, discount_value
		FROM cart_coupons WHERE user_id = $1`

	upsertCartItemSQL = `INSERT INTO cart_items (id, user_id, product_id, variant_id, quantity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, product_id, variant_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING id, quantity, added_at`

	getCartItemForUpdateSQL = `SELECT product_id, variant_id, quantity, added_at
		FROM cart_items WHERE id = $1 AND user_id = $2 FOR UPDATE`

	setCartItemQuantitySQL = `UPDATE cart_items SET quantity = $1 WHERE id = $2`

	deleteCartItemSQL = `DELETE FROM cart_items WHERE id = $1 AND user_id = $2
		RETURNING product_id, variant_id, quantity`

	deleteCartItemsSQL = `DELETE FROM cart_items WHERE user_id = $1
		RETURNING product_id, variant_id, quantity`

	upsertCartCouponSQL = `INSERT INTO cart_coupons (user_id, code, discount_type, discount_value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id)
		DO UPDATE SET code = $2, discount_type = $3, discount_value = $4, applied_at = now()`

	deleteCartCouponSQL = `DELETE FROM cart_coupons WHERE user_id = $1`
)

var _ cart.Store = (*CartStore)(nil)

// CartStore implements cart.Store backed by PostgreSQL. Every line mutation
// and its stock counterpart commit in one transaction, so cart contents plus
// remaining stock always add up.
type CartStore struct {
	pool *pgxpool.Pool
}

// NewCartStore returns a CartStore that uses the given pool.
func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

// Get returns the user's cart, empty when no lines exist.
func (s *CartStore) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	if err := s.checkUser(ctx, userID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, listCartItemsSQL, userID)
	if err != nil {
		return nil, errors.Wrap(err, "listing cart items")
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Item, error) {
		var it cart.Item
		err := row.Scan(&it.ID, &it.ProductID, &it.VariantID, &it.Quantity, &it.AddedAt)
		return it, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing cart items")
	}

	c := &cart.Cart{UserID: userID, Items: items}

	var ac cart.AppliedCoupon
	err = s.pool.QueryRow(ctx, getCartCouponSQL, userID).Scan(&ac.Code, &ac.DiscountType, &ac.DiscountValue)
	switch {
	case err == nil:
		c.Coupon = &ac
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return nil, errors.Wrap(err, "getting cart coupon")
	}
	return c, nil
}

// AddItem reserves qty units and upserts the line, merging with an existing
// line for the same selection.
func (s *CartStore) AddItem(ctx context.Context, userID string, ref inventory.ItemRef, qty int) (*cart.Item, error) {
	if err := s.checkUser(ctx, userID); err != nil {
		return nil, err
	}

	item := cart.Item{ProductID: ref.ProductID, VariantID: ref.VariantID}
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		prev, next, err := reserveStockTx(ctx, tx, ref, qty)
		if err != nil {
			return err
		}
		if err := insertLedgerTx(ctx, tx, ref, prev, next, "cart reservation", userID); err != nil {
			return err
		}

		return tx.QueryRow(ctx, upsertCartItemSQL,
			uuid.NewString(), userID, ref.ProductID, ref.VariantID, qty,
		).Scan(&item.ID, &item.Quantity, &item.AddedAt)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// SetItemQuantity moves the line to an absolute quantity, reserving or
// releasing the difference.
func (s *CartStore) SetItemQuantity(ctx context.Context, userID, itemID string, qty int) (*cart.Item, error) {
	item := cart.Item{ID: itemID, Quantity: qty}
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		var current int
		err := tx.QueryRow(ctx, getCartItemForUpdateSQL, itemID, userID).Scan(
			&item.ProductID, &item.VariantID, &current, &item.AddedAt,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return cart.ErrItemNotFound
			}
			return errors.Wrapf(err, "getting cart item %q", itemID)
		}
		if current == qty {
			return nil
		}

		ref := item.Ref()
		var prev, next int
		if qty > current {
			prev, next, err = reserveStockTx(ctx, tx, ref, qty-current)
		} else {
			prev, next, err = releaseStockTx(ctx, tx, ref, current-qty)
		}
		if err != nil {
			return err
		}
		if err := insertLedgerTx(ctx, tx, ref, prev, next, "cart reservation", userID); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, setCartItemQuantitySQL, qty, itemID)
		return errors.Wrapf(err, "updating cart item %q", itemID)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// RemoveItem releases the line's reservation and deletes it.
func (s *CartStore) RemoveItem(ctx context.Context, userID, itemID string) error {
	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		var (
			ref inventory.ItemRef
			qty int
		)
		err := tx.QueryRow(ctx, deleteCartItemSQL, itemID, userID).Scan(&ref.ProductID, &ref.VariantID, &qty)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return cart.ErrItemNotFound
			}
			return errors.Wrapf(err, "removing cart item %q", itemID)
		}

		prev, next, err := releaseStockTx(ctx, tx, ref, qty)
		if err != nil {
			return err
		}
		return insertLedgerTx(ctx, tx, ref, prev, next, "cart release", userID)
	})
}

// Clear releases every reservation, deletes all lines, and drops the coupon.
func (s *CartStore) Clear(ctx context.Context, userID string) error {
	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		return clearCartTx(ctx, tx, userID, true)
	})
}

// SetCoupon attaches a coupon snapshot to the cart, replacing any previous one.
func (s *CartStore) SetCoupon(ctx context.Context, userID string, ac *cart.AppliedCoupon) error {
	_, err := s.pool.Exec(ctx, upsertCartCouponSQL, userID, ac.Code, ac.DiscountType, ac.DiscountValue)
	return errors.Wrap(err, "setting cart coupon")
}

// ClearCoupon detaches any applied coupon.
func (s *CartStore) ClearCoupon(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, deleteCartCouponSQL, userID)
	return errors.Wrap(err, "clearing cart coupon")
}

func (s *CartStore) checkUser(ctx context.Context, userID string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, userExistsSQL, userID).Scan(&exists); err != nil {
		return errors.Wrap(err, "checking user")
	}
	if !exists {
		return user.ErrNotFound
	}
	return nil
}

// clearCartTx deletes the user's cart lines and coupon. When releaseStock is
// set, the reserved stock flows back to the counters; checkout passes false
// because the reservation converts into the order instead.
func clearCartTx(ctx context.Context, tx pgx.Tx, userID string, releaseStock bool) error {
	rows, err := tx.Query(ctx, deleteCartItemsSQL, userID)
	if err != nil {
		return errors.Wrap(err, "clearing cart")
	}
	type line struct {
		ref inventory.ItemRef
		qty int
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (line, error) {
		var l line
		err := row.Scan(&l.ref.ProductID, &l.ref.VariantID, &l.qty)
		return l, err
	})
	if err != nil {
		return errors.Wrap(err, "clearing cart")
	}

	if releaseStock {
		for _, l := range lines {
			prev, next, err := releaseStockTx(ctx, tx, l.ref, l.qty)
			if err != nil {
				return err
			}
			if err := insertLedgerTx(ctx, tx, l.ref, prev, next, "cart release", userID); err != nil {
				return err
			}
		}
	}

	_, err = tx.Exec(ctx, deleteCartCouponSQL, userID)
	return errors.Wrap(err, "clearing cart coupon")
}
