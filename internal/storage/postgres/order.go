package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vendhub/marketplace/internal/domain/coupon"
	"github.com/vendhub/marketplace/internal/domain/order"
)

const (
	nextOrderNumberSQL = `UPDATE order_numbers SET next = next + 1 RETURNING next - 1`

	insertOrderSQL = `INSERT INTO orders (id, number, user_id, guest_email, guest_name, status,
		items, subtotal, product_discount, coupon_discount, tax, shipping_cost, total,
		coupon_code, shipping_method, payment_method, notes,
		shipping_address, billing_address, history, stock_restored, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6,
			$7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17,
			$18, $19, $20, $21, $22)`

	orderColumns = `id, number, COALESCE(user_id, ''), guest_email, guest_name, status,
		items, subtotal, product_discount, coupon_discount, tax, shipping_cost, total,
		coupon_code, shipping_method, payment_method, notes,
		shipping_address, billing_address, history, refund,
		stock_restored, tracking_number, carrier, created_at`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`

	lockOrderSQL = `SELECT status, items, history, stock_restored
		FROM orders WHERE id = $1 FOR UPDATE`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, history = $3,
		stock_restored = stock_restored OR $4,
		tracking_number = CASE WHEN $5 <> '' THEN $5 ELSE tracking_number END,
		carrier = CASE WHEN $6 <> '' THEN $6 ELSE carrier END,
		updated_at = now()
		WHERE id = $1`

	setOrderRefundSQL = `UPDATE orders SET refund = $2 WHERE id = $1`

	insertCouponUsageSQL = `INSERT INTO coupon_usages (code, user_id, order_id)
		VALUES ($1, $2, $3)`

	incrementCouponUsageSQL = `UPDATE coupons SET usage_count = usage_count + 1 WHERE code = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Order
// snapshots (items, history, addresses, refund) live in JSONB columns; the
// order number comes from a single-row counter advanced inside the order's
// own transaction, so numbers are gap-free and increase in commit order.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CreateFromCart persists the order, consumes the owner's cart lines without
// touching stock (the reservation converts into the order), and records the
// coupon redemption when one applies.
func (r *OrderRepository) CreateFromCart(ctx context.Context, o *order.Order, usage *coupon.Usage) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := r.insertOrderTx(ctx, tx, o); err != nil {
			return err
		}
		if err := clearCartTx(ctx, tx, o.UserID, false); err != nil {
			return err
		}
		return recordCouponUsageTx(ctx, tx, usage)
	})
}

// CreateGuest persists the order, reserving stock inline for every item.
func (r *OrderRepository) CreateGuest(ctx context.Context, o *order.Order, usage *coupon.Usage) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		actor := ""
		if o.Guest != nil {
			actor = o.Guest.Email
		}
		for _, it := range o.Items {
			prev, next, err := reserveStockTx(ctx, tx, it.Ref(), it.Quantity)
			if err != nil {
				return err
			}
			if err := insertLedgerTx(ctx, tx, it.Ref(), prev, next, "guest order", actor); err != nil {
				return err
			}
		}
		if err := r.insertOrderTx(ctx, tx, o); err != nil {
			return err
		}
		return recordCouponUsageTx(ctx, tx, usage)
	})
}

// Get returns the order by ID, or order.ErrNotFound.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "getting order %q", id)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "getting order %q", id)
	}
	return &o, nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]order.Order, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "listing orders")
	}
	return pgx.CollectRows(rows, scanOrder)
}

// Transition moves the order from one status to another while holding the row
// lock, so concurrent transitions serialize and the loser observes
// ErrStatusConflict. Stock restores at most once per order, guarded by the
// stock_restored flag.
func (r *OrderRepository) Transition(ctx context.Context, id string, from, to order.Status, entry order.HistoryEntry, restoreStock bool, tracking, carrier string) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := r.transitionTx(ctx, tx, id, from, to, entry, restoreStock, tracking, carrier)
		return err
	})
}

// RecordRefund is Transition plus the refund record.
func (r *OrderRepository) RecordRefund(ctx context.Context, id string, from, to order.Status, refund order.Refund, entry order.HistoryEntry, restoreStock bool) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := r.transitionTx(ctx, tx, id, from, to, entry, restoreStock, "", ""); err != nil {
			return err
		}

		refundJSON, err := json.Marshal(refund)
		if err != nil {
			return errors.Wrap(err, "marshaling refund")
		}
		_, err = tx.Exec(ctx, setOrderRefundSQL, id, refundJSON)
		return errors.Wrapf(err, "recording refund for order %q", id)
	})
}

func (r *OrderRepository) transitionTx(ctx context.Context, tx pgx.Tx, id string, from, to order.Status, entry order.HistoryEntry, restoreStock bool, tracking, carrier string) (restored bool, err error) {
	var (
		current       order.Status
		itemsJSON     []byte
		historyJSON   []byte
		stockRestored bool
	)
	err = tx.QueryRow(ctx, lockOrderSQL, id).Scan(&current, &itemsJSON, &historyJSON, &stockRestored)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, order.ErrNotFound
		}
		return false, errors.Wrapf(err, "locking order %q", id)
	}
	if current != from {
		return false, order.ErrStatusConflict
	}

	var history []order.HistoryEntry
	if err := json.Unmarshal(historyJSON, &history); err != nil {
		return false, errors.Wrapf(err, "unmarshaling history of order %q", id)
	}
	history = append(history, entry)
	newHistory, err := json.Marshal(history)
	if err != nil {
		return false, errors.Wrap(err, "marshaling history")
	}

	_, err = tx.Exec(ctx, updateOrderStatusSQL, id, to, newHistory, restoreStock, tracking, carrier)
	if err != nil {
		return false, errors.Wrapf(err, "updating order %q", id)
	}

	if !restoreStock || stockRestored {
		return false, nil
	}

	var items []order.Item
	if err := json.Unmarshal(itemsJSON, &items); err != nil {
		return false, errors.Wrapf(err, "unmarshaling items of order %q", id)
	}
	reason := "order " + string(to)
	for _, it := range items {
		prev, next, err := releaseStockTx(ctx, tx, it.Ref(), it.Quantity)
		if err != nil {
			return false, err
		}
		if err := insertLedgerTx(ctx, tx, it.Ref(), prev, next, reason, entry.Note); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (r *OrderRepository) insertOrderTx(ctx context.Context, tx pgx.Tx, o *order.Order) error {
	var seq int64
	if err := tx.QueryRow(ctx, nextOrderNumberSQL).Scan(&seq); err != nil {
		return errors.Wrap(err, "assigning order number")
	}
	o.Number = fmt.Sprintf("ORD-%06d", seq)

	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshaling order items")
	}
	historyJSON, err := json.Marshal(o.History)
	if err != nil {
		return errors.Wrap(err, "marshaling order history")
	}
	shippingJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return errors.Wrap(err, "marshaling shipping address")
	}
	var billingJSON []byte
	if o.BillingAddress != nil {
		if billingJSON, err = json.Marshal(o.BillingAddress); err != nil {
			return errors.Wrap(err, "marshaling billing address")
		}
	}

	guestEmail, guestName := "", ""
	if o.Guest != nil {
		guestEmail, guestName = o.Guest.Email, o.Guest.Name
	}

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.Number, o.UserID, guestEmail, guestName, o.Status,
		itemsJSON, o.Subtotal, o.ProductDiscount, o.CouponDiscount, o.Tax, o.ShippingCost, o.Total,
		o.CouponCode, o.ShippingMethod, o.PaymentMethod, o.Notes,
		shippingJSON, billingJSON, historyJSON, o.StockRestored, o.CreatedAt,
	)
	return errors.Wrapf(err, "creating order %q", o.ID)
}

func recordCouponUsageTx(ctx context.Context, tx pgx.Tx, usage *coupon.Usage) error {
	if usage == nil {
		return nil
	}
	if _, err := tx.Exec(ctx, insertCouponUsageSQL, usage.Code, usage.UserID, usage.OrderID); err != nil {
		return errors.Wrapf(err, "recording usage of coupon %q", usage.Code)
	}
	if _, err := tx.Exec(ctx, incrementCouponUsageSQL, usage.Code); err != nil {
		return errors.Wrapf(err, "incrementing usage of coupon %q", usage.Code)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o            order.Order
		guestEmail   string
		guestName    string
		itemsJSON    []byte
		shippingJSON []byte
		billingJSON  []byte
		historyJSON  []byte
		refundJSON   []byte
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.UserID, &guestEmail, &guestName, &o.Status,
		&itemsJSON, &o.Subtotal, &o.ProductDiscount, &o.CouponDiscount, &o.Tax, &o.ShippingCost, &o.Total,
		&o.CouponCode, &o.ShippingMethod, &o.PaymentMethod, &o.Notes,
		&shippingJSON, &billingJSON, &historyJSON, &refundJSON,
		&o.StockRestored, &o.TrackingNumber, &o.Carrier, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}

	if guestEmail != "" || guestName != "" {
		o.Guest = &order.GuestDetails{Email: guestEmail, Name: guestName}
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, errors.Wrap(err, "unmarshaling order items")
	}
	if err := json.Unmarshal(shippingJSON, &o.ShippingAddress); err != nil {
		return o, errors.Wrap(err, "unmarshaling shipping address")
	}
	if len(billingJSON) > 0 {
		o.BillingAddress = new(order.Address)
		if err := json.Unmarshal(billingJSON, o.BillingAddress); err != nil {
			return o, errors.Wrap(err, "unmarshaling billing address")
		}
	}
	if err := json.Unmarshal(historyJSON, &o.History); err != nil {
		return o, errors.Wrap(err, "unmarshaling order history")
	}
	if len(refundJSON) > 0 {
		o.Refund = new(order.Refund)
		if err := json.Unmarshal(refundJSON, o.Refund); err != nil {
			return o, errors.Wrap(err, "unmarshaling refund")
		}
	}
	return o, nil
}
