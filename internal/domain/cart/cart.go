package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/vendhub/marketplace/internal/domain/coupon"
	"github.com/vendhub/marketplace/internal/domain/inventory"
)

var (
	// ErrItemNotFound is returned when a cart line does not exist.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrInvalidQuantity is returned for quantities below 1. Removal is a
	// separate operation; quantity zero is never accepted.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// Item is one reserved line in a user's cart. The stock it represents was
// decremented when the line was added, so cart quantity and product stock are
// two halves of a single conserved quantity.
type Item struct {
	ID        string
	ProductID string
	VariantID string
	Quantity  int
	AddedAt   time.Time
}

// Ref returns the stock counter this line reserves against.
func (i Item) Ref() inventory.ItemRef {
	return inventory.ItemRef{ProductID: i.ProductID, VariantID: i.VariantID}
}

// AppliedCoupon is the snapshot attached to a cart when a coupon is applied.
// Only code, type, and value are captured; full rule constraints are
// re-validated at checkout.
type AppliedCoupon struct {
	Code          string
	DiscountType  coupon.DiscountType
	DiscountValue decimal.Decimal
}

// Cart is a user's current set of reservations plus an optional coupon.
type Cart struct {
	UserID string
	Items  []Item
	Coupon *AppliedCoupon
}

// Item returns the line with the given ID, or ErrItemNotFound.
func (c *Cart) Item(itemID string) (*Item, error) {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return &c.Items[i], nil
		}
	}
	return nil, ErrItemNotFound
}

// Store persists carts. Implementations must pair every line mutation with
// the matching stock mutation and ledger entry in a single transaction;
// a precondition failure (insufficient stock, missing row) aborts the whole
// operation.
type Store interface {
	// Get returns the user's cart, which may be empty. Fails with
	// user.ErrNotFound when the user does not exist.
	Get(ctx context.Context, userID string) (*Cart, error)
	// AddItem reserves qty units and appends a line, merging into an
	// existing line for the same (product, variant) pair.
	AddItem(ctx context.Context, userID string, ref inventory.ItemRef, qty int) (*Item, error)
	// SetItemQuantity moves the line to an absolute quantity, reserving or
	// releasing the difference.
	SetItemQuantity(ctx context.Context, userID, itemID string, qty int) (*Item, error)
	// RemoveItem releases the line's reservation and deletes it.
	RemoveItem(ctx context.Context, userID, itemID string) error
	// Clear releases every reservation, empties the cart, and drops any
	// applied coupon.
	Clear(ctx context.Context, userID string) error
	SetCoupon(ctx context.Context, userID string, ac *AppliedCoupon) error
	ClearCoupon(ctx context.Context, userID string) error
}
