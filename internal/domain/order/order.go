package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/vendhub/marketplace/internal/domain/coupon"
	"github.com/vendhub/marketplace/internal/domain/inventory"
)

var (
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyCart is returned when checkout finds no cart lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrForbidden is returned when the requester does not own the order.
	ErrForbidden = errors.New("not the order owner")
	// ErrStatusConflict is returned when a status transition loses the
	// compare-and-swap race against a concurrent change.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

// InvalidRefundAmountError indicates a refund outside (0, order total].
type InvalidRefundAmountError struct {
	Amount decimal.Decimal
	Total  decimal.Decimal
}

func (e *InvalidRefundAmountError) Error() string {
	return "refund amount " + e.Amount.StringFixed(2) +
		" must be positive and at most the order total " + e.Total.StringFixed(2)
}

// Item is an immutable snapshot of one ordered line, priced at checkout time.
type Item struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id,omitempty"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
}

// Ref returns the stock counter the line was reserved against.
func (i Item) Ref() inventory.ItemRef {
	return inventory.ItemRef{ProductID: i.ProductID, VariantID: i.VariantID}
}

// Address is a shipping or billing address snapshot.
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// GuestDetails identifies a checkout without a registered account.
type GuestDetails struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// HistoryEntry is one append-only status history record.
type HistoryEntry struct {
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
	Note   string    `json:"note,omitempty"`
}

// Refund records a processed refund against an order.
type Refund struct {
	Amount        decimal.Decimal `json:"amount"`
	At            time.Time       `json:"at"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	ProcessedBy   string          `json:"processed_by"`
}

// Order is an immutable checkout snapshot plus its mutable lifecycle state.
type Order struct {
	ID              string
	Number          string
	UserID          string
	Guest           *GuestDetails
	Items           []Item
	ShippingAddress Address
	BillingAddress  *Address
	PaymentMethod   string
	ShippingMethod  string
	Notes           string

	Subtotal        decimal.Decimal
	ProductDiscount decimal.Decimal
	CouponDiscount  decimal.Decimal
	CouponCode      string
	Tax             decimal.Decimal
	ShippingCost    decimal.Decimal
	Total           decimal.Decimal

	Status         Status
	History        []HistoryEntry
	Refund         *Refund
	TrackingNumber string
	Carrier        string
	StockRestored  bool
	CreatedAt      time.Time
}

// Email returns the notification recipient for the order.
func (o *Order) Email(userEmail string) string {
	if o.Guest != nil {
		return o.Guest.Email
	}
	return userEmail
}

// Repository defines persistence for orders. Implementations must make each
// create or transition a single transaction covering every dependent write
// (cart consumption, stock reservation or restoration, ledger and coupon
// usage rows) and assign the order number from a gap-free counter.
type Repository interface {
	// CreateFromCart persists the order and empties the owner's cart.
	// Stock is untouched: it was reserved when the lines entered the cart.
	CreateFromCart(ctx context.Context, o *Order, usage *coupon.Usage) error
	// CreateGuest persists the order, reserving stock inline per item with
	// inventory.InsufficientStockError semantics.
	CreateGuest(ctx context.Context, o *Order, usage *coupon.Usage) error
	Get(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error)
	// Transition performs a compare-and-swap on the current status,
	// appends the history entry, and (when restoreStock is set and the
	// order has not yet restored stock) returns every item's units to
	// stock. Fails with ErrStatusConflict when the CAS loses.
	Transition(ctx context.Context, id string, from, to Status, entry HistoryEntry, restoreStock bool, tracking, carrier string) error
	// RecordRefund is Transition plus the refund record.
	RecordRefund(ctx context.Context, id string, from, to Status, r Refund, entry HistoryEntry, restoreStock bool) error
}
