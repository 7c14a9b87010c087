// Package inventory defines the sole entry points for stock mutation and the
// append-only ledger recorded alongside every stock change.
package inventory

import (
	"context"
	"fmt"
	"time"
)

// ChangeType classifies a ledger entry by the sign of its stock delta.
type ChangeType string

const (
	ChangeIncrease   ChangeType = "increase"
	ChangeDecrease   ChangeType = "decrease"
	ChangeAdjustment ChangeType = "adjustment"
)

// Classify derives the change type from the previous and new stock levels.
// A zero delta (an explicit "set" that lands on the current value) is an
// adjustment.
func Classify(previous, next int) ChangeType {
	switch {
	case next > previous:
		return ChangeIncrease
	case next < previous:
		return ChangeDecrease
	default:
		return ChangeAdjustment
	}
}

// ItemRef identifies a stock counter: a product, or a specific variant of it.
// An empty VariantID refers to product-level stock.
type ItemRef struct {
	ProductID string
	VariantID string
}

func (r ItemRef) String() string {
	if r.VariantID == "" {
		return r.ProductID
	}
	return r.ProductID + "/" + r.VariantID
}

// Entry is one row of the stock ledger. The ledger is audit-only: it is never
// read back for control flow.
type Entry struct {
	ID            int64
	Ref           ItemRef
	Type          ChangeType
	PreviousStock int
	NewStock      int
	Reason        string
	Actor         string
	CreatedAt     time.Time
}

// InsufficientStockError is returned when a reservation exceeds the stock
// currently available for the item.
type InsufficientStockError struct {
	Ref       ItemRef
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.Ref, e.Requested, e.Available)
}

// Reservations is the single mutation interface for stock counters. Every
// implementation must perform the stock change as an atomic conditional
// update and write the matching ledger entry in the same transaction.
type Reservations interface {
	// Reserve decrements stock by qty, failing with InsufficientStockError
	// when fewer than qty units are available.
	Reserve(ctx context.Context, ref ItemRef, qty int, reason, actor string) error
	// Release increments stock by qty.
	Release(ctx context.Context, ref ItemRef, qty int, reason, actor string) error
	// Adjust sets stock to an absolute value and returns the recorded entry.
	Adjust(ctx context.Context, ref ItemRef, newStock int, reason, actor string) (*Entry, error)
}

// HistoryFilter narrows ledger listings.
type HistoryFilter struct {
	ProductID string
	Limit     int
	Offset    int
}

// Ledger provides read access to the stock ledger for reporting.
type Ledger interface {
	History(ctx context.Context, f HistoryFilter) ([]Entry, error)
}
