package order

// Status is an order lifecycle state.
type Status string

const (
	StatusPending       Status = "pending"
	StatusProcessing    Status = "processing"
	StatusShipped       Status = "shipped"
	StatusDelivered     Status = "delivered"
	StatusCancelled     Status = "cancelled"
	StatusRefunded      Status = "refunded"
	StatusPartialRefund Status = "partial-refund"
)

// IllegalTransitionError indicates a status change the lifecycle forbids.
type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return "illegal order status transition from " + string(e.From) + " to " + string(e.To)
}

// ValidUpdateTarget reports whether s is one of the statuses accepted by the
// status-update operation. Partial refunds are only reachable through the
// refund operation.
func (s Status) ValidUpdateTarget() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered,
		StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Terminal reports whether s ends the lifecycle for ordinary users. Admins
// may still override terminal states within the limits of CanTransition.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusRefunded
}

// forward is the customer-visible state machine: fulfilment moves ahead, and
// an order can be cancelled until it ships.
var forward = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true},
}

// CanTransition reports whether an order may move from one status to another.
//
// Shipped or delivered orders never revert to pending/processing. Terminal
// states only move under admin privilege, and only to processing (re-open),
// cancelled, or refunded; refunded never goes back to pending. Admins may
// otherwise move a non-terminal order anywhere, including refund states;
// everyone else follows the forward table.
func CanTransition(from, to Status, admin bool) bool {
	if from == to {
		return false
	}
	if (from == StatusShipped || from == StatusDelivered) &&
		(to == StatusPending || to == StatusProcessing) {
		return false
	}
	if from.Terminal() {
		if !admin {
			return false
		}
		return to == StatusProcessing || to == StatusCancelled || to == StatusRefunded
	}
	if admin {
		return true
	}
	return forward[from][to]
}

// RestoresStock reports whether first entry into the status returns the
// order's reserved units to stock. The repository's stock-restored flag
// guarantees this happens at most once per order.
func RestoresStock(to Status) bool {
	return to == StatusCancelled || to == StatusRefunded
}
