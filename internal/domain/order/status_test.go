package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name  string
		from  Status
		to    Status
		admin bool
		want  bool
	}{
		{name: "pending to processing", from: StatusPending, to: StatusProcessing, want: true},
		{name: "pending to cancelled", from: StatusPending, to: StatusCancelled, want: true},
		{name: "pending to shipped skips processing", from: StatusPending, to: StatusShipped, want: false},
		{name: "processing to shipped", from: StatusProcessing, to: StatusShipped, want: true},
		{name: "processing to cancelled", from: StatusProcessing, to: StatusCancelled, want: true},
		{name: "shipped to delivered", from: StatusShipped, to: StatusDelivered, want: true},
		{name: "shipped cannot revert to pending", from: StatusShipped, to: StatusPending, want: false},
		{name: "shipped cannot revert to pending even for admin", from: StatusShipped, to: StatusPending, admin: true, want: false},
		{name: "shipped cannot be cancelled by customer", from: StatusShipped, to: StatusCancelled, want: false},
		{name: "shipped can be cancelled by admin", from: StatusShipped, to: StatusCancelled, admin: true, want: true},
		{name: "delivered cannot revert to processing", from: StatusDelivered, to: StatusProcessing, admin: true, want: false},
		{name: "delivered to refunded by admin", from: StatusDelivered, to: StatusRefunded, admin: true, want: true},
		{name: "delivered terminal for customer", from: StatusDelivered, to: StatusRefunded, want: false},
		{name: "cancelled terminal for customer", from: StatusCancelled, to: StatusProcessing, want: false},
		{name: "cancelled reopened by admin", from: StatusCancelled, to: StatusProcessing, admin: true, want: true},
		{name: "cancelled reclassified refunded by admin", from: StatusCancelled, to: StatusRefunded, admin: true, want: true},
		{name: "refunded never back to pending", from: StatusRefunded, to: StatusPending, admin: true, want: false},
		{name: "refunded to cancelled by admin", from: StatusRefunded, to: StatusCancelled, admin: true, want: true},
		{name: "no self transition", from: StatusCancelled, to: StatusCancelled, admin: true, want: false},
		{name: "cancel already cancelled", from: StatusCancelled, to: StatusCancelled, want: false},
		{name: "admin refund from processing", from: StatusProcessing, to: StatusPartialRefund, admin: true, want: true},
		{name: "customer cannot partial-refund", from: StatusProcessing, to: StatusPartialRefund, want: false},
		{name: "partial-refund to refunded by admin", from: StatusPartialRefund, to: StatusRefunded, admin: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to, tt.admin))
		})
	}
}

func TestValidUpdateTarget(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded} {
		assert.True(t, s.ValidUpdateTarget(), "%s", s)
	}
	assert.False(t, StatusPartialRefund.ValidUpdateTarget(), "partial refunds only via the refund operation")
	assert.False(t, Status("bogus").ValidUpdateTarget())
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusRefunded.Terminal())
	assert.False(t, StatusPartialRefund.Terminal())
	assert.False(t, StatusPending.Terminal())
}

func TestRestoresStock(t *testing.T) {
	assert.True(t, RestoresStock(StatusCancelled))
	assert.True(t, RestoresStock(StatusRefunded))
	assert.False(t, RestoresStock(StatusPartialRefund))
	assert.False(t, RestoresStock(StatusShipped))
}
