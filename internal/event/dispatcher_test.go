package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vendhub/marketplace/internal/notify"
)

type capturingSender struct {
	mu            sync.Mutex
	confirmations []notify.OrderConfirmation
	updates       []notify.StatusUpdate
	got           chan struct{}
}

func newCapturingSender() *capturingSender {
	return &capturingSender{got: make(chan struct{}, 16)}
}

func (s *capturingSender) SendOrderConfirmation(_ context.Context, _ string, c notify.OrderConfirmation) error {
	s.mu.Lock()
	s.confirmations = append(s.confirmations, c)
	s.mu.Unlock()
	s.got <- struct{}{}
	return nil
}

func (s *capturingSender) SendStatusUpdate(_ context.Context, _ string, u notify.StatusUpdate) error {
	s.mu.Lock()
	s.updates = append(s.updates, u)
	s.mu.Unlock()
	s.got <- struct{}{}
	return nil
}

func (s *capturingSender) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.got:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestDispatcherRoundtrip(t *testing.T) {
	lg := zaptest.NewLogger(t)
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubsub.Close() })

	sender := newCapturingSender()
	d := NewDispatcher(pubsub, sender, lg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	// gochannel drops messages published before a subscriber is attached, so
	// give Run a moment to subscribe.
	time.Sleep(50 * time.Millisecond)

	bus := NewBus(pubsub, lg)
	bus.PublishOrderCreated(ctx, OrderCreated{
		OrderID:     "o-1",
		OrderNumber: "ORD-000042",
		Email:       "buyer@example.com",
		Total:       "94.50",
		ItemCount:   2,
	})
	sender.wait(t)

	bus.PublishOrderStatusChanged(ctx, OrderStatusChanged{
		OrderID:        "o-1",
		OrderNumber:    "ORD-000042",
		Email:          "buyer@example.com",
		Status:         "shipped",
		TrackingNumber: "1Z999",
		Carrier:        "ups",
	})
	sender.wait(t)

	sender.mu.Lock()
	require.Len(t, sender.confirmations, 1)
	assert.Equal(t, "ORD-000042", sender.confirmations[0].OrderNumber)
	assert.Equal(t, 2, sender.confirmations[0].ItemCount)
	require.Len(t, sender.updates, 1)
	assert.Equal(t, "shipped", sender.updates[0].Status)
	assert.Equal(t, "1Z999", sender.updates[0].TrackingNumber)
	sender.mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestDispatcherSkipsEventsWithoutEmail(t *testing.T) {
	lg := zaptest.NewLogger(t)
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubsub.Close() })

	sender := newCapturingSender()
	d := NewDispatcher(pubsub, sender, lg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)

	bus := NewBus(pubsub, lg)
	bus.PublishOrderCreated(ctx, OrderCreated{OrderID: "o-2", OrderNumber: "ORD-000043"})
	bus.PublishOrderStatusChanged(ctx, OrderStatusChanged{
		OrderID:     "o-2",
		OrderNumber: "ORD-000043",
		Email:       "buyer@example.com",
		Status:      "processing",
	})

	// The second event arriving proves the first was consumed and skipped.
	sender.wait(t)

	sender.mu.Lock()
	assert.Empty(t, sender.confirmations)
	require.Len(t, sender.updates, 1)
	sender.mu.Unlock()
}
