package event

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"

	"github.com/vendhub/marketplace/internal/notify"
)

// Dispatcher consumes domain events and performs notification delivery.
// Delivery failures are logged and the message is acked anyway: notifications
// are best-effort and must never wedge the queue.
type Dispatcher struct {
	sub    message.Subscriber
	sender notify.Sender
	lg     *zap.Logger
}

// NewDispatcher creates a Dispatcher over the given subscriber.
func NewDispatcher(sub message.Subscriber, sender notify.Sender, lg *zap.Logger) *Dispatcher {
	return &Dispatcher{sub: sub, sender: sender, lg: lg}
}

// Run subscribes to all order topics and processes events until the context
// is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	created, err := d.sub.Subscribe(ctx, TopicOrderCreated)
	if err != nil {
		return err
	}
	changed, err := d.sub.Subscribe(ctx, TopicOrderStatusChanged)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-created:
			if !ok {
				return nil
			}
			d.handleCreated(ctx, msg)
		case msg, ok := <-changed:
			if !ok {
				return nil
			}
			d.handleStatusChanged(ctx, msg)
		}
	}
}

func (d *Dispatcher) handleCreated(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var e OrderCreated
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		d.lg.Error("decode OrderCreated", zap.String("message_id", msg.UUID), zap.Error(err))
		return
	}
	if e.Email == "" {
		return
	}

	err := d.sender.SendOrderConfirmation(ctx, e.Email, notify.OrderConfirmation{
		OrderNumber: e.OrderNumber,
		Total:       e.Total,
		ItemCount:   e.ItemCount,
	})
	if err != nil {
		d.lg.Warn("order confirmation delivery failed",
			zap.String("order_number", e.OrderNumber), zap.Error(err))
	}
}

func (d *Dispatcher) handleStatusChanged(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var e OrderStatusChanged
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		d.lg.Error("decode OrderStatusChanged", zap.String("message_id", msg.UUID), zap.Error(err))
		return
	}
	if e.Email == "" {
		return
	}

	err := d.sender.SendStatusUpdate(ctx, e.Email, notify.StatusUpdate{
		OrderNumber:    e.OrderNumber,
		Status:         e.Status,
		Note:           e.Note,
		TrackingNumber: e.TrackingNumber,
		Carrier:        e.Carrier,
	})
	if err != nil {
		d.lg.Warn("status update delivery failed",
			zap.String("order_number", e.OrderNumber), zap.Error(err))
	}
}
