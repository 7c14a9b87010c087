package event

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Bus publishes domain events. Publishing is best-effort: a publish failure
// is logged and never surfaces to the caller, so notification trouble cannot
// fail the operation that emitted the event.
type Bus struct {
	pub message.Publisher
	lg  *zap.Logger
}

// NewBus creates a Bus over the given watermill publisher.
func NewBus(pub message.Publisher, lg *zap.Logger) *Bus {
	return &Bus{pub: pub, lg: lg}
}

// PublishOrderCreated emits an OrderCreated event.
func (b *Bus) PublishOrderCreated(ctx context.Context, e OrderCreated) {
	b.publish(ctx, TopicOrderCreated, e)
}

// PublishOrderStatusChanged emits an OrderStatusChanged event.
func (b *Bus) PublishOrderStatusChanged(ctx context.Context, e OrderStatusChanged) {
	b.publish(ctx, TopicOrderStatusChanged, e)
}

func (b *Bus) publish(ctx context.Context, topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.lg.Error("marshal event", zap.String("topic", topic), zap.Error(err))
		return
	}

	msg := message.NewMessage(uuid.New().String(), data)
	msg.SetContext(ctx)
	if err := b.pub.Publish(topic, msg); err != nil {
		b.lg.Error("publish event", zap.String("topic", topic), zap.Error(err))
	}
}

// ZapLoggerAdapter bridges watermill's logger to zap.
type ZapLoggerAdapter struct {
	lg *zap.Logger
}

// NewZapLoggerAdapter wraps a zap logger for watermill.
func NewZapLoggerAdapter(lg *zap.Logger) *ZapLoggerAdapter {
	return &ZapLoggerAdapter{lg: lg}
}

func (a *ZapLoggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.lg.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (a *ZapLoggerAdapter) Info(msg string, fields watermill.LogFields) {
	a.lg.Info(msg, zapFields(fields)...)
}

func (a *ZapLoggerAdapter) Debug(msg string, fields watermill.LogFields) {
	a.lg.Debug(msg, zapFields(fields)...)
}

func (a *ZapLoggerAdapter) Trace(msg string, fields watermill.LogFields) {
	a.lg.Debug(msg, zapFields(fields)...)
}

func (a *ZapLoggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &ZapLoggerAdapter{lg: a.lg.With(zapFields(fields)...)}
}

func zapFields(fields watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}
