// Package notify defines the outbound notification boundary. Real delivery
// (SMTP, templating) belongs to an external service; this backend only needs
// an interface and a default implementation that records the attempt.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// OrderConfirmation is the data needed for an order confirmation message.
type OrderConfirmation struct {
	OrderNumber string
	Total       string
	ItemCount   int
}

// StatusUpdate is the data needed for an order status update message.
type StatusUpdate struct {
	OrderNumber    string
	Status         string
	Note           string
	TrackingNumber string
	Carrier        string
}

// Sender delivers customer notifications. Implementations are best-effort
// collaborators: callers log failures and never propagate them.
type Sender interface {
	SendOrderConfirmation(ctx context.Context, to string, c OrderConfirmation) error
	SendStatusUpdate(ctx context.Context, to string, u StatusUpdate) error
}

// LogSender is the default Sender: it logs the would-be delivery. Used when
// no mail transport is configured and in tests.
type LogSender struct {
	lg *zap.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(lg *zap.Logger) *LogSender {
	return &LogSender{lg: lg}
}

func (s *LogSender) SendOrderConfirmation(_ context.Context, to string, c OrderConfirmation) error {
	s.lg.Info("order confirmation email",
		zap.String("to", to),
		zap.String("order_number", c.OrderNumber),
		zap.String("total", c.Total),
		zap.Int("items", c.ItemCount),
	)
	return nil
}

func (s *LogSender) SendStatusUpdate(_ context.Context, to string, u StatusUpdate) error {
	s.lg.Info("order status email",
		zap.String("to", to),
		zap.String("order_number", u.OrderNumber),
		zap.String("status", u.Status),
	)
	return nil
}
