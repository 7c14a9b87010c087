// Package event carries domain events over an in-process watermill Pub/Sub.
// Core operations publish; the dispatcher delivers notifications with its own
// error handling, decoupled from request latency.
package event

import "time"

// Topics for domain events.
const (
	TopicOrderCreated       = "orders.created"
	TopicOrderStatusChanged = "orders.status_changed"
)

// OrderCreated is published after an order has been committed.
type OrderCreated struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Email       string    `json:"email"`
	Total       string    `json:"total"`
	ItemCount   int       `json:"item_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// OrderStatusChanged is published after an order status transition commits.
type OrderStatusChanged struct {
	OrderID        string    `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	Email          string    `json:"email"`
	Status         string    `json:"status"`
	Note           string    `json:"note,omitempty"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
	Carrier        string    `json:"carrier,omitempty"`
	ChangedAt      time.Time `json:"changed_at"`
}
