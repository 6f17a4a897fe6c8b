package events

import (
	"context"
	"time"
)

// Event type names published on the order topic.
const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status.changed"
)

// OrderEvent is the payload published for order lifecycle changes.
type OrderEvent struct {
	Type                  string    `json:"type"`
	OrderID               string    `json:"orderId"`
	OrderNumber           string    `json:"orderNumber,omitempty"`
	CustomerUID           string    `json:"customerUid,omitempty"`
	OrderStatus           string    `json:"orderStatus,omitempty"`
	PaymentStatus         string    `json:"paymentStatus,omitempty"`
	PreviousOrderStatus   string    `json:"previousOrderStatus,omitempty"`
	PreviousPaymentStatus string    `json:"previousPaymentStatus,omitempty"`
	TotalMinor            int64     `json:"totalMinor,omitempty"`
	Currency              string    `json:"currency,omitempty"`
	OccurredAt            time.Time `json:"occurredAt"`
}

// Publisher emits order lifecycle events to downstream consumers.
type Publisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) (string, error)
}
