package domain

import "time"

// PaymentStatus tracks the manual payment review lifecycle of an order.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRejected PaymentStatus = "rejected"
)

// OrderStatus tracks the fulfillment lifecycle of an order.
type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// QueuedMessageStatus tracks the delivery lifecycle of an outbound email.
type QueuedMessageStatus string

const (
	MessageStatusPending    QueuedMessageStatus = "pending"
	MessageStatusProcessing QueuedMessageStatus = "processing"
	MessageStatusSent       QueuedMessageStatus = "sent"
	MessageStatusFailed     QueuedMessageStatus = "failed"
)

// MessageKind distinguishes transactional sends from bulk marketing batches.
type MessageKind string

const (
	MessageKindTransactional MessageKind = "transactional"
	MessageKindBulk          MessageKind = "bulk"
)

// TemplateType classifies message templates.
type TemplateType string

const (
	TemplateTypeSystem    TemplateType = "system"
	TemplateTypeMarketing TemplateType = "marketing"
)

// CustomerSnapshot captures contact and shipping details at order time.
// It is never re-derived from the live user profile.
type CustomerSnapshot struct {
	Name       string `firestore:"name"`
	Email      string `firestore:"email"`
	Phone      string `firestore:"phone"`
	Address    string `firestore:"address"`
	City       string `firestore:"city"`
	PostalCode string `firestore:"postalCode"`
}

// OrderLineItem is an immutable snapshot of a product at order time.
type OrderLineItem struct {
	ProductRef string            `firestore:"productRef"`
	Name       string            `firestore:"name"`
	UnitPrice  int64             `firestore:"unitPrice"`
	Quantity   int               `firestore:"quantity"`
	ImageRef   string            `firestore:"imageRef,omitempty"`
	Variations map[string]string `firestore:"variations,omitempty"`
	Total      int64             `firestore:"total"`
}

// OrderTotals holds the computed pricing for one checkout.
type OrderTotals struct {
	Subtotal int64 `firestore:"subtotal"`
	Shipping int64 `firestore:"shipping"`
	Total    int64 `firestore:"total"`
}

// Order is the persisted record of one completed checkout.
type Order struct {
	ID              string           `firestore:"-"`
	OrderNumber     string           `firestore:"orderNumber"`
	UserID          string           `firestore:"userId"`
	Customer        CustomerSnapshot `firestore:"customer"`
	Items           []OrderLineItem  `firestore:"items"`
	Totals          OrderTotals      `firestore:"totals"`
	PaymentStatus   PaymentStatus    `firestore:"paymentStatus"`
	OrderStatus     OrderStatus      `firestore:"orderStatus"`
	PaymentProofRef *string          `firestore:"paymentProofRef,omitempty"`
	TrackingID      *string          `firestore:"trackingId,omitempty"`
	Carrier         *string          `firestore:"carrier,omitempty"`
	CreatedAt       time.Time        `firestore:"createdAt"`
	UpdatedAt       time.Time        `firestore:"updatedAt"`
	ShippedAt       *time.Time       `firestore:"shippedAt,omitempty"`
	DeliveredAt     *time.Time       `firestore:"deliveredAt,omitempty"`
	CancelledAt     *time.Time       `firestore:"cancelledAt,omitempty"`
}

// StoreSettings is the singleton configuration record read by pricing and branding.
type StoreSettings struct {
	StandardShippingFee   int64     `firestore:"standardShippingFee"`
	FreeShippingThreshold int64     `firestore:"freeShippingThreshold"`
	CompanyName           string    `firestore:"companyName"`
	SupportEmail          string    `firestore:"supportEmail"`
	SupportPhone          string    `firestore:"supportPhone"`
	LogoRef               string    `firestore:"logoRef,omitempty"`
	CreatedAt             time.Time `firestore:"createdAt"`
	UpdatedAt             time.Time `firestore:"updatedAt"`
}

// MessageTemplate is a named subject/body pair with {{placeholder}} tokens.
type MessageTemplate struct {
	Name         string       `firestore:"-"`
	Subject      string       `firestore:"subject"`
	Body         string       `firestore:"body"`
	Placeholders []string     `firestore:"placeholders,omitempty"`
	Type         TemplateType `firestore:"type"`
	CreatedAt    time.Time    `firestore:"createdAt"`
	UpdatedAt    time.Time    `firestore:"updatedAt"`
}

// QueuedMessage is a durable record of one outbound email.
type QueuedMessage struct {
	ID          string              `firestore:"-"`
	To          string              `firestore:"to"`
	Subject     string              `firestore:"subject"`
	Body        string              `firestore:"body"`
	Kind        MessageKind         `firestore:"kind"`
	Status      QueuedMessageStatus `firestore:"status"`
	Attempts    int                 `firestore:"attempts"`
	LastError   *string             `firestore:"lastError,omitempty"`
	ScheduledAt time.Time           `firestore:"scheduledAt"`
	SentAt      *time.Time          `firestore:"sentAt,omitempty"`
	CreatedAt   time.Time           `firestore:"createdAt"`
	UpdatedAt   time.Time           `firestore:"updatedAt"`
}

// AdminNotification is a lightweight fan-out record for the admin dashboard.
type AdminNotification struct {
	ID        string    `firestore:"-"`
	Title     string    `firestore:"title"`
	Message   string    `firestore:"message"`
	Type      string    `firestore:"type"`
	Link      string    `firestore:"link,omitempty"`
	IsRead    bool      `firestore:"isRead"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// ProductStock is the slice of a product document the inventory adjuster touches.
type ProductStock struct {
	ProductRef string    `firestore:"-"`
	Stock      int64     `firestore:"stock"`
	Sold       int64     `firestore:"sold"`
	UpdatedAt  time.Time `firestore:"updatedAt"`
}

// CursorPage wraps a page of results with an opaque continuation token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Pagination carries cursor paging inputs for list queries.
type Pagination struct {
	PageSize  int
	PageToken string
}

var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

var paymentStatusTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:  {PaymentStatusApproved, PaymentStatusRejected},
	PaymentStatusRejected: {PaymentStatusPending},
	PaymentStatusApproved: {},
}

// CanTransitionOrderStatus reports whether the order status move is legal.
// Same-state writes are treated as no-ops and allowed.
func CanTransitionOrderStatus(current, target OrderStatus) bool {
	if current == target {
		return true
	}
	next, ok := orderStatusTransitions[current]
	if !ok {
		return false
	}
	for _, candidate := range next {
		if candidate == target {
			return true
		}
	}
	return false
}

// CanTransitionPaymentStatus reports whether the payment status move is legal.
func CanTransitionPaymentStatus(current, target PaymentStatus) bool {
	if current == target {
		return true
	}
	next, ok := paymentStatusTransitions[current]
	if !ok {
		return false
	}
	for _, candidate := range next {
		if candidate == target {
			return true
		}
	}
	return false
}

// ValidOrderStatus reports whether the value is a known order status.
func ValidOrderStatus(status OrderStatus) bool {
	_, ok := orderStatusTransitions[status]
	return ok
}

// ValidPaymentStatus reports whether the value is a known payment status.
func ValidPaymentStatus(status PaymentStatus) bool {
	_, ok := paymentStatusTransitions[status]
	return ok
}
