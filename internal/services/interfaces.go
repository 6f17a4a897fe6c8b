package services

import (
	"context"
	"time"

	domain "github.com/auric-atelier/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	Order              = domain.Order
	OrderLineItem      = domain.OrderLineItem
	OrderTotals        = domain.OrderTotals
	CustomerSnapshot   = domain.CustomerSnapshot
	OrderStatus        = domain.OrderStatus
	PaymentStatus      = domain.PaymentStatus
	StoreSettings      = domain.StoreSettings
	MessageTemplate    = domain.MessageTemplate
	QueuedMessage      = domain.QueuedMessage
	MessageKind        = domain.MessageKind
	AdminNotification  = domain.AdminNotification
	SystemHealthReport = domain.SystemHealthReport
)

// SettingsService owns the singleton store configuration document.
type SettingsService interface {
	Get(ctx context.Context) (StoreSettings, error)
	Update(ctx context.Context, cmd UpdateSettingsCommand) (StoreSettings, error)
}

// UpdateSettingsCommand carries partial settings updates. Nil fields are left untouched.
type UpdateSettingsCommand struct {
	StandardShippingFee   *int64
	FreeShippingThreshold *int64
	CompanyName           *string
	SupportEmail          *string
	SupportPhone          *string
	LogoRef               *string
}

// TemplateService stores named message templates and renders them with
// placeholder data, falling back to built-in defaults for system templates.
type TemplateService interface {
	Get(ctx context.Context, name string) (MessageTemplate, error)
	Upsert(ctx context.Context, cmd UpsertTemplateCommand) (MessageTemplate, error)
	List(ctx context.Context, pager Pagination) (domain.CursorPage[MessageTemplate], error)
	Render(ctx context.Context, name string, data map[string]string) (RenderedMessage, error)
}

// UpsertTemplateCommand creates or replaces a named template.
type UpsertTemplateCommand struct {
	Name         string
	Subject      string
	Body         string
	Placeholders []string
	Type         domain.TemplateType
}

// RenderedMessage is a subject/body pair with all placeholders substituted.
type RenderedMessage struct {
	Subject string
	Body    string
}

// InventoryService applies best-effort stock adjustments derived from order line items.
type InventoryService interface {
	// ApplyOrderPlacement decrements stock and increments sold for every line.
	// Lines are adjusted independently; a failing line never blocks the rest.
	ApplyOrderPlacement(ctx context.Context, order Order) error
	// RestoreOrderCancellation mirrors the placement deltas back onto the products.
	RestoreOrderCancellation(ctx context.Context, order Order) error
}

// NotificationService records admin dashboard fan-out entries.
type NotificationService interface {
	NotifyOrderPlaced(ctx context.Context, order Order) (AdminNotification, error)
	List(ctx context.Context, filter NotificationListFilter) (domain.CursorPage[AdminNotification], error)
	MarkRead(ctx context.Context, notificationID string) (AdminNotification, error)
}

// NotificationListFilter narrows admin notification listings.
type NotificationListFilter struct {
	UnreadOnly bool
	Pagination Pagination
}

// MailService owns the durable outbound queue and its dispatch policies.
type MailService interface {
	// EnqueueTransactional persists the message and attempts delivery inline.
	// Delivery failures are recorded on the queue record, never returned.
	EnqueueTransactional(ctx context.Context, cmd EnqueueMailCommand) (QueuedMessage, error)
	// Broadcast enqueues one message per recipient and drains them on a
	// detached background pass with a fixed inter-message delay.
	Broadcast(ctx context.Context, cmd BroadcastCommand) (BroadcastReceipt, error)
	ListQueue(ctx context.Context, filter MailQueueListFilter) (domain.CursorPage[QueuedMessage], error)
	// RetryFailed re-drives failed queue records on a detached background pass.
	RetryFailed(ctx context.Context) (RetryReceipt, error)
}

// EnqueueMailCommand describes one transactional message.
type EnqueueMailCommand struct {
	To      string
	Subject string
	Body    string
}

// BroadcastCommand describes one bulk marketing send.
type BroadcastCommand struct {
	Recipients []string
	Subject    string
	Body       string
}

// BroadcastReceipt acknowledges a bulk send before dispatch completes.
type BroadcastReceipt struct {
	Queued     int
	QueuedAt   time.Time
	MessageIDs []string
}

// RetryReceipt acknowledges an admin retry request.
type RetryReceipt struct {
	Retried    int
	MessageIDs []string
}

// MailQueueListFilter narrows queue inspection listings.
type MailQueueListFilter struct {
	Status     *domain.QueuedMessageStatus
	Kind       *domain.MessageKind
	Pagination Pagination
}

// PaymentProofArchiver moves a superseded payment proof object aside when a
// customer resubmits. Implementations live at the storage boundary.
type PaymentProofArchiver interface {
	ArchiveProof(ctx context.Context, orderID, proofRef string) error
}

// FulfillmentService orchestrates the order pipeline: placement, payment
// review transitions, shipment updates, and the side effects each one owes.
type FulfillmentService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string, opts OrderReadOptions) (Order, error)
	ListOrders(ctx context.Context, query OrderListQuery) (domain.CursorPage[Order], error)
	ResubmitPaymentProof(ctx context.Context, cmd ResubmitProofCommand) (Order, error)
	AdminUpdateOrder(ctx context.Context, cmd AdminUpdateOrderCommand) (Order, error)
	CancelOrder(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
}

// PlaceOrderCommand captures everything needed to persist one checkout.
type PlaceOrderCommand struct {
	UserID          string
	Customer        CustomerSnapshot
	Items           []PlaceOrderItem
	PaymentProofRef *string
}

// PlaceOrderItem is one requested line before snapshotting.
type PlaceOrderItem struct {
	ProductRef string
	Name       string
	UnitPrice  int64
	Quantity   int
	ImageRef   string
	Variations map[string]string
}

// OrderReadOptions scopes reads to the requesting principal.
type OrderReadOptions struct {
	RequesterUID string
	AdminAccess  bool
}

// OrderListQuery narrows order listings.
type OrderListQuery struct {
	UserID        string
	OrderStatus   *OrderStatus
	PaymentStatus *PaymentStatus
	Pagination    Pagination
}

// ResubmitProofCommand resets a rejected payment back to pending review.
type ResubmitProofCommand struct {
	OrderID      string
	RequesterUID string
	ProofRef     string
}

// AdminUpdateOrderCommand carries a partial admin order update. Nil fields
// are left untouched; NotifyCustomer forces a shipped notification resend.
type AdminUpdateOrderCommand struct {
	OrderID        string
	OrderStatus    *OrderStatus
	PaymentStatus  *PaymentStatus
	TrackingID     *string
	Carrier        *string
	NotifyCustomer bool
}

// CancelOrderCommand cancels an order and restores its inventory deltas.
type CancelOrderCommand struct {
	OrderID string
}
