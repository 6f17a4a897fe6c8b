package repositories

import (
	"context"
	"time"

	domain "github.com/auric-atelier/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Settings() SettingsRepository
	Templates() TemplateRepository
	MailQueue() MailQueueRepository
	Notifications() NotificationRepository
	ProductStock() ProductStockRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order records and provides query helpers for customers and admins.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	Delete(ctx context.Context, orderID string) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// OrderListFilter narrows order listings by owner and status. Status filters
// are single-valued equality filters so they compose in one Firestore query.
type OrderListFilter struct {
	UserID        string
	OrderStatus   *domain.OrderStatus
	PaymentStatus *domain.PaymentStatus
	Pagination    domain.Pagination
}

// SettingsRepository owns the singleton store settings document.
type SettingsRepository interface {
	// Get returns the settings document, creating it with defaults when absent.
	Get(ctx context.Context) (domain.StoreSettings, error)
	Update(ctx context.Context, settings domain.StoreSettings) (domain.StoreSettings, error)
}

// TemplateRepository stores named message templates.
type TemplateRepository interface {
	FindByName(ctx context.Context, name string) (domain.MessageTemplate, error)
	Upsert(ctx context.Context, template domain.MessageTemplate) error
	List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.MessageTemplate], error)
}

// MailQueueRepository stores durable outbound email records.
type MailQueueRepository interface {
	Enqueue(ctx context.Context, message domain.QueuedMessage) error
	Update(ctx context.Context, message domain.QueuedMessage) error
	FindByID(ctx context.Context, messageID string) (domain.QueuedMessage, error)
	List(ctx context.Context, filter MailQueueFilter) (domain.CursorPage[domain.QueuedMessage], error)
	// ListByStatus returns up to limit messages in the given status, oldest first.
	ListByStatus(ctx context.Context, status domain.QueuedMessageStatus, limit int) ([]domain.QueuedMessage, error)
}

// MailQueueFilter narrows mail queue listings.
type MailQueueFilter struct {
	Status     *domain.QueuedMessageStatus
	Kind       *domain.MessageKind
	Pagination domain.Pagination
}

// NotificationRepository stores fan-out records for the admin dashboard.
type NotificationRepository interface {
	Insert(ctx context.Context, notification domain.AdminNotification) error
	List(ctx context.Context, filter NotificationFilter) (domain.CursorPage[domain.AdminNotification], error)
	MarkRead(ctx context.Context, notificationID string) (domain.AdminNotification, error)
}

// NotificationFilter narrows admin notification listings.
type NotificationFilter struct {
	UnreadOnly bool
	Pagination domain.Pagination
}

// ProductStockRepository adjusts per-product stock counters.
type ProductStockRepository interface {
	// Adjust applies atomic field increments to a single product document.
	Adjust(ctx context.Context, productRef string, stockDelta, soldDelta int64, now time.Time) error
}

// CounterRepository provides transaction-safe sequence numbers for order numbering.
type CounterRepository interface {
	Next(ctx context.Context, counterID string) (int64, error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
