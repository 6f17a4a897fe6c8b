package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/auric-atelier/api/internal/platform/firestore"
	"github.com/auric-atelier/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the repositories.Registry contract.
type Registry struct {
	provider *pfirestore.Provider

	orders        *OrderRepository
	settings      *SettingsRepository
	templates     *TemplateRepository
	mailQueue     *MailQueueRepository
	notifications *NotificationRepository
	productStock  *ProductStockRepository
	counters      *CounterRepository
	health        repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs the full repository set on a shared provider.
// The health repository is optional; pass nil when readiness checks are wired elsewhere.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	settings, err := NewSettingsRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	templates, err := NewTemplateRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	mailQueue, err := NewMailQueueRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	notifications, err := NewNotificationRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	productStock, err := NewProductStockRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	return &Registry{
		provider:      provider,
		orders:        orders,
		settings:      settings,
		templates:     templates,
		mailQueue:     mailQueue,
		notifications: notifications,
		productStock:  productStock,
		counters:      counters,
		health:        health,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// RunInTx executes fn inside a Firestore transaction boundary.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.provider == nil {
		return errors.New("registry not initialised")
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		return fn(ctx)
	})
}

func (r *Registry) Orders() repositories.OrderRepository               { return r.orders }
func (r *Registry) Settings() repositories.SettingsRepository          { return r.settings }
func (r *Registry) Templates() repositories.TemplateRepository         { return r.templates }
func (r *Registry) MailQueue() repositories.MailQueueRepository        { return r.mailQueue }
func (r *Registry) Notifications() repositories.NotificationRepository { return r.notifications }
func (r *Registry) ProductStock() repositories.ProductStockRepository  { return r.productStock }
func (r *Registry) Counters() repositories.CounterRepository           { return r.counters }
func (r *Registry) Health() repositories.HealthRepository              { return r.health }
