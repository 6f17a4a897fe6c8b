package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/auric-atelier/api/internal/platform/config"
	"github.com/auric-atelier/api/internal/platform/events"
	"github.com/auric-atelier/api/internal/platform/mail"
	"github.com/auric-atelier/api/internal/repositories"
	"github.com/auric-atelier/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Settings      services.SettingsService
	Templates     services.TemplateService
	Inventory     services.InventoryService
	Notifications services.NotificationService
	Mail          services.MailService
	Fulfillment   services.FulfillmentService
}

// Infrastructure carries the external adapters the service layer depends on.
// Events and ProofArchiver may be nil; the affected side effects are then
// skipped. A nil Sender still yields a durable mail queue whose deliveries
// are recorded as failed until a transport is configured.
type Infrastructure struct {
	Sender        mail.Sender
	Events        events.Publisher
	ProofArchiver services.PaymentProofArchiver
	Logger        *zap.Logger
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides the
// Firestore-backed registry, while tests can supply in-memory implementations.
func NewContainer(cfg config.Config, reg repositories.Registry, infra Infrastructure) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(cfg, reg, infra)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(cfg config.Config, reg repositories.Registry, infra Infrastructure) (Services, error) {
	var svc Services

	logger := infra.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	settingsSvc, err := services.NewSettingsService(services.SettingsServiceDeps{
		Settings: reg.Settings(),
		Clock:    time.Now,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build settings service: %w", err)
	}
	svc.Settings = settingsSvc

	templateSvc, err := services.NewTemplateService(services.TemplateServiceDeps{
		Templates: reg.Templates(),
		Clock:     time.Now,
		Logger:    zapEventLogger(logger.Named("templates")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build template service: %w", err)
	}
	svc.Templates = templateSvc

	if stockRepo := reg.ProductStock(); stockRepo != nil {
		inventorySvc, err := services.NewInventoryService(services.InventoryServiceDeps{
			ProductStock: stockRepo,
			Clock:        time.Now,
			Logger:       zapEventLogger(logger.Named("inventory")),
		})
		if err != nil {
			return Services{}, fmt.Errorf("build inventory service: %w", err)
		}
		svc.Inventory = inventorySvc
	}

	if notificationRepo := reg.Notifications(); notificationRepo != nil {
		notificationSvc, err := services.NewNotificationService(services.NotificationServiceDeps{
			Notifications: notificationRepo,
			Clock:         time.Now,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build notification service: %w", err)
		}
		svc.Notifications = notificationSvc
	}

	// The queue stays durable even without an SMTP transport; delivery then
	// records the failure on each message instead of dropping it.
	mailSvc, err := services.NewMailService(services.MailServiceDeps{
		Queue:         reg.MailQueue(),
		Sender:        infra.Sender,
		Clock:         time.Now,
		Logger:        zapEventLogger(logger.Named("mail")),
		BulkSendDelay: cfg.Dispatch.BulkSendDelay,
		MaxAttempts:   cfg.Dispatch.MaxSendAttempts,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build mail service: %w", err)
	}
	svc.Mail = mailSvc

	fulfillmentSvc, err := services.NewFulfillmentService(services.FulfillmentServiceDeps{
		Orders:        reg.Orders(),
		Counters:      reg.Counters(),
		Settings:      svc.Settings,
		Templates:     svc.Templates,
		Mail:          svc.Mail,
		Inventory:     svc.Inventory,
		Notifications: svc.Notifications,
		Events:        infra.Events,
		ProofArchiver: infra.ProofArchiver,
		Unit:          reg,
		Clock:         time.Now,
		Logger:        zapEventLogger(logger.Named("fulfillment")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build fulfillment service: %w", err)
	}
	svc.Fulfillment = fulfillmentSvc

	return svc, nil
}

func zapEventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Info(event, zFields...)
	}
}
