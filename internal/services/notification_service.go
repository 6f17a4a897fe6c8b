package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/auric-atelier/api/internal/domain"
	"github.com/auric-atelier/api/internal/repositories"
)

var (
	// ErrNotificationInvalidInput indicates required fields were missing.
	ErrNotificationInvalidInput = errors.New("notification: invalid input")
	// ErrNotificationNotFound indicates the notification record does not exist.
	ErrNotificationNotFound = errors.New("notification: not found")
)

// NotificationServiceDeps enumerates collaborators required to construct the service.
type NotificationServiceDeps struct {
	Notifications repositories.NotificationRepository
	Clock         func() time.Time
	IDGenerator   func() string
}

type notificationService struct {
	notifications repositories.NotificationRepository
	clock         func() time.Time
	newID         func() string
}

// NewNotificationService wires dependencies into a NotificationService implementation.
func NewNotificationService(deps NotificationServiceDeps) (NotificationService, error) {
	if deps.Notifications == nil {
		return nil, errors.New("notification service: notification repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	return &notificationService{
		notifications: deps.Notifications,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID: idGen,
	}, nil
}

func (s *notificationService) NotifyOrderPlaced(ctx context.Context, order Order) (AdminNotification, error) {
	if strings.TrimSpace(order.ID) == "" {
		return AdminNotification{}, fmt.Errorf("%w: order id is required", ErrNotificationInvalidInput)
	}

	notification := AdminNotification{
		ID:        ensureNotificationID(s.newID()),
		Title:     "New order received",
		Message:   fmt.Sprintf("Order %s placed by %s for %s", order.OrderNumber, order.Customer.Name, FormatMinorUnits(order.Totals.Total)),
		Type:      "order",
		Link:      "/admin/orders/" + order.ID,
		IsRead:    false,
		CreatedAt: s.clock(),
	}
	if err := s.notifications.Insert(ctx, notification); err != nil {
		return AdminNotification{}, err
	}
	return notification, nil
}

func (s *notificationService) List(ctx context.Context, filter NotificationListFilter) (domain.CursorPage[AdminNotification], error) {
	return s.notifications.List(ctx, repositories.NotificationFilter{
		UnreadOnly: filter.UnreadOnly,
		Pagination: filter.Pagination,
	})
}

func (s *notificationService) MarkRead(ctx context.Context, notificationID string) (AdminNotification, error) {
	notificationID = strings.TrimSpace(notificationID)
	if notificationID == "" {
		return AdminNotification{}, fmt.Errorf("%w: notification id is required", ErrNotificationInvalidInput)
	}
	notification, err := s.notifications.MarkRead(ctx, notificationID)
	if err != nil {
		if isRepoNotFound(err) {
			return AdminNotification{}, ErrNotificationNotFound
		}
		return AdminNotification{}, err
	}
	return notification, nil
}

func ensureNotificationID(candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		trimmed = ulid.Make().String()
	}
	if strings.HasPrefix(trimmed, "ntf_") {
		return trimmed
	}
	return "ntf_" + trimmed
}
