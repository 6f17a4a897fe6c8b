package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/auric-atelier/api/internal/domain"
	"github.com/auric-atelier/api/internal/repositories"
)

type stubNotificationRepo struct {
	insertFn   func(context.Context, domain.AdminNotification) error
	listFn     func(context.Context, repositories.NotificationFilter) (domain.CursorPage[domain.AdminNotification], error)
	markReadFn func(context.Context, string) (domain.AdminNotification, error)
}

func (s *stubNotificationRepo) Insert(ctx context.Context, notification domain.AdminNotification) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, notification)
	}
	return nil
}

func (s *stubNotificationRepo) List(ctx context.Context, filter repositories.NotificationFilter) (domain.CursorPage[domain.AdminNotification], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.AdminNotification]{}, nil
}

func (s *stubNotificationRepo) MarkRead(ctx context.Context, notificationID string) (domain.AdminNotification, error) {
	if s.markReadFn != nil {
		return s.markReadFn(ctx, notificationID)
	}
	return domain.AdminNotification{}, errors.New("not implemented")
}

func TestNotificationServiceNotifyOrderPlaced(t *testing.T) {
	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	var inserted domain.AdminNotification

	svc, err := NewNotificationService(NotificationServiceDeps{
		Notifications: &stubNotificationRepo{
			insertFn: func(_ context.Context, notification domain.AdminNotification) error {
				inserted = notification
				return nil
			},
		},
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "01TESTULID" },
	})
	if err != nil {
		t.Fatalf("NewNotificationService: %v", err)
	}

	order := Order{
		ID:          "ord_01",
		OrderNumber: "AA-2025-000042",
		Customer:    CustomerSnapshot{Name: "Mira Holt"},
		Totals:      OrderTotals{Total: 125000},
	}
	notification, err := svc.NotifyOrderPlaced(context.Background(), order)
	if err != nil {
		t.Fatalf("NotifyOrderPlaced: %v", err)
	}
	if notification.ID != "ntf_01TESTULID" {
		t.Fatalf("expected prefixed id, got %q", notification.ID)
	}
	if inserted.IsRead {
		t.Fatal("new notification must start unread")
	}
	if !strings.Contains(inserted.Message, "AA-2025-000042") || !strings.Contains(inserted.Message, "Mira Holt") {
		t.Fatalf("message missing order context: %q", inserted.Message)
	}
	if !strings.Contains(inserted.Message, "125,000") {
		t.Fatalf("message missing grouped total: %q", inserted.Message)
	}
	if inserted.Link != "/admin/orders/ord_01" {
		t.Fatalf("unexpected link %q", inserted.Link)
	}
	if !inserted.CreatedAt.Equal(now) {
		t.Fatalf("expected createdAt %v, got %v", now, inserted.CreatedAt)
	}
}

func TestNotificationServiceMarkReadMapsNotFound(t *testing.T) {
	svc, err := NewNotificationService(NotificationServiceDeps{
		Notifications: &stubNotificationRepo{
			markReadFn: func(context.Context, string) (domain.AdminNotification, error) {
				return domain.AdminNotification{}, &stubRepoError{notFound: true}
			},
		},
	})
	if err != nil {
		t.Fatalf("NewNotificationService: %v", err)
	}

	if _, err := svc.MarkRead(context.Background(), "ntf_missing"); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound, got %v", err)
	}
	if _, err := svc.MarkRead(context.Background(), "   "); !errors.Is(err, ErrNotificationInvalidInput) {
		t.Fatalf("expected ErrNotificationInvalidInput, got %v", err)
	}
}

func TestNotificationServiceListPassesFilter(t *testing.T) {
	var captured repositories.NotificationFilter
	svc, err := NewNotificationService(NotificationServiceDeps{
		Notifications: &stubNotificationRepo{
			listFn: func(_ context.Context, filter repositories.NotificationFilter) (domain.CursorPage[domain.AdminNotification], error) {
				captured = filter
				return domain.CursorPage[domain.AdminNotification]{}, nil
			},
		},
	})
	if err != nil {
		t.Fatalf("NewNotificationService: %v", err)
	}

	_, err = svc.List(context.Background(), NotificationListFilter{
		UnreadOnly: true,
		Pagination: Pagination{PageSize: 25, PageToken: "tok"},
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !captured.UnreadOnly || captured.Pagination.PageSize != 25 || captured.Pagination.PageToken != "tok" {
		t.Fatalf("filter not forwarded: %+v", captured)
	}
}
