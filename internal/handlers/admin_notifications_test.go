package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/auric-atelier/api/internal/domain"
	"github.com/auric-atelier/api/internal/services"
)

type stubNotificationService struct {
	notifyFn   func(ctx context.Context, order services.Order) (services.AdminNotification, error)
	listFn     func(ctx context.Context, filter services.NotificationListFilter) (domain.CursorPage[services.AdminNotification], error)
	markReadFn func(ctx context.Context, notificationID string) (services.AdminNotification, error)
}

func (s *stubNotificationService) NotifyOrderPlaced(ctx context.Context, order services.Order) (services.AdminNotification, error) {
	if s.notifyFn != nil {
		return s.notifyFn(ctx, order)
	}
	return services.AdminNotification{}, errors.New("unexpected NotifyOrderPlaced call")
}

func (s *stubNotificationService) List(ctx context.Context, filter services.NotificationListFilter) (domain.CursorPage[services.AdminNotification], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[services.AdminNotification]{}, errors.New("unexpected List call")
}

func (s *stubNotificationService) MarkRead(ctx context.Context, notificationID string) (services.AdminNotification, error) {
	if s.markReadFn != nil {
		return s.markReadFn(ctx, notificationID)
	}
	return services.AdminNotification{}, errors.New("unexpected MarkRead call")
}

func newNotificationTestRouter(svc services.NotificationService) http.Handler {
	handlers := NewAdminNotificationHandlers(svc)
	r := chi.NewRouter()
	r.Route("/admin", handlers.Routes)
	return r
}

func TestListNotifications(t *testing.T) {
	var captured services.NotificationListFilter
	svc := &stubNotificationService{
		listFn: func(_ context.Context, filter services.NotificationListFilter) (domain.CursorPage[services.AdminNotification], error) {
			captured = filter
			return domain.CursorPage[services.AdminNotification]{
				Items: []services.AdminNotification{{
					ID:        "ntf_1",
					Title:     "New order received",
					Message:   "Order AA-2025-000077 from Mira Halim, total Rp 120,000",
					Type:      "order",
					Link:      "/admin/orders/ord_77",
					CreatedAt: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
				}},
			}, nil
		},
	}
	router := newNotificationTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/admin/notifications?unread_only=true&page_size=10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !captured.UnreadOnly {
		t.Fatal("expected unread_only filter to be forwarded")
	}
	if captured.Pagination.PageSize != 10 {
		t.Fatalf("unexpected page size %d", captured.Pagination.PageSize)
	}

	var response notificationListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(response.Items) != 1 || response.Items[0].Link != "/admin/orders/ord_77" {
		t.Fatalf("unexpected response: %+v", response)
	}
}

func TestMarkNotificationRead(t *testing.T) {
	svc := &stubNotificationService{
		markReadFn: func(_ context.Context, notificationID string) (services.AdminNotification, error) {
			if notificationID != "ntf_1" {
				t.Fatalf("unexpected notification id %q", notificationID)
			}
			return services.AdminNotification{ID: "ntf_1", IsRead: true}, nil
		},
	}
	router := newNotificationTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/admin/notifications/ntf_1:read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var response notificationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !response.Notification.IsRead {
		t.Fatal("expected notification to be marked read")
	}
}

func TestMarkNotificationReadMapsNotFound(t *testing.T) {
	svc := &stubNotificationService{
		markReadFn: func(_ context.Context, _ string) (services.AdminNotification, error) {
			return services.AdminNotification{}, services.ErrNotificationNotFound
		},
	}
	router := newNotificationTestRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/admin/notifications/ntf_missing:read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec.Body.Bytes()); code != "notification_not_found" {
		t.Fatalf("unexpected error code %q", code)
	}
}
