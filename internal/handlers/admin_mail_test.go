package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/auric-atelier/api/internal/domain"
	"github.com/auric-atelier/api/internal/services"
)

type stubMailService struct {
	enqueueFn   func(ctx context.Context, cmd services.EnqueueMailCommand) (services.QueuedMessage, error)
	broadcastFn func(ctx context.Context, cmd services.BroadcastCommand) (services.BroadcastReceipt, error)
	listFn      func(ctx context.Context, filter services.MailQueueListFilter) (domain.CursorPage[services.QueuedMessage], error)
	retryFn     func(ctx context.Context) (services.RetryReceipt, error)
}

func (s *stubMailService) EnqueueTransactional(ctx context.Context, cmd services.EnqueueMailCommand) (services.QueuedMessage, error) {
	if s.enqueueFn != nil {
		return s.enqueueFn(ctx, cmd)
	}
	return services.QueuedMessage{}, errors.New("unexpected EnqueueTransactional call")
}

func (s *stubMailService) Broadcast(ctx context.Context, cmd services.BroadcastCommand) (services.BroadcastReceipt, error) {
	if s.broadcastFn != nil {
		return s.broadcastFn(ctx, cmd)
	}
	return services.BroadcastReceipt{}, errors.New("unexpected Broadcast call")
}

func (s *stubMailService) ListQueue(ctx context.Context, filter services.MailQueueListFilter) (domain.CursorPage[services.QueuedMessage], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[services.QueuedMessage]{}, errors.New("unexpected ListQueue call")
}

func (s *stubMailService) RetryFailed(ctx context.Context) (services.RetryReceipt, error) {
	if s.retryFn != nil {
		return s.retryFn(ctx)
	}
	return services.RetryReceipt{}, errors.New("unexpected RetryFailed call")
}

func newAdminMailTestRouter(mail services.MailService) http.Handler {
	broadcast := NewAdminBroadcastHandlers(mail)
	queue := NewAdminMailQueueHandlers(mail)
	r := chi.NewRouter()
	r.Route("/admin", func(group chi.Router) {
		broadcast.Routes(group)
		queue.Routes(group)
	})
	return r
}

func TestBroadcastAccepted(t *testing.T) {
	var captured services.BroadcastCommand
	queuedAt := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	mail := &stubMailService{
		broadcastFn: func(_ context.Context, cmd services.BroadcastCommand) (services.BroadcastReceipt, error) {
			captured = cmd
			return services.BroadcastReceipt{Queued: 3, QueuedAt: queuedAt}, nil
		},
	}
	router := newAdminMailTestRouter(mail)

	body := `{"recipients": ["a@example.com", "b@example.com", "c@example.com"], "subject": "June arrivals", "body": "New pieces just landed."}`
	req := httptest.NewRequest(http.MethodPost, "/admin/broadcast", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(captured.Recipients) != 3 || captured.Subject != "June arrivals" {
		t.Fatalf("unexpected command: %+v", captured)
	}

	var response broadcastResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Queued != 3 || response.QueuedAt == "" {
		t.Fatalf("unexpected response: %+v", response)
	}
}

func TestBroadcastMapsInvalidInput(t *testing.T) {
	mail := &stubMailService{
		broadcastFn: func(_ context.Context, _ services.BroadcastCommand) (services.BroadcastReceipt, error) {
			return services.BroadcastReceipt{}, services.ErrMailInvalidInput
		},
	}
	router := newAdminMailTestRouter(mail)

	req := httptest.NewRequest(http.MethodPost, "/admin/broadcast", strings.NewReader(`{"subject": "x", "body": "y"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec.Body.Bytes()); code != "invalid_request" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestListMailQueueForwardsFilters(t *testing.T) {
	var captured services.MailQueueListFilter
	lastError := "smtp timeout"
	mail := &stubMailService{
		listFn: func(_ context.Context, filter services.MailQueueListFilter) (domain.CursorPage[services.QueuedMessage], error) {
			captured = filter
			return domain.CursorPage[services.QueuedMessage]{
				Items: []services.QueuedMessage{{
					ID:        "msg_1",
					To:        "a@example.com",
					Subject:   "June arrivals",
					Kind:      domain.MessageKindBulk,
					Status:    domain.MessageStatusFailed,
					Attempts:  3,
					LastError: &lastError,
				}},
			}, nil
		},
	}
	router := newAdminMailTestRouter(mail)

	req := httptest.NewRequest(http.MethodGet, "/admin/mail-queue?status=failed&kind=bulk", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.Status == nil || *captured.Status != domain.MessageStatusFailed {
		t.Fatalf("unexpected status filter %+v", captured.Status)
	}
	if captured.Kind == nil || *captured.Kind != domain.MessageKindBulk {
		t.Fatalf("unexpected kind filter %+v", captured.Kind)
	}

	var response mailQueueListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(response.Items) != 1 {
		t.Fatalf("expected one item, got %d", len(response.Items))
	}
	item := response.Items[0]
	if item.Status != "failed" || item.Attempts != 3 || item.LastError == nil || *item.LastError != "smtp timeout" {
		t.Fatalf("unexpected item payload: %+v", item)
	}
}

func TestRetryFailedAccepted(t *testing.T) {
	mail := &stubMailService{
		retryFn: func(_ context.Context) (services.RetryReceipt, error) {
			return services.RetryReceipt{Retried: 2}, nil
		},
	}
	router := newAdminMailTestRouter(mail)

	req := httptest.NewRequest(http.MethodPost, "/admin/mail-queue:retry", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var response retryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Retried != 2 {
		t.Fatalf("unexpected retried count %d", response.Retried)
	}
}
