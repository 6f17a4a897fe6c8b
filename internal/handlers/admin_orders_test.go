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

type stubProofLinker struct {
	urlFn func(ctx context.Context, proofRef string) (string, time.Time, error)
}

func (s *stubProofLinker) ProofDownloadURL(ctx context.Context, proofRef string) (string, time.Time, error) {
	if s.urlFn != nil {
		return s.urlFn(ctx, proofRef)
	}
	return "", time.Time{}, errors.New("unexpected ProofDownloadURL call")
}

func newAdminOrderTestRouter(svc services.FulfillmentService, proofs ProofLinker) http.Handler {
	handlers := NewAdminOrderHandlers(svc, proofs, nil)
	r := chi.NewRouter()
	r.Route("/admin", handlers.Routes)
	return r
}

func TestAdminUpdateOrderForwardsCommand(t *testing.T) {
	var captured services.AdminUpdateOrderCommand
	svc := &stubFulfillmentService{
		updateFn: func(_ context.Context, cmd services.AdminUpdateOrderCommand) (services.Order, error) {
			captured = cmd
			shipped := sampleOrder()
			shipped.OrderStatus = domain.OrderStatusShipped
			return shipped, nil
		},
	}
	router := newAdminOrderTestRouter(svc, nil)

	body := `{"order_status": "shipped", "tracking_id": "TRK-9001", "carrier": "JNE", "notify_customer": true}`
	req := httptest.NewRequest(http.MethodPatch, "/admin/orders/ord_77", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.OrderID != "ord_77" {
		t.Fatalf("unexpected order id %q", captured.OrderID)
	}
	if captured.OrderStatus == nil || *captured.OrderStatus != domain.OrderStatusShipped {
		t.Fatalf("expected shipped status, got %+v", captured.OrderStatus)
	}
	if captured.PaymentStatus != nil {
		t.Fatalf("payment status should stay nil when omitted, got %+v", captured.PaymentStatus)
	}
	if captured.TrackingID == nil || *captured.TrackingID != "TRK-9001" {
		t.Fatalf("unexpected tracking id %+v", captured.TrackingID)
	}
	if !captured.NotifyCustomer {
		t.Fatal("expected notify_customer to be forwarded")
	}
}

func TestAdminGetOrderIncludesProofLink(t *testing.T) {
	expires := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	svc := &stubFulfillmentService{
		getFn: func(_ context.Context, orderID string, opts services.OrderReadOptions) (services.Order, error) {
			if !opts.AdminAccess {
				t.Fatal("admin read must carry admin access")
			}
			if orderID != "ord_77" {
				t.Fatalf("unexpected order id %q", orderID)
			}
			return sampleOrder(), nil
		},
	}
	proofs := &stubProofLinker{
		urlFn: func(_ context.Context, proofRef string) (string, time.Time, error) {
			if proofRef != "payment_proofs/ord_77/receipt-1.jpg" {
				t.Fatalf("unexpected proof ref %q", proofRef)
			}
			return "https://storage.example.com/signed/receipt-1.jpg", expires, nil
		},
	}
	router := newAdminOrderTestRouter(svc, proofs)

	req := httptest.NewRequest(http.MethodGet, "/admin/orders/ord_77", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var response adminOrderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.ProofURL != "https://storage.example.com/signed/receipt-1.jpg" {
		t.Fatalf("unexpected proof url %q", response.ProofURL)
	}
	if response.ProofURLExpires == "" {
		t.Fatal("expected proof url expiry to be set")
	}
}

func TestAdminGetOrderDegradesWhenProofLinkFails(t *testing.T) {
	svc := &stubFulfillmentService{
		getFn: func(_ context.Context, _ string, _ services.OrderReadOptions) (services.Order, error) {
			return sampleOrder(), nil
		},
	}
	proofs := &stubProofLinker{
		urlFn: func(_ context.Context, _ string) (string, time.Time, error) {
			return "", time.Time{}, errors.New("signer unavailable")
		},
	}
	router := newAdminOrderTestRouter(svc, proofs)

	req := httptest.NewRequest(http.MethodGet, "/admin/orders/ord_77", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 even without a proof link, got %d", rec.Code)
	}
	var response adminOrderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.ProofURL != "" {
		t.Fatalf("expected no proof url, got %q", response.ProofURL)
	}
	if response.Order.ID != "ord_77" {
		t.Fatalf("expected full order payload, got %+v", response.Order)
	}
}

func TestAdminListOrdersFiltersByUser(t *testing.T) {
	var captured services.OrderListQuery
	svc := &stubFulfillmentService{
		listFn: func(_ context.Context, query services.OrderListQuery) (domain.CursorPage[services.Order], error) {
			captured = query
			return domain.CursorPage[services.Order]{Items: []services.Order{sampleOrder()}}, nil
		},
	}
	router := newAdminOrderTestRouter(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/orders?user_id=uid_mira&payment_status=pending", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.UserID != "uid_mira" {
		t.Fatalf("unexpected user filter %q", captured.UserID)
	}
	if captured.PaymentStatus == nil || *captured.PaymentStatus != domain.PaymentStatusPending {
		t.Fatalf("unexpected payment filter %+v", captured.PaymentStatus)
	}
}

func TestAdminDeleteOrder(t *testing.T) {
	deleted := ""
	svc := &stubFulfillmentService{
		deleteFn: func(_ context.Context, orderID string) error {
			deleted = orderID
			return nil
		},
	}
	router := newAdminOrderTestRouter(svc, nil)

	req := httptest.NewRequest(http.MethodDelete, "/admin/orders/ord_77", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if deleted != "ord_77" {
		t.Fatalf("unexpected deleted order %q", deleted)
	}
}

func TestAdminDeleteOrderMapsNotFound(t *testing.T) {
	svc := &stubFulfillmentService{
		deleteFn: func(_ context.Context, _ string) error {
			return services.ErrOrderNotFound
		},
	}
	router := newAdminOrderTestRouter(svc, nil)

	req := httptest.NewRequest(http.MethodDelete, "/admin/orders/ord_missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
