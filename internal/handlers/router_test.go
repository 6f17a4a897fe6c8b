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
)

type stubHealthChecker struct {
	collectFn func(ctx context.Context) (domain.SystemHealthReport, error)
}

func (s *stubHealthChecker) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	if s.collectFn != nil {
		return s.collectFn(ctx)
	}
	return domain.SystemHealthReport{Status: domain.HealthStatusOK}, nil
}

func TestRouterHealthz(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestRouterReadyzReportsFailures(t *testing.T) {
	checker := &stubHealthChecker{
		collectFn: func(_ context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{
				Status: domain.HealthStatusError,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {
						Status:    domain.HealthStatusError,
						Error:     "deadline exceeded",
						Latency:   120 * time.Millisecond,
						CheckedAt: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
					},
				},
				GeneratedAt: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	router := NewRouter(WithHealthHandlers(NewHealthHandlers(checker)))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var report healthReportPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if report.Status != "error" {
		t.Fatalf("unexpected status %q", report.Status)
	}
	check, ok := report.Checks["firestore"]
	if !ok || check.Error != "deadline exceeded" || check.LatencyMS != 120 {
		t.Fatalf("unexpected check payload: %+v", report.Checks)
	}
}

func TestRouterReadyzCollectErrorIsUnavailable(t *testing.T) {
	checker := &stubHealthChecker{
		collectFn: func(_ context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{}, errors.New("dependency check failed")
		},
	}
	router := NewRouter(WithHealthHandlers(NewHealthHandlers(checker)))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRouterUnwiredGroupsReturnNotImplemented(t *testing.T) {
	router := NewRouter()

	for _, path := range []string{"/api/v1/orders/", "/api/v1/admin/mail-queue"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotImplemented {
			t.Fatalf("expected 501 for %s, got %d", path, rec.Code)
		}
	}
}

func TestRouterNotFoundEnvelope(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v2/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec.Body.Bytes()); code != "route_not_found" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestRouterMountsRegistrars(t *testing.T) {
	router := NewRouter(
		WithOrderRoutes(func(r chi.Router) {
			r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
				writeJSONResponse(w, http.StatusOK, map[string]string{"pong": "orders"})
			})
		}),
		WithAdminRoutes(func(r chi.Router) {
			r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
				writeJSONResponse(w, http.StatusOK, map[string]string{"pong": "admin"})
			})
		}),
	)

	for _, path := range []string{"/api/v1/orders/ping", "/api/v1/admin/ping"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", path, rec.Code)
		}
	}
}
