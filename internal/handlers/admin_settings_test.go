package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/auric-atelier/api/internal/domain"
	"github.com/auric-atelier/api/internal/services"
)

type stubSettingsService struct {
	getFn    func(ctx context.Context) (services.StoreSettings, error)
	updateFn func(ctx context.Context, cmd services.UpdateSettingsCommand) (services.StoreSettings, error)
}

func (s *stubSettingsService) Get(ctx context.Context) (services.StoreSettings, error) {
	if s.getFn != nil {
		return s.getFn(ctx)
	}
	return services.StoreSettings{}, errors.New("unexpected Get call")
}

func (s *stubSettingsService) Update(ctx context.Context, cmd services.UpdateSettingsCommand) (services.StoreSettings, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return services.StoreSettings{}, errors.New("unexpected Update call")
}

type stubTemplateService struct {
	getFn    func(ctx context.Context, name string) (services.MessageTemplate, error)
	upsertFn func(ctx context.Context, cmd services.UpsertTemplateCommand) (services.MessageTemplate, error)
	listFn   func(ctx context.Context, pager services.Pagination) (domain.CursorPage[services.MessageTemplate], error)
	renderFn func(ctx context.Context, name string, data map[string]string) (services.RenderedMessage, error)
}

func (s *stubTemplateService) Get(ctx context.Context, name string) (services.MessageTemplate, error) {
	if s.getFn != nil {
		return s.getFn(ctx, name)
	}
	return services.MessageTemplate{}, errors.New("unexpected Get call")
}

func (s *stubTemplateService) Upsert(ctx context.Context, cmd services.UpsertTemplateCommand) (services.MessageTemplate, error) {
	if s.upsertFn != nil {
		return s.upsertFn(ctx, cmd)
	}
	return services.MessageTemplate{}, errors.New("unexpected Upsert call")
}

func (s *stubTemplateService) List(ctx context.Context, pager services.Pagination) (domain.CursorPage[services.MessageTemplate], error) {
	if s.listFn != nil {
		return s.listFn(ctx, pager)
	}
	return domain.CursorPage[services.MessageTemplate]{}, errors.New("unexpected List call")
}

func (s *stubTemplateService) Render(ctx context.Context, name string, data map[string]string) (services.RenderedMessage, error) {
	if s.renderFn != nil {
		return s.renderFn(ctx, name, data)
	}
	return services.RenderedMessage{}, errors.New("unexpected Render call")
}

func newSettingsTestRouter(settings services.SettingsService, templates services.TemplateService) http.Handler {
	handlers := NewAdminSettingsHandlers(settings, templates)
	r := chi.NewRouter()
	r.Route("/admin", handlers.Routes)
	return r
}

func TestGetSettings(t *testing.T) {
	settings := &stubSettingsService{
		getFn: func(_ context.Context) (services.StoreSettings, error) {
			return services.StoreSettings{
				StandardShippingFee:   15000,
				FreeShippingThreshold: 500000,
				CompanyName:           "Auric Atelier",
				SupportEmail:          "care@auricatelier.example",
			}, nil
		},
	}
	router := newSettingsTestRouter(settings, &stubTemplateService{})

	req := httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var response settingsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Settings.StandardShippingFee != 15000 || response.Settings.CompanyName != "Auric Atelier" {
		t.Fatalf("unexpected settings: %+v", response.Settings)
	}
}

func TestUpdateSettingsForwardsPartialFields(t *testing.T) {
	var captured services.UpdateSettingsCommand
	settings := &stubSettingsService{
		updateFn: func(_ context.Context, cmd services.UpdateSettingsCommand) (services.StoreSettings, error) {
			captured = cmd
			return services.StoreSettings{StandardShippingFee: 20000}, nil
		},
	}
	router := newSettingsTestRouter(settings, &stubTemplateService{})

	req := httptest.NewRequest(http.MethodPut, "/admin/settings", strings.NewReader(`{"standard_shipping_fee": 20000}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.StandardShippingFee == nil || *captured.StandardShippingFee != 20000 {
		t.Fatalf("unexpected fee %+v", captured.StandardShippingFee)
	}
	if captured.CompanyName != nil {
		t.Fatalf("omitted fields must stay nil, got %+v", captured.CompanyName)
	}
}

func TestUpdateSettingsMapsInvalidInput(t *testing.T) {
	settings := &stubSettingsService{
		updateFn: func(_ context.Context, _ services.UpdateSettingsCommand) (services.StoreSettings, error) {
			return services.StoreSettings{}, services.ErrSettingsInvalidInput
		},
	}
	router := newSettingsTestRouter(settings, &stubTemplateService{})

	req := httptest.NewRequest(http.MethodPut, "/admin/settings", strings.NewReader(`{"standard_shipping_fee": -5}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec.Body.Bytes()); code != "invalid_request" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestUpsertTemplate(t *testing.T) {
	var captured services.UpsertTemplateCommand
	templates := &stubTemplateService{
		upsertFn: func(_ context.Context, cmd services.UpsertTemplateCommand) (services.MessageTemplate, error) {
			captured = cmd
			return services.MessageTemplate{
				Name:    cmd.Name,
				Subject: cmd.Subject,
				Body:    cmd.Body,
				Type:    domain.TemplateTypeSystem,
			}, nil
		},
	}
	router := newSettingsTestRouter(&stubSettingsService{}, templates)

	body := `{"subject": "Your order {{orderNumber}} shipped", "body": "On its way, {{customerName}}.", "type": "system"}`
	req := httptest.NewRequest(http.MethodPut, "/admin/templates/order_shipped", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.Name != "order_shipped" {
		t.Fatalf("unexpected template name %q", captured.Name)
	}
	if captured.Type != domain.TemplateTypeSystem {
		t.Fatalf("unexpected template type %q", captured.Type)
	}

	var response templateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Template.Name != "order_shipped" {
		t.Fatalf("unexpected response: %+v", response.Template)
	}
}

func TestListTemplates(t *testing.T) {
	templates := &stubTemplateService{
		listFn: func(_ context.Context, pager services.Pagination) (domain.CursorPage[services.MessageTemplate], error) {
			if pager.PageSize != defaultTemplatePageSize {
				t.Fatalf("unexpected page size %d", pager.PageSize)
			}
			return domain.CursorPage[services.MessageTemplate]{
				Items: []services.MessageTemplate{
					{Name: "order_confirmation", Type: domain.TemplateTypeSystem},
					{Name: "summer_sale", Type: domain.TemplateTypeMarketing},
				},
			}, nil
		},
	}
	router := newSettingsTestRouter(&stubSettingsService{}, templates)

	req := httptest.NewRequest(http.MethodGet, "/admin/templates", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var response templateListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(response.Items) != 2 || response.Items[0].Name != "order_confirmation" {
		t.Fatalf("unexpected response: %+v", response)
	}
}
