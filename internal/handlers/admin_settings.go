package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/auric-atelier/api/internal/domain"
	"github.com/auric-atelier/api/internal/platform/httpx"
	"github.com/auric-atelier/api/internal/services"
)

const (
	maxSettingsBodySize = 16 * 1024
	maxTemplateBodySize = 256 * 1024

	defaultTemplatePageSize = 50
	maxTemplatePageSize     = 200
)

// AdminSettingsHandlers exposes store configuration and template management.
type AdminSettingsHandlers struct {
	settings  services.SettingsService
	templates services.TemplateService
}

// NewAdminSettingsHandlers constructs a new AdminSettingsHandlers instance.
func NewAdminSettingsHandlers(settings services.SettingsService, templates services.TemplateService) *AdminSettingsHandlers {
	return &AdminSettingsHandlers{settings: settings, templates: templates}
}

// Routes registers the settings and template endpoints on the given router group.
func (h *AdminSettingsHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/settings", h.getSettings)
	r.Put("/settings", h.updateSettings)
	r.Get("/templates", h.listTemplates)
	r.Put("/templates/{templateName}", h.upsertTemplate)
}

type settingsPayload struct {
	StandardShippingFee   int64  `json:"standard_shipping_fee"`
	FreeShippingThreshold int64  `json:"free_shipping_threshold"`
	CompanyName           string `json:"company_name"`
	SupportEmail          string `json:"support_email"`
	SupportPhone          string `json:"support_phone"`
	LogoRef               string `json:"logo_ref,omitempty"`
	UpdatedAt             string `json:"updated_at,omitempty"`
}

type settingsResponse struct {
	Settings settingsPayload `json:"settings"`
}

type updateSettingsRequest struct {
	StandardShippingFee   *int64  `json:"standard_shipping_fee,omitempty"`
	FreeShippingThreshold *int64  `json:"free_shipping_threshold,omitempty"`
	CompanyName           *string `json:"company_name,omitempty"`
	SupportEmail          *string `json:"support_email,omitempty"`
	SupportPhone          *string `json:"support_phone,omitempty"`
	LogoRef               *string `json:"logo_ref,omitempty"`
}

type templatePayload struct {
	Name         string   `json:"name"`
	Subject      string   `json:"subject"`
	Body         string   `json:"body"`
	Placeholders []string `json:"placeholders,omitempty"`
	Type         string   `json:"type"`
	UpdatedAt    string   `json:"updated_at,omitempty"`
}

type templateResponse struct {
	Template templatePayload `json:"template"`
}

type templateListResponse struct {
	Items         []templatePayload `json:"items"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

type upsertTemplateRequest struct {
	Subject      string   `json:"subject"`
	Body         string   `json:"body"`
	Placeholders []string `json:"placeholders,omitempty"`
	Type         string   `json:"type,omitempty"`
}

func (h *AdminSettingsHandlers) getSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	settings, err := h.settings.Get(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("settings_error", "failed to load settings", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, settingsResponse{Settings: buildSettingsPayload(settings)})
}

func (h *AdminSettingsHandlers) updateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := readLimitedBody(r, maxSettingsBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req updateSettingsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	settings, err := h.settings.Update(ctx, services.UpdateSettingsCommand{
		StandardShippingFee:   req.StandardShippingFee,
		FreeShippingThreshold: req.FreeShippingThreshold,
		CompanyName:           req.CompanyName,
		SupportEmail:          req.SupportEmail,
		SupportPhone:          req.SupportPhone,
		LogoRef:               req.LogoRef,
	})
	if err != nil {
		if errors.Is(err, services.ErrSettingsInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("settings_error", "failed to update settings", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, settingsResponse{Settings: buildSettingsPayload(settings)})
}

func (h *AdminSettingsHandlers) listTemplates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	pageSize, err := parsePageSize(query.Get("page_size"), defaultTemplatePageSize, maxTemplatePageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.templates.List(ctx, services.Pagination{
		PageSize:  pageSize,
		PageToken: strings.TrimSpace(query.Get("page_token")),
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("template_error", "failed to list templates", http.StatusInternalServerError))
		return
	}

	items := make([]templatePayload, 0, len(page.Items))
	for _, template := range page.Items {
		items = append(items, buildTemplatePayload(template))
	}
	writeJSONResponse(w, http.StatusOK, templateListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *AdminSettingsHandlers) upsertTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	name := strings.TrimSpace(chi.URLParam(r, "templateName"))
	if name == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "template name is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxTemplateBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req upsertTemplateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	template, err := h.templates.Upsert(ctx, services.UpsertTemplateCommand{
		Name:         name,
		Subject:      req.Subject,
		Body:         req.Body,
		Placeholders: req.Placeholders,
		Type:         domain.TemplateType(strings.TrimSpace(req.Type)),
	})
	if err != nil {
		if errors.Is(err, services.ErrTemplateInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("template_error", "failed to save template", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, templateResponse{Template: buildTemplatePayload(template)})
}

func buildSettingsPayload(settings services.StoreSettings) settingsPayload {
	return settingsPayload{
		StandardShippingFee:   settings.StandardShippingFee,
		FreeShippingThreshold: settings.FreeShippingThreshold,
		CompanyName:           settings.CompanyName,
		SupportEmail:          settings.SupportEmail,
		SupportPhone:          settings.SupportPhone,
		LogoRef:               settings.LogoRef,
		UpdatedAt:             formatTime(settings.UpdatedAt),
	}
}

func buildTemplatePayload(template services.MessageTemplate) templatePayload {
	return templatePayload{
		Name:         template.Name,
		Subject:      template.Subject,
		Body:         template.Body,
		Placeholders: template.Placeholders,
		Type:         string(template.Type),
		UpdatedAt:    formatTime(template.UpdatedAt),
	}
}
