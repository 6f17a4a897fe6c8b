package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	domain "github.com/auric-atelier/api/internal/domain"
	"github.com/auric-atelier/api/internal/platform/textutil"
	"github.com/auric-atelier/api/internal/repositories"
)

// Well-known system template names the pipeline renders on its own behalf.
const (
	TemplateOrderConfirmation = "order_confirmation"
	TemplateOrderShipped      = "order_shipped"
	TemplatePaymentApproved   = "payment_approved"
	TemplatePaymentRejected   = "payment_rejected"
)

var (
	// ErrTemplateInvalidInput indicates the command failed validation.
	ErrTemplateInvalidInput = errors.New("template: invalid input")
	// ErrTemplateNotFound indicates no stored or fallback template exists for the name.
	ErrTemplateNotFound = errors.New("template: not found")
)

// fallbackTemplates keeps system sends working when the store holds no
// override for a well-known name.
var fallbackTemplates = map[string]MessageTemplate{
	TemplateOrderConfirmation: {
		Name:         TemplateOrderConfirmation,
		Subject:      "Order {{orderNumber}} confirmed",
		Body:         "Dear {{customerName}},\n\nThank you for your order {{orderNumber}}.\nSubtotal: {{subtotal}}\nShipping: {{shipping}}\nTotal: {{total}}\n\nWe will review your payment shortly.\n\n{{companyName}}",
		Placeholders: []string{"customerName", "orderNumber", "subtotal", "shipping", "total", "companyName"},
		Type:         domain.TemplateTypeSystem,
	},
	TemplateOrderShipped: {
		Name:         TemplateOrderShipped,
		Subject:      "Order {{orderNumber}} has shipped",
		Body:         "Dear {{customerName}},\n\nYour order {{orderNumber}} is on its way.\nCarrier: {{carrier}}\nTracking number: {{trackingId}}\n\n{{companyName}}",
		Placeholders: []string{"customerName", "orderNumber", "carrier", "trackingId", "companyName"},
		Type:         domain.TemplateTypeSystem,
	},
	TemplatePaymentApproved: {
		Name:         TemplatePaymentApproved,
		Subject:      "Payment for order {{orderNumber}} approved",
		Body:         "Dear {{customerName}},\n\nWe have confirmed your payment for order {{orderNumber}}.\nYour order is now being prepared.\n\n{{companyName}}",
		Placeholders: []string{"customerName", "orderNumber", "companyName"},
		Type:         domain.TemplateTypeSystem,
	},
	TemplatePaymentRejected: {
		Name:         TemplatePaymentRejected,
		Subject:      "Payment for order {{orderNumber}} could not be verified",
		Body:         "Dear {{customerName}},\n\nWe could not verify the payment submitted for order {{orderNumber}}.\nPlease upload a new payment proof from your order page so we can review it again.\nNeed help? Contact {{supportEmail}} or call {{supportPhone}}.\n\n{{companyName}}",
		Placeholders: []string{"customerName", "orderNumber", "supportEmail", "supportPhone", "companyName"},
		Type:         domain.TemplateTypeSystem,
	},
}

// TemplateServiceDeps enumerates collaborators required to construct the service.
type TemplateServiceDeps struct {
	Templates repositories.TemplateRepository
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type templateService struct {
	templates repositories.TemplateRepository
	clock     func() time.Time
	logger    func(context.Context, string, map[string]any)
	sanitizer *bluemonday.Policy
}

// NewTemplateService wires dependencies into a TemplateService implementation.
func NewTemplateService(deps TemplateServiceDeps) (TemplateService, error) {
	if deps.Templates == nil {
		return nil, errors.New("template service: template repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &templateService{
		templates: deps.Templates,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger:    logger,
		sanitizer: bluemonday.UGCPolicy(),
	}, nil
}

func (s *templateService) Get(ctx context.Context, name string) (MessageTemplate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return MessageTemplate{}, fmt.Errorf("%w: template name is required", ErrTemplateInvalidInput)
	}

	template, err := s.templates.FindByName(ctx, name)
	if err != nil {
		if isRepoNotFound(err) {
			if fallback, ok := fallbackTemplates[name]; ok {
				return fallback, nil
			}
			return MessageTemplate{}, ErrTemplateNotFound
		}
		return MessageTemplate{}, err
	}
	return template, nil
}

func (s *templateService) Upsert(ctx context.Context, cmd UpsertTemplateCommand) (MessageTemplate, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return MessageTemplate{}, fmt.Errorf("%w: template name is required", ErrTemplateInvalidInput)
	}
	subject := strings.TrimSpace(cmd.Subject)
	if subject == "" {
		return MessageTemplate{}, fmt.Errorf("%w: subject is required", ErrTemplateInvalidInput)
	}
	body := strings.TrimSpace(cmd.Body)
	if body == "" {
		return MessageTemplate{}, fmt.Errorf("%w: body is required", ErrTemplateInvalidInput)
	}
	templateType := cmd.Type
	if templateType == "" {
		templateType = domain.TemplateTypeMarketing
	}
	if templateType != domain.TemplateTypeSystem && templateType != domain.TemplateTypeMarketing {
		return MessageTemplate{}, fmt.Errorf("%w: unknown template type %q", ErrTemplateInvalidInput, templateType)
	}

	now := s.clock()
	template := MessageTemplate{
		Name:         name,
		Subject:      subject,
		Body:         s.sanitizer.Sanitize(body),
		Placeholders: normalizePlaceholders(cmd.Placeholders),
		Type:         templateType,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.templates.Upsert(ctx, template); err != nil {
		return MessageTemplate{}, err
	}
	return template, nil
}

func (s *templateService) List(ctx context.Context, pager Pagination) (domain.CursorPage[MessageTemplate], error) {
	return s.templates.List(ctx, pager)
}

// Render substitutes {{placeholder}} tokens in the named template. Missing
// stored templates fall back to the built-in system defaults so transactional
// sends never block on configuration.
func (s *templateService) Render(ctx context.Context, name string, data map[string]string) (RenderedMessage, error) {
	template, err := s.Get(ctx, name)
	if err != nil {
		return RenderedMessage{}, err
	}

	normalized := textutil.NormalizeStringMap(data)
	return RenderedMessage{
		Subject: substitutePlaceholders(template.Subject, normalized),
		Body:    substitutePlaceholders(template.Body, normalized),
	}, nil
}

func substitutePlaceholders(text string, data map[string]string) string {
	for key, value := range data {
		text = strings.ReplaceAll(text, "{{"+key+"}}", value)
	}
	return text
}

func normalizePlaceholders(placeholders []string) []string {
	if len(placeholders) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(placeholders))
	result := make([]string, 0, len(placeholders))
	for _, placeholder := range placeholders {
		trimmed := strings.TrimSpace(placeholder)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

var moneyPrinter = message.NewPrinter(language.English)

// FormatMinorUnits renders an integer minor-unit amount with digit grouping
// for use in customer-facing email bodies.
func FormatMinorUnits(amount int64) string {
	return moneyPrinter.Sprintf("%d", amount)
}
