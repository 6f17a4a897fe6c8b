package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/auric-atelier/api/internal/domain"
	"github.com/auric-atelier/api/internal/platform/httpx"
	"github.com/auric-atelier/api/internal/services"
)

const (
	defaultMailQueuePageSize = 50
	maxMailQueuePageSize     = 200
)

// AdminMailQueueHandlers exposes queue inspection and retry endpoints.
type AdminMailQueueHandlers struct {
	mail services.MailService
}

// NewAdminMailQueueHandlers constructs a new AdminMailQueueHandlers instance.
func NewAdminMailQueueHandlers(mail services.MailService) *AdminMailQueueHandlers {
	return &AdminMailQueueHandlers{mail: mail}
}

// Routes registers the mail queue endpoints on the given router group.
func (h *AdminMailQueueHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/mail-queue", h.listQueue)
	r.Post("/mail-queue:retry", h.retryFailed)
}

type queuedMessagePayload struct {
	ID          string  `json:"id"`
	To          string  `json:"to"`
	Subject     string  `json:"subject"`
	Kind        string  `json:"kind"`
	Status      string  `json:"status"`
	Attempts    int     `json:"attempts"`
	LastError   *string `json:"last_error,omitempty"`
	ScheduledAt string  `json:"scheduled_at"`
	SentAt      string  `json:"sent_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at,omitempty"`
}

type mailQueueListResponse struct {
	Items         []queuedMessagePayload `json:"items"`
	NextPageToken string                 `json:"next_page_token,omitempty"`
}

type retryResponse struct {
	Retried int `json:"retried"`
}

func (h *AdminMailQueueHandlers) listQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	pageSize, err := parsePageSize(query.Get("page_size"), defaultMailQueuePageSize, maxMailQueuePageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.MailQueueListFilter{
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status := domain.QueuedMessageStatus(raw)
		filter.Status = &status
	}
	if raw := strings.TrimSpace(query.Get("kind")); raw != "" {
		kind := domain.MessageKind(raw)
		filter.Kind = &kind
	}

	page, err := h.mail.ListQueue(ctx, filter)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("mail_queue_error", "failed to list mail queue", http.StatusInternalServerError))
		return
	}

	items := make([]queuedMessagePayload, 0, len(page.Items))
	for _, message := range page.Items {
		items = append(items, buildQueuedMessagePayload(message))
	}
	writeJSONResponse(w, http.StatusOK, mailQueueListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *AdminMailQueueHandlers) retryFailed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	receipt, err := h.mail.RetryFailed(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("mail_queue_error", "failed to retry queued mail", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusAccepted, retryResponse{Retried: receipt.Retried})
}

func buildQueuedMessagePayload(message services.QueuedMessage) queuedMessagePayload {
	return queuedMessagePayload{
		ID:          message.ID,
		To:          message.To,
		Subject:     message.Subject,
		Kind:        string(message.Kind),
		Status:      string(message.Status),
		Attempts:    message.Attempts,
		LastError:   message.LastError,
		ScheduledAt: formatTime(message.ScheduledAt),
		SentAt:      formatTimePtr(message.SentAt),
		CreatedAt:   formatTime(message.CreatedAt),
		UpdatedAt:   formatTime(message.UpdatedAt),
	}
}
