package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/auric-atelier/api/internal/platform/httpx"
	"github.com/auric-atelier/api/internal/services"
)

const (
	defaultNotificationPageSize = 50
	maxNotificationPageSize     = 200
)

// AdminNotificationHandlers exposes the admin dashboard notification feed.
type AdminNotificationHandlers struct {
	notifications services.NotificationService
}

// NewAdminNotificationHandlers constructs a new AdminNotificationHandlers instance.
func NewAdminNotificationHandlers(notifications services.NotificationService) *AdminNotificationHandlers {
	return &AdminNotificationHandlers{notifications: notifications}
}

// Routes registers the notification endpoints on the given router group.
func (h *AdminNotificationHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/notifications", h.listNotifications)
	r.Post("/notifications/{notificationID}:read", h.markRead)
}

type notificationPayload struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Link      string `json:"link,omitempty"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

type notificationListResponse struct {
	Items         []notificationPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type notificationResponse struct {
	Notification notificationPayload `json:"notification"`
}

func (h *AdminNotificationHandlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	pageSize, err := parsePageSize(query.Get("page_size"), defaultNotificationPageSize, maxNotificationPageSize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.notifications.List(ctx, services.NotificationListFilter{
		UnreadOnly: strings.EqualFold(strings.TrimSpace(query.Get("unread_only")), "true"),
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("notification_error", "failed to list notifications", http.StatusInternalServerError))
		return
	}

	items := make([]notificationPayload, 0, len(page.Items))
	for _, notification := range page.Items {
		items = append(items, buildNotificationPayload(notification))
	}
	writeJSONResponse(w, http.StatusOK, notificationListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *AdminNotificationHandlers) markRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	notificationID := strings.TrimSpace(chi.URLParam(r, "notificationID"))
	if notificationID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "notification id is required", http.StatusBadRequest))
		return
	}

	notification, err := h.notifications.MarkRead(ctx, notificationID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotificationNotFound):
			httpx.WriteError(ctx, w, httpx.NewError("notification_not_found", "notification not found", http.StatusNotFound))
		case errors.Is(err, services.ErrNotificationInvalidInput):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("notification_error", "failed to update notification", http.StatusInternalServerError))
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, notificationResponse{Notification: buildNotificationPayload(notification)})
}

func buildNotificationPayload(notification services.AdminNotification) notificationPayload {
	return notificationPayload{
		ID:        notification.ID,
		Title:     notification.Title,
		Message:   notification.Message,
		Type:      notification.Type,
		Link:      notification.Link,
		IsRead:    notification.IsRead,
		CreatedAt: formatTime(notification.CreatedAt),
	}
}
