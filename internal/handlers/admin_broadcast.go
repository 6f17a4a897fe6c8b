package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/auric-atelier/api/internal/platform/httpx"
	"github.com/auric-atelier/api/internal/services"
)

const maxBroadcastBodySize = 512 * 1024

// AdminBroadcastHandlers exposes the bulk marketing send endpoint.
type AdminBroadcastHandlers struct {
	mail services.MailService
}

// NewAdminBroadcastHandlers constructs a new AdminBroadcastHandlers instance.
func NewAdminBroadcastHandlers(mail services.MailService) *AdminBroadcastHandlers {
	return &AdminBroadcastHandlers{mail: mail}
}

// Routes registers the broadcast endpoint on the given router group.
func (h *AdminBroadcastHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/broadcast", h.broadcast)
}

type broadcastRequest struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
}

type broadcastResponse struct {
	Queued   int    `json:"queued"`
	QueuedAt string `json:"queued_at"`
}

// broadcast acknowledges as soon as every message is durably queued; the
// rate-limited dispatch continues in the background.
func (h *AdminBroadcastHandlers) broadcast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := readLimitedBody(r, maxBroadcastBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req broadcastRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	receipt, err := h.mail.Broadcast(ctx, services.BroadcastCommand{
		Recipients: req.Recipients,
		Subject:    req.Subject,
		Body:       req.Body,
	})
	if err != nil {
		if errors.Is(err, services.ErrMailInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("broadcast_error", "failed to queue broadcast", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusAccepted, broadcastResponse{
		Queued:   receipt.Queued,
		QueuedAt: formatTime(receipt.QueuedAt),
	})
}
