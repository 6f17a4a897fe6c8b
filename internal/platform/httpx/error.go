// Package httpx carries the JSON error envelope shared by every surface of
// the API.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/auric-atelier/api/internal/platform/requestctx"
)

// Error is a machine-readable error code with a human-readable message.
type Error struct {
	Code    string
	Message string
	Status  int
}

// NewError constructs an Error. A zero status becomes 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    clean(code, 80),
		Message: clean(message, 512),
		Status:  status,
	}
}

// WriteError writes the error envelope as JSON, attaching the request and
// trace identifiers carried on the context when present.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	payload := map[string]any{
		"error":   err.Code,
		"message": err.Message,
		"status":  status,
	}
	if requestID := clean(middleware.GetReqID(ctx), 80); requestID != "" {
		payload["request_id"] = requestID
	}
	if traceID := clean(requestctx.TraceID(ctx), 64); traceID != "" {
		payload["trace_id"] = traceID
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// clean keeps codes and messages single-line and bounded.
func clean(value string, limit int) string {
	value = strings.NewReplacer("\n", " ", "\r", " ").Replace(value)
	value = strings.TrimSpace(value)
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
