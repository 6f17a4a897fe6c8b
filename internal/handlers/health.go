package handlers

import (
	"context"
	"net/http"
	"time"

	domain "github.com/auric-atelier/api/internal/domain"
)

// HealthChecker checks downstream dependencies for the readiness endpoint.
type HealthChecker interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// HealthHandlers serves the /healthz and /readyz endpoints.
type HealthHandlers struct {
	checker HealthChecker
	started time.Time
}

// NewHealthHandlers constructs health handlers. A nil checker keeps /readyz
// reporting ok, for environments without dependency checks wired.
func NewHealthHandlers(checker HealthChecker) *HealthHandlers {
	return &HealthHandlers{
		checker: checker,
		started: time.Now(),
	}
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.started).String(),
	})
}

// Readyz reports dependency readiness. Any failed check turns the response
// into a 503 so load balancers stop routing traffic here.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.checker == nil {
		writeJSONResponse(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}

	report, err := h.checker.Collect(r.Context())
	if err != nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, map[string]any{
			"status": string(domain.HealthStatusError),
			"error":  err.Error(),
		})
		return
	}

	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}

	checks := make(map[string]healthCheckPayload, len(report.Checks))
	for name, check := range report.Checks {
		checks[name] = healthCheckPayload{
			Status:    string(check.Status),
			Detail:    check.Detail,
			Error:     check.Error,
			LatencyMS: check.Latency.Milliseconds(),
			CheckedAt: formatTime(check.CheckedAt),
		}
	}

	writeJSONResponse(w, status, healthReportPayload{
		Status:      string(report.Status),
		Checks:      checks,
		GeneratedAt: formatTime(report.GeneratedAt),
	})
}

type healthReportPayload struct {
	Status      string                        `json:"status"`
	Checks      map[string]healthCheckPayload `json:"checks,omitempty"`
	GeneratedAt string                        `json:"generated_at,omitempty"`
}

type healthCheckPayload struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	CheckedAt string `json:"checked_at,omitempty"`
}
