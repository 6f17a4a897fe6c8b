package domain

import "time"

// HealthStatus summarises the state of one dependency or the whole system.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "ok"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusError    HealthStatus = "error"
)

// SystemHealthCheck records the outcome of a single dependency check.
type SystemHealthCheck struct {
	Status    HealthStatus
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency checks for the readiness endpoint.
type SystemHealthReport struct {
	Status      HealthStatus
	Checks      map[string]SystemHealthCheck
	GeneratedAt time.Time
}
