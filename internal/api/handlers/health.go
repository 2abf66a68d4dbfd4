package handlers

import (
	"context"
	"net/http"
	"time"
)

// Check tests one dependency
type Check func(ctx context.Context) error

// HealthHandler reports service and dependency status
type HealthHandler struct {
	service string
	checks  map[string]Check
	timeout time.Duration
}

// NewHealthHandler creates a new health handler. Checks run on every request.
func NewHealthHandler(service string, checks map[string]Check) *HealthHandler {
	return &HealthHandler{
		service: service,
		checks:  checks,
		timeout: 2 * time.Second,
	}
}

// HealthStatus is the health payload
type HealthStatus struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// Health answers 200 when every check passes and 503 otherwise
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	status := HealthStatus{Status: "ok", Service: h.service}
	if len(h.checks) > 0 {
		status.Checks = make(map[string]string, len(h.checks))
	}

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status.Status = "degraded"
			status.Checks[name] = err.Error()
			continue
		}
		status.Checks[name] = "ok"
	}

	if status.Status != "ok" {
		respondJSON(w, http.StatusServiceUnavailable, Response{
			Code:    http.StatusServiceUnavailable,
			Message: "degraded",
			Data:    status,
		})
		return
	}
	respondOK(w, "", status)
}
