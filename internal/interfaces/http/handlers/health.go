package handlers

import (
	"net/http"
	"time"
)

// HealthResponse reports service and dependency status.
type HealthResponse struct {
	Status       string          `json:"status"`
	Timestamp    time.Time       `json:"timestamp"`
	Dependencies map[string]bool `json:"dependencies,omitempty"`
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	}

	if h.readiness != nil {
		response.Dependencies = h.readiness(r.Context())
		for _, ok := range response.Dependencies {
			if !ok {
				response.Status = "degraded"
			}
		}
	}

	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, response)
}
