// Package handlers implements the Hunter API endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/meghal86/smart-stake-hunter/internal/application"
)

// Handlers manages all HTTP endpoint handlers.
type Handlers struct {
	feed        *application.FeedService
	eligibility *application.EligibilityService
	readiness   func(ctx context.Context) map[string]bool
	log         zerolog.Logger
}

// NewHandlers wires the endpoint handlers. readiness may be nil when no
// dependency checks are exposed.
func NewHandlers(feed *application.FeedService, eligibility *application.EligibilityService, readiness func(ctx context.Context) map[string]bool, log zerolog.Logger) *Handlers {
	return &Handlers{
		feed:        feed,
		eligibility: eligibility,
		readiness:   readiness,
		log:         log.With().Str("component", "http").Logger(),
	}
}

// ErrorResponse is the standardized error payload.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// writeJSON writes a JSON response with proper error handling.
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"json_encoding_failed"}`, http.StatusInternalServerError)
	}
}

// writeError writes a standardized error response.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	requestID, _ := r.Context().Value(requestIDKey{}).(string)
	if requestID == "" {
		requestID = "unknown"
	}

	h.writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	})
}

// NotFound handles 404 responses.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, r, http.StatusNotFound, "endpoint_not_found",
		"The requested endpoint does not exist")
}

// requestIDKey is the context key the middleware stores request IDs under.
type requestIDKey struct{}

// WithRequestID stores a request ID on the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}
