package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
	"github.com/alem-hub/mastery-tracker/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse represents a standard JSON response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version,omitempty"`
	TotalCount int       `json:"total_count,omitempty"`
	Skip       int       `json:"skip,omitempty"`
	Limit      int       `json:"limit,omitempty"`
	HasMore    bool      `json:"has_more,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, resp JSONResponse) {
	if resp.Meta == nil {
		resp.Meta = &ResponseMeta{}
	}
	resp.Meta.Timestamp = time.Now().UTC()
	resp.RequestID = getRequestID(r.Context())

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a successful response.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	s.writeJSONWithMeta(w, r, status, data, nil)
}

// writeJSONWithMeta writes a successful response with pagination metadata.
func (s *Server) writeJSONWithMeta(w http.ResponseWriter, r *http.Request, status int, data any, meta *ResponseMeta) {
	if meta == nil {
		meta = &ResponseMeta{}
	}
	meta.Version = s.config.Version
	writeEnvelope(w, r, status, JSONResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta:    meta,
	})
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message, details string) {
	writeEnvelope(w, r, status, JSONResponse{
		Error: &APIError{Code: code, Message: message, Details: details},
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps the domain error taxonomy onto HTTP statuses.
// Storage and unknown failures are logged; their details are not exposed.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := statusFor(err)

	message := "internal error"
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		message = de.Message
	}

	switch status {
	case http.StatusBadRequest, http.StatusNotFound:
		writeError(w, r, status, code, message, "")
		return
	case http.StatusServiceUnavailable:
		message = "storage is unavailable, retry later"
	default:
		message = "an unexpected error occurred"
	}

	logger.FromContext(r.Context()).Error("request failed",
		logger.Operation(op),
		logger.UserID(userIDFrom(r)),
		logger.Int("status", status),
		logger.Err(err),
	)
	writeError(w, r, status, code, message, "")
}

func statusFor(err error) (int, string) {
	switch {
	case shared.IsValidation(err):
		return http.StatusBadRequest, "validation_error"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsStorage(err):
		return http.StatusServiceUnavailable, "storage_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
