package main

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/icglr-rcm/mindata"
	"go.uber.org/zap"
)

// errorResponse is the wire format for all error replies.
type errorResponse struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// writeJSON writes a JSON response to http.ResponseWriter.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.S().Warnw("failed to encode response", "error", err)
	}
}

// writeError maps an error to its HTTP status and error envelope.
func writeError(w http.ResponseWriter, err error) {
	e := mindata.AsError(err)
	if e.Status >= http.StatusInternalServerError {
		zap.S().Errorw("request failed", "code", e.Code, "error", err)
	}
	writeJSON(w, e.Status, errorResponse{
		Code:      e.Code,
		Message:   e.Message,
		Details:   e.Details,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// parsePagination extracts page and limit from query parameters.
func parsePagination(queryParams url.Values, defaultLimit, maxLimit int) (int, int) {
	page := 1
	limit := defaultLimit

	if p := queryParams.Get("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}

	if l := queryParams.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			if parsed > maxLimit {
				parsed = maxLimit
			}
			limit = parsed
		}
	}

	return page, limit
}

// readJSONBody reads and decodes JSON from the request body.
func readJSONBody(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return mindata.NewValidationError("Request body must be valid JSON").WithCause(err)
	}
	return nil
}

// withRequestID tags every request with an ID and logs its outcome.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)

		start := time.Now()
		next.ServeHTTP(w, r)
		zap.S().Infow("request",
			"id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}
