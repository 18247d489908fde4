package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"ipvops/internal/core"
	"ipvops/internal/log"
)

// kindNotFound and kindRateLimited complete core.Kind for API-only failures.
const (
	kindNotFound    = "not_found"
	kindRateLimited = "rate_limited"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Detail string `json:"detail"`
	Kind   string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", log.FieldComponent, log.ComponentHTTP, "error", err)
	}
}

// writeError maps err onto a status code through its kind.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := core.KindOf(err)
	status := statusFor(kind)

	logger := log.NewStructuredLogger(log.FromContext(r.Context()))
	if status >= http.StatusInternalServerError {
		logger.LogError(r.Context(), "Request failed", err, string(kind), r.Pattern, nil)
	}

	writeJSON(w, status, ErrorBody{Detail: err.Error(), Kind: string(kind)})
}

func statusFor(kind core.Kind) int {
	switch kind {
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindCanceled:
		return http.StatusServiceUnavailable
	default:
		// Configuration, fetch, decode and internal failures.
		return http.StatusInternalServerError
	}
}

func writeRateLimited(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, ErrorBody{
		Detail: "Rate limit exceeded. Please try again later.",
		Kind:   kindRateLimited,
	})
}
