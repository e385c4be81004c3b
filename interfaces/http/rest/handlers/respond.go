// Package handlers exposes the engine's operations over HTTP. Handlers
// open one substrate transaction per request, bound to the caller
// identity, and translate the error taxonomy to status codes.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	apperrors "reqtrack-backend/pkg/errors"
)

// Caller identity header. Authentication itself is out of scope; the
// identity is carried through for audit attribution only.
const userIDHeader = "X-User-ID"

// errorResponse is the standardized error body.
type errorResponse struct {
	Error      string   `json:"error"`
	Violations []string `json:"violations,omitempty"`
	Expected   string   `json:"expectedVersionId,omitempty"`
	Actual     string   `json:"actualVersionId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeError maps the error taxonomy onto HTTP statuses. Validation
// errors carry their itemized violations; version conflicts carry the
// expected and actual version ids so clients can re-fetch and retry.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var appErr *apperrors.AppError
	status := http.StatusInternalServerError
	body := errorResponse{Error: "internal server error"}

	if errors.As(err, &appErr) {
		body.Error = appErr.Message
		switch appErr.Type {
		case apperrors.ErrorTypeValidation:
			status = http.StatusBadRequest
			body.Violations = appErr.Violations
		case apperrors.ErrorTypeNotFound:
			status = http.StatusNotFound
		case apperrors.ErrorTypeConflict:
			status = http.StatusConflict
			body.Expected = appErr.Expected
			body.Actual = appErr.Actual
		case apperrors.ErrorTypeUnsupported:
			status = http.StatusMethodNotAllowed
		default:
			status = http.StatusInternalServerError
		}
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
	}
	writeJSON(w, status, body)
}

func userID(r *http.Request) string {
	if id := r.Header.Get(userIDHeader); id != "" {
		return id
	}
	return "anonymous"
}

func decodeBody(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, logger, apperrors.NewValidation("invalid request body", err.Error()))
		return false
	}
	return true
}
