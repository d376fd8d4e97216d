package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"diffusiond/internal/backend"
	"diffusiond/internal/catalog"
	"diffusiond/internal/orchestrator"
	"diffusiond/internal/results"
	"diffusiond/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case errors.As(err, &he):
		return he.StatusCode()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case orchestrator.IsTooBusy(err):
		return http.StatusConflict
	case orchestrator.IsModelNotFound(err), errors.Is(err, results.ErrImageNotFound):
		return http.StatusNotFound
	case orchestrator.IsInvalidRequest(err), backend.IsUnsupportedScheduler(err):
		return http.StatusUnprocessableEntity
	case backend.IsDependencyUnavailable(err), catalog.IsDirectoryNoAccess(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with its mapped status and returns that status.
func writeServiceError(w http.ResponseWriter, err error) int {
	status := statusFor(err)
	if status == http.StatusConflict {
		IncrementBackpressure("batch_running")
	}
	writeJSONError(w, status, err.Error())
	return status
}
