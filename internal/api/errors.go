package api

import (
	"errors"
	"net/http"

	"github.com/taskmill/taskmill/internal/pool"
	"github.com/taskmill/taskmill/internal/service/auth"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes based on
// the error type. This prevents leaking internal error types or messages
// to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrInvalidAPIKey):
		return http.StatusUnauthorized

	// Admission rejections
	case errors.Is(err, pool.ErrUnknownTaskType):
		return http.StatusNotFound
	case errors.Is(err, pool.ErrCircuitOpen),
		errors.Is(err, pool.ErrPoolTerminated):
		return http.StatusServiceUnavailable

	// Settlement failures
	case errors.Is(err, pool.ErrTaskTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, pool.ErrTaskCancelled):
		return http.StatusBadRequest
	case errors.Is(err, pool.ErrTaskFailed),
		errors.Is(err, pool.ErrWorkerFault):
		return http.StatusUnprocessableEntity

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-facing message for the
// error. Raw error strings are never exposed.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid):
		return "Invalid token"

	case errors.Is(err, auth.ErrInvalidAPIKey):
		return "Invalid credentials"

	case errors.Is(err, pool.ErrUnknownTaskType):
		return "Unknown task type"

	case errors.Is(err, pool.ErrCircuitOpen):
		return "Task execution temporarily suspended"

	case errors.Is(err, pool.ErrPoolTerminated):
		return "Task execution has shut down"

	case errors.Is(err, pool.ErrTaskTimeout):
		return "Task timed out"

	case errors.Is(err, pool.ErrTaskCancelled):
		return "Task cancelled"

	case errors.Is(err, pool.ErrTaskFailed),
		errors.Is(err, pool.ErrWorkerFault):
		return "Task failed"

	default:
		return "An unexpected error occurred"
	}
}
