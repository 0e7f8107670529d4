package api

import (
	"errors"
	"net/http"

	"github.com/studybuddy/analysis-api/internal/dispatch"
	"github.com/studybuddy/analysis-api/internal/queue"
	"github.com/studybuddy/analysis-api/internal/service/auth"
	"github.com/studybuddy/analysis-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes
// without leaking internal detail to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrUnknownSubject):
		return http.StatusUnauthorized

	case errors.Is(err, auth.ErrNotService):
		return http.StatusForbidden

	case errors.Is(err, store.ErrUserNotFound),
		errors.Is(err, store.ErrResultNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, dispatch.ErrUnknownJob):
		return http.StatusNotFound

	case errors.Is(err, store.ErrUsernameExists),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	case errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	case errors.Is(err, queue.ErrQueueFull):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-safe message for the error.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrUnknownSubject):
		return "Invalid token"

	case errors.Is(err, auth.ErrNotService):
		return "Caller is not authorized to report results"

	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"

	case errors.Is(err, store.ErrResultNotFound):
		return "Result not found"

	case errors.Is(err, dispatch.ErrUnknownJob):
		return "Job not found"

	case errors.Is(err, store.ErrUsernameExists):
		return "Username already exists"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	case errors.Is(err, queue.ErrQueueFull):
		return "Service is at capacity, try again later"

	default:
		return "An unexpected error occurred"
	}
}
