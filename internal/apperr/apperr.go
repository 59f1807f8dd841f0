// Package apperr holds the error taxonomy shared by the service layers and
// its mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrAlreadyReviewed = errors.New("request has already been reviewed")
	ErrFetchFailed     = errors.New("fetch failed")
	ErrValidation      = errors.New("validation error")
)

// Status returns the HTTP status code for err.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrAlreadyReviewed), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrFetchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns a caller-safe message for err. Internal errors are not
// echoed back.
func Message(err error) string {
	if Status(err) == http.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}
