package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized matches 401 and 403 responses.
	ErrUnauthorized = errors.New("unauthorized: session expired or invalid")

	// ErrNotFound matches 404 responses.
	ErrNotFound = errors.New("not found")

	// ErrServer matches 5xx responses.
	ErrServer = errors.New("server error")
)

// APIError is a non-2xx response from the board service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("board service returned %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is match an APIError against ErrUnauthorized, ErrNotFound and ErrServer.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrServer:
		return e.StatusCode >= http.StatusInternalServerError
	}

	return false
}

// Retryable reports whether repeating the request may succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}
