package commerce

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("commerce API authentication failed")
)

// APIError is a non-2xx response from the commerce API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("commerce API error (status %d): %s", e.Status, e.Message)
}

// statusError maps a response status to the error taxonomy.
func statusError(status int, message string) error {
	switch status {
	case 404:
		return ErrNotFound
	case 401, 403:
		return ErrUnauthorized
	default:
		if message == "" {
			message = "request failed"
		}
		return &APIError{Status: status, Message: message}
	}
}
