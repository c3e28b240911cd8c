package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedStream is returned when a stream frame cannot be decoded.
	ErrMalformedStream = errors.New("malformed stream")
	// ErrTruncatedStream is returned when a stream ends without a terminal frame.
	ErrTruncatedStream = errors.New("stream ended unexpectedly")
)

// APIError represents a non-success response from a completion endpoint.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error [%d] at %s", e.StatusCode, e.Endpoint)
	}
	return fmt.Sprintf("API error [%d] at %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

func NewAPIError(statusCode int, endpoint, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Message:    message,
	}
}
