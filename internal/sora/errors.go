package sora

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Static errors for Sora client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is configured.
	ErrAPIKeyNotSet = errors.New("sora: OPENAI_API_KEY is not set")
	// ErrVideoIDRequired is returned when the video ID is not provided.
	ErrVideoIDRequired = errors.New("sora: video ID is required")
	// ErrPromptRequired is returned when the prompt is empty.
	ErrPromptRequired = errors.New("sora: prompt is required")
	// ErrReferenceNotFound is returned when the reference image path does not exist.
	ErrReferenceNotFound = errors.New("sora: reference image not found")
	// ErrInvalidVariant is returned for an unknown content variant.
	ErrInvalidVariant = errors.New("sora: invalid content variant")
	// ErrNoVideoIDReturned is returned when a create/remix response has no ID.
	ErrNoVideoIDReturned = errors.New("sora: no video ID returned")
)

// APIError is returned when the API answers with a non-2xx status code.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sora: API error (status %d): %s", e.StatusCode, e.Message())
}

// ErrorDetail is the error envelope the API uses in non-2xx bodies.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Detail parses the body as {"error": {...}}.
func (e *APIError) Detail() (ErrorDetail, bool) {
	var env struct {
		Error *ErrorDetail `json:"error"`
	}
	if err := json.Unmarshal([]byte(e.Body), &env); err != nil || env.Error == nil {
		return ErrorDetail{}, false
	}
	return *env.Error, true
}

// Message returns the API's error message, or the raw body when it is not
// the standard envelope.
func (e *APIError) Message() string {
	if d, ok := e.Detail(); ok && d.Message != "" {
		return d.Message
	}
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return http.StatusText(e.StatusCode)
	}
	return body
}

// Temporary reports whether the request may succeed if repeated.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// NotFound reports whether the API answered 404.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// NetworkError wraps transport failures (DNS, connection reset, timeouts).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("sora: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Temporary()
}
