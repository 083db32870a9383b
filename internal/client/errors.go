package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/felixgeelhaar/storefront/internal/domain"
)

// ErrBadResponse is returned when a 2xx body does not decode.
var ErrBadResponse = errors.New("unexpected response body")

// APIError is a non-2xx response from the storefront API.
type APIError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Method  string `json:"method"`
	Path    string `json:"path"`
	Details any    `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, msg)
}

// Is maps common statuses onto domain errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case domain.ErrNotFound:
		return e.Status == http.StatusNotFound
	case domain.ErrUnauthenticated:
		return e.Status == http.StatusUnauthorized
	case domain.ErrForbidden:
		return e.Status == http.StatusForbidden
	case domain.ErrInvalidInput:
		return e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity
	}
	return false
}

// WithDetails attaches the decoded error body.
func (e *APIError) WithDetails(details any) *APIError {
	e.Details = details
	return e
}

// Temporary reports whether the request may succeed when repeated.
func (e *APIError) Temporary() bool {
	switch e.Status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// newAPIError builds an APIError from a response body. The server reports
// failures as {"message": "..."}; other bodies are kept as text.
func newAPIError(method, path string, status int, body []byte) *APIError {
	e := &APIError{Status: status, Method: method, Path: path}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg, ok := payload["message"].(string); ok {
			e.Message = msg
		} else if msg, ok := payload["error"].(string); ok {
			e.Message = msg
		}
		return e.WithDetails(payload)
	}

	e.Message = truncate(strings.TrimSpace(string(body)), maxMessageBytes)
	return e
}

const maxMessageBytes = 200

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// IsRetryable reports whether err came from a transport failure or a
// temporary server status.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, ErrBadResponse), errors.Is(err, domain.ErrInvalidInput):
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}
