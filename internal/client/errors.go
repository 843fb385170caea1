package client

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// APIError is a non-2xx answer from the backend. Error() is the backend's own
// message so it can be shown to the user unchanged.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

func newAPIError(status int, body []byte) *APIError {
	return &APIError{StatusCode: status, Message: extractMessage(status, body)}
}

// extractMessage prefers JSON "message", then JSON "error", then the raw text
func extractMessage(status int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	} else {
		var quoted string
		if err := json.Unmarshal(body, &quoted); err == nil && quoted != "" {
			return quoted
		}
		if text := strings.TrimSpace(string(body)); text != "" && !strings.HasPrefix(text, "<") {
			return text
		}
	}

	if text := http.StatusText(status); text != "" {
		return text
	}
	return "request failed"
}

// StatusOf returns the HTTP status carried by err, or 0 for transport failures
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsUnauthorized reports a rejected credential (401 or 403)
func IsUnauthorized(err error) bool {
	status := StatusOf(err)
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// IsNotFound reports a 404 from the backend
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// IsConflict reports a 409 from the backend, such as a duplicate email
func IsConflict(err error) bool {
	return StatusOf(err) == http.StatusConflict
}

// IsValidation reports a 400 or 422 from the backend
func IsValidation(err error) bool {
	status := StatusOf(err)
	return status == http.StatusBadRequest || status == http.StatusUnprocessableEntity
}

// IsServerError reports a transport failure or a 5xx answer
func IsServerError(err error) bool {
	if err == nil {
		return false
	}
	status := StatusOf(err)
	return status == 0 || status >= 500
}
