package collector

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// UnauthorizedDomainError is returned when the collector answers 403: the
// calling domain is not allowed for the account.
type UnauthorizedDomainError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *UnauthorizedDomainError) Error() string {
	return fmt.Sprintf("unauthorized domain (status %d): %s", e.StatusCode, e.Message)
}

func (e *UnauthorizedDomainError) Unwrap() error { return e.Err }

// ConfigurationError is returned for any other non-2xx answer.
type ConfigurationError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("collector configuration error (status %d): %s", e.StatusCode, e.Message)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// errorBody is the optional JSON shape of a failure response.
type errorBody struct {
	Message string `json:"message"`
}

// newStatusError maps a failed response to the typed errors. The message is
// taken from the body's "message" field, falling back to the status text.
func newStatusError(status int, body []byte) error {
	message := http.StatusText(status)

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		message = parsed.Message
	}
	cause := errors.New(message)

	if status == http.StatusForbidden {
		return &UnauthorizedDomainError{StatusCode: status, Message: message, Err: cause}
	}
	return &ConfigurationError{StatusCode: status, Message: message, Err: cause}
}
