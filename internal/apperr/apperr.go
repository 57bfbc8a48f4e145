package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ConfigError reports a missing or invalid required configuration value.
// It is fatal: the only fix is correcting the deployment environment.
type ConfigError struct {
	Key string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", e.Key)
}

// AuthError reports a failed login or token exchange. The user may retry.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NetworkError reports a transport-level failure before any HTTP status was
// received.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// APIError reports a non-2xx response from the core backend. Message carries
// the backend's own message verbatim when one was supplied.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
}

// StatusMessage is the fallback message for a response with no usable body.
func StatusMessage(status int) string {
	text := http.StatusText(status)
	if text == "" {
		text = "unexpected response"
	}
	return fmt.Sprintf("request failed with status %d (%s)", status, text)
}

// UserMessage converts any error into a single line fit for display.
func UserMessage(err error) string {
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return fmt.Sprintf("Configuration is incomplete: %s is not set", cfgErr.Key)
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Message
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return "Could not reach the server. Please check your connection and try again."
	}
	return "Something went wrong. Please try again."
}

// IsUnauthorized reports whether err is a backend rejection of the current
// session token.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}
