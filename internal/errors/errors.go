// Package errors provides custom error types for the advisor proxy.
package errors

import (
	"encoding/json"
	"fmt"
)

// ProxyError is the base error type for advisor proxy errors
type ProxyError struct {
	Message   string                 `json:"message"`
	Code      string                 `json:"code"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

func (e *ProxyError) Error() string {
	return e.Message
}

// ToJSON converts the error to a map for API responses
func (e *ProxyError) ToJSON() map[string]interface{} {
	result := map[string]interface{}{
		"name":      "ProxyError",
		"code":      e.Code,
		"message":   e.Message,
		"retryable": e.Retryable,
	}
	for k, v := range e.Metadata {
		result[k] = v
	}
	return result
}

// MarshalJSON implements json.Marshaler
func (e *ProxyError) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToJSON())
}

// ConfigError represents missing or malformed service configuration.
// Fatal for the call; never retried.
type ConfigError struct {
	*ProxyError
	Field string `json:"field,omitempty"`
}

// NewConfigError creates a new ConfigError
func NewConfigError(message, field string) *ConfigError {
	metadata := map[string]interface{}{}
	if field != "" {
		metadata["field"] = field
	}
	return &ConfigError{
		ProxyError: &ProxyError{
			Message:   message,
			Code:      "CONFIG_INVALID",
			Retryable: false,
			Metadata:  metadata,
		},
		Field: field,
	}
}

// AuthError represents a rejected OAuth token exchange
type AuthError struct {
	*ProxyError
	UpstreamBody string `json:"upstreamBody,omitempty"`
}

// NewAuthError creates a new AuthError with the upstream error body attached
func NewAuthError(message, upstreamBody string) *AuthError {
	metadata := map[string]interface{}{}
	if upstreamBody != "" {
		metadata["upstreamBody"] = upstreamBody
	}
	return &AuthError{
		ProxyError: &ProxyError{
			Message:   message,
			Code:      "AUTH_FAILED",
			Retryable: false,
			Metadata:  metadata,
		},
		UpstreamBody: upstreamBody,
	}
}

// UpstreamError represents a non-2xx response from the reasoning engine
type UpstreamError struct {
	*ProxyError
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body,omitempty"`
}

// NewUpstreamError creates a new UpstreamError
func NewUpstreamError(message string, statusCode int, body string) *UpstreamError {
	return &UpstreamError{
		ProxyError: &ProxyError{
			Message:   message,
			Code:      "UPSTREAM_ERROR",
			Retryable: false,
			Metadata: map[string]interface{}{
				"statusCode": statusCode,
				"body":       body,
			},
		},
		StatusCode: statusCode,
		Body:       body,
	}
}

// StreamError represents an upstream stream that terminated abnormally
// mid-relay. Chunks already emitted are not retracted.
type StreamError struct {
	*ProxyError
	ChunksEmitted int `json:"chunksEmitted"`
}

// NewStreamError creates a new StreamError
func NewStreamError(message string, chunksEmitted int) *StreamError {
	return &StreamError{
		ProxyError: &ProxyError{
			Message:   message,
			Code:      "STREAM_INTERRUPTED",
			Retryable: false,
			Metadata: map[string]interface{}{
				"chunksEmitted": chunksEmitted,
			},
		},
		ChunksEmitted: chunksEmitted,
	}
}

// Error checking functions

// IsConfigError checks if an error is a ConfigError
func IsConfigError(err error) bool {
	_, ok := err.(*ConfigError)
	return ok
}

// IsAuthError checks if an error is an AuthError
func IsAuthError(err error) bool {
	_, ok := err.(*AuthError)
	return ok
}

// IsUpstreamError checks if an error is an UpstreamError
func IsUpstreamError(err error) bool {
	_, ok := err.(*UpstreamError)
	return ok
}

// IsStreamError checks if an error is a StreamError
func IsStreamError(err error) bool {
	_, ok := err.(*StreamError)
	return ok
}

// FormatAPIError formats an error for API responses
func FormatAPIError(err error) map[string]interface{} {
	var detail map[string]interface{}

	switch e := err.(type) {
	case *ConfigError:
		detail = e.ToJSON()
	case *AuthError:
		detail = e.ToJSON()
	case *UpstreamError:
		detail = e.ToJSON()
	case *StreamError:
		detail = e.ToJSON()
	case *ProxyError:
		detail = e.ToJSON()
	default:
		detail = map[string]interface{}{
			"code":    "INTERNAL_ERROR",
			"message": err.Error(),
		}
	}

	return map[string]interface{}{
		"type":  "error",
		"error": detail,
	}
}

// HTTPStatusFromError returns the appropriate HTTP status code for an error
func HTTPStatusFromError(err error) int {
	switch e := err.(type) {
	case *ConfigError:
		return 500
	case *AuthError:
		return 502
	case *UpstreamError:
		if e.StatusCode >= 400 {
			return e.StatusCode
		}
		return 502
	case *StreamError:
		return 502
	default:
		return 500
	}
}

// ErrorWithContext adds context to an error
func ErrorWithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}
