package provider

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported is returned by adapters for operations their upstream API
// does not offer.
var ErrUnsupported = errors.New("operation not supported by provider")

// ErrorType represents the category of error that occurred during a provider call
type ErrorType string

const (
	// ErrorTypeNetwork indicates a network-level error (connection refused, DNS, etc.)
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeRateLimit indicates the request was rejected due to rate limiting
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeServer indicates a server error (HTTP 5xx)
	ErrorTypeServer ErrorType = "server"
	// ErrorTypeClient indicates a client error (HTTP 4xx except 429)
	ErrorTypeClient ErrorType = "client"
	// ErrorTypeValidation indicates the response was received but data validation failed
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeTimeout indicates the request timed out
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeUnknown indicates an error of unknown type
	ErrorTypeUnknown ErrorType = "unknown"
)

// Error is a structured error from a provider call. Message carries the
// upstream text as received so that callers can inspect it.
type Error struct {
	Provider   string
	Type       ErrorType
	Retryable  bool
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface
func (e *Error) Error() string {
	prefix := string(e.Type)
	if e.Provider != "" {
		prefix = e.Provider + ": " + prefix
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", prefix, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", prefix, e.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewNetworkError creates a network error
func NewNetworkError(provider string, cause error) *Error {
	return &Error{
		Provider:  provider,
		Type:      ErrorTypeNetwork,
		Retryable: true,
		Message:   fmt.Sprintf("network request failed: %v", cause),
		Cause:     cause,
	}
}

// NewRateLimitError creates a rate limit error. message should be the
// provider's own wording when there is one.
func NewRateLimitError(provider string, statusCode int, message string) *Error {
	if message == "" {
		message = "rate limit exceeded"
	}
	return &Error{
		Provider:   provider,
		Type:       ErrorTypeRateLimit,
		Retryable:  true,
		StatusCode: statusCode,
		Message:    message,
	}
}

// NewServerError creates a server error
func NewServerError(provider string, statusCode int) *Error {
	return &Error{
		Provider:   provider,
		Type:       ErrorTypeServer,
		Retryable:  true,
		StatusCode: statusCode,
		Message:    "server returned an error",
	}
}

// NewClientError creates a client error
func NewClientError(provider string, statusCode int, message string) *Error {
	return &Error{
		Provider:   provider,
		Type:       ErrorTypeClient,
		Retryable:  false,
		StatusCode: statusCode,
		Message:    message,
	}
}

// NewValidationError creates a validation error
func NewValidationError(provider string, message string) *Error {
	return &Error{
		Provider:  provider,
		Type:      ErrorTypeValidation,
		Retryable: false,
		Message:   message,
	}
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(provider string, cause error) *Error {
	return &Error{
		Provider:  provider,
		Type:      ErrorTypeTimeout,
		Retryable: true,
		Message:   "request timed out",
		Cause:     cause,
	}
}

// ClassifyHTTPError classifies an HTTP status code into an appropriate Error.
// body, when not empty, is kept as the message so upstream wording survives.
func ClassifyHTTPError(provider string, statusCode int, body string) *Error {
	body = strings.TrimSpace(body)
	switch {
	case statusCode == 429:
		return NewRateLimitError(provider, statusCode, orDefault(body, "too many requests"))
	case statusCode >= 500:
		e := NewServerError(provider, statusCode)
		if body != "" {
			e.Message = body
		}
		return e
	case statusCode >= 400:
		return NewClientError(provider, statusCode, orDefault(body, fmt.Sprintf("client error: HTTP %d", statusCode)))
	default:
		return &Error{
			Provider:   provider,
			Type:       ErrorTypeUnknown,
			Retryable:  false,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("unexpected status code: %d", statusCode),
		}
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// rateLimitKeywords are matched against the lower-cased error text. Providers
// word their quota errors very differently, so status codes alone miss most.
var rateLimitKeywords = []string{
	"rate limit",
	"too many requests",
	"429",
	"quota exceeded",
	"api key limit",
	"daily limit exceeded",
	"25 requests per day",
}

// IsRateLimitMessage reports whether an error text looks like a rate-limit
// rejection.
func IsRateLimitMessage(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range rateLimitKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
