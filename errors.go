package tia

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrNoCredentials is returned by NewClient when no username/API key pair
// was configured.
var ErrNoCredentials = errors.New("tia: no credentials configured")

// InputError indicates malformed caller parameters: an unknown collection
// name, a bad key path or template shape, or an invalid date. It is surfaced
// at configuration or generator-construction time and never silently
// recovered.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("tia: invalid input: %s", e.Message)
}

// TemplateError indicates an unresolvable value injection inside a template,
// scoped to the single record being rendered.
type TemplateError struct {
	Message string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("tia: template error: %s", e.Message)
}

// ParserError indicates a parse call could not run: no template keys were
// available, or the template itself is malformed. An absent key in a record
// is never a ParserError; it renders as an empty match.
type ParserError struct {
	Message string
	Err     error
}

func (e *ParserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tia: parser error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("tia: parser error: %s", e.Message)
}

func (e *ParserError) Unwrap() error { return e.Err }

// ConnectionError wraps a transport round-trip failure (network error,
// timeout, unreadable body). The engine never retries; retry policy belongs
// to the injected http.Client.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("tia: connection error: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// APIError represents a non-200 response from the TI API.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tia: API error %d: %s", e.StatusCode, e.Message)
}

// AuthenticationError indicates bad credentials or an account problem
// (401/403).
type AuthenticationError struct {
	APIError
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("tia: authentication failed: %s", e.Message)
}

// As implements error unwrapping for errors.As to match *APIError.
func (e *AuthenticationError) As(target any) bool {
	if t, ok := target.(**APIError); ok {
		*t = &e.APIError
		return true
	}
	return false
}

// WhitelistError indicates the caller's public IP is not whitelisted by the
// provider (the API answers 301/302 in that case).
type WhitelistError struct {
	APIError
}

func (e *WhitelistError) Error() string {
	return fmt.Sprintf("tia: IP not whitelisted: %s", e.Message)
}

// As implements error unwrapping for errors.As to match *APIError.
func (e *WhitelistError) As(target any) bool {
	if t, ok := target.(**APIError); ok {
		*t = &e.APIError
		return true
	}
	return false
}

// NotFoundError indicates the requested data does not exist on the server
// (404).
type NotFoundError struct {
	APIError
	Resource string
}

func (e *NotFoundError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("tia: not found: %s", e.Resource)
	}
	return fmt.Sprintf("tia: not found: %s", e.Message)
}

// As implements error unwrapping for errors.As to match *APIError.
func (e *NotFoundError) As(target any) bool {
	if t, ok := target.(**APIError); ok {
		*t = &e.APIError
		return true
	}
	return false
}

// RateLimitError indicates the per-second request limit was exceeded (429).
type RateLimitError struct {
	APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("tia: rate limit exceeded, retry after %s", e.RetryAfter)
	}
	return "tia: rate limit exceeded"
}

// As implements error unwrapping for errors.As to match *APIError.
func (e *RateLimitError) As(target any) bool {
	if t, ok := target.(**APIError); ok {
		*t = &e.APIError
		return true
	}
	return false
}

// ServerError indicates an internal server error (5xx).
type ServerError struct {
	APIError
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("tia: server error %d: %s", e.StatusCode, e.Message)
}

// As implements error unwrapping for errors.As to match *APIError.
func (e *ServerError) As(target any) bool {
	if t, ok := target.(**APIError); ok {
		*t = &e.APIError
		return true
	}
	return false
}

// statusMessages maps the status codes the API documents to their operator
// guidance.
var statusMessages = map[int]string{
	301: "verify that your public IP is whitelisted by the provider",
	302: "verify that your public IP is whitelisted by the provider",
	400: "bad credentials or malformed request",
	401: "bad credentials",
	403: "account problem; check whitelist, API key and username",
	404: "no such data on server, or wrong endpoint",
	429: "maximum requests per second reached, decrease the request rate",
	500: "server-side trouble with this request",
}

// parseError converts a non-200 HTTP response into the appropriate error type.
func parseError(statusCode int, body []byte, headers http.Header) error {
	msg, known := statusMessages[statusCode]
	if !known {
		msg = http.StatusText(statusCode)
	}

	base := APIError{
		StatusCode: statusCode,
		Message:    msg,
		Body:       string(body),
	}

	switch {
	case statusCode == http.StatusMovedPermanently || statusCode == http.StatusFound:
		return &WhitelistError{APIError: base}
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &AuthenticationError{APIError: base}
	case statusCode == http.StatusNotFound:
		return &NotFoundError{APIError: base}
	case statusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			APIError:   base,
			RetryAfter: parseRetryAfter(headers.Get("Retry-After")),
		}
	case statusCode >= http.StatusInternalServerError:
		return &ServerError{APIError: base}
	default:
		return &base
	}
}

// parseRetryAfter parses the Retry-After header value.
// It handles both seconds (integer) and HTTP-date formats.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := time.Parse(time.RFC1123, value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}

	return 0
}
