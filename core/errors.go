// Package core provides configuration, error classification, and shared
// helpers used by every other package in soragen.
package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed upstream request into one of a small set of
// categories that callers can branch on. The dispatcher never retries; it
// classifies and propagates, leaving retry/backoff policy to the caller.
type ErrorKind int

const (
	// KindUnclassified covers responses with a status code outside the
	// explicitly mapped set. The status is preserved on the APIError.
	KindUnclassified ErrorKind = iota

	// KindUnauthorized maps HTTP 401: the credential is missing or invalid.
	KindUnauthorized

	// KindBadRequest maps HTTP 400: the request was malformed or violated
	// a model parameter constraint.
	KindBadRequest

	// KindNotFound maps HTTP 404: the referenced job or resource is gone.
	KindNotFound

	// KindRateLimited maps HTTP 429.
	KindRateLimited

	// KindServiceUnavailable maps HTTP 500, 502, and 503.
	KindServiceUnavailable

	// KindCancelled means the request's context was cancelled or its
	// deadline expired while the call was in flight.
	KindCancelled

	// KindNetwork means the transport failed before any response arrived.
	KindNetwork
)

// String returns the kind name for logging.
func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindCancelled:
		return "cancelled"
	case KindNetwork:
		return "network"
	default:
		return "unclassified"
	}
}

// APIError is the classified form of a failed upstream request.
//
// Detail carries the upstream error message in development mode. In
// production mode the dispatcher substitutes a fixed per-status phrase so
// upstream internals never reach user-visible output.
type APIError struct {
	Kind   ErrorKind
	Status int    // HTTP status, 0 when no response was received
	Detail string // sanitized in production mode
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("api error (%s, status %d): %s", e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("api error (%s): %s", e.Kind, e.Detail)
}

// KindForStatus maps an HTTP status code to its ErrorKind.
func KindForStatus(status int) ErrorKind {
	switch status {
	case 401:
		return KindUnauthorized
	case 400:
		return KindBadRequest
	case 404:
		return KindNotFound
	case 429:
		return KindRateLimited
	case 500, 502, 503:
		return KindServiceUnavailable
	default:
		return KindUnclassified
	}
}

// genericPhrases maps status codes to the fixed detail text used in
// production mode. Kept as a lookup table rather than branching so the
// status-to-phrase policy is visible in one place.
var genericPhrases = map[int]string{
	400: "the request was rejected by the service",
	401: "authentication failed",
	403: "access to this resource is forbidden",
	404: "the requested resource was not found",
	429: "too many requests, slow down",
}

// genericServerPhrase covers every 5xx status in production mode.
const genericServerPhrase = "the service is temporarily unavailable"

// GenericPhrase returns the production-mode detail text for a status code,
// or the empty string when the status has no generic phrase (in which case
// the upstream detail is dropped entirely rather than passed through).
func GenericPhrase(status int) string {
	if phrase, ok := genericPhrases[status]; ok {
		return phrase
	}
	if status >= 500 && status <= 599 {
		return genericServerPhrase
	}
	return ""
}

// NewAPIError builds a classified error from a response status and the
// upstream detail text. When production is true the detail is replaced by
// the fixed phrase for that status class.
func NewAPIError(status int, detail string, production bool) *APIError {
	if production {
		if phrase := GenericPhrase(status); phrase != "" {
			detail = phrase
		} else {
			detail = "request failed"
		}
	}
	if detail == "" {
		detail = "unknown error"
	}
	return &APIError{
		Kind:   KindForStatus(status),
		Status: status,
		Detail: detail,
	}
}

// NewNetworkError wraps a transport-level failure (no response received).
func NewNetworkError(detail string) *APIError {
	return &APIError{Kind: KindNetwork, Detail: detail}
}

// NewCancelledError reports a request aborted by its context.
func NewCancelledError() *APIError {
	return &APIError{Kind: KindCancelled, Detail: "request cancelled"}
}

// AsAPIError unwraps an *APIError from an error chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsKind reports whether err carries an APIError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.Kind == kind
	}
	return false
}

// ConfigError represents a configuration-related error with actionable instructions.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeMissingAPIKey  = "MISSING_API_KEY"
	ErrCodeInvalidBaseURL = "INVALID_BASE_URL"
	ErrCodeInsecureURL    = "INSECURE_BASE_URL"
	ErrCodeBadConfigFile  = "BAD_CONFIG_FILE"
)

// ErrMissingAPIKey returns an error for a missing bearer credential.
func ErrMissingAPIKey() *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingAPIKey,
		Message: "Missing API credential",
		Action:  "Set OPENAI_API_KEY in your environment or .env file",
	}
}

// ErrInvalidBaseURL returns an error for an unparseable base URL.
func ErrInvalidBaseURL(url string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidBaseURL,
		Message: fmt.Sprintf("Invalid base URL '%s': %s", url, reason),
		Action:  "Set SORAGEN_BASE_URL to a valid URL (e.g., https://api.openai.com)",
	}
}

// ErrInsecureBaseURL returns an error for a non-https base URL.
func ErrInsecureBaseURL(url string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInsecureURL,
		Message: fmt.Sprintf("Base URL '%s' does not use https", url),
		Action:  "Use an https URL, or set SORAGEN_ALLOW_INSECURE=true for local testing",
	}
}

// ErrBadConfigFile returns an error for an unreadable or invalid config file.
func ErrBadConfigFile(path string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeBadConfigFile,
		Message: fmt.Sprintf("Cannot load config file %s: %s", path, reason),
		Action:  "Fix or remove the config file; all settings have env-var equivalents",
	}
}

// IsConfigError checks if an error is a ConfigError and returns it if so.
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}
