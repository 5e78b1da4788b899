// Package drive provides a typed HTTP client for the Google Drive v3 API
// covering the operations the upload engine needs: file/folder creation,
// resumable upload sessions, metadata lookup, deletion, and permission
// grants. It handles authentication, retry with exponential backoff, and
// error classification including quota reason codes.
package drive

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for response classification.
// Use errors.Is(err, drive.ErrQuotaExceeded) to check.
var (
	ErrBadRequest    = errors.New("drive: bad request")
	ErrUnauthorized  = errors.New("drive: unauthorized")
	ErrForbidden     = errors.New("drive: forbidden")
	ErrNotFound      = errors.New("drive: not found")
	ErrRateLimited   = errors.New("drive: rate limited")
	ErrServerError   = errors.New("drive: server error")
	ErrQuotaExceeded = errors.New("drive: per-identity quota exceeded")
)

// Quota reason codes returned by the Drive API inside rate-limit responses.
// Only these two reasons identify a per-identity quota condition; every other
// reason (including other 403s like "insufficientPermissions") must never
// trigger credential rotation.
const (
	reasonUserRateLimit = "userRateLimitExceeded"
	reasonDailyLimit    = "dailyLimitExceeded"
)

// APIError wraps a sentinel error with the HTTP status code, the structured
// reason code extracted from the error payload, and the API message body.
type APIError struct {
	StatusCode int
	Reason     string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("drive: HTTP %d (%s): %s", e.StatusCode, e.Reason, e.Message)
	}

	return fmt.Sprintf("drive: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// errorEnvelope mirrors the Drive API error payload exactly.
// Unexported — callers see the normalized APIError.
type errorEnvelope struct {
	Error struct {
		Errors []struct {
			Reason  string `json:"reason"`
			Message string `json:"message"`
		} `json:"errors"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// decodeAPIError builds an APIError from an error response body. The reason
// code is extracted from the structured payload; when the body does not match
// the expected shape the reason is left empty, which classifies as
// non-quota and non-retryable-by-reason (fail closed).
func decodeAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: statusCode,
		Message:    string(body),
	}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Error.Errors) > 0 {
		apiErr.Reason = env.Error.Errors[0].Reason

		if env.Error.Message != "" {
			apiErr.Message = env.Error.Message
		}
	}

	apiErr.Err = classify(statusCode, apiErr.Reason)

	return apiErr
}

// classify maps a status code plus reason code to a sentinel error.
// Quota reasons take precedence over the plain status classification.
func classify(code int, reason string) error {
	if reason == reasonUserRateLimit || reason == reasonDailyLimit {
		return ErrQuotaExceeded
	}

	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// IsTransient reports whether err is a server condition that is safe to
// retry in place without advancing upload state: the recognized 5xx codes
// plus 429. Quota-classified errors are excluded — they are handled by
// credential rotation, not blind retry.
func IsTransient(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	if errors.Is(apiErr, ErrQuotaExceeded) {
		return false
	}

	switch apiErr.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// isRetryable reports whether the given HTTP status code should be retried
// by the metadata-request path in Do().
func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
