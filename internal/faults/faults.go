// Package faults defines the error kinds every tick consumes instead
// of blanket recovery: each external call resolves to success or one
// of these, and callers match on them explicitly.
package faults

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrCredentialExhausted: no usable credential in either class.
	ErrCredentialExhausted = errors.New("credential pool exhausted")
	// ErrDataUnavailable: market feed short, invalid or unreachable.
	ErrDataUnavailable = errors.New("market data unavailable")
	// ErrResponseMalformed: inference output failed parsing/validation.
	ErrResponseMalformed = errors.New("inference response malformed")
	// ErrAuditWriteFailed: persistence call failed after retries.
	ErrAuditWriteFailed = errors.New("audit write failed")
	// ErrRateLimited and ErrAuthRejected carry the credential failure
	// mode back to the pool.
	ErrRateLimited  = errors.New("rate limited")
	ErrAuthRejected = errors.New("auth rejected")
)

// IsTimeout reports whether err is a deadline expiry. Timed-out calls
// are treated as the failure kind of whatever call timed out.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// ClassifyHTTP maps an inference HTTP status onto a credential
// failure kind, nil for success-range statuses.
func ClassifyHTTP(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuthRejected
	case status >= 300:
		return errors.New("inference http " + http.StatusText(status))
	}
	return nil
}

// IsRateLimit matches rate-limit failures, including providers that
// only signal them in the message body.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	s := strings.ToLower(err.Error())
	for _, ind := range []string{"rate limit", "quota exceeded", "too many requests", "resource_exhausted", "429"} {
		if strings.Contains(s, ind) {
			return true
		}
	}
	return false
}

// IsAuthFailure matches invalid-key and permission failures.
func IsAuthFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuthRejected) {
		return true
	}
	s := strings.ToLower(err.Error())
	for _, ind := range []string{"invalid api key", "unauthorized", "authentication failed", "401", "403"} {
		if strings.Contains(s, ind) {
			return true
		}
	}
	return false
}
