package blobstore

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

// TransientError wraps a driver error classified as retryable: network
// failures, HTTP 429/5xx, S3 SlowDown/ServiceUnavailable and equivalents.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "blobstore: transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried with backoff rather
// than surfaced immediately (spec §7).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var transient *TransientError
	if errors.As(err, &transient) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"slowdown",
		"serviceunavailable",
		"service unavailable",
		"throttl",
		"too many requests",
		"connection reset",
		"broken pipe",
		"i/o timeout",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}

// IsTransientStatus reports whether an HTTP status code returned by an
// object-store API call should be retried.
func IsTransientStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
