// Copyright 2026 The GeoSort Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// GeocodeError represents errors specific to reverse geocoding.
type GeocodeError struct {
	Type    ErrorType
	Message string
	Err     error
}

// ErrorType defines the classes of geocoding failures.
type ErrorType int

const (
	// ErrorTypeUnknown unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeUnavailable service unreachable, not worth retrying.
	ErrorTypeUnavailable
	// ErrorTypeTimeout transient timeout, retryable.
	ErrorTypeTimeout
	// ErrorTypeRateLimit the service asked us to slow down.
	ErrorTypeRateLimit
	// ErrorTypeNoResult valid response with no address attached.
	ErrorTypeNoResult
	// ErrorTypeMalformed response body could not be decoded.
	ErrorTypeMalformed
)

func (e *GeocodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *GeocodeError) Unwrap() error {
	return e.Err
}

// IsTimeoutError reports whether the error is a transient timeout.
func IsTimeoutError(err error) bool {
	var geoErr *GeocodeError
	if errors.As(err, &geoErr) {
		return geoErr.Type == ErrorTypeTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// IsUnavailableError reports whether the error means the service cannot be
// reached at all.
func IsUnavailableError(err error) bool {
	var geoErr *GeocodeError
	if errors.As(err, &geoErr) {
		return geoErr.Type == ErrorTypeUnavailable
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "service unavailable")
}

// IsNoResultError reports whether the error is the benign no-address case.
func IsNoResultError(err error) bool {
	var geoErr *GeocodeError
	if errors.As(err, &geoErr) {
		return geoErr.Type == ErrorTypeNoResult || geoErr.Type == ErrorTypeMalformed
	}

	return false
}

// ClassifyHTTPError maps an HTTP status code to a geocoding error.
func ClassifyHTTPError(statusCode int) *GeocodeError {
	switch statusCode {
	case http.StatusTooManyRequests: // 429
		return &GeocodeError{
			Type:    ErrorTypeRateLimit,
			Message: "rate limit reached",
		}
	case http.StatusNotFound: // 404
		return &GeocodeError{
			Type:    ErrorTypeNoResult,
			Message: "no result for coordinate",
		}
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return &GeocodeError{
			Type:    ErrorTypeTimeout,
			Message: fmt.Sprintf("service timed out (code %d)", statusCode),
		}
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return &GeocodeError{
			Type:    ErrorTypeUnavailable,
			Message: fmt.Sprintf("service unavailable (code %d)", statusCode),
		}
	default:
		return &GeocodeError{
			Type:    ErrorTypeUnknown,
			Message: fmt.Sprintf("HTTP error %d", statusCode),
		}
	}
}
