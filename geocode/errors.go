// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors of the lookup path.
var (
	ErrEmptyAddress  = errors.New("empty address")
	ErrNoCoordinates = errors.New("no coordinates found")
	ErrLookupFailed  = errors.New("lookup failed")
)

// GeocodingError represents a provider specific geocoding failure.
type GeocodingError struct {
	Type    ErrorType
	Message string
	Err     error
}

// ErrorType classifies geocoding errors.
type ErrorType int

const (
	// ErrorTypeUnknown unknown error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeRateLimit rate limit reached.
	ErrorTypeRateLimit
	// ErrorTypeQuotaExceeded quota exceeded or access denied.
	ErrorTypeQuotaExceeded
	// ErrorTypeTimeout page or request timed out.
	ErrorTypeTimeout
	// ErrorTypeNotFound address not found.
	ErrorTypeNotFound
	// ErrorTypeInvalidRequest invalid request.
	ErrorTypeInvalidRequest
	// ErrorTypeNetworkError network error.
	ErrorTypeNetworkError
	// ErrorTypeOutOfBounds result outside of the configured region.
	ErrorTypeOutOfBounds
)

var errorTypeNames = map[ErrorType]string{
	ErrorTypeUnknown:        "unknown",
	ErrorTypeRateLimit:      "rate_limit",
	ErrorTypeQuotaExceeded:  "quota_exceeded",
	ErrorTypeTimeout:        "timeout",
	ErrorTypeNotFound:       "not_found",
	ErrorTypeInvalidRequest: "invalid_request",
	ErrorTypeNetworkError:   "network_error",
	ErrorTypeOutOfBounds:    "out_of_bounds",
}

func (t ErrorType) String() string {
	if name, ok := errorTypeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("ErrorType(%d)", int(t))
}

func (e *GeocodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *GeocodingError) Unwrap() error {
	return e.Err
}

// IsRateLimitError checks whether err is due to rate limiting.
func IsRateLimitError(err error) bool {
	var geoErr *GeocodingError
	if errors.As(err, &geoErr) {
		return geoErr.Type == ErrorTypeRateLimit
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429")
}

// IsQuotaExceededError checks whether err is due to an exhausted quota.
func IsQuotaExceededError(err error) bool {
	var geoErr *GeocodingError
	if errors.As(err, &geoErr) {
		return geoErr.Type == ErrorTypeQuotaExceeded
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "over_query_limit") ||
		strings.Contains(errStr, "quota exceeded")
}

// IsTimeoutError checks whether err is a timeout.
func IsTimeoutError(err error) bool {
	var geoErr *GeocodingError
	if errors.As(err, &geoErr) {
		return geoErr.Type == ErrorTypeTimeout
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// IsRetryable reports whether another attempt may succeed. Unknown addresses,
// malformed requests and exhausted quotas are final. A context error is not
// final by itself: providers report context.Canceled when their browser dies,
// and the caller stopping is checked on its own context.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrEmptyAddress) {
		return false
	}

	var geoErr *GeocodingError
	if errors.As(err, &geoErr) {
		switch geoErr.Type {
		case ErrorTypeNotFound, ErrorTypeInvalidRequest, ErrorTypeQuotaExceeded:
			return false
		}
	}

	return true
}

// ClassifyHTTPError maps an HTTP status code to a geocoding error.
func ClassifyHTTPError(statusCode int) *GeocodingError {
	switch statusCode {
	case http.StatusTooManyRequests: // 429
		return &GeocodingError{
			Type:    ErrorTypeRateLimit,
			Message: "rate limit reached",
		}
	case http.StatusForbidden: // 403
		return &GeocodingError{
			Type:    ErrorTypeQuotaExceeded,
			Message: "quota exceeded or access denied",
		}
	case http.StatusBadRequest: // 400
		return &GeocodingError{
			Type:    ErrorTypeInvalidRequest,
			Message: "invalid request",
		}
	case http.StatusNotFound: // 404
		return &GeocodingError{
			Type:    ErrorTypeNotFound,
			Message: "address not found",
		}
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return &GeocodingError{
			Type:    ErrorTypeNetworkError,
			Message: fmt.Sprintf("service unavailable (status %d)", statusCode),
		}
	default:
		return &GeocodingError{
			Type:    ErrorTypeUnknown,
			Message: fmt.Sprintf("HTTP error %d", statusCode),
		}
	}
}
