package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidAPIKey        = errors.New("invalid API key")
	ErrLocationNotFound     = errors.New("location not found")
	ErrUpstreamFailure      = errors.New("upstream failure")
	ErrRateLimited          = errors.New("rate limited")
	ErrInvalidResponseShape = errors.New("invalid response shape")
	ErrCircuitOpen          = errors.New("circuit breaker open")
)

// statusError maps a non-2xx provider status to a sentinel error. Returns nil for 2xx.
func statusError(code int) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidAPIKey, code)
	case http.StatusNotFound:
		return ErrLocationNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, code)
	}
	return nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
