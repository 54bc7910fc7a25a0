package search

import (
	"errors"
	"fmt"
)

// ErrMissingAppID indicates the client was built without an application id.
var ErrMissingAppID = errors.New("search: missing application id")

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrUnauthorized indicates rejected credentials (HTTP 401/403).
type ErrUnauthorized struct {
	Err error
}

func (e ErrUnauthorized) Error() string {
	return fmt.Errorf("unauthorized: %w", e.Err).Error()
}

func (e ErrUnauthorized) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the API rate-limited the request (HTTP 429).
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited: %w", e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// ErrServer indicates a server-side failure (HTTP 5xx).
type ErrServer struct {
	Err error
}

func (e ErrServer) Error() string {
	return fmt.Errorf("server: %w", e.Err).Error()
}

func (e ErrServer) Unwrap() error {
	return e.Err
}

// APIError is a structured error payload the search API returns in the
// response body instead of item results.
type APIError struct {
	Code        string
	Description string
}

func (e APIError) Error() string {
	return fmt.Sprintf("api_error: %s: %s", e.Code, e.Description)
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var unauthorized ErrUnauthorized
	if errors.As(err, &unauthorized) {
		return "unauthorized"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var server ErrServer
	if errors.As(err, &server) {
		return "server"
	}
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return "api_error"
	}
	return "other"
}
