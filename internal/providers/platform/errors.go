package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"learner-dashboard/internal/httpx"
)

// NetworkError is a transport failure: no response was received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("platform %s: network: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// APIError is a non-2xx response.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform %s: status=%d body=%s", e.Op, e.StatusCode, e.Body)
}

// ValidationError is a response whose shape does not match what the dashboard needs.
type ValidationError struct {
	Op  string
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("platform %s: invalid response: %v", e.Op, e.Err)
}
func (e *ValidationError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// StatusCode returns the upstream HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

const maxErrorBody = 300

// classify maps transport errors onto the gateway taxonomy. Context errors pass
// through unchanged so callers can tell cancellation apart from failures.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var herr *httpx.HTTPError
	if errors.As(err, &herr) {
		return &APIError{Op: op, StatusCode: herr.StatusCode, Body: httpx.Truncate(string(herr.Body), maxErrorBody)}
	}

	var decErr *httpx.DecodeError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &decErr) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &ValidationError{Op: op, Err: err}
	}

	return &NetworkError{Op: op, Err: err}
}
