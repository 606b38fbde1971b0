// Package errors provides structured error types for the studio assistant.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure modes.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("concurrent modification")
	ErrExpired      = errors.New("pending action expired")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnavailable  = errors.New("service unavailable")
	ErrTimeout      = errors.New("operation timed out")
	ErrRateLimit    = errors.New("rate limit exceeded")
	ErrAuthFailure  = errors.New("authentication failed")
	ErrDenied       = errors.New("access denied")
)

// APIError represents an error from an external API call.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s API error (status %d): %s: %v", e.Service, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// NewAPIError creates a new API error.
func NewAPIError(service string, statusCode int, message string) *APIError {
	return &APIError{Service: service, StatusCode: statusCode, Message: message}
}

// ConflictError lists the projects whose precondition failed during an
// apply. It matches ErrConflict with errors.Is.
type ConflictError struct {
	ActionID   string
	ProjectIDs []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("action %s: %v on projects [%s]", e.ActionID, ErrConflict, strings.Join(e.ProjectIDs, ", "))
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// IsRetryable returns true if the error is likely transient and worth retrying.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimit) || errors.Is(err, ErrUnavailable)
}
