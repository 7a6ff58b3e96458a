package llm

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes provider failures. The kind decides whether
// the runner may retry the call.
type ErrorKind string

const (
	// ErrRateLimited means the provider rejected the call for quota
	// reasons. Retryable with backoff.
	ErrRateLimited ErrorKind = "RATE_LIMITED"
	// ErrInvalidRequest means the call itself was malformed. Not
	// retryable: repeating it would fail identically.
	ErrInvalidRequest ErrorKind = "INVALID_REQUEST"
	// ErrTimeout means the call exceeded its deadline. Retryable
	// within the runner's retry budget.
	ErrTimeout ErrorKind = "TIMEOUT"
	// ErrUnavailable means the provider could not be reached or
	// returned a server-side error. Retryable.
	ErrUnavailable ErrorKind = "PROVIDER_UNAVAILABLE"
)

// ProviderError is a classified failure from the LLM capability.
type ProviderError struct {
	Kind    ErrorKind
	Message string
	Err     error // underlying transport/decode error, optional
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying error for errors.Is/As chains.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the runner may retry a call that failed
// with this error.
func (e *ProviderError) Retryable() bool {
	return e.Kind != ErrInvalidRequest
}

// NewError builds a ProviderError.
func NewError(kind ErrorKind, message string, err error) *ProviderError {
	return &ProviderError{Kind: kind, Message: message, Err: err}
}

// AsProviderError extracts a ProviderError from err, if present.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsRetryable reports whether err is a provider error the runner may
// retry. Unclassified errors are treated as non-retryable.
func IsRetryable(err error) bool {
	if pe, ok := AsProviderError(err); ok {
		return pe.Retryable()
	}
	return false
}
