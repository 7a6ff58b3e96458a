package schema

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes validation failures.
type ErrorKind string

const (
	// ErrMalformedJSON means the response could not be parsed at all.
	ErrMalformedJSON ErrorKind = "MALFORMED_JSON"
	// ErrMissingKey means a required key is absent.
	ErrMissingKey ErrorKind = "MISSING_KEY"
	// ErrWrongType means a key holds a value of the wrong type.
	ErrWrongType ErrorKind = "WRONG_TYPE"
	// ErrUnknownKey means a closed object contains an undeclared key.
	ErrUnknownKey ErrorKind = "UNKNOWN_KEY"
)

// ValidationError reports a schema violation with the JSON path at
// which it occurred ("$" is the payload root).
type ValidationError struct {
	Kind    ErrorKind
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s at %s: %s", e.Kind, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// KindOf returns the validation error kind, or "" when err is not a
// validation error.
func KindOf(err error) ErrorKind {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}
