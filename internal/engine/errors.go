package engine

import (
	"errors"
	"fmt"
)

// PreconditionCode categorizes precondition violations.
type PreconditionCode string

const (
	// CodeNotDraft means Start was called on a test that is not in draft.
	CodeNotDraft PreconditionCode = "NOT_DRAFT"
	// CodeNoPersonas means Start was called on a test with an empty
	// persona list.
	CodeNoPersonas PreconditionCode = "NO_PERSONAS"
	// CodeUnknownPersona means a referenced persona does not exist in
	// storage.
	CodeUnknownPersona PreconditionCode = "UNKNOWN_PERSONA"
	// CodeNotRunning means Cancel was called on a test that is not
	// currently running.
	CodeNotRunning PreconditionCode = "NOT_RUNNING"
)

// PreconditionError rejects an operation before any side effect.
// A test whose Start fails with a PreconditionError is left unchanged
// in draft.
type PreconditionError struct {
	Code    PreconditionCode
	TestID  string
	Message string
}

// Error implements the error interface.
func (e *PreconditionError) Error() string {
	if e.TestID != "" {
		return fmt.Sprintf("%s: %s (test=%s)", e.Code, e.Message, e.TestID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsPreconditionError reports whether err is (or wraps) a
// PreconditionError.
func IsPreconditionError(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// newPrecondition builds a PreconditionError.
func newPrecondition(code PreconditionCode, testID, message string) *PreconditionError {
	return &PreconditionError{Code: code, TestID: testID, Message: message}
}
