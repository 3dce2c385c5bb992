// Package errs defines the structured construction errors raised while
// assembling a service context.
package errs

import (
	"errors"
	"fmt"
)

// Code classifies an Error.
type Code string

// Error codes.
const (
	CodeDuplicateRegistration Code = "DUPLICATE_REGISTRATION"
	CodeAmbiguous             Code = "AMBIGUOUS"
	CodeNotFound              Code = "NOT_FOUND"
	CodeUnsupportedResource   Code = "UNSUPPORTED_RESOURCE"
	CodeUnhandledOption       Code = "UNHANDLED_OPTION"
	CodeConcurrentAccess      Code = "CONCURRENT_ACCESS"
	CodeUnsupportedOperation  Code = "UNSUPPORTED_OPERATION"
	CodeClockResolution       Code = "CLOCK_RESOLUTION"
	CodeIllegalArgument       Code = "ILLEGAL_ARGUMENT"
	CodeIllegalState          Code = "ILLEGAL_STATE"
	CodeIncompatibleExtension Code = "INCOMPATIBLE_EXTENSION"
)

// Sentinels for use with errors.Is. Matching is by code only.
var (
	ErrDuplicateRegistration = &Error{Code: CodeDuplicateRegistration, Message: "handler already registered"}
	ErrAmbiguous             = &Error{Code: CodeAmbiguous, Message: "ambiguous type resolution"}
	ErrNotFound              = &Error{Code: CodeNotFound, Message: "not found"}
	ErrUnsupportedResource   = &Error{Code: CodeUnsupportedResource, Message: "unsupported resource"}
	ErrUnhandledOption       = &Error{Code: CodeUnhandledOption, Message: "unhandled option"}
	ErrConcurrentAccess      = &Error{Code: CodeConcurrentAccess, Message: "concurrent access"}
	ErrUnsupportedOperation  = &Error{Code: CodeUnsupportedOperation, Message: "unsupported operation"}
	ErrClockResolution       = &Error{Code: CodeClockResolution, Message: "clock resolution failed"}
	ErrIllegalArgument       = &Error{Code: CodeIllegalArgument, Message: "illegal argument"}
	ErrIllegalState          = &Error{Code: CodeIllegalState, Message: "illegal state"}
	ErrIncompatibleExtension = &Error{Code: CodeIncompatibleExtension, Message: "incompatible extension"}
)

// Error is a construction-time failure. Message is human readable and names
// the offending types or extensions.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// New creates an Error with a formatted message.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error with a formatted message and a cause.
func Wrap(code Code, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// HasCode reports whether any error in err's chain is an *Error with code.
func HasCode(err error, code Code) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// IsIllegalArgument reports whether err was caused by invalid input from an
// extension or the caller, rather than by an invalid runtime state.
func IsIllegalArgument(err error) bool {
	return HasCode(err, CodeIllegalArgument) ||
		HasCode(err, CodeUnhandledOption) ||
		HasCode(err, CodeAmbiguous) ||
		HasCode(err, CodeDuplicateRegistration)
}
