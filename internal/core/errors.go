// internal/core/errors.go
package core

import (
	"errors"
	"fmt"
)

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Errorf wraps a formatted cause under the code of base.
func Errorf(base *Error, format string, args ...any) *Error {
	return WrapError(base, fmt.Errorf(format, args...))
}

// Predefined errors
var (
	// Formula errors
	ErrParse             = &Error{Code: "PARSE_ERROR", Message: "malformed formula"}
	ErrUnknownIdentifier = &Error{Code: "UNKNOWN_IDENTIFIER", Message: "unknown identifier"}
	ErrArity             = &Error{Code: "ARITY_ERROR", Message: "wrong number of arguments"}
	ErrInvalidArgument   = &Error{Code: "INVALID_ARGUMENT", Message: "invalid argument"}
	ErrDomain            = &Error{Code: "DOMAIN_ERROR", Message: "incompatible value shapes"}

	// Backtest errors
	ErrEmptyResult = &Error{Code: "EMPTY_RESULT", Message: "no valid returns calculated"}

	// Data errors
	ErrNoData   = &Error{Code: "NO_DATA", Message: "no data available"}
	ErrNotFound = &Error{Code: "NOT_FOUND", Message: "resource not found"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)

// IsContractError reports whether err is caused by the caller's input
// (formula, settings or data shape) rather than by the system.
func IsContractError(err error) bool {
	for _, base := range []*Error{
		ErrParse, ErrUnknownIdentifier, ErrArity, ErrInvalidArgument,
		ErrDomain, ErrEmptyResult, ErrNoData, ErrConfigInvalid, ErrConfigMissing,
	} {
		if errors.Is(err, base) {
			return true
		}
	}
	return false
}
