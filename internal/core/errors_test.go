// internal/core/errors_test.go
package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{Code: "TEST_ERROR", Message: "test message"}
	if err.Error() != "[TEST_ERROR] test message" {
		t.Errorf("unexpected error string: %s", err.Error())
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{Code: "WRAP", Message: "wrapped", Cause: cause}
	if !errors.Is(err, cause) {
		t.Error("Unwrap should return cause")
	}
}

func TestError_Is(t *testing.T) {
	if !errors.Is(Errorf(ErrArity, "add needs 2"), ErrArity) {
		t.Error("wrapped error should match by code")
	}
	if errors.Is(ErrParse, ErrArity) {
		t.Error("different codes should not match")
	}
}

func TestWrapError(t *testing.T) {
	cause := errors.New("original")
	wrapped := WrapError(ErrDomain, cause)
	if wrapped.Cause != cause {
		t.Error("cause not set")
	}
	if wrapped.Code != ErrDomain.Code {
		t.Error("code not preserved")
	}
}

func TestIsContractError(t *testing.T) {
	if !IsContractError(fmt.Errorf("evaluating: %w", Errorf(ErrInvalidArgument, "bad window"))) {
		t.Error("invalid argument should be a contract error")
	}
	if !IsContractError(ErrEmptyResult) {
		t.Error("empty result should be a contract error")
	}
	if IsContractError(errors.New("disk full")) {
		t.Error("plain error is not a contract error")
	}
	if IsContractError(ErrNotFound) {
		t.Error("not found is not a contract error")
	}
}
