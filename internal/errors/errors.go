// Package errors defines the stable error codes used across the grader.
package errors

import (
	"errors"
	"fmt"
)

// Code is a stable error code string.
type Code string

const (
	// Upstream failed in a way that may succeed on retry (rate limited, timeout, overloaded).
	ETransientExternal Code = "E_TRANSIENT_EXTERNAL"
	// Upstream rejected the request; retrying cannot help (bad credentials, invalid request).
	EPermanentExternal Code = "E_PERMANENT_EXTERNAL"
	// Judge output violated the expected output contract.
	EMalformedResponse Code = "E_MALFORMED_RESPONSE"
	// A file, path or history the check needed does not exist.
	EResourceMissing Code = "E_RESOURCE_MISSING"
	// Store, filesystem or scratch directory failure.
	EInfrastructure Code = "E_INFRASTRUCTURE"

	ERunNotFound      Code = "E_RUN_NOT_FOUND"
	EInvalidInput     Code = "E_INVALID_INPUT"
	EMisconfigured    Code = "E_MISCONFIGURED"
	ERetriesExhausted Code = "E_RETRIES_EXHAUSTED"
)

// GraderError is the standard coded error type.
type GraderError struct {
	Code  Code
	Msg   string
	Cause error
}

// Error returns "CODE: message" and appends the cause when present.
func (e *GraderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *GraderError) Unwrap() error {
	return e.Cause
}

// New creates a new GraderError with the given code and message.
func New(code Code, msg string) error {
	return &GraderError{Code: code, Msg: msg}
}

// Newf is New with a format string.
func Newf(code Code, format string, args ...any) error {
	return &GraderError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates a new GraderError wrapping an underlying error.
func Wrap(code Code, msg string, err error) error {
	return &GraderError{Code: code, Msg: msg, Cause: err}
}

// GetCode extracts the outermost error code, or "" if err carries none.
func GetCode(err error) Code {
	var ge *GraderError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

// HasCode reports whether any GraderError in err's chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var ge *GraderError
		if !errors.As(err, &ge) {
			return false
		}
		if ge.Code == code {
			return true
		}
		err = ge.Cause
	}
	return false
}
