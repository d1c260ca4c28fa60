package execution

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failed execution. Codes are stable strings; they
// are part of the outward API and are matched by callers.
type ErrorCode string

const (
	// CodeManifestValidation - the manifest itself is malformed or
	// incomplete. Never reaches a runtime backend.
	CodeManifestValidation ErrorCode = "ManifestValidationError"

	// CodeInputValidation - a required input is missing, has the wrong
	// type, or violates a declared constraint. Reported before any
	// runtime starts.
	CodeInputValidation ErrorCode = "InputValidationError"

	// CodePermissionDenied - the capability context refused an operation.
	// The message always names the specific permission string.
	CodePermissionDenied ErrorCode = "PermissionDeniedError"

	// CodeLoad - plugin code or manifest could not be resolved from the
	// registry or artifact store, or the entry point is absent.
	CodeLoad ErrorCode = "LoadError"

	// CodeBackend - runtime-specific failure: interpreter exception,
	// non-zero container exit, malformed container output.
	CodeBackend ErrorCode = "BackendError"

	// CodeTimeout - the per-execution deadline expired. Always
	// accompanied by confirmed resource cleanup.
	CodeTimeout ErrorCode = "TimeoutError"

	// CodeRouting - no installed plugin matches the task requirements.
	CodeRouting ErrorCode = "RoutingError"
)

// Error is the structured error carried inside a failed ExecutionResult.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`

	// Cause is the underlying error, if any. Not serialized.
	Cause error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates an execution error with the given code.
func NewError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an execution error that wraps an underlying cause.
func WrapError(code ErrorCode, cause error) *Error {
	if cause == nil {
		return nil
	}
	// Preserve an existing code rather than re-classifying.
	var ee *Error
	if errors.As(cause, &ee) {
		return ee
	}
	return &Error{Code: code, Message: cause.Error(), Cause: cause}
}

// CodeOf returns the error code of err, or empty string if err is not an
// execution error.
func CodeOf(err error) ErrorCode {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// Retryable reports whether an error class could produce a different
// outcome on retry. Validation and permission errors are deterministic
// given the same inputs, so retrying them is never useful. The sandbox
// itself never retries; this is advisory for callers.
func (c ErrorCode) Retryable() bool {
	switch c {
	case CodeManifestValidation, CodeInputValidation, CodePermissionDenied, CodeRouting:
		return false
	default:
		return true
	}
}
