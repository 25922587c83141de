// ============================================================================
// backend/internal/shared/errors.go
// Coded service errors, mapped to HTTP statuses at the gateway edge
// ============================================================================

package shared

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a service failure so the HTTP layer can pick a status
// without inspecting error strings.
type ErrorCode int

const (
	CodeInternal ErrorCode = iota
	CodeInvalidArgument
	CodeUnauthenticated
	CodePermissionDenied
	CodeNotFound
	CodeAlreadyExists
	CodeUnavailable
	CodeDeadlineExceeded
)

// ServiceError carries an ErrorCode alongside a user-facing message and an
// optional wrapped cause.
type ServiceError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewError creates a coded service error.
func NewError(code ErrorCode, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message}
}

// NewErrorf creates a coded service error with a formatted message.
func NewErrorf(code ErrorCode, format string, args ...interface{}) *ServiceError {
	return &ServiceError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates a coded service error wrapping a cause.
func WrapError(code ErrorCode, message string, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, Err: err}
}

// CodeOf extracts the ErrorCode from an error chain, defaulting to
// CodeInternal for uncoded errors.
func CodeOf(err error) ErrorCode {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}
	return CodeInternal
}

// MessageOf extracts the user-facing message from an error chain.
func MessageOf(err error) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Message
	}
	return err.Error()
}
