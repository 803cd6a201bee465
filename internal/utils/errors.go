// internal/utils/errors.go
package utils

import (
	"fmt"
	"net/http"
	"runtime/debug"
)

type ErrorCode string

const (
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrConflict     ErrorCode = "CONFLICT"
	ErrInternal     ErrorCode = "INTERNAL"
)

// AppError pairs a stable machine-readable code with a user-safe message.
// Internal holds the underlying cause and never reaches the client. The
// stack is captured at construction so server-error logs point at the
// origin, not the HTTP boundary.
type AppError struct {
	Code     ErrorCode
	Message  string
	Internal error
	Stack    []byte
}

func NewAppError(code ErrorCode, message string, internal error) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Internal: internal,
		Stack:    debug.Stack(),
	}
}

func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Internal
}

func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrInvalidInput:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
