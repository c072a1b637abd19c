package errors

import (
	"fmt"
)

// ErrorCode is the short machine-readable reason code surfaced to API
// callers on rejection.
type ErrorCode string

const (
	// Validation rejections, raised before any persistence
	ErrCodeNoTemplates    ErrorCode = "no-templates"
	ErrCodeNoContacts     ErrorCode = "no-contacts"
	ErrCodeNoValidNumbers ErrorCode = "no-valid-numbers"
	ErrCodeBadRequest     ErrorCode = "bad-request"

	// Configuration errors
	ErrCodeInvalidConfig ErrorCode = "invalid-config"

	// Storage errors
	ErrCodeDatabaseQuery ErrorCode = "database-query"

	// External service errors
	ErrCodeTransport ErrorCode = "transport"

	// Internal errors
	ErrCodeInternal ErrorCode = "internal"
	ErrCodeNotFound ErrorCode = "not-found"
)

// AppError is a structured application error carrying a reason code.
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a reason code
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// GetCode extracts the reason code from an error
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}
