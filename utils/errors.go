package utils

import (
	"fmt"
)

// Error kinds, stable across the JSON surface.
const (
	KindValidation   = "validation"
	KindForbidden    = "forbidden"
	KindNotFound     = "not_found"
	KindDuplicate    = "duplicate_name"
	KindUnknownLabel = "unknown_label"
	KindProtocol     = "protocol"   // malformed blacklist-service response
	KindConnection   = "connection" // socket-level failure, never "not blacklisted"
	KindSpamLabeling = "spam_labeling_failed"
	KindInternal     = "internal"
)

// AppError represents a custom application error with context
type AppError struct {
	Code    int    // HTTP status code
	Kind    string // machine-readable taxonomy entry
	Message string // User-friendly message
	Err     error  // Underlying error
	Context map[string]interface{}
}

// NewAppError creates a new AppError
func NewAppError(code int, kind, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
		Context: make(map[string]interface{}),
	}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	e.Context[key] = value
	return e
}

// Common error constructors
func ValidationError(message string, err error) *AppError {
	return NewAppError(400, KindValidation, message, err)
}

func ForbiddenError(message string, err error) *AppError {
	return NewAppError(403, KindForbidden, message, err)
}

func NotFoundError(message string, err error) *AppError {
	return NewAppError(404, KindNotFound, message, err)
}

func DuplicateNameError(message string) *AppError {
	return NewAppError(409, KindDuplicate, message, nil)
}

func UnknownLabelError(message string) *AppError {
	return NewAppError(400, KindUnknownLabel, message, nil)
}

func ProtocolError(message string, err error) *AppError {
	return NewAppError(500, KindProtocol, message, err)
}

func ConnectionError(message string, err error) *AppError {
	return NewAppError(500, KindConnection, message, err)
}

func SpamLabelingError(message string, err error) *AppError {
	return NewAppError(500, KindSpamLabeling, message, err)
}

func InternalServerError(message string, err error) *AppError {
	return NewAppError(500, KindInternal, message, err)
}
