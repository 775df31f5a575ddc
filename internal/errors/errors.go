package errors

import (
	"fmt"
)

// ErrorType classifies application errors
type ErrorType string

const (
	ErrTypeValidation       ErrorType = "VALIDATION"
	ErrTypeInsufficientData ErrorType = "INSUFFICIENT_DATA"
	ErrTypeNotFound         ErrorType = "NOT_FOUND"
	ErrTypePermission       ErrorType = "PERMISSION"
	ErrTypeRender           ErrorType = "RENDER"
	ErrTypeAnalysis         ErrorType = "ANALYSIS"
	ErrTypeDispatch         ErrorType = "DISPATCH"
	ErrTypeStorage          ErrorType = "STORAGE"
	ErrTypeConfig           ErrorType = "CONFIG"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Helper constructors for the error taxonomy

// NewValidationError creates a validation error, rejected before any work is queued
func NewValidationError(message string, cause error) *AppError {
	return NewAppError(ErrTypeValidation, message, cause)
}

// NewInsufficientDataError signals a statistical precondition was not met.
// Callers should skip the computation, not abort the whole pipeline.
func NewInsufficientDataError(message string) *AppError {
	return NewAppError(ErrTypeInsufficientData, message, nil)
}

// NewNotFoundError creates a not-found error for an unknown resource id
func NewNotFoundError(resource, id string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s %s not found", resource, id), nil)
}

// NewPermissionError creates an owner-mismatch error
func NewPermissionError(message string) *AppError {
	return NewAppError(ErrTypePermission, message, nil)
}

// NewRenderError creates a document-encoding error, fatal to the owning report
func NewRenderError(message string, cause error) *AppError {
	return NewAppError(ErrTypeRender, message, cause)
}

// NewAnalysisError creates an analysis error, contained and logged rather than
// propagated to the report lifecycle
func NewAnalysisError(message string, cause error) *AppError {
	return NewAppError(ErrTypeAnalysis, message, cause)
}

// NewDispatchError signals the job queue refused or failed an enqueue
func NewDispatchError(message string, cause error) *AppError {
	return NewAppError(ErrTypeDispatch, message, cause)
}

// NewStorageError creates a persistence-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewConfigError creates a configuration-related error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// IsType checks whether err (or anything it wraps) is an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Type == errType {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// IsInsufficientData reports whether err is an insufficient-data error
func IsInsufficientData(err error) bool {
	return IsType(err, ErrTypeInsufficientData)
}

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool {
	return IsType(err, ErrTypeNotFound)
}

// IsPermission reports whether err is a permission error
func IsPermission(err error) bool {
	return IsType(err, ErrTypePermission)
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool {
	return IsType(err, ErrTypeValidation)
}
