// Package errors provides structured error types for the Granite system.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryCatalog    ErrorCategory = "CATALOG"
	ErrCategoryQuery      ErrorCategory = "QUERY"
	ErrCategoryPart       ErrorCategory = "PART"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeBadSourceTable = "BAD_SOURCE_TABLE"
	CodeInvalidSchema  = "INVALID_SCHEMA"
	CodeInvalidConfig  = "INVALID_CONFIG"

	// Storage codes
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Catalog codes
	CodeTableNotFound      = "TABLE_NOT_FOUND"
	CodePartNotFound       = "PART_NOT_FOUND"
	CodeCorruptionDetected = "CORRUPTION_DETECTED"

	// Query codes
	CodeParseError        = "PARSE_ERROR"
	CodeUnknownColumn     = "UNKNOWN_COLUMN"
	CodeUnsupportedSyntax = "UNSUPPORTED_SYNTAX"
	CodeAccessDenied      = "ACCESS_DENIED"

	// Part codes
	CodeUnsupportedLayout = "UNSUPPORTED_LAYOUT"
	CodeMarksLoadFailed   = "MARKS_LOAD_FAILED"
	CodeBadPartMeta       = "BAD_PART_META"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// GraniteError is the structured error type used throughout the system.
type GraniteError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *GraniteError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *GraniteError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *GraniteError) Is(target error) bool {
	var t *GraniteError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new GraniteError.
func New(category ErrorCategory, code, message string) *GraniteError {
	return &GraniteError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Newf creates a new GraniteError with a formatted message.
func Newf(category ErrorCategory, code, format string, args ...interface{}) *GraniteError {
	return New(category, code, fmt.Sprintf(format, args...))
}

// Wrap creates a new GraniteError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *GraniteError {
	return &GraniteError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *GraniteError) WithDetails(details map[string]interface{}) *GraniteError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ge *GraniteError
	if errors.As(err, &ge) {
		return ge.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a GraniteError.
func GetCategory(err error) ErrorCategory {
	var ge *GraniteError
	if errors.As(err, &ge) {
		return ge.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a GraniteError.
func GetCode(err error) string {
	var ge *GraniteError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *GraniteError {
	return New(ErrCategoryValidation, code, message)
}

func NewStorageError(code, message string, cause error) *GraniteError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewCatalogError(code, message string, cause error) *GraniteError {
	return Wrap(ErrCategoryCatalog, code, message, cause)
}

func NewQueryError(code, message string) *GraniteError {
	return New(ErrCategoryQuery, code, message)
}

func NewPartError(code, message string, cause error) *GraniteError {
	return Wrap(ErrCategoryPart, code, message, cause)
}

func NewInternalError(message string, cause error) *GraniteError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}

// UnknownColumn returns the canonical error for a requested column name
// that resolves to no known column kind.
func UnknownColumn(name string) *GraniteError {
	return Newf(ErrCategoryQuery, CodeUnknownColumn, "no such column %s", name)
}
