// Package fderrors provides structured error types for the friendly-data
// tooling. All errors include a category, code, message, and an optional
// cause for consistent handling across components.
package fderrors

import (
	"errors"
	"fmt"
)

// Category classifies errors by system component.
type Category string

const (
	CategoryConfig   Category = "CONFIG"
	CategoryRegistry Category = "REGISTRY"
	CategoryConvert  Category = "CONVERT"
	CategoryPackage  Category = "PACKAGE"
	CategoryStorage  Category = "STORAGE"
	CategoryLicense  Category = "LICENSE"
	CategoryInternal Category = "INTERNAL"
)

// Error codes for each category.
const (
	// Config codes
	CodeUnknownKey  = "UNKNOWN_KEY"
	CodeBadValue    = "BAD_VALUE"
	CodeBadIndex    = "BAD_INDEX"
	CodeMissingFile = "MISSING_FILE"

	// Registry codes
	CodeBadSchema = "BAD_SCHEMA"

	// Convert codes
	CodeBadEntry      = "BAD_ENTRY"
	CodeBadLevels     = "BAD_LEVELS"
	CodeMultiAgg      = "MULTI_AGG"
	CodeMissingColumn = "MISSING_COLUMN"

	// Package codes
	CodeUnsupportedSource = "UNSUPPORTED_SOURCE"
	CodeNoDescriptor      = "NO_DESCRIPTOR"
	CodeArchiveFailed     = "ARCHIVE_FAILED"

	// Storage codes
	CodeObjectNotFound = "OBJECT_NOT_FOUND"
	CodeDownloadFailed = "DOWNLOAD_FAILED"

	// License codes
	CodeUnknownGroup   = "UNKNOWN_GROUP"
	CodeUnknownLicense = "UNKNOWN_LICENSE"
	CodeFetchFailed    = "FETCH_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// Error is the structured error type used throughout the system.
type Error struct {
	Category Category
	Code     string
	Message  string
	Cause    error
}

// Error returns a formatted error string.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new Error.
func New(category Category, code, message string) *Error {
	return &Error{Category: category, Code: code, Message: message}
}

// Newf creates a new Error with a formatted message.
func Newf(category Category, code, format string, args ...interface{}) *Error {
	return &Error{Category: category, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(category Category, code, message string, cause error) *Error {
	return &Error{Category: category, Code: code, Message: message, Cause: cause}
}
