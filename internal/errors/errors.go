// Package errors provides a lightweight structured error type (BuildError)
// for category-based classification in the HTTP adapter and build pipeline.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies a BuildError for HTTP mapping and ledger messages.
type ErrorCategory string

const (
	// User-facing input errors, rejected synchronously.
	CategoryValidation ErrorCategory = "validation"

	// Pipeline-stage errors recorded into the ledger.
	CategoryAcquisition ErrorCategory = "acquisition"
	CategoryEntryPoint  ErrorCategory = "entrypoint"
	CategoryTool        ErrorCategory = "tool"
	CategoryArtifact    ErrorCategory = "artifact"

	// Read-surface and infrastructure errors.
	CategoryNotFound ErrorCategory = "notfound"
	CategoryInternal ErrorCategory = "internal"
)

// ContextFields carries structured context for a BuildError.
type ContextFields map[string]any

// BuildError is a structured error with category and optional context.
type BuildError struct {
	Category ErrorCategory `json:"category"`
	Message  string        `json:"message"`
	Cause    error         `json:"-"`
	Context  ContextFields `json:"context,omitempty"`
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap supports errors.Is/As chains.
func (e *BuildError) Unwrap() error { return e.Cause }

// WithContext adds a context field to the error.
func (e *BuildError) WithContext(key string, value any) *BuildError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new BuildError.
func New(category ErrorCategory, message string) *BuildError {
	return &BuildError{Category: category, Message: message}
}

// Wrap creates a BuildError wrapping an underlying cause.
func Wrap(err error, category ErrorCategory, message string) *BuildError {
	return &BuildError{Category: category, Message: message, Cause: err}
}

// CategoryOf returns the category of err if it is (or wraps) a BuildError,
// CategoryInternal otherwise.
func CategoryOf(err error) ErrorCategory {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Category
	}
	return CategoryInternal
}

// Convenience constructors matching the categories above.

func ValidationError(message string) *BuildError { return New(CategoryValidation, message) }
func NotFoundError(message string) *BuildError   { return New(CategoryNotFound, message) }
func InternalError(message string) *BuildError   { return New(CategoryInternal, message) }
