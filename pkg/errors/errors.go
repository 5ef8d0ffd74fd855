// Package errors provides structured error types for framestamp.
//
// Every failure raised while loading a template, resolving shape
// parameters or rendering a frame carries a machine-readable [Code], so the
// CLI, the batch pipeline and the HTTP service can report them uniformly.
//
// # Error Codes
//
// Render-time codes mirror the template error taxonomy:
//   - PRESET_ERROR: structural template problems (missing type, duplicate id)
//   - PARAMETER_NOT_FOUND: required parameter with no value and no default
//   - RECURSION_ERROR: a shape references itself by id or a reference cycle
//   - UNRESOLVED_REFERENCE: unknown variable, scope name or parent id
//   - INVALID_PARAMETER_TYPE: resolved value of the wrong type
//   - CONFIGURATION_ERROR: invalid layout inputs such as a zero tile size
//
// # Usage
//
//	err := errors.New(errors.ErrCodePreset, "duplicate shape id %q", id)
//	if errors.Is(err, errors.ErrCodePreset) {
//	    // Handle template error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeFileNotFound, origErr, "open %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Template and resolution errors
	ErrCodePreset               Code = "PRESET_ERROR"
	ErrCodeParameterNotFound    Code = "PARAMETER_NOT_FOUND"
	ErrCodeRecursion            Code = "RECURSION_ERROR"
	ErrCodeUnresolvedReference  Code = "UNRESOLVED_REFERENCE"
	ErrCodeInvalidParameterType Code = "INVALID_PARAMETER_TYPE"
	ErrCodeConfiguration        Code = "CONFIGURATION_ERROR"
	ErrCodeShapeTypeNotFound    Code = "SHAPE_TYPE_NOT_FOUND"
	ErrCodeInvalidExpression    Code = "INVALID_EXPRESSION"

	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidPath     Code = "INVALID_PATH"
	ErrCodeInvalidTemplate Code = "INVALID_TEMPLATE"
	ErrCodeInvalidFormat   Code = "INVALID_FORMAT"

	// Resource not found errors
	ErrCodeNotFound         Code = "NOT_FOUND"
	ErrCodeFileNotFound     Code = "FILE_NOT_FOUND"
	ErrCodeTemplateNotFound Code = "TEMPLATE_NOT_FOUND"

	// Rendering and internal errors
	ErrCodeRenderFailed Code = "RENDER_FAILED"
	ErrCodeInternal     Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether any *Error in err's chain has the given code.
// A shape error wrapped by the scene keeps its original code reachable.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode extracts the outermost error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// RootCode returns the innermost error code in err's chain.
// This is the code of the failure that started the chain, which is usually
// what a template author needs to see.
func RootCode(err error) Code {
	var code Code
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			break
		}
		code = e.Code
		err = e.Cause
	}
	return code
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return e.Message + ": " + UserMessage(e.Cause)
		}
		return e.Message
	}
	return err.Error()
}
