package errors

import (
	"fmt"
	"runtime"
)

// ErrorType classifies kernel failures
type ErrorType string

const (
	ErrorTypeAllocation    ErrorType = "allocation"
	ErrorTypeState         ErrorType = "state"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeConfiguration ErrorType = "configuration"
)

// Sentinels for errors.Is. Any StructuredError of the same Type matches.
var (
	ErrAllocation    = &StructuredError{Type: ErrorTypeAllocation, Message: "allocation failed"}
	ErrState         = &StructuredError{Type: ErrorTypeState, Message: "invalid kernel state"}
	ErrValidation    = &StructuredError{Type: ErrorTypeValidation, Message: "validation failed"}
	ErrConfiguration = &StructuredError{Type: ErrorTypeConfiguration, Message: "invalid configuration"}
)

// StructuredError provides rich error context
type StructuredError struct {
	Type      ErrorType
	Operation string
	Message   string
	Cause     error
	Context   map[string]interface{}
	Stack     []uintptr
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Operation, e.Message)
}

// Unwrap returns the underlying cause
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a StructuredError of the same type.
func (e *StructuredError) Is(target error) bool {
	t, ok := target.(*StructuredError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// New creates a new structured error
func New(errType ErrorType, operation, message string) *StructuredError {
	return &StructuredError{
		Type:      errType,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, operation, message string) *StructuredError {
	if err == nil {
		return nil
	}

	return &StructuredError{
		Type:      errType,
		Operation: operation,
		Message:   message,
		Cause:     err,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
	}
}

// WithContext adds context information to an error
func (e *StructuredError) WithContext(key string, value interface{}) *StructuredError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:]) // skip Callers, captureStack and the constructor
	return pcs[:n]
}

// NewAllocationError creates an allocation error
func NewAllocationError(operation, message string) *StructuredError {
	return New(ErrorTypeAllocation, operation, message)
}

// NewStateError creates a state (protocol violation) error
func NewStateError(operation, message string) *StructuredError {
	return New(ErrorTypeState, operation, message)
}

// NewValidationError creates a validation error
func NewValidationError(operation, message string) *StructuredError {
	return New(ErrorTypeValidation, operation, message)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(operation, message string) *StructuredError {
	return New(ErrorTypeConfiguration, operation, message)
}

// WrapAllocationError wraps an error as an allocation error
func WrapAllocationError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeAllocation, operation, message)
}

// WrapConfigurationError wraps an error as a configuration error
func WrapConfigurationError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeConfiguration, operation, message)
}
