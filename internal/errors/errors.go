package errors

import (
	"fmt"
)

// ErrorType categorizes analysis failures. The containment policy maps each
// category to a scope: Parse and FileSystem errors are contained per file,
// Config errors fall back to defaults, External errors (subprocess, node
// eval) resolve to empty results at the task boundary.
type ErrorType int

const (
	ErrorTypeConfig ErrorType = iota
	ErrorTypeFileSystem
	ErrorTypeParse
	ErrorTypeExternal
	ErrorTypeInternal
)

// Error is a structured error with category and context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value to the error for logging.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Is matches errors by category.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

func typeString(t ErrorType) string {
	switch t {
	case ErrorTypeConfig:
		return "CONFIG"
	case ErrorTypeFileSystem:
		return "FILESYSTEM"
	case ErrorTypeParse:
		return "PARSE"
	case ErrorTypeExternal:
		return "EXTERNAL"
	default:
		return "INTERNAL"
	}
}

// New creates an error with the given category.
func New(errType ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message}
}

// Wrap wraps an existing error with a category and message. Returns nil for a
// nil cause.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Type: errType, Message: message, Cause: err}
}

// Convenience constructors.

func ConfigErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeConfig, fmt.Sprintf(format, args...))
}

func FileSystemError(err error, message string) *Error {
	return Wrap(err, ErrorTypeFileSystem, message)
}

func ParseError(err error, message string) *Error {
	return Wrap(err, ErrorTypeParse, message)
}

func ExternalError(err error, message string) *Error {
	return Wrap(err, ErrorTypeExternal, message)
}

func InternalErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeInternal, fmt.Sprintf(format, args...))
}

// GetType returns the category of an error, defaulting to Internal for
// errors produced outside this package.
func GetType(err error) ErrorType {
	if e, ok := err.(*Error); ok {
		return e.Type
	}
	return ErrorTypeInternal
}

// DetailedString renders the error with its category and context for logs.
func (e *Error) DetailedString() string {
	s := fmt.Sprintf("[%s] %s", typeString(e.Type), e.Message)
	if e.Cause != nil {
		s += fmt.Sprintf(": %v", e.Cause)
	}
	for k, v := range e.Context {
		s += fmt.Sprintf(" %s=%v", k, v)
	}
	return s
}
