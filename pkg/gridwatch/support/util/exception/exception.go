// Package exception provides the error types and error handling utilities for gridwatch.
// It standardizes errors raised while loading, joining and aggregating market data,
// allowing them to be categorized for retry decisions made by the data adapters.
package exception

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// ErrDataUnavailable is the sentinel error returned when a requested time
// window has no overlap at all with the data held by a source. Partial
// overlap is not an error; callers get the rows that exist together with the
// true bounds of what was returned.
var ErrDataUnavailable = errors.New("no data available for the requested window")

// errorRegistry maps error names referenced in configuration to concrete Go
// error instances, so retryable-error lists in application.yaml can be
// validated and matched with errors.Is.
var errorRegistry = make(map[string]error)

// registryMutex protects access to errorRegistry.
var registryMutex sync.RWMutex

func init() {
	RegisterErrorType("DataUnavailable", ErrDataUnavailable)
}

// RegisterErrorType registers an error prototype under a name that
// configuration files may reference. Registered prototypes are compared with
// errors.Is by IsErrorOfType.
//
// If prototype is nil or name is empty, this function panics.
func RegisterErrorType(name string, prototype error) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if name == "" {
		panic("Error type name cannot be empty")
	}
	if prototype == nil {
		panic(fmt.Sprintf("Cannot register nil prototype for name: %s", name))
	}

	errorRegistry[name] = prototype
}

// IsErrorTypeRegistered checks if the specified error type name is registered in the registry.
func IsErrorTypeRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, ok := errorRegistry[name]
	return ok
}

// IsErrorOfType reports whether err matches the registered prototype for name.
func IsErrorOfType(err error, name string) bool {
	registryMutex.RLock()
	prototype, ok := errorRegistry[name]
	registryMutex.RUnlock()
	if !ok {
		return false
	}
	return errors.Is(err, prototype)
}

// GridError is the error type used across the gridwatch data pipeline.
// It holds the module where the error occurred, a message, the wrapped
// original error, and a flag indicating whether the operation may be retried
// (file-access races on data files being the canonical retryable case).
type GridError struct {
	// Module indicates the module where the error occurred (e.g., "adapter", "motor", "cache").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// isRetryable indicates whether this error is retryable.
	isRetryable bool
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// NewGridError creates a new GridError instance.
// module: The module where the error occurred.
// message: The error message.
// originalErr: The original error to wrap. May be nil.
// isRetryable: Whether the failed operation may be retried.
func NewGridError(module, message string, originalErr error, isRetryable bool) *GridError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &GridError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		StackTrace:  string(buf[:n]),
	}
}

// NewGridErrorf creates a new non-retryable GridError with a formatted message.
// If the final argument is an error it is extracted and wrapped rather than
// being formatted into the message.
func NewGridErrorf(module, format string, a ...interface{}) *GridError {
	var originalErr error
	args := a
	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			originalErr = err
			args = args[:len(args)-1]
		}
	}
	return NewGridError(module, fmt.Sprintf(format, args...), originalErr, false)
}

// Error implements the error interface.
func (e *GridError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the wrapped original error, enabling errors.Is / errors.As.
func (e *GridError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable reports whether the failed operation may be retried.
func (e *GridError) IsRetryable() bool {
	return e.isRetryable
}

// IsRetryable reports whether err, at any level of wrapping, is a retryable
// GridError.
func IsRetryable(err error) bool {
	var ge *GridError
	if errors.As(err, &ge) {
		return ge.IsRetryable()
	}
	return false
}
