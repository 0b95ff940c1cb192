// Package errors provides structured error handling for Solwire with rich
// context, stack traces, and error categorization. It enables consistent
// error handling patterns across the connector client.
//
// # Overview
//
// The errors package extends Go's standard error handling with:
//   - Error categorization through ErrorType
//   - Structured context with key-value details
//   - Automatic stack trace capture
//   - Error wrapping with cause preservation
//   - Retryability detection
//
// # Basic Usage
//
//	// Create a new error
//	err := errors.New(errors.ErrorTypeNotFound, "wallet not in registry")
//
//	// Add context
//	err = err.WithDetail("wallet", "Phantom")
//
//	// Wrap existing errors
//	if err := handle.Connect(ctx); err != nil {
//	    return errors.Wrap(err, errors.ErrorTypeConnection, "wallet connect rejected").
//	        WithDetail("wallet", name)
//	}
//
// # Error Types
//
// Errors are categorized by type, which drives caller-side handling:
// user-actionable failures (not_found, connection, cluster, account,
// no_wallet, conflict) propagate to the caller, while infrastructure
// degradation (storage, registry) is absorbed and surfaced via health
// diagnostics only.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error, used for error handling
// strategies, monitoring, and propagation policy.
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotFound represents wallet-not-found errors
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeConnection represents wallet connection failures,
	// including user cancellation of the connect prompt
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeConflict represents conflicting in-flight operations
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeCluster represents unknown-cluster errors
	ErrorTypeCluster ErrorType = "cluster"
	// ErrorTypeAccount represents account-not-available errors
	ErrorTypeAccount ErrorType = "account"
	// ErrorTypeNoWallet represents operations requiring an active wallet
	ErrorTypeNoWallet ErrorType = "no_wallet"
	// ErrorTypeStorage represents persistence adapter failures
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeRegistry represents wallet discovery failures
	ErrorTypeRegistry ErrorType = "registry"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeRPC represents cluster RPC failures
	ErrorTypeRPC ErrorType = "rpc"
	// ErrorTypeHealth represents consistency check errors
	ErrorTypeHealth ErrorType = "health"
)

// Error represents a structured error with context.
//
// Fields:
//   - Type: Categorizes the error for handling strategies
//   - Message: Human-readable error description
//   - Cause: The underlying error that caused this error
//   - Details: Key-value pairs providing additional context
//   - Stack: Call stack at the point of error creation
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack, capturing
// the function name, file path, and line number for debugging.
type StackFrame struct {
	Function string // Fully qualified function name
	File     string // Source file path
	Line     int    // Line number in source file
}

// Error implements the error interface, returning a formatted error message
// that includes the error type, message, and cause (if present).
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error, enabling compatibility with errors.Is
// and errors.As for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error. This method can be
// chained for adding multiple details.
//
// Example:
//
//	err := errors.New(ErrorTypeAccount, "address not exposed by wallet").
//	    WithDetail("address", addr).
//	    WithDetail("wallet", walletName)
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message, automatically
// capturing the call stack at the point of creation.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context, preserving the
// original error as the cause. If the error is already a structured Error,
// its stack trace is preserved. Returns nil if the input error is nil.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsRetryable returns true if the error is retryable based on its type.
// Connection and timeout errors are considered retryable; everything else
// (including user cancellation surfaced as validation or not_found) is not.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Type {
	case ErrorTypeConnection, ErrorTypeTimeout, ErrorTypeRPC:
		return true
	default:
		return false
	}
}

// IsType checks if the error is of the given type, useful for conditional
// logic based on error categories.
//
// Example:
//
//	if errors.IsType(err, errors.ErrorTypeNotFound) {
//	    // Wallet never discovered - fall back to the chooser UI
//	}
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// captureStack captures the current call stack up to maxFrames deep,
// skipping the specified number of frames from the top.
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
