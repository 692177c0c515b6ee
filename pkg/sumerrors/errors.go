// Package sumerrors provides structured error handling for csvsum with
// error categorization, key-value context and stack traces.
//
// # Overview
//
// Every failure surfaced by the aggregation core carries an ErrorType that
// tells the caller how to react:
//   - ErrorTypeSourceUnavailable: input missing or unreadable, fatal
//   - ErrorTypeEmptySample: degenerate input, recovered locally by the planner
//   - ErrorTypeNonNumericField: malformed data, fatal for the run
//   - ErrorTypePlanning: impossible resource readings, fatal
//   - ErrorTypeWorkerFailure: a parallel worker failed, wraps the cause
//
// # Basic Usage
//
//	err := sumerrors.New(sumerrors.ErrorTypeNonNumericField, "field is not numeric").
//	    WithDetail("row", 12).
//	    WithDetail("column", 3)
//
//	if sumerrors.IsType(err, sumerrors.ErrorTypeNonNumericField) {
//	    // data-format problem, abort the run
//	}
//
// There are no retryable error types: retries belong to the caller.
package sumerrors

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// ErrorType represents the category of error.
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeSourceUnavailable represents a missing or unreadable input
	ErrorTypeSourceUnavailable ErrorType = "source_unavailable"
	// ErrorTypeEmptySample represents an input with no rows to sample
	ErrorTypeEmptySample ErrorType = "empty_sample"
	// ErrorTypeNonNumericField represents a field that does not parse as a number
	ErrorTypeNonNumericField ErrorType = "non_numeric_field"
	// ErrorTypePlanning represents impossible resource readings during chunk planning
	ErrorTypePlanning ErrorType = "planning"
	// ErrorTypeWorkerFailure represents a failed parallel worker
	ErrorTypeWorkerFailure ErrorType = "worker_failure"
)

// Error represents a structured error with context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack.
type StackFrame struct {
	Function string // Fully qualified function name
	File     string // Source file path
	Line     int    // Line number in source file
}

// Error implements the error interface. Details are rendered in key order
// so messages stay stable across runs.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.Details[k])
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error, enabling errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error. Calls can be chained.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message, capturing the
// call stack at the point of creation.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf is New with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context. If the error is
// already a structured Error its stack trace is preserved. Returns nil if
// err is nil.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

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

// IsType reports whether err, or any structured error in its cause chain,
// is of the given type. A worker failure caused by a non-numeric field
// therefore matches both types.
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == errType {
			return true
		}
		err = e.Cause
	}
	return false
}

// TypeOf returns the type of the outermost structured error in err's chain,
// or ErrorTypeInternal when there is none.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

// captureStack captures the current call stack up to maxFrames deep.
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
