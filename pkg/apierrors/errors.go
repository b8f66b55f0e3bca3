// Package apierrors implements netring's error-kind taxonomy: the five
// kinds its supervised tasks and HTTP handlers distinguish at the
// boundary between "what happened" and "what the caller should do
// about it" (retry, stop, or escalate).
package apierrors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Code identifies an error kind.
type Code string

const (
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeNotFound     Code = "NOT_FOUND"
	CodeGone         Code = "GONE"
	CodeTransient    Code = "TRANSIENT"
	CodeFatal        Code = "FATAL"
	CodeBugCaught    Code = "BUG_CAUGHT"
)

// Error is the interface all typed netring errors satisfy.
type Error interface {
	error
	Code() Code
	Message() string
	Unwrap() error
}

// BaseError is the common representation behind every typed error.
type BaseError struct {
	code    Code
	message string
	cause   error
	stack   []uintptr
}

func (e *BaseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *BaseError) Code() Code      { return e.code }
func (e *BaseError) Message() string { return e.message }
func (e *BaseError) Unwrap() error   { return e.cause }

// StackTrace renders the captured call stack, skipping runtime frames.
func (e *BaseError) StackTrace() string {
	if len(e.stack) == 0 {
		return ""
	}
	var buf strings.Builder
	frames := runtime.CallersFrames(e.stack)
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			fmt.Fprintf(&buf, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return buf.String()
}

func captureStack(skip int) []uintptr {
	const maxDepth = 32
	stack := make([]uintptr, maxDepth)
	n := runtime.Callers(skip+2, stack)
	return stack[:n]
}

// InvalidInputError — malformed request/config; surfaced to the caller, never retried.
type InvalidInputError struct {
	*BaseError
	Field string
}

func NewInvalidInput(field, message string) *InvalidInputError {
	return &InvalidInputError{
		BaseError: &BaseError{code: CodeInvalidInput, message: message, stack: captureStack(1)},
		Field:     field,
	}
}

// NotFoundError — membership state disagreement; the member re-registers on receipt.
type NotFoundError struct {
	*BaseError
	Resource string
	ID       string
}

func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		BaseError: &BaseError{code: CodeNotFound, message: fmt.Sprintf("%s not found", resource), stack: captureStack(1)},
		Resource:  resource,
		ID:        id,
	}
}

// GoneError — the record exists but is deregistered; the member must re-register.
type GoneError struct {
	*BaseError
	Resource string
	ID       string
}

func NewGone(resource, id string) *GoneError {
	return &GoneError{
		BaseError: &BaseError{code: CodeGone, message: fmt.Sprintf("%s deregistered", resource), stack: captureStack(1)},
		Resource:  resource,
		ID:        id,
	}
}

// TransientError — network timeout, store unavailable, probe target unreachable;
// logged with rate limiting and retried on the caller's natural cycle.
type TransientError struct {
	*BaseError
	Operation string
}

func NewTransient(operation string, cause error) *TransientError {
	msg := "transient failure"
	if operation != "" {
		msg = fmt.Sprintf("%s: transient failure", operation)
	}
	return &TransientError{
		BaseError: &BaseError{code: CodeTransient, message: msg, cause: cause, stack: captureStack(1)},
		Operation: operation,
	}
}

// FatalError — unrecoverable; the process exits with a non-zero code.
type FatalError struct {
	*BaseError
}

func NewFatal(message string, cause error) *FatalError {
	return &FatalError{
		BaseError: &BaseError{code: CodeFatal, message: message, cause: cause, stack: captureStack(1)},
	}
}

// BugCaughtError wraps any error or panic value a supervised task did not
// expect. The supervisor logs it with stack and continues the loop.
type BugCaughtError struct {
	*BaseError
	Task string
}

func NewBugCaught(task string, cause error) *BugCaughtError {
	return &BugCaughtError{
		BaseError: &BaseError{code: CodeBugCaught, message: fmt.Sprintf("task %s panicked or errored unexpectedly", task), cause: cause, stack: captureStack(1)},
		Task:      task,
	}
}

// Is* helpers use errors.As so wrapped errors are still recognized.

func IsInvalidInput(err error) bool { var e *InvalidInputError; return errors.As(err, &e) }
func IsNotFound(err error) bool     { var e *NotFoundError; return errors.As(err, &e) }
func IsGone(err error) bool         { var e *GoneError; return errors.As(err, &e) }
func IsTransient(err error) bool    { var e *TransientError; return errors.As(err, &e) }
func IsFatal(err error) bool        { var e *FatalError; return errors.As(err, &e) }
func IsBugCaught(err error) bool    { var e *BugCaughtError; return errors.As(err, &e) }
