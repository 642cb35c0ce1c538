// Package toolerrors provides the structured error type returned by the
// arbitrator's tool surface. ToolError carries a machine-readable error_code
// from the closed set, a retryable flag, and an optional cause chain so
// errors.Is/As still work across wrapped failures.
package toolerrors

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error_code from the closed set the tool surface
// is allowed to return.
type Code string

const (
	// NoPendingAction means nothing is waiting on a response. Non-retryable.
	NoPendingAction Code = "no_pending_action"
	// MissingParam means a parameter required for the pending kind was not
	// supplied. Retryable.
	MissingParam Code = "missing_param"
	// IndexOutOfRange means the index was not in [0, choices.len). Retryable;
	// callers should attach the current choices payload.
	IndexOutOfRange Code = "index_out_of_range"
	// InvalidChoice means the text value did not match any choice. Retryable.
	InvalidChoice Code = "invalid_choice"
	// InternalError means a malformed choice snapshot or unresolvable player
	// ID. Non-retryable.
	InternalError Code = "internal_error"
	// UnknownActionType means the pending kind has no dispatch handler.
	// Non-retryable.
	UnknownActionType Code = "unknown_action_type"
)

// retryable reports whether Code is self-correctable by the agent without
// human intervention, per spec §7.
func (c Code) retryable() bool {
	switch c {
	case MissingParam, IndexOutOfRange, InvalidChoice:
		return true
	default:
		return false
	}
}

// ToolError represents a structured tool-surface failure. It preserves the
// error_code and retryable flag through wraps so a handler at the top of the
// call stack can still report both in the tool response, and supports
// errors.Is/As via Cause.
type ToolError struct {
	// Message is the human-readable summary returned as `error`.
	Message string
	// ErrCode is the machine-readable error_code returned to the caller.
	ErrCode Code
	// Cause links to the underlying tool error, if any.
	Cause *ToolError
}

// New constructs a ToolError with the given code and message.
func New(code Code, message string) *ToolError {
	if message == "" {
		message = string(code)
	}
	return &ToolError{Message: message, ErrCode: code}
}

// Errorf formats a message and returns a ToolError with the given code.
func Errorf(code Code, format string, args ...any) *ToolError {
	return New(code, fmt.Sprintf(format, args...))
}

// NewWithCause constructs a ToolError that wraps an underlying error. The
// cause is converted into a ToolError chain so metadata survives wrapping.
func NewWithCause(code Code, message string, cause error) *ToolError {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &ToolError{Message: message, ErrCode: code, Cause: FromError(cause)}
}

// FromError converts an arbitrary error into a ToolError chain, defaulting
// unclassified errors to InternalError.
func FromError(err error) *ToolError {
	if err == nil {
		return nil
	}
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	return &ToolError{
		Message: err.Error(),
		ErrCode: InternalError,
		Cause:   FromError(errors.Unwrap(err)),
	}
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap returns the underlying tool error to support errors.Is/As.
func (e *ToolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Retryable reports whether the agent can self-correct and retry the same
// tool call without additional context.
func (e *ToolError) Retryable() bool {
	if e == nil {
		return false
	}
	return e.ErrCode.retryable()
}
