package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// FailureCategory classifies why an attempt or a file failed. The retry
// policy keys off this value.
type FailureCategory string

const (
	// FailTransientNetwork covers connection failures and remote 5xx errors.
	FailTransientNetwork FailureCategory = "transient_network"
	// FailRateLimited is the remote service's own throttling signal (429),
	// distinct from the local admission limiter.
	FailRateLimited FailureCategory = "rate_limited"
	// FailTimeout is a per-call deadline expiry.
	FailTimeout FailureCategory = "timeout"
	// FailMalformedResponse is a payload that could not be validated into an
	// extraction result.
	FailMalformedResponse FailureCategory = "malformed_response"
	// FailTerminalRemote is a permanent remote rejection (auth, unsupported
	// content, permanent 4xx). Never retried.
	FailTerminalRemote FailureCategory = "terminal_remote_error"
	// FailCancelled is batch-level cancellation propagated to a unit.
	FailCancelled FailureCategory = "cancelled"

	// Decomposition failure categories, surfaced at file level.
	FailUnsupportedFormat FailureCategory = "unsupported_format"
	FailCorruptFile       FailureCategory = "corrupt_file"
	FailPasswordProtected FailureCategory = "password_protected"
	FailFileTooLarge      FailureCategory = "file_too_large"
	FailTooManyPages      FailureCategory = "too_many_pages"
)

// Retryable reports whether the category is eligible for retry at all.
func (c FailureCategory) Retryable() bool {
	switch c {
	case FailTransientNetwork, FailRateLimited, FailTimeout, FailMalformedResponse:
		return true
	default:
		return false
	}
}

// Error is the typed error carried through the pipeline. It wraps an
// underlying cause and records the failure category plus optional remote
// hints.
type Error struct {
	Category FailureCategory `json:"category"`
	Message  string          `json:"message"`
	Cause    error           `json:"-"`

	// RetryAfter is the server-provided throttling hint, if any.
	RetryAfter time.Duration `json:"retry_after,omitempty"`

	// RawPayload is the offending payload for malformed responses, retained
	// for diagnostics when the request asks for raw responses.
	RawPayload string `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Unwrap exposes the cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error { return e.Cause }

// NewError creates a categorized error.
func NewError(cat FailureCategory, msg string, cause error) *Error {
	return &Error{Category: cat, Message: msg, Cause: cause}
}

// TransientError wraps a transport-level failure.
func TransientError(msg string, cause error) *Error {
	return NewError(FailTransientNetwork, msg, cause)
}

// RateLimitedError wraps a remote throttling response with its hint.
func RateLimitedError(msg string, retryAfter time.Duration) *Error {
	return &Error{Category: FailRateLimited, Message: msg, RetryAfter: retryAfter}
}

// TimeoutError wraps a per-call deadline expiry.
func TimeoutError(msg string, cause error) *Error {
	return NewError(FailTimeout, msg, cause)
}

// MalformedError wraps an unusable payload, keeping it for diagnostics.
func MalformedError(msg string, raw string, cause error) *Error {
	return &Error{Category: FailMalformedResponse, Message: msg, Cause: cause, RawPayload: raw}
}

// TerminalError wraps a permanent remote rejection.
func TerminalError(msg string, cause error) *Error {
	return NewError(FailTerminalRemote, msg, cause)
}

// CancelledError marks a unit that was never dispatched, or whose batch was
// cancelled mid-flight.
func CancelledError(msg string) *Error {
	return NewError(FailCancelled, msg, nil)
}

// DecompositionError wraps a file-level decomposition failure.
func DecompositionError(cat FailureCategory, msg string, cause error) *Error {
	return NewError(cat, msg, cause)
}

// CategoryOf extracts the failure category from any error. Context
// cancellation maps to cancelled; untyped errors default to
// transient_network so unknown failures stay retryable rather than silently
// terminal.
func CategoryOf(err error) FailureCategory {
	var de *Error
	if errors.As(err, &de) {
		return de.Category
	}
	if errors.Is(err, context.Canceled) {
		return FailCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailTimeout
	}
	return FailTransientNetwork
}

// AsError converts any error into a *Error, classifying untyped errors via
// CategoryOf.
func AsError(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return NewError(CategoryOf(err), "unexpected failure", err)
}
