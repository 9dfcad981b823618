package messaging

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes failures raised by the messaging layer.
type ErrorCode int

const (
	ErrorUnknown ErrorCode = iota

	// ErrorNotConnected is returned by live sends while the transport is not
	// open. Callers fall back to the REST path; it is never a crash.
	ErrorNotConnected

	// ErrorAuthFailed means the server rejected our credentials after the
	// single delayed retry.
	ErrorAuthFailed

	// ErrorTransport covers dial failures and abnormal closures.
	ErrorTransport

	// ErrorMalformedFrame marks an inbound frame that could not be decoded.
	// Such frames are logged and dropped, never propagated.
	ErrorMalformedFrame

	// ErrorFallbackFailed means a REST fallback request failed. It is
	// surfaced to the initiating action only.
	ErrorFallbackFailed

	// ErrorInvalidConfig means the session configuration is unusable.
	ErrorInvalidConfig
)

// String returns the string representation of an ErrorCode.
func (e ErrorCode) String() string {
	switch e {
	case ErrorNotConnected:
		return "not_connected"
	case ErrorAuthFailed:
		return "authentication_failed"
	case ErrorTransport:
		return "transport_error"
	case ErrorMalformedFrame:
		return "malformed_frame"
	case ErrorFallbackFailed:
		return "fallback_request_failed"
	case ErrorInvalidConfig:
		return "invalid_config"
	default:
		return fmt.Sprintf("unknown_code_%d", int(e))
	}
}

// MessagingError is a structured error with a code and optional cause.
type MessagingError struct {
	Code    ErrorCode
	Message string
	Wrapped error
}

// Error implements the error interface.
func (e *MessagingError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *MessagingError) Unwrap() error {
	return e.Wrapped
}

// Is matches on the error code, so sentinel comparisons with errors.Is work
// regardless of message or cause.
func (e *MessagingError) Is(target error) bool {
	t, ok := target.(*MessagingError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates a MessagingError with the given code and message.
func NewError(code ErrorCode, message string) *MessagingError {
	return &MessagingError{Code: code, Message: message}
}

// WrapError wraps a cause with a MessagingError.
func WrapError(code ErrorCode, message string, err error) *MessagingError {
	return &MessagingError{Code: code, Message: message, Wrapped: err}
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotConnected  = NewError(ErrorNotConnected, "live transport is not open")
	ErrAuthFailed    = NewError(ErrorAuthFailed, "server rejected credentials")
	ErrInvalidConfig = NewError(ErrorInvalidConfig, "invalid configuration")
)

// IsNotConnected reports whether err is the live-path "transport not open"
// failure that the delivery adapter recovers from via REST.
func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected)
}
