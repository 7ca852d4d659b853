package chatroom

import (
	"errors"
	"fmt"
)

// ErrorCode represents a categorized error type.
type ErrorCode int

const (
	// Server errors (from "error" frames)
	ErrorUnknown ErrorCode = iota
	ErrorBadRequest
	ErrorReplaced
	ErrorRateLimited
	ErrorServer

	// Client-side errors
	ErrorDecode
	ErrorTransport
	ErrorSendRejected
	ErrorValidation
	ErrorInvalidConfig
	ErrorLeft
	ErrorStore
)

// String returns the string representation of an ErrorCode.
func (e ErrorCode) String() string {
	switch e {
	case ErrorUnknown:
		return "unknown"
	case ErrorBadRequest:
		return "bad_request"
	case ErrorReplaced:
		return "replaced"
	case ErrorRateLimited:
		return "rate_limited"
	case ErrorServer:
		return "server_error"
	case ErrorDecode:
		return "decode_error"
	case ErrorTransport:
		return "transport_error"
	case ErrorSendRejected:
		return "send_rejected"
	case ErrorValidation:
		return "validation_error"
	case ErrorInvalidConfig:
		return "invalid_config"
	case ErrorLeft:
		return "left"
	case ErrorStore:
		return "store_error"
	default:
		return fmt.Sprintf("unknown_code_%d", e)
	}
}

// ServerErrorCode maps the numeric code of a server error frame.
func ServerErrorCode(code int) ErrorCode {
	switch code {
	case 400:
		return ErrorBadRequest
	case 409:
		return ErrorReplaced
	case 429:
		return ErrorRateLimited
	default:
		return ErrorServer
	}
}

// ChatError is a structured error with code and context.
type ChatError struct {
	Code    ErrorCode
	Message string
	Wrapped error
}

// Error implements the error interface.
func (e *ChatError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s (wrapped: %v)", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Unwrap support.
func (e *ChatError) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is a *ChatError with the same code.
func (e *ChatError) Is(target error) bool {
	t, ok := target.(*ChatError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates a new ChatError with the given code and message.
func NewError(code ErrorCode, message string) *ChatError {
	return &ChatError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with a ChatError.
func WrapError(code ErrorCode, message string, err error) *ChatError {
	return &ChatError{
		Code:    code,
		Message: message,
		Wrapped: err,
	}
}

// Sentinels for errors.Is. Only the code is compared.
var (
	ErrSendRejected = NewError(ErrorSendRejected, "connection is not open")
	ErrEmptyMessage = NewError(ErrorValidation, "message is empty")
	ErrLeft         = NewError(ErrorLeft, "room was left")
)

func codeOf(err error) (ErrorCode, bool) {
	var ce *ChatError
	if err == nil || !errors.As(err, &ce) {
		return ErrorUnknown, false
	}
	return ce.Code, true
}

// IsServerError checks if an error came from a server error frame.
func IsServerError(err error) bool {
	code, ok := codeOf(err)
	return ok && code >= ErrorBadRequest && code <= ErrorServer
}

// IsTransportError checks if an error is a connection-level failure.
func IsTransportError(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrorTransport
}

// IsDecodeError checks if an error is a malformed or unknown inbound frame.
func IsDecodeError(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrorDecode
}
