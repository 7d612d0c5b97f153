package kvstore

import (
	"errors"
	"fmt"
)

// Error is a classified key-value error with a stable code.
type Error struct {
	Code    string // Error code (e.g., "KV-IO-5001")
	Message string // Human-readable message
	Key     string // Key involved, if any
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Key != "" {
		msg += fmt.Sprintf(" (key %q)", e.Key)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates an Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithKey returns a copy of the error bound to key.
func (e *Error) WithKey(key string) *Error {
	c := *e
	c.Key = key
	return &c
}

// WithDetails returns a copy of the error with additional details.
func (e *Error) WithDetails(details string) *Error {
	c := *e
	c.Details = details
	return &c
}

// WithCause returns a copy of the error wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	c := *e
	c.Cause = cause
	return &c
}

// Code extracts the error code from err, or "" if err is not an *Error.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

var (
	// ErrEncode indicates a value could not be encoded to bytes.
	ErrEncode = NewError("KV-ENC-1001", "encode failed")

	// ErrDecode indicates stored bytes could not be decoded into the
	// requested type.
	ErrDecode = NewError("KV-DEC-1002", "decode failed")

	// ErrStoreIO indicates the backing store failed a get, set or delete.
	ErrStoreIO = NewError("KV-IO-5001", "store i/o failed")

	// ErrLocked indicates the backing store refuses access until unlocked.
	ErrLocked = NewError("KV-IO-5002", "store locked")

	// ErrInvalidArgument indicates a malformed argument such as an empty key.
	ErrInvalidArgument = NewError("KV-ARG-1001", "invalid argument")
)

// IOError wraps a native backend failure as ErrStoreIO for key.
func IOError(key string, cause error) error {
	if cause == nil {
		return nil
	}
	var e *Error
	if errors.As(cause, &e) {
		return cause
	}
	return ErrStoreIO.WithKey(key).WithCause(cause)
}
