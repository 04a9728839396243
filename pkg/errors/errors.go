package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeStore       ErrorType = "store"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents an API or store error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (code %d): %s: %v", e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(t ErrorType, code int, msg string) *Error {
	return &Error{Type: t, Code: code, Message: msg}
}

// Wrap creates a typed error around cause
func Wrap(t ErrorType, cause error, msg string) *Error {
	return &Error{Type: t, Message: msg, Err: cause}
}

// FromStatus classifies a non-success HTTP status code
func FromStatus(code int) *Error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return New(ErrorTypeAuth, code, "authentication rejected")
	case code == http.StatusNotFound:
		return New(ErrorTypeNotFound, code, "resource not found")
	case code == http.StatusTooManyRequests:
		return New(ErrorTypeRateLimit, code, "rate limit exceeded")
	case code >= 500:
		return New(ErrorTypeServerError, code, "server error")
	default:
		return New(ErrorTypeUnknown, code, fmt.Sprintf("unexpected status code: %d", code))
	}
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown when err is not
// (and does not wrap) an *Error.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err is an *Error of type t
func Is(err error, t ErrorType) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Type == t
}
