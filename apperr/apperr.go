// Package apperr defines the error kinds shared by the lock and audit HTTP
// servers and their mapping onto HTTP status codes and response bodies.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the purpose of status-code mapping and
// logging, independent of its human-readable message.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindBadRequest
	KindBadSignature
	KindBadMac
	KindBadAead
	KindAttestationFailure
	KindStaleChallenge
	KindExpiredDevice
)

// Error wraps an underlying cause with a Kind used to pick an HTTP status.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

var (
	NotFound           = func(msg string) *Error { return New(KindNotFound, msg) }
	BadRequest         = func(msg string) *Error { return New(KindBadRequest, msg) }
	BadSignature       = func(msg string) *Error { return New(KindBadSignature, msg) }
	BadMac             = func(msg string) *Error { return New(KindBadMac, msg) }
	BadAead            = func(msg string) *Error { return New(KindBadAead, msg) }
	AttestationFailure = func(msg string) *Error { return New(KindAttestationFailure, msg) }
	StaleChallenge     = func(msg string) *Error { return New(KindStaleChallenge, msg) }
	ExpiredDevice      = func(msg string) *Error { return New(KindExpiredDevice, msg) }
	Internal           = func(msg string, cause error) *Error { return Wrap(KindInternal, msg, cause) }
)

// StatusCode maps a Kind onto the HTTP status code the top-level response
// adapter uses. Cryptographic failures intentionally render as 500, not
// 401/403: the design avoids giving callers an oracle that distinguishes
// "wrong signature" from "server fault" (see design notes on timing/response
// uniformity).
func StatusCode(err error) int {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message extracts the message to render in the {"error": ...} body. For
// non-Error causes it falls back to the raw error text.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
