// Package domainerrors defines the error vocabulary shared by services and transports.
//
// Services return *Error values carrying a stable Code; transports map the code to a
// status and render it. Infrastructure facts (not found, conflict) travel as sentinel
// errors from pkg/platform/sentinel and are translated by the owning service.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code is a stable, client-visible error identifier.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvalidState       Code = "invalid_state"
	CodeRateLimited        Code = "rate_limited"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"
	CodeEmptyCart          Code = "empty_cart"
	CodeUnknownProduct     Code = "unknown_product"
	CodeProductUnavailable Code = "product_unavailable"
	CodeInvalidToken       Code = "invalid_token"
	CodeUntrustedToken     Code = "untrusted_token"
	CodeTokenExpired       Code = "token_expired"
	CodeIncompletePayload  Code = "incomplete_payload"
)

// Error is a domain error with a machine-readable code.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code and message so tests can compare against
// a freshly constructed error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New creates a domain error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// Is reports whether err (or anything it wraps) is a domain error with code.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// HasCode reports whether the outermost domain error in the chain carries code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost domain error, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation, CodeInvalidInput, CodeEmptyCart,
		CodeProductUnavailable, CodeInvalidToken:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeUntrustedToken, CodeTokenExpired, CodeIncompletePayload:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound, CodeUnknownProduct:
		return http.StatusNotFound
	case CodeConflict, CodeInvalidState:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
