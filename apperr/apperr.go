// Package apperr defines the error kinds surfaced by the API and their HTTP statuses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
	KindPayloadTooLarge
	KindInvalidSignature
)

func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindInvalidSignature:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is safe to show to clients: Key selects a translated message, Params
// fills its placeholders and Message is the English fallback. Err is logged,
// never returned.
type Error struct {
	Kind    Kind
	Key     string
	Message string
	Params  map[string]any
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) WithFields(fields map[string]string) *Error {
	e.Fields = fields
	return e
}

func (e *Error) WithParams(params map[string]any) *Error {
	e.Params = params
	return e
}

func Validation(key, msg string) *Error {
	return &Error{Kind: KindValidation, Key: key, Message: msg}
}

func Unauthorized(key, msg string) *Error {
	return &Error{Kind: KindUnauthorized, Key: key, Message: msg}
}

func Forbidden(key, msg string) *Error {
	return &Error{Kind: KindForbidden, Key: key, Message: msg}
}

func NotFound(key, msg string) *Error {
	return &Error{Kind: KindNotFound, Key: key, Message: msg}
}

func Conflict(key, msg string) *Error {
	return &Error{Kind: KindConflict, Key: key, Message: msg}
}

func RateLimited() *Error {
	return &Error{Kind: KindRateLimited, Key: "error.rate_limited", Message: "Too many requests, please try again later"}
}

func PayloadTooLarge() *Error {
	return &Error{Kind: KindPayloadTooLarge, Key: "error.payload_too_large", Message: "Request body is too large"}
}

func InvalidSignature(err error) *Error {
	return &Error{Kind: KindInvalidSignature, Key: "error.invalid_signature", Message: "Invalid webhook signature", Err: err}
}

func Unexpected(err error) *Error {
	return &Error{Kind: KindUnexpected, Key: "error.unexpected", Message: "Something went wrong", Err: err}
}

// From returns err as an *Error, wrapping anything unknown as unexpected.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Unexpected(err)
}

func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
