package services

import (
	"errors"
)

// Error categories. Callers branch on them with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrPersistence  = errors.New("persistence failure")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error is a categorised failure with a client-safe detail. Cause holds the
// underlying error for logs and is never shown to clients.
type Error struct {
	Kind   error
	Detail string
	Fields map[string]string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Detail + ": " + e.Cause.Error()
	}
	return e.Detail
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}

func validationError(fields map[string]string) *Error {
	return &Error{Kind: ErrValidation, Detail: "Validation failed", Fields: fields}
}

// Detail returns the message safe to show to a client.
func Detail(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Detail
	}
	return err.Error()
}

// FieldErrors returns per-field validation messages, if any.
func FieldErrors(err error) map[string]string {
	var se *Error
	if errors.As(err, &se) {
		return se.Fields
	}
	return nil
}
