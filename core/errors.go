package core

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

var (
	// ErrNotAuthenticated is returned when an operation requires a logged-in
	// caller and none was provided (or the caller's email is unconfirmed).
	ErrNotAuthenticated = stderrors.New("user not authenticated")

	// ErrPermissionDenied is returned when an authenticated caller lacks the
	// role or ownership an operation requires.
	ErrPermissionDenied = stderrors.New("permission denied")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
