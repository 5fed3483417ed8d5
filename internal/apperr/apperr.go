// Package apperr defines the error kinds shared by the marketplace core and
// the layers that wrap it. Every error returned by a core operation wraps
// exactly one of the sentinel kinds below, so callers branch with errors.Is.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrValidation: a required field is missing or malformed.
	ErrValidation = errors.New("validation error")
	// ErrNotFound: a referenced request, quote, provider or requester does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState: the operation is not legal in the current lifecycle state.
	ErrInvalidState = errors.New("invalid state")
	// ErrAuth: the identity could not be verified or resolved to a role.
	ErrAuth = errors.New("auth error")
	// ErrTimeout: the storage collaborator did not answer before the caller's deadline.
	ErrTimeout = errors.New("timeout")
	// ErrDelivery: the messaging collaborator rejected or failed a notification.
	ErrDelivery = errors.New("delivery error")
)

// Error carries a kind plus a human readable message.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an error of the given kind.
func New(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an error of the given kind around a cause.
func Wrap(kind error, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// Validation is shorthand for New(ErrValidation, ...).
func Validation(format string, args ...any) error {
	return New(ErrValidation, format, args...)
}

// NotFound is shorthand for New(ErrNotFound, ...).
func NotFound(format string, args ...any) error {
	return New(ErrNotFound, format, args...)
}

// InvalidState is shorthand for New(ErrInvalidState, ...).
func InvalidState(format string, args ...any) error {
	return New(ErrInvalidState, format, args...)
}

// FromContext converts an expired caller deadline into ErrTimeout and leaves
// any other error untouched.
func FromContext(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(ErrTimeout, err, "storage call exceeded deadline")
	}
	return err
}

// KindOf returns the sentinel kind of err, or nil if err carries none.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrInvalidState, ErrAuth, ErrTimeout, ErrDelivery} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
