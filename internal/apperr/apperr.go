// internal/apperr/apperr.go
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the machine-readable category of a domain error.
type Kind string

const (
	UnknownGameMode       Kind = "UnknownGameMode"
	NotAMultiple          Kind = "NotAMultiple"
	OutOfRange            Kind = "OutOfRange"
	NoTeamsRegistered     Kind = "NoTeamsRegistered"
	AllocationInProgress  Kind = "AllocationInProgress"
	PersistenceFailure    Kind = "PersistenceFailure"
	CredentialsIncomplete Kind = "CredentialsIncomplete"
	InvalidRecipientScope Kind = "InvalidRecipientScope"
	MessageNotDeletable   Kind = "MessageNotDeletable"
	NotAuthorized         Kind = "NotAuthorized"

	NotFound             Kind = "NotFound"
	InvalidArgument      Kind = "InvalidArgument"
	InvalidMessage       Kind = "InvalidMessage"
	LeagueLocked         Kind = "LeagueLocked"
	ConfirmationRequired Kind = "ConfirmationRequired"
)

// Error is a domain error: a kind plus a reason an operator can read.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by kind, so errors.Is(err, apperr.New(k, "")) works.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// New creates a domain error with a plain-language message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a domain error around an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the kind of err, or "" if err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err (or anything it wraps) is a domain error of kind k.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}

// HTTPStatus maps a kind onto the status code the handlers respond with.
func (k Kind) HTTPStatus() int {
	switch k {
	case UnknownGameMode, NotAMultiple, OutOfRange, InvalidRecipientScope,
		InvalidArgument, InvalidMessage, CredentialsIncomplete:
		return http.StatusBadRequest
	case NoTeamsRegistered, LeagueLocked, ConfirmationRequired, AllocationInProgress:
		return http.StatusConflict
	case MessageNotDeletable:
		return http.StatusGone
	case NotAuthorized:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
