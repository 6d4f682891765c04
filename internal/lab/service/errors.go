package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kayas881/Dental-system-management-sub000/internal/lab/repository"
)

// Kind classifies a failed operation.
type Kind string

const (
	KindNotFound          Kind = "NotFound"
	KindValidation        Kind = "ValidationError"
	KindPermissionDenied  Kind = "PermissionDenied"
	KindAlreadyBilled     Kind = "AlreadyBilled"
	KindIncompleteOrders  Kind = "IncompleteOrders"
	KindMixedDoctors      Kind = "MixedDoctors"
	KindInvalidTransition Kind = "InvalidTransition"
	KindUnauthenticated   Kind = "Unauthenticated"
	KindStorage           Kind = "StorageError"
)

// Error is the only error type services return. Message is display ready.
type Error struct {
	Kind    Kind
	Message string
	// Details lists the offending values: ids, serial numbers, doctor names, fields.
	Details []string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, details []string, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Details: details}
}

// KindOf reports the kind of err; unclassified errors are storage errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// IsKind reports whether err is a service error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func errNotFound(what, id string) *Error {
	return newError(KindNotFound, []string{id}, "%s not found: %s", what, id)
}

func errPermission(action string) *Error {
	return newError(KindPermissionDenied, nil, "You do not have permission to %s", action)
}

func errUnauthenticated() *Error {
	return newError(KindUnauthenticated, nil, "Authentication required")
}

func errValidation(details []string, format string, args ...any) *Error {
	return newError(KindValidation, details, format, args...)
}

func errTransition(format string, args ...any) *Error {
	return newError(KindInvalidTransition, nil, format, args...)
}

// storageErr classifies an error coming out of a repository call.
func storageErr(err error, what, id string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, repository.ErrNotFound) {
		return errNotFound(what, id)
	}
	return &Error{Kind: KindStorage, Message: "Storage operation failed, please retry", Err: err}
}

func joinList(items []string) string {
	return strings.Join(items, ", ")
}
