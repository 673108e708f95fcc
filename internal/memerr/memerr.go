// Package memerr defines the error-kind taxonomy used across the memory
// engine (spec.md §7). The store, the embedder and the facade return *Error
// values, which callers may wrap further with fmt.Errorf; KindOf sees
// through such wraps, giving the transport layer a single typed surface to map to
// HTTP statuses or tool-protocol error payloads without string sniffing.
package memerr

import "fmt"

// Kind is one of the error kinds from spec.md §7.
type Kind string

const (
	KindValidation        Kind = "ValidationError"
	KindServiceUnavailable Kind = "ServiceUnavailable"
	KindStorage           Kind = "StorageError"
	KindRateLimited        Kind = "RateLimited"
	KindUnauthorized       Kind = "Unauthorized"
	KindNotFound           Kind = "NotFound"
	KindInternal           Kind = "InternalError"
)

// Error is a typed error carrying a Kind the transport layer can switch on.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind with a message only.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation is a convenience constructor for the common case.
func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; otherwise it returns KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if asError(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
