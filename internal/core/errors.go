package core

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a domain failure. The HTTP layer is the only code that maps
// kinds to status codes.
type Kind string

const (
	KindBadRequest  Kind = "bad_request"
	KindForbidden   Kind = "forbidden"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindInternal    Kind = "internal"
	KindUnavailable Kind = "unavailable"
)

// ConflictDetails describes the incumbent claim that caused a conflict.
type ConflictDetails struct {
	BookedBy string    `json:"bookedBy"`
	ClubName *string   `json:"clubName,omitempty"`
	UserType UserType  `json:"userType"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// Error is the tagged failure variant used across the booking core.
type Error struct {
	Kind    Kind
	Message string
	Details *ConflictDetails
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.cause }

// BadRequest builds a BadRequest error.
func BadRequest(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

// Forbidden builds a Forbidden error.
func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a NotFound error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict builds a Conflict error without incumbent details.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// ConflictWith builds a Conflict error carrying the incumbent claim.
func ConflictWith(details ConflictDetails, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...), Details: &details}
}

// Internal wraps an unclassified failure.
func Internal(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), cause: cause}
}

// Unavailable builds an Unavailable error.
func Unavailable(format string, args ...any) *Error {
	return &Error{Kind: KindUnavailable, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind from err, defaulting to Internal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// AsError returns the typed error inside err, or nil.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}
