// Package vadererr is the single error sum type for the whole engine.
// Store, engine and hub failures all map into it; the HTTP layer is the
// only place that flattens a Kind into a status code.
package vadererr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	// Precondition failures, surfaced to clients as 400.
	KindEventActive Kind = iota
	KindEventNotActive
	KindEventEnded
	KindEventTypeMismatch
	KindEventNotFound
	KindTeamNotFound
	KindUserNotFound
	KindTeamSizeMismatch
	// Internal failures, surfaced as 500 with a redacted body.
	KindStore
	KindAdminHash
	KindSerialization
)

func (k Kind) String() string {
	switch k {
	case KindEventActive:
		return "EventActive"
	case KindEventNotActive:
		return "EventNotActive"
	case KindEventEnded:
		return "EventEnded"
	case KindEventTypeMismatch:
		return "EventTypeMismatch"
	case KindEventNotFound:
		return "EventNotFound"
	case KindTeamNotFound:
		return "TeamNotFound"
	case KindUserNotFound:
		return "UserNotFound"
	case KindTeamSizeMismatch:
		return "TeamSizeMismatch"
	case KindStore:
		return "Store"
	case KindAdminHash:
		return "AdminHash"
	case KindSerialization:
		return "Serialization"
	default:
		return "Unknown"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error // underlying cause, nil for pure precondition failures
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match on the Kind alone, so callers can compare
// against the exported sentinels below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Sentinels for errors.Is checks in tests and handlers.
var (
	ErrEventActive       = &Error{Kind: KindEventActive}
	ErrEventNotActive    = &Error{Kind: KindEventNotActive}
	ErrEventEnded        = &Error{Kind: KindEventEnded}
	ErrEventTypeMismatch = &Error{Kind: KindEventTypeMismatch}
	ErrEventNotFound     = &Error{Kind: KindEventNotFound}
	ErrTeamNotFound      = &Error{Kind: KindTeamNotFound}
	ErrUserNotFound      = &Error{Kind: KindUserNotFound}
	ErrTeamSizeMismatch  = &Error{Kind: KindTeamSizeMismatch}
	ErrStore             = &Error{Kind: KindStore}
)

// Status maps any error to the HTTP status class the API exposes.
// Unrecognized errors are treated as internal store failures.
func Status(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindStore, KindAdminHash, KindSerialization:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// Public reports whether the error detail may be echoed to the client.
// Internal failures are logged with detail and redacted on the wire.
func Public(err error) bool {
	return Status(err) != http.StatusInternalServerError
}
