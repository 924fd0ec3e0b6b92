// Package apperr classifies failures into the kinds the HTTP layer knows
// how to render.
package apperr

import (
	"errors"
	"net/http"

	"github.com/iliyamo/shop-auth-api/internal/repository"
)

// Kind is the machine-distinguishable class of a failure.
type Kind int

const (
	Internal Kind = iota
	BadInput
	Unauthenticated
	Forbidden
	Conflict
	NotFound
)

func (k Kind) String() string {
	switch k {
	case BadInput:
		return "bad_input"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	case Conflict:
		return "conflict"
	case NotFound:
		return "not_found"
	}
	return "internal"
}

// Status maps a kind to its HTTP status code.
func Status(k Kind) int {
	switch k {
	case BadInput:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case Conflict:
		return http.StatusConflict
	case NotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// InternalMessage is the only message an Internal failure ever shows.
const InternalMessage = "Internal server error"

// Error is a classified failure. Fields carries per-field validation
// messages for BadInput.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == Internal {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status is the HTTP status of e.
func (e *Error) Status() int { return Status(e.Kind) }

// WithFields attaches field errors and returns e.
func (e *Error) WithFields(fields map[string]string) *Error {
	e.Fields = fields
	return e
}

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func NewBadInput(msg string) *Error        { return New(BadInput, msg) }
func NewUnauthenticated(msg string) *Error { return New(Unauthenticated, msg) }
func NewForbidden(msg string) *Error       { return New(Forbidden, msg) }
func NewConflict(msg string) *Error        { return New(Conflict, msg) }
func NewNotFound(msg string) *Error        { return New(NotFound, msg) }

// NewInternal hides err behind the generic message.
func NewInternal(err error) *Error { return Wrap(Internal, InternalMessage, err) }

// From classifies any error. Unknown errors become Internal so nothing
// about them reaches the caller.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return Wrap(NotFound, "User not found", err)
	case errors.Is(err, repository.ErrEmailExists):
		return Wrap(Conflict, "User with this email already exists", err)
	}
	return NewInternal(err)
}

// Public returns the message safe to show to clients.
func (e *Error) Public() string {
	if e.Kind == Internal {
		return InternalMessage
	}
	return e.Message
}
