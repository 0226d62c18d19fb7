package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every *Error unwraps to exactly one of these, so callers can
// branch with errors.Is(err, domain.ErrForbidden).
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
	ErrColumnConflict      = errors.New("column conflict")
	ErrValidation          = errors.New("validation failed")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrMirrorDegraded      = errors.New("database grants mirror not applied")
)

// Error carries the structured detail the UI needs to render an actionable message.
type Error struct {
	Kind       error
	Message    string
	Identifier string
	Row        int
	Details    []string
	Cause      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Identifier != "" {
		fmt.Fprintf(&b, " (%s)", e.Identifier)
	}
	if e.Row > 0 {
		fmt.Fprintf(&b, " [row %d]", e.Row)
	}
	if e.Kind == ErrMirrorDegraded && e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Is matches the kind sentinel.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindName is the stable, lowercase name of the kind used on the wire.
func (e *Error) KindName() string {
	return KindName(e.Kind)
}

// KindName maps a sentinel to its wire name.
func KindName(kind error) string {
	switch kind {
	case ErrInvalidInput:
		return "invalid_input"
	case ErrDuplicateIdentifier:
		return "duplicate_identifier"
	case ErrColumnConflict:
		return "column_conflict"
	case ErrValidation:
		return "validation_error"
	case ErrForbidden:
		return "forbidden"
	case ErrNotFound:
		return "not_found"
	case ErrMirrorDegraded:
		return "mirror_degraded"
	}
	return "internal"
}

// NewError builds an *Error of the given kind.
func NewError(kind error, identifier, format string, args ...any) *Error {
	return &Error{Kind: kind, Identifier: identifier, Message: fmt.Sprintf(format, args...)}
}

func InvalidInput(identifier, format string, args ...any) *Error {
	return NewError(ErrInvalidInput, identifier, format, args...)
}

func DuplicateIdentifier(identifier string) *Error {
	return NewError(ErrDuplicateIdentifier, identifier, "identifier already in use")
}

func ColumnConflict(table, column string) *Error {
	return NewError(ErrColumnConflict, column, "column already exists in table %s", table)
}

func Forbidden(identifier, format string, args ...any) *Error {
	return NewError(ErrForbidden, identifier, format, args...)
}

func NotFound(identifier, format string, args ...any) *Error {
	return NewError(ErrNotFound, identifier, format, args...)
}

// ValidationFailed aggregates per-row messages; no insertion follows it.
func ValidationFailed(identifier string, details []string) *Error {
	return &Error{
		Kind:       ErrValidation,
		Identifier: identifier,
		Message:    fmt.Sprintf("%d problem(s) found", len(details)),
		Details:    details,
	}
}

// MirrorDegraded wraps a failure of the database-level grants mirror.
func MirrorDegraded(role, op string, cause error) *Error {
	return &Error{Kind: ErrMirrorDegraded, Identifier: role, Message: op, Cause: cause}
}

// AsError extracts the *Error from err, if any.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
