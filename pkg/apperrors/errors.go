// Package apperrors defines the typed error kinds shared by the booking core.
// Services return these instead of logging; the API layer maps kinds to
// responses.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for mapping at the API boundary
type Kind string

const (
	KindDenied               Kind = "authorization_denied"
	KindValidation           Kind = "validation_failed"
	KindNotFound             Kind = "not_found"
	KindConflict             Kind = "conflict"
	KindQuerySyntax          Kind = "query_syntax"
	KindUnsupportedField     Kind = "unsupported_field"
	KindOperatorIncompatible Kind = "operator_incompatible"
	KindTypeCoercion         Kind = "type_coercion"
	KindInvalidTransition    Kind = "invalid_state_transition"
)

// Error is a classified, recoverable error. Violations is populated for
// validation failures and carries every rule violation, not just the first.
type Error struct {
	Kind       Kind
	Message    string
	Violations []string
	Err        error
}

func (e *Error) Error() string {
	if len(e.Violations) > 0 {
		return e.Message + ": " + strings.Join(e.Violations, "; ")
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two classified errors by kind, so sentinel-style checks like
// errors.Is(err, &Error{Kind: KindNotFound}) work across layers.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf returns the kind of a classified error, or "" for anything else
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Denied reports a failed authorization check
func Denied(format string, args ...any) *Error {
	return newf(KindDenied, format, args...)
}

// ValidationFailed carries the full ordered list of rule violations
func ValidationFailed(violations []string) *Error {
	return &Error{Kind: KindValidation, Message: "trade validation failed", Violations: violations}
}

// NotFound reports a missing or inactive trade version or reference entity
func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

// Conflict reports a uniqueness or concurrent-modification conflict
func Conflict(format string, args ...any) *Error {
	return newf(KindConflict, format, args...)
}

// QuerySyntax reports unparseable filter text, including the offending fragment
func QuerySyntax(fragment, reason string) *Error {
	return newf(KindQuerySyntax, "invalid query syntax near %q: %s", fragment, reason)
}

// UnsupportedField reports a selector outside the filter whitelist
func UnsupportedField(selector string) *Error {
	return newf(KindUnsupportedField, "unsupported field: %s", selector)
}

// OperatorIncompatible reports an operator applied to a field type that does
// not support it
func OperatorIncompatible(op, selector string) *Error {
	return newf(KindOperatorIncompatible, "operator %s not applicable to field %s", op, selector)
}

// TypeCoercion reports a filter literal that cannot be converted to the
// field's declared type
func TypeCoercion(value, selector string, err error) *Error {
	e := newf(KindTypeCoercion, "cannot convert %q for field %s", value, selector)
	e.Err = err
	return e
}

// InvalidTransition reports a lifecycle operation on a trade in a terminal state
func InvalidTransition(format string, args ...any) *Error {
	return newf(KindInvalidTransition, format, args...)
}
