package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies a pipeline failure. The kind decides the HTTP status
// the boundary reports.
type ErrorKind int

const (
	// KindValidation covers malformed grammar and identifiers.
	KindValidation ErrorKind = iota
	// KindOutOfRange covers count/page/limit/depth beyond configured maxima.
	KindOutOfRange
	// KindNotLoggedIn covers mutating operations with no identity.
	KindNotLoggedIn
	// KindPermission covers role or content check failures.
	KindPermission
	// KindNotExist covers dangling references and missing referenced tables.
	KindNotExist
	// KindCondition covers malformed join/subquery/aggregate syntax.
	KindCondition
	// KindExecution covers adapter and SQL failures.
	KindExecution
	// KindTransaction covers mid-transaction failures after rollback.
	KindTransaction
)

// String returns the taxonomy name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindOutOfRange:
		return "out_of_range"
	case KindNotLoggedIn:
		return "not_logged_in"
	case KindPermission:
		return "permission"
	case KindNotExist:
		return "not_exist"
	case KindCondition:
		return "condition"
	case KindExecution:
		return "execution"
	case KindTransaction:
		return "transaction"
	default:
		return "unknown"
	}
}

// HTTPStatus maps the kind to the status code the boundary reports.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindValidation, KindCondition, KindOutOfRange:
		return http.StatusBadRequest
	case KindNotLoggedIn:
		return http.StatusUnauthorized
	case KindPermission:
		return http.StatusForbidden
	case KindNotExist:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is the typed error used across the pipeline.
type Error struct {
	Kind ErrorKind
	// Table names the request entry the failure belongs to, when known.
	Table string
	// Msg is the human-readable description.
	Msg string
	// Err is the wrapped cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Table != "" {
		b.WriteString(" [")
		b.WriteString(e.Table)
		b.WriteString("]")
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// NewError builds a typed pipeline error.
func NewError(kind ErrorKind, table, format string, args ...any) *Error {
	return &Error{Kind: kind, Table: table, Msg: fmt.Sprintf(format, args...)}
}

// WrapError builds a typed pipeline error around a cause.
func WrapError(kind ErrorKind, table string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Table: table, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the error kind, defaulting to KindExecution for untyped
// errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindExecution
}
