// Package pgerror defines the PostgreSQL-shaped error type that crosses the
// boundary between internal Go errors and the wire protocol's ErrorResponse
// message.
//
// Every error that reaches the wire state machine (package wire) is either
// already a *Error, or is passed through Classify at the boundary so that the
// ErrorResponse we send always carries a real SQLSTATE rather than a generic
// "something went wrong".
package pgerror

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// SQLSTATE codes used by this system. Only the subset named in spec.md §7 is
// defined; anything else falls back to CodeInternalError.
const (
	CodeProtocolViolation       = "08P01"
	CodeFeatureNotSupported     = "0A000"
	CodeSyntaxError             = "42601"
	CodeUndefinedColumn         = "42703"
	CodeInsufficientPrivilege   = "42501"
	CodeGroupingError           = "42803"
	CodeDatatypeMismatch        = "42804"
	CodeUniqueViolation         = "23505"
	CodeForeignKeyViolation     = "23503"
	CodeCheckViolation          = "23514"
	CodeNotNullViolation        = "23502"
	CodeStringDataRightTruncate = "22001"
	CodeNumericValueOutOfRange  = "22003"
	CodeInvalidTextRepr         = "22P02"
	CodeInFailedTransaction     = "25P02"
	CodeInternalError           = "XX000"
	CodeConfigFileError         = "F0000"
	CodeConnectionException     = "08000"
)

// Error is a SQLSTATE-tagged error, the canonical shape of everything the
// wire protocol reports back to the client in an ErrorResponse.
type Error struct {
	// Severity is one of ERROR, FATAL, PANIC (we only ever produce the first
	// two; PANIC is reserved for the protocol, never raised by this code).
	Severity string
	// Code is the five-character SQLSTATE.
	Code string
	// Message is the primary human-readable message.
	Message string
	// Detail is optional additional context, omitted from the wire message
	// when empty. Populated for enum/constraint violations per spec.md §7.
	Detail string
	// wrapped is the underlying cause, if any, kept for %w unwrapping and
	// logging but never sent on the wire.
	wrapped error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// New constructs an Error with severity ERROR.
func New(code, message string) *Error {
	return &Error{Severity: "ERROR", Code: code, Message: message}
}

// Newf constructs an Error with a formatted message.
func Newf(code, format string, args ...any) *Error {
	return &Error{Severity: "ERROR", Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail returns a copy of e with Detail set.
func (e *Error) WithDetail(detail string) *Error {
	cp := *e
	cp.Detail = detail
	return &cp
}

// Wrap attaches a cause for logging/unwrapping purposes without changing the
// wire-visible fields.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.wrapped = cause
	return &cp
}

// Fatal marks an Error as FATAL severity, used for integrity failures that
// must close the session (spec.md §7: "fatal, session closed").
func Fatal(code, message string) *Error {
	return &Error{Severity: "FATAL", Code: code, Message: message}
}

// EnumViolation builds the canonical enum-membership error described in
// spec.md's Scenario A: "invalid input value for enum <name>: '<value>'".
func EnumViolation(enumName, value string) *Error {
	return &Error{
		Severity: "ERROR",
		Code:     CodeInvalidTextRepr,
		Message:  fmt.Sprintf("invalid input value for enum %s: '%s'", enumName, value),
		Detail:   fmt.Sprintf("column enum=%s value=%s", enumName, value),
	}
}

// StringTooLong builds the VARCHAR/CHAR length-violation error (22001).
func StringTooLong(column string, max, got int) *Error {
	return &Error{
		Severity: "ERROR",
		Code:     CodeStringDataRightTruncate,
		Message:  "value too long for type character varying",
		Detail:   fmt.Sprintf("column=%s max_length=%d actual_length=%d", column, max, got),
	}
}

// NumericOutOfRange builds the NUMERIC(p,s) precision/scale violation (22003).
func NumericOutOfRange(column string, precision, scale int) *Error {
	return &Error{
		Severity: "ERROR",
		Code:     CodeNumericValueOutOfRange,
		Message:  "numeric field overflow",
		Detail:   fmt.Sprintf("column=%s precision=%d scale=%d", column, precision, scale),
	}
}

// Classify maps an arbitrary error — typically bubbled up from the storage
// engine adapter (package engine) — into a *Error with the closest SQLSTATE,
// per spec.md §4.1 and §7. It is the single place that ad hoc engine errors
// are allowed to turn into wire-visible SQLSTATEs; callers elsewhere must not
// hand-format ErrorResponse fields themselves.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var pgErr *Error
	if errors.As(err, &pgErr) {
		return pgErr
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return classifySQLite(sqliteErr, err)
	}

	return New(CodeInternalError, err.Error()).Wrap(err)
}

func classifySQLite(sqliteErr sqlite3.Error, cause error) *Error {
	switch sqliteErr.Code {
	case sqlite3.ErrConstraint:
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return New(CodeUniqueViolation, "duplicate key value violates unique constraint").Wrap(cause)
		case sqlite3.ErrConstraintForeignKey:
			return New(CodeForeignKeyViolation, "insert or update violates foreign key constraint").Wrap(cause)
		case sqlite3.ErrConstraintNotNull:
			return New(CodeNotNullViolation, "null value violates not-null constraint").Wrap(cause)
		case sqlite3.ErrConstraintCheck:
			return New(CodeCheckViolation, "new row violates check constraint").Wrap(cause)
		case sqlite3.ErrConstraintTrigger:
			// Our own enum-validation triggers raise RAISE(ABORT, 'invalid input value...');
			// sqlite3 surfaces the RAISE message verbatim in sqliteErr.Error().
			return New(CodeInvalidTextRepr, sqliteErr.Error()).Wrap(cause)
		default:
			return New(CodeCheckViolation, sqliteErr.Error()).Wrap(cause)
		}
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return New(CodeInternalError, "database is busy").Wrap(cause)
	default:
		return New(CodeInternalError, sqliteErr.Error()).Wrap(cause)
	}
}
