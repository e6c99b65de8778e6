// Package pyre is the root of the schema-first SQL data-access compiler:
// it holds the structured error model the parser and typechecker report
// through. Package compile ties the phases together end to end.
package pyre

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pyreql/pyre/ast"
)

// Standard sentinel errors for the runtime (non-compiler) error paths:
// what a generated query's Exec/Query call can itself fail with.
var (
	// ErrNotFound is returned when a query expecting exactly one row finds
	// none.
	ErrNotFound = errors.New("pyre: entity not found")

	// ErrNotSingular is returned when a query expecting exactly one row
	// finds more than one.
	ErrNotSingular = errors.New("pyre: entity not singular")

	// ErrTxStarted is returned when attempting to start a transaction
	// within an existing one; the migration runner requires exactly one
	// immediate transaction per run.
	ErrTxStarted = errors.New("pyre: cannot start a transaction within a transaction")
)

// NotFoundError reports that a query expecting a singular row found none.
type NotFoundError struct {
	label string
	id    any
}

func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("pyre: %s not found (id=%v)", e.label, e.id)
	}
	return fmt.Sprintf("pyre: %s not found", e.label)
}

// Is reports whether target matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Label returns the queried table's label.
func (e *NotFoundError) Label() string { return e.label }

// ID returns the primary key that was searched for, if known.
func (e *NotFoundError) ID() any { return e.id }

// NewNotFoundError returns a NotFoundError for the given table label.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// NewNotFoundErrorWithID returns a NotFoundError carrying the searched-for id.
func NewNotFoundErrorWithID(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

// IsNotFound reports whether err is a NotFoundError or wraps ErrNotFound.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// NotSingularError reports that a query expecting a singular row found more
// than one.
type NotSingularError struct {
	label string
	count int
}

func (e *NotSingularError) Error() string {
	if e.count >= 0 {
		return fmt.Sprintf("pyre: %s not singular (got %d rows, expected 1)", e.label, e.count)
	}
	return fmt.Sprintf("pyre: %s not singular", e.label)
}

// Is reports whether target matches ErrNotSingular.
func (e *NotSingularError) Is(target error) bool { return target == ErrNotSingular }

// Label returns the queried table's label.
func (e *NotSingularError) Label() string { return e.label }

// Count returns the number of rows found, or -1 if unknown.
func (e *NotSingularError) Count() int { return e.count }

// NewNotSingularError returns a NotSingularError for the given table label.
func NewNotSingularError(label string) *NotSingularError {
	return &NotSingularError{label: label, count: -1}
}

// NewNotSingularErrorWithCount returns a NotSingularError carrying the row count.
func NewNotSingularErrorWithCount(label string, count int) *NotSingularError {
	return &NotSingularError{label: label, count: count}
}

// IsNotSingular reports whether err is a NotSingularError or wraps ErrNotSingular.
func IsNotSingular(err error) bool {
	if err == nil {
		return false
	}
	var e *NotSingularError
	return errors.As(err, &e) || errors.Is(err, ErrNotSingular)
}

// ConstraintError reports a database constraint violation surfaced while
// running a generated mutation batch. It bridges dialect/sql/sqlgraph's
// driver-level classification into the package-level error model callers
// match against with IsConstraintError.
type ConstraintError struct {
	msg  string
	wrap error
}

func (e ConstraintError) Error() string { return fmt.Sprintf("pyre: constraint failed: %s", e.msg) }

// Unwrap returns the wrapped driver error.
func (e ConstraintError) Unwrap() error { return e.wrap }

// NewConstraintError wraps err, already classified as a constraint
// violation, with a descriptive message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError reports whether err is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// RollbackError wraps a failure that occurred while rolling back a
// migration transaction after an earlier statement failed.
type RollbackError struct {
	Err error
}

func (e *RollbackError) Error() string { return fmt.Sprintf("pyre: rollback failed: %v", e.Err) }

// Unwrap returns the original error that triggered the rollback.
func (e *RollbackError) Unwrap() error { return e.Err }

// AggregateError collects every error produced by a non-short-circuiting
// pass (the typechecker's schema phase, diff-level migration planning).
// Renders as a numbered list when it holds more than one error.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "pyre: no errors"
	case 1:
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("pyre: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// NewAggregateError collapses errs: nil if none are non-nil, the single
// error itself if exactly one is, otherwise an *AggregateError. Used by
// every accumulating pass in the compiler so callers can treat the result
// as a plain error when only one thing went wrong.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	switch len(filtered) {
	case 0:
		return nil
	case 1:
		return filtered[0]
	default:
		return &AggregateError{Errors: filtered}
	}
}

// CheckError is satisfied by every error kind that can appear in the
// `check --json` array: a filepath, the closed error-type tag, the source
// spans it points at, and a human-readable message.
type CheckError interface {
	error
	ErrorType() string
	Filepath() string
	Locations() []ast.Range
}

// ParsingError is returned by the parser on the first malformed token; the
// parser never recovers, so exactly one is ever produced per parse.
type ParsingError struct {
	filepath  string
	Expecting string
	Offset    int
	Location  ast.Location
}

// NewParsingError returns a ParsingError for the given filepath, reporting
// what the parser expected to find at loc.
func NewParsingError(filepath, expecting string, loc ast.Location) *ParsingError {
	return &ParsingError{filepath: filepath, Expecting: expecting, Offset: loc.Offset, Location: loc}
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("%s:%d:%d: expecting %s", e.filepath, e.Location.Line, e.Location.Column, e.Expecting)
}

// ErrorType implements CheckError.
func (e *ParsingError) ErrorType() string { return "ParsingError" }

// Filepath implements CheckError.
func (e *ParsingError) Filepath() string { return e.filepath }

// Locations implements CheckError.
func (e *ParsingError) Locations() []ast.Range {
	return []ast.Range{{Start: e.Location, End: e.Location}}
}

// TypecheckErrorKind is the closed set of typecheck failure kinds, covering
// both the schema phase and the query phase.
type TypecheckErrorKind int

const (
	UnknownType TypecheckErrorKind = iota
	UnknownField
	DuplicateRecord
	DuplicateField
	MultipleSessionDefinitions
	MissingPermissions
	MultiplePermissions
	VariantFieldTypeCollision
	LinkTargetNotUnique
	LinkFieldCountMismatch
	MigrationColumnDropped
)

// String names a TypecheckErrorKind the way it appears in `check --json`'s
// errorType field.
func (k TypecheckErrorKind) String() string {
	switch k {
	case UnknownType:
		return "UnknownType"
	case UnknownField:
		return "UnknownField"
	case DuplicateRecord:
		return "DuplicateRecord"
	case DuplicateField:
		return "DuplicateField"
	case MultipleSessionDefinitions:
		return "MultipleSessionDefinitions"
	case MissingPermissions:
		return "MissingPermissions"
	case MultiplePermissions:
		return "MultiplePermissions"
	case VariantFieldTypeCollision:
		return "VariantFieldTypeCollision"
	case LinkTargetNotUnique:
		return "LinkTargetNotUnique"
	case LinkFieldCountMismatch:
		return "LinkFieldCountMismatch"
	case MigrationColumnDropped:
		return "MigrationColumnDropped"
	default:
		return "UnknownTypecheckError"
	}
}

// TypecheckError is one error produced by the schema or query typecheck
// phases. The typechecker accumulates these into one error with
// NewAggregateError rather than bailing on the first.
type TypecheckError struct {
	Kind            TypecheckErrorKind
	filepath        string
	Message         string
	SourceLocations []ast.Range
}

// NewTypecheckError returns a TypecheckError of the given kind.
func NewTypecheckError(kind TypecheckErrorKind, filepath, message string, locations ...ast.Range) *TypecheckError {
	return &TypecheckError{Kind: kind, filepath: filepath, Message: message, SourceLocations: locations}
}

func (e *TypecheckError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.filepath, e.Kind, e.Message)
}

// ErrorType implements CheckError.
func (e *TypecheckError) ErrorType() string { return e.Kind.String() }

// Filepath implements CheckError.
func (e *TypecheckError) Filepath() string { return e.filepath }

// Locations implements CheckError.
func (e *TypecheckError) Locations() []ast.Range { return e.SourceLocations }

// IsTypecheckError reports whether err is a *TypecheckError of kind.
func IsTypecheckError(err error, kind TypecheckErrorKind) bool {
	var e *TypecheckError
	return errors.As(err, &e) && e.Kind == kind
}

// MigrationErrorKind is the closed set of migration failure kinds.
type MigrationErrorKind int

const (
	// SchemaNotFound means _pyre_schema has no rows to diff against.
	SchemaNotFound MigrationErrorKind = iota
	// MissingSchema means the declared schema could not be loaded at all.
	MissingSchema
	// TableDropped means the diff would drop a table that still has a
	// corresponding record absent from the new declared schema — lifted to
	// an error rather than silently dropped.
	TableDropped
	// ColumnDropped is TableDropped's column-level counterpart.
	ColumnDropped
	// IncompatibleModification means a column's type changed in a
	// direction the planner refuses to auto-migrate.
	IncompatibleModification
	// DangerousChange covers the remaining to_errors cases: a removed
	// record, a removed tagged variant, or any change flagged dangerous by
	// the diff that isn't already one of the more specific kinds above.
	DangerousChange
	// ApplyFailure wraps a failure returned by the database while applying
	// migration DDL or bookkeeping inserts.
	ApplyFailure
)

// String names a MigrationErrorKind.
func (k MigrationErrorKind) String() string {
	switch k {
	case SchemaNotFound:
		return "SchemaNotFound"
	case MissingSchema:
		return "MissingSchema"
	case TableDropped:
		return "TableDropped"
	case ColumnDropped:
		return "ColumnDropped"
	case IncompatibleModification:
		return "IncompatibleModification"
	case DangerousChange:
		return "DangerousChange"
	case ApplyFailure:
		return "ApplyFailure"
	default:
		return "UnknownMigrationError"
	}
}

// MigrationError is one failure from the schema diff or migration planner.
// A non-empty list of these aborts planning before any SQL is emitted; an
// ApplyFailure aborts the in-flight transaction, leaving the database
// unchanged.
type MigrationError struct {
	Kind    MigrationErrorKind
	Table   string
	Column  string
	Message string
	Err     error
}

// NewMigrationError returns a MigrationError of the given kind.
func NewMigrationError(kind MigrationErrorKind, table, message string) *MigrationError {
	return &MigrationError{Kind: kind, Table: table, Message: message}
}

// NewMigrationColumnError returns a MigrationError naming the offending column.
func NewMigrationColumnError(kind MigrationErrorKind, table, column, message string) *MigrationError {
	return &MigrationError{Kind: kind, Table: table, Column: column, Message: message}
}

// WrapMigrationError wraps a driver failure encountered while applying DDL.
func WrapMigrationError(table string, err error) *MigrationError {
	return &MigrationError{Kind: ApplyFailure, Table: table, Message: err.Error(), Err: err}
}

func (e *MigrationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("migration: %s: table %q column %q: %s", e.Kind, e.Table, e.Column, e.Message)
	}
	if e.Table != "" {
		return fmt.Sprintf("migration: %s: table %q: %s", e.Kind, e.Table, e.Message)
	}
	return fmt.Sprintf("migration: %s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying driver error, if any.
func (e *MigrationError) Unwrap() error { return e.Err }

// IsMigrationError reports whether err is a *MigrationError of kind.
func IsMigrationError(err error, kind MigrationErrorKind) bool {
	var e *MigrationError
	return errors.As(err, &e) && e.Kind == kind
}
