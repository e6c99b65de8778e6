package sqlgraph_test

import (
	"errors"
	"testing"

	"github.com/pyreql/pyre/dialect/sql/sqlgraph"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueConstraintError_SQLiteStringFallback(t *testing.T) {
	err := errors.New("UNIQUE constraint failed: users.email")
	assert.True(t, sqlgraph.IsUniqueConstraintError(err))
	assert.True(t, sqlgraph.IsConstraintError(err))
	assert.False(t, sqlgraph.IsForeignKeyConstraintError(err))
}

func TestIsForeignKeyConstraintError_SQLiteStringFallback(t *testing.T) {
	err := errors.New("FOREIGN KEY constraint failed")
	assert.True(t, sqlgraph.IsForeignKeyConstraintError(err))
	assert.True(t, sqlgraph.IsConstraintError(err))
	assert.False(t, sqlgraph.IsUniqueConstraintError(err))
}

func TestIsCheckConstraintError_SQLiteStringFallback(t *testing.T) {
	err := errors.New("CHECK constraint failed: age_positive")
	assert.True(t, sqlgraph.IsCheckConstraintError(err))
	assert.True(t, sqlgraph.IsConstraintError(err))
}

func TestIsConstraintError_UnrelatedErrorIsFalse(t *testing.T) {
	err := errors.New("connection reset by peer")
	assert.False(t, sqlgraph.IsConstraintError(err))
}

func TestConstraintError_WrapsAndUnwraps(t *testing.T) {
	driverErr := errors.New("UNIQUE constraint failed: users.email")
	wrapped := sqlgraph.NewConstraintError("email already registered", driverErr)

	assert.Equal(t, "email already registered", wrapped.Error())
	assert.ErrorIs(t, wrapped, driverErr)
	assert.True(t, sqlgraph.IsConstraintError(wrapped))
}

// codedError stands in for a driver error type (e.g. a Postgres pq.Error)
// that reports a SQLSTATE-style code through a Code() method rather than
// string matching.
type codedError struct{ code string }

func (e codedError) Error() string { return "driver error code " + e.code }
func (e codedError) Code() string  { return e.code }

func TestIsUniqueConstraintError_CodedDriverError(t *testing.T) {
	assert.True(t, sqlgraph.IsUniqueConstraintError(codedError{code: "23505"}))
	assert.False(t, sqlgraph.IsUniqueConstraintError(codedError{code: "23503"}))
}

func TestIsForeignKeyConstraintError_CodedDriverError(t *testing.T) {
	assert.True(t, sqlgraph.IsForeignKeyConstraintError(codedError{code: "23503"}))
}

// numberedError stands in for a MySQL-style driver error reporting a
// numeric error code through a Number() method.
type numberedError struct{ n uint16 }

func (e numberedError) Error() string  { return "mysql error" }
func (e numberedError) Number() uint16 { return e.n }

func TestIsUniqueConstraintError_NumberedDriverError(t *testing.T) {
	assert.True(t, sqlgraph.IsUniqueConstraintError(numberedError{n: 1062}))
	assert.False(t, sqlgraph.IsUniqueConstraintError(numberedError{n: 1451}))
}
