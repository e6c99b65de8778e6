package pyre_test

import (
	"errors"
	"testing"

	"github.com/pyreql/pyre"
	"github.com/pyreql/pyre/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFoundError(t *testing.T) {
	t.Run("without id", func(t *testing.T) {
		err := pyre.NewNotFoundError("user")
		assert.Equal(t, "pyre: user not found", err.Error())
		assert.True(t, errors.Is(err, pyre.ErrNotFound))
		assert.True(t, pyre.IsNotFound(err))
	})

	t.Run("with id", func(t *testing.T) {
		err := pyre.NewNotFoundErrorWithID("user", 42)
		assert.Equal(t, "pyre: user not found (id=42)", err.Error())
		assert.Equal(t, 42, err.ID())
	})

	t.Run("not a NotFoundError", func(t *testing.T) {
		assert.False(t, pyre.IsNotFound(errors.New("boom")))
		assert.False(t, pyre.IsNotFound(nil))
	})
}

func TestNotSingularError(t *testing.T) {
	err := pyre.NewNotSingularErrorWithCount("post", 3)
	assert.Equal(t, "pyre: post not singular (got 3 rows, expected 1)", err.Error())
	assert.True(t, errors.Is(err, pyre.ErrNotSingular))
	assert.True(t, pyre.IsNotSingular(err))
	assert.Equal(t, 3, err.Count())
}

func TestConstraintError(t *testing.T) {
	wrapped := errors.New("UNIQUE constraint failed: users.email")
	err := pyre.NewConstraintError("users.email must be unique", wrapped)

	assert.True(t, pyre.IsConstraintError(err))
	assert.ErrorIs(t, err, wrapped)
	assert.Contains(t, err.Error(), "users.email must be unique")
}

func TestAggregateError(t *testing.T) {
	t.Run("no errors", func(t *testing.T) {
		assert.Nil(t, pyre.NewAggregateError())
		assert.Nil(t, pyre.NewAggregateError(nil, nil))
	})

	t.Run("single error", func(t *testing.T) {
		e := errors.New("boom")
		got := pyre.NewAggregateError(e)
		assert.Same(t, e, got)
	})

	t.Run("multiple errors", func(t *testing.T) {
		e1 := errors.New("first")
		e2 := errors.New("second")
		got := pyre.NewAggregateError(e1, e2)

		var agg *pyre.AggregateError
		require.ErrorAs(t, got, &agg)
		assert.Len(t, agg.Errors, 2)
		assert.Contains(t, got.Error(), "first")
		assert.Contains(t, got.Error(), "second")
	})

	t.Run("mixed nil and errors", func(t *testing.T) {
		e1 := errors.New("only this one")
		got := pyre.NewAggregateError(nil, e1, nil)
		assert.Same(t, e1, got)
	})
}

func TestParsingError(t *testing.T) {
	loc := ast.Location{Offset: 12, Line: 2, Column: 4}
	err := pyre.NewParsingError("schema.pyre", "record or type", loc)

	assert.Equal(t, "ParsingError", err.ErrorType())
	assert.Equal(t, "schema.pyre", err.Filepath())
	assert.Equal(t, []ast.Range{{Start: loc, End: loc}}, err.Locations())
	assert.Contains(t, err.Error(), "expecting record or type")
}

func TestTypecheckError(t *testing.T) {
	span := ast.Range{Start: ast.Location{Line: 3}, End: ast.Location{Line: 3, Column: 10}}
	err := pyre.NewTypecheckError(pyre.MissingPermissions, "schema.pyre", "record Post has no permission directive", span)

	assert.Equal(t, "MissingPermissions", err.ErrorType())
	assert.True(t, pyre.IsTypecheckError(err, pyre.MissingPermissions))
	assert.False(t, pyre.IsTypecheckError(err, pyre.DuplicateRecord))
	assert.Equal(t, []ast.Range{span}, err.Locations())
}

func TestMigrationError(t *testing.T) {
	t.Run("table-level", func(t *testing.T) {
		err := pyre.NewMigrationError(pyre.TableDropped, "posts", "table posts exists in the database but not in the declared schema")
		assert.True(t, pyre.IsMigrationError(err, pyre.TableDropped))
		assert.Contains(t, err.Error(), `table "posts"`)
	})

	t.Run("column-level", func(t *testing.T) {
		err := pyre.NewMigrationColumnError(pyre.ColumnDropped, "posts", "legacyTitle", "column dropped from declared schema")
		assert.Contains(t, err.Error(), `column "legacyTitle"`)
	})

	t.Run("wraps a driver failure", func(t *testing.T) {
		driverErr := errors.New("disk I/O error")
		err := pyre.WrapMigrationError("posts", driverErr)
		assert.True(t, pyre.IsMigrationError(err, pyre.ApplyFailure))
		assert.ErrorIs(t, err, driverErr)
	})
}

func TestSentinelErrors(t *testing.T) {
	assert.EqualError(t, pyre.ErrNotFound, "pyre: entity not found")
	assert.EqualError(t, pyre.ErrNotSingular, "pyre: entity not singular")
	assert.EqualError(t, pyre.ErrTxStarted, "pyre: cannot start a transaction within a transaction")
}

func BenchmarkErrors(b *testing.B) {
	b.Run("NewNotFoundError", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = pyre.NewNotFoundError("user")
		}
	})

	b.Run("IsNotFound", func(b *testing.B) {
		err := pyre.NewNotFoundError("user")
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = pyre.IsNotFound(err)
		}
	})

	b.Run("NewAggregateError_multiple", func(b *testing.B) {
		e1, e2, e3 := errors.New("a"), errors.New("b"), errors.New("c")
		for i := 0; i < b.N; i++ {
			_ = pyre.NewAggregateError(e1, e2, e3)
		}
	})
}
