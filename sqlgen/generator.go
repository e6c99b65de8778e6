package sqlgen

import (
	"fmt"

	"github.com/pyreql/pyre/ast"
	"github.com/pyreql/pyre/typecheck"
)

// Batch is the ordered SQL a single query compiles to: one statement for a
// select, two for an update, one or two for a delete (a capturing SELECT is
// only emitted when the query requests readback fields), one for an insert.
type Batch struct {
	Operation  ast.QueryOperation
	Statements []Statement
}

// Compile dispatches q to the generator matching its operation. ctx must
// already be the Context CheckSchema built for q's schema, and info the
// QueryInfo CheckQueries returned for q's name — sqlgen trusts both and
// does not re-validate what typecheck already confirmed.
func Compile(ctx *typecheck.Context, info *typecheck.QueryInfo, q *ast.Query) (*Batch, error) {
	switch q.Operation {
	case ast.Select:
		stmt, err := CompileSelect(ctx, info, q)
		if err != nil {
			return nil, err
		}
		return &Batch{Operation: ast.Select, Statements: []Statement{*stmt}}, nil

	case ast.Insert:
		stmt, err := CompileInsert(ctx, info, q)
		if err != nil {
			return nil, err
		}
		return &Batch{Operation: ast.Insert, Statements: []Statement{*stmt}}, nil

	case ast.Update:
		stmts, err := CompileUpdate(ctx, info, q)
		if err != nil {
			return nil, err
		}
		return &Batch{Operation: ast.Update, Statements: stmts}, nil

	case ast.Delete:
		stmts, err := CompileDelete(ctx, info, q)
		if err != nil {
			return nil, err
		}
		return &Batch{Operation: ast.Delete, Statements: stmts}, nil

	default:
		return nil, fmt.Errorf("sqlgen: unknown query operation %v", q.Operation)
	}
}
