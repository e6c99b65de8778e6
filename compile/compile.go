// Package compile ties the parser, typechecker and SQL generator into the
// two entry points a caller actually needs: turn one schema source file
// into a typecheck.Context, then turn one named query in a query source
// file into the sqlgen.Batch that runs it. It lives outside the root pyre
// package because typecheck, parser and sqlgen all import pyre for its
// structured error types — pyre importing them back would be a cycle.
package compile

import (
	"context"
	"fmt"

	"github.com/pyreql/pyre/ast"
	"github.com/pyreql/pyre/dialect"
	"github.com/pyreql/pyre/dialect/sql"
	"github.com/pyreql/pyre/parser"
	"github.com/pyreql/pyre/sqlgen"
	"github.com/pyreql/pyre/typecheck"
)

// Compile parses and typechecks one schema source file and returns the
// Context every query against it compiles with. The schema is given a
// single, default namespace; cross-schema setups assemble their own
// *ast.Database and call typecheck.CheckSchema directly.
func Compile(filepath, src string) (*typecheck.Context, error) {
	file, session, err := parser.ParseSchema(filepath, src)
	if err != nil {
		return nil, err
	}
	db := &ast.Database{Schemas: []*ast.Schema{{
		Namespace: ast.DefaultSchemaName,
		Session:   session,
		Files:     []*ast.SchemaFile{file},
	}}}
	return typecheck.CheckSchema(db)
}

// CompileQuery parses every query in src, typechecks queryName against
// ctx, and compiles it to a sqlgen.Batch. namespace must match the schema
// ctx was built from.
func CompileQuery(ctx *typecheck.Context, namespace, filepath, src, queryName string) (*sqlgen.Batch, error) {
	list, err := parser.ParseQueries(filepath, src)
	if err != nil {
		return nil, err
	}

	infos, err := typecheck.CheckQueries(ctx, namespace, list)
	if err != nil {
		return nil, err
	}

	info, ok := infos[queryName]
	if !ok {
		return nil, fmt.Errorf("compile: query %q not found in %s", queryName, filepath)
	}

	for _, def := range list.Queries {
		item, ok := def.(ast.QueryItem)
		if !ok || item.Query.Name != queryName {
			continue
		}
		return sqlgen.Compile(ctx, info, &item.Query)
	}
	return nil, fmt.Errorf("compile: query %q not found in %s", queryName, filepath)
}

// DriverOptions controls the observability wrapping OpenDriver applies to
// the connection it opens. At most one of Stats or Debug takes effect;
// Debug wins if both are set, since a caller chasing down a specific slow
// statement wants to see every statement logged rather than summarized.
type DriverOptions struct {
	Stats bool
	Debug bool

	StatsOpts []sql.StatsOption
	DebugOpts []sql.DebugOption
}

// OpenDriver opens a database connection for driverName/source and wraps it
// according to opts: StatsDriver to accumulate query/exec counts and flag
// slow statements, or DebugDriver to log every statement as it runs. Neither
// is mutually exclusive with the other at the type level, but OpenDriver
// only ever applies one, since both wrap the same *sql.Driver independently
// rather than composing.
func OpenDriver(driverName, source string, opts DriverOptions) (dialect.Driver, error) {
	drv, err := sql.Open(driverName, source)
	if err != nil {
		return nil, fmt.Errorf("compile: open %s: %w", driverName, err)
	}
	switch {
	case opts.Debug:
		return sql.NewDebugDriver(drv, opts.DebugOpts...), nil
	case opts.Stats:
		return sql.NewStatsDriver(drv, opts.StatsOpts...), nil
	default:
		return drv, nil
	}
}

// RunBatch executes batch's statements in order against drv and returns the
// JSON payload of its final statement (the row(s) a select, or a mutation's
// readback select, produces). An insert's single RETURNING statement has no
// such payload column, so its final statement never carries one.
func RunBatch(ctx context.Context, drv dialect.ExecQuerier, batch *sqlgen.Batch) (string, error) {
	stmts := make([]sql.Statement, len(batch.Statements))
	for i, s := range batch.Statements {
		stmts[i] = sql.Statement{
			SQL:     s.SQL,
			Args:    s.Args,
			Include: i == len(batch.Statements)-1 && batch.Operation != ast.Insert,
		}
	}
	return sql.RunBatch(ctx, drv, stmts)
}
