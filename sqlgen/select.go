// Package sqlgen lowers a typechecked query into executable SQL: bound
// statement text plus the ordered Param placeholders a caller resolves at
// execute time. Selects compile to nested JSON (one correlated subquery per
// link, folded with json_object/json_group_array) rather than a join, so a
// to-many link's own LIMIT/OFFSET apply to that link's rows instead of the
// join product.
//
// Every nested subquery writes its placeholders as raw text into an outer
// Selector's output column, which dialect/sql's Builder never sees via Arg;
// the bound values for those placeholders are threaded back up by hand so
// they still land at the right position in the final Statement.Args. This
// only preserves correct ordering for SQLite's positional "?" placeholders,
// not Postgres's numbered "$N" ones — nested selects are SQLite-only for
// now, matching the dialect the rest of sqlgen targets.
package sqlgen

import (
	"fmt"

	"github.com/pyreql/pyre/ast"
	"github.com/pyreql/pyre/dialect/sql"
	"github.com/pyreql/pyre/typecheck"
)

// Statement is one compiled unit of a query's SQL batch.
type Statement struct {
	SQL  string
	Args []any
}

// aliasCounter hands out short, deterministic table aliases ("t0", "t1", ...)
// so deeply nested selections never collide.
type aliasCounter struct{ n int }

func (a *aliasCounter) next() string {
	alias := fmt.Sprintf("t%d", a.n)
	a.n++
	return alias
}

// CompileSelect compiles a `query` operation into a single Statement whose
// one row carries one JSON column per top-level field. A query
// with exactly one top-level field renders as a direct SELECT against that
// field's root table (the simplest case's shape); more than one top-level
// field renders each as its own scalar subquery column, since a single FROM
// can only root one table.
func CompileSelect(ctx *typecheck.Context, info *typecheck.QueryInfo, q *ast.Query) (*Statement, error) {
	var topFields []ast.QueryField
	for _, tlf := range q.Fields {
		if f, ok := tlf.(ast.TopLevelField); ok {
			topFields = append(topFields, f.Field)
		}
	}
	if len(topFields) == 0 {
		return nil, fmt.Errorf("sqlgen: query %q selects nothing", q.Name)
	}

	ac := &aliasCounter{}

	if len(topFields) == 1 {
		text, args, err := buildFieldSelect(ctx, info, topFields[0], ac, aliasedFieldName(topFields[0]))
		if err != nil {
			return nil, err
		}
		return &Statement{SQL: text, Args: args}, nil
	}

	var sb fragment
	sb.writeString("SELECT ")
	for i, field := range topFields {
		if i > 0 {
			sb.writeString(", ")
		}
		text, args, err := buildFieldSelect(ctx, info, field, ac, "")
		if err != nil {
			return nil, err
		}
		sb.writeString("(" + text + ")")
		sb.args = append(sb.args, args...)
		sb.writeString(" AS " + quoteIdent(aliasedFieldName(field)))
	}
	return &Statement{SQL: sb.text, Args: sb.args}, nil
}

// fragment accumulates raw SQL text alongside the bound args its embedded
// placeholders refer to, for the cases in this file that build SQL outside
// of a single dialect/sql.Builder.
type fragment struct {
	text string
	args []any
}

func (f *fragment) writeString(s string) { f.text += s }

func aliasedFieldName(field ast.QueryField) string {
	if field.Alias != nil {
		return *field.Alias
	}
	return field.Name
}

// buildFieldSelect compiles one top-level field into a complete SELECT
// statement (always a to-many json_group_array, since a top-level field
// selects the set of matching rows regardless of how many match). When
// outputAlias is non-empty, the output column is named, producing a
// directly-runnable statement; an empty outputAlias is used when the
// caller will wrap the result as a parenthesised subquery expression
// instead.
func buildFieldSelect(ctx *typecheck.Context, info *typecheck.QueryInfo, field ast.QueryField, ac *aliasCounter, outputAlias string) (string, []any, error) {
	table, ok := ctx.Table(info.Namespace, recordNameForField(ctx, info.Namespace, field.Name))
	if !ok {
		return "", nil, fmt.Errorf("sqlgen: unknown root table for field %q", field.Name)
	}
	alias := ac.next()

	pairs, pairArgs, err := jsonPairs(ctx, table, field, ast.Select, alias, ac)
	if err != nil {
		return "", nil, err
	}

	column := sql.JSONGroupArray(sql.JSONObject(pairs...))
	if outputAlias != "" {
		column += " AS " + quoteIdent(outputAlias)
	}

	sel := sql.Select("sqlite3", column).From(table.TableName, alias)

	where, err := whereForField(ctx, table, field, ast.Select, alias)
	if err != nil {
		return "", nil, err
	}
	if where != nil {
		sel.Where(where)
	}
	applyOrderLimitOffset(sel, table, field, alias)

	text, whereArgs := sel.Query()
	return text, append(pairArgs, whereArgs...), nil
}

// recordNameForField recovers the capitalized record name a decapitalized
// query field refers to (typecheck already verified this resolves; sqlgen
// repeats the same lookup rather than threading the resolved Table back
// through QueryInfo).
func recordNameForField(ctx *typecheck.Context, namespace, fieldName string) string {
	for _, t := range ctx.Tables {
		if t.Namespace == namespace && decapitalize(t.RecordName) == fieldName {
			return t.RecordName
		}
	}
	return fieldName
}

func decapitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]+32) + s[1:]
}

// jsonPairs walks field's children, producing the alternating
// key/SQL-expression pairs JSONObject expects (a plain column reference for
// a scalar leaf, a correlated subquery expression for a nested link) plus
// the args those subquery expressions bind, in the textual order they
// appear.
func jsonPairs(ctx *typecheck.Context, table *typecheck.Table, field ast.QueryField, op ast.QueryOperation, alias string, ac *aliasCounter) ([]string, []any, error) {
	var pairs []string
	var args []any
	for _, af := range field.Fields {
		child, ok := af.(ast.ArgFieldItem)
		if !ok {
			continue
		}
		if child.Field.Name == "*" {
			for _, col := range table.Columns {
				pairs = append(pairs, col.Name, qualifiedIdent(alias, col.Name))
			}
			continue
		}

		name := aliasedFieldName(child.Field)

		if col, ok := findColumn(table, child.Field.Name); ok {
			pairs = append(pairs, name, qualifiedIdent(alias, col.Name))
			continue
		}

		link, ok := findLink(table, child.Field.Name)
		if !ok {
			return nil, nil, fmt.Errorf("sqlgen: %q is not a column or link of %q", child.Field.Name, table.TableName)
		}
		expr, linkArgs, err := buildLinkSubquery(ctx, link, child.Field, op, alias, ac)
		if err != nil {
			return nil, nil, err
		}
		pairs = append(pairs, name, expr)
		args = append(args, linkArgs...)
	}
	return pairs, args, nil
}

func findColumn(table *typecheck.Table, name string) (ast.Column, bool) {
	for _, c := range table.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ast.Column{}, false
}

func findLink(table *typecheck.Table, name string) (typecheck.ResolvedLink, bool) {
	for _, l := range table.Links {
		if l.LinkName == name {
			return l, true
		}
	}
	return typecheck.ResolvedLink{}, false
}

// buildLinkSubquery renders a correlated subquery for a linked field,
// joined on the link's local/foreign column pairs against the enclosing
// row's alias. Cardinality determines the wrapper: a link that targets a
// unique column on the foreign table yields at most one row, so it folds to
// a scalar json_object; otherwise it folds to a json_group_array.
func buildLinkSubquery(ctx *typecheck.Context, link typecheck.ResolvedLink, field ast.QueryField, op ast.QueryOperation, parentAlias string, ac *aliasCounter) (string, []any, error) {
	foreign, ok := ctx.Tables[link.ForeignKey]
	if !ok {
		return "", nil, fmt.Errorf("sqlgen: link %q targets unresolved table %q", link.LinkName, link.ForeignKey)
	}
	childAlias := ac.next()

	pairs, pairArgs, err := jsonPairs(ctx, foreign, field, op, childAlias, ac)
	if err != nil {
		return "", nil, err
	}

	toOne := foreign.Record != nil && ast.LinkedToUniqueFieldWithRecord(link.LinkDetails, foreign.Record)
	obj := sql.JSONObject(pairs...)
	column := obj
	if !toOne {
		column = sql.JSONGroupArray(obj)
	}

	sel := sql.Select("sqlite3", column).From(foreign.TableName, childAlias)

	joinOn := joinPredicate(parentAlias, link.LocalIDs, childAlias, link.Foreign.Fields)
	userWhere, err := whereForField(ctx, foreign, field, op, childAlias)
	if err != nil {
		return "", nil, err
	}
	combined := joinOn
	if userWhere != nil {
		combined = sql.And(joinOn, userWhere)
	}
	sel.Where(combined)
	applyOrderLimitOffset(sel, foreign, field, childAlias)

	text, whereArgs := sel.Query()
	return "(" + text + ")", append(pairArgs, whereArgs...), nil
}

func joinPredicate(parentAlias string, parentCols []string, childAlias string, childCols []string) sql.P {
	eqs := make([]sql.P, len(parentCols))
	for i := range parentCols {
		left := parentAlias + "." + parentCols[i]
		right := childAlias + "." + childCols[i]
		eqs[i] = columnsEqual(left, right)
	}
	if len(eqs) == 1 {
		return eqs[0]
	}
	return sql.And(eqs...)
}

func columnsEqual(left, right string) sql.P {
	return func(b *sql.Builder) {
		b.Ident(left).WriteString(" = ").Ident(right)
	}
}

// qualifiedIdent renders "alias"."column" through Builder's own quoting, so
// every identifier sqlgen emits — whether inside a WHERE predicate or
// folded into a json_object literal — is quoted the same way.
func qualifiedIdent(alias, column string) string {
	b := sql.Dialect("sqlite3")
	b.Ident(alias + "." + column)
	return b.String()
}

// whereForField ANDs the table's permission rule for op with any
// user-supplied @where on field.
func whereForField(ctx *typecheck.Context, table *typecheck.Table, field ast.QueryField, op ast.QueryOperation, alias string) (sql.P, error) {
	tableKey := table.Namespace + "." + table.RecordName
	permWhere := ctx.Permissions(tableKey, op)
	userWhere := userWhereOf(field)
	return andWheres(alias, permWhere, userWhere)
}

func userWhereOf(field ast.QueryField) *ast.WhereArg {
	for _, af := range field.Fields {
		if ai, ok := af.(ast.ArgItem); ok {
			if wc, ok := ai.Arg.Arg.(ast.WhereClauseArg); ok {
				w := wc.Where
				return &w
			}
		}
	}
	return nil
}

// applyOrderLimitOffset applies field's @sort/@limit/@offset args to sel. A
// field with no explicit @sort still orders deterministically, ascending by
// table's primary key, so nested-aggregate results have a stable row order
// rather than whatever the storage engine happens to return.
func applyOrderLimitOffset(sel *sql.Selector, table *typecheck.Table, field ast.QueryField, alias string) {
	sorted := false
	for _, af := range field.Fields {
		ai, ok := af.(ast.ArgItem)
		if !ok {
			continue
		}
		switch a := ai.Arg.Arg.(type) {
		case ast.OrderByArg:
			dir := sql.OrderAsc
			if a.Direction == ast.Desc {
				dir = sql.OrderDesc
			}
			sel.OrderBy(alias+"."+a.Field, dir)
			sorted = true
		case ast.LimitArg:
			if iv, ok := a.Value.(ast.IntValue); ok {
				sel.Limit(int(iv.Value))
			}
		case ast.OffsetArg:
			if iv, ok := a.Value.(ast.IntValue); ok {
				sel.Offset(int(iv.Value))
			}
		}
	}
	if sorted {
		return
	}
	if pk, ok := primaryKeyColumn(table); ok {
		sel.OrderBy(alias+"."+pk, sql.OrderAsc)
	}
}

// primaryKeyColumn returns table's primary key column name, if it has one.
func primaryKeyColumn(table *typecheck.Table) (string, bool) {
	for _, c := range table.Columns {
		if ast.IsPrimaryKey(c) {
			return c.Name, true
		}
	}
	return "", false
}

func quoteIdent(s string) string { return `"` + s + `"` }
