package sqlgen

import (
	"fmt"

	"github.com/pyreql/pyre/ast"
	"github.com/pyreql/pyre/dialect/sql"
	"github.com/pyreql/pyre/typecheck"
)

// CompileInsert compiles an `insert` operation into a single Statement:
// `INSERT INTO "table"(cols...) VALUES (...) RETURNING <requested fields>`.
// A set-block field whose value is a tagged-variant literal expands into
// the discriminator column plus one `<col>__<field>` column per field the
// type shares across variants; a plain scalar or `$var`/`Session.field`
// value maps straight to its column.
func CompileInsert(ctx *typecheck.Context, info *typecheck.QueryInfo, q *ast.Query) (*Statement, error) {
	field, table, err := rootFieldAndTable(ctx, info, q)
	if err != nil {
		return nil, err
	}

	var columns []string
	var values []any
	for _, af := range field.Fields {
		child, ok := af.(ast.ArgFieldItem)
		if !ok || child.Field.Set == nil {
			continue
		}
		cols, vals, err := expandSetExpression(ctx, table, child.Field.Name, *child.Field.Set)
		if err != nil {
			return nil, err
		}
		columns = append(columns, cols...)
		values = append(values, vals...)
	}

	ib := sql.InsertInto("sqlite3", table.TableName).Columns(columns...)
	readback := readbackExprs(table, field)
	if len(readback) > 0 {
		ib.Returning(readback...)
	}
	text, args := ib.Values(values...)
	return &Statement{SQL: text, Args: args}, nil
}

// expandSetExpression lowers one `column = value` set-block entry into its
// physical column/value pairs: one pair for a plain value, or a
// discriminator plus one nullable pair per shared field name for a
// tagged-variant literal.
func expandSetExpression(ctx *typecheck.Context, table *typecheck.Table, columnName string, value ast.QueryValue) ([]string, []any, error) {
	lit, ok := value.(ast.LiteralTypeValueExpr)
	if !ok {
		v, err := valueArg(value)
		if err != nil {
			return nil, nil, err
		}
		return []string{columnName}, []any{v}, nil
	}

	col, ok := findColumn(table, columnName)
	if !ok {
		return nil, nil, fmt.Errorf("sqlgen: set expression assigns unknown column %q", columnName)
	}
	tt, ok := ctx.Type(table.Namespace, col.Type)
	if !ok {
		return nil, nil, fmt.Errorf("sqlgen: column %q is not a tagged-union type, cannot assign variant literal %q", columnName, lit.Details.Name)
	}

	assigned := make(map[string]ast.QueryValue, len(lit.Details.Fields))
	for _, fa := range lit.Details.Fields {
		assigned[fa.Name] = fa.Value
	}

	cols := []string{columnName}
	vals := []any{lit.Details.Name}
	for _, fieldName := range sortedKeys(tt.Fields) {
		physical := columnName + "__" + fieldName
		cols = append(cols, physical)
		if v, ok := assigned[fieldName]; ok {
			arg, err := valueArg(v)
			if err != nil {
				return nil, nil, err
			}
			vals = append(vals, arg)
		} else {
			vals = append(vals, nil)
		}
	}
	return cols, vals, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// readbackExprs returns the plain (unassigned) column fields a mutation's
// top-level field requests back, each as its bare column name. A
// tagged-union field yields only its discriminator column; its
// `<col>__<field>` columns are not read back and no json_object fold is
// built for it.
func readbackExprs(table *typecheck.Table, field ast.QueryField) []string {
	var exprs []string
	for _, af := range field.Fields {
		child, ok := af.(ast.ArgFieldItem)
		if !ok || child.Field.Set != nil {
			continue
		}
		col, ok := findColumn(table, child.Field.Name)
		if !ok {
			continue
		}
		exprs = append(exprs, col.Name)
	}
	return exprs
}

// CompileUpdate compiles an `update` operation into two Statements: the
// UPDATE itself (columns named in the set-block only), followed
// by a SELECT re-reading the affected rows filtered by the same
// user-supplied @where ANDed with the table's Select permission, so a
// caller can never observe a row through an update's response that their
// own session could not otherwise select.
func CompileUpdate(ctx *typecheck.Context, info *typecheck.QueryInfo, q *ast.Query) ([]Statement, error) {
	field, table, err := rootFieldAndTable(ctx, info, q)
	if err != nil {
		return nil, err
	}
	alias := table.TableName

	b := sql.Dialect("sqlite3")
	b.WriteString("UPDATE ")
	b.Ident(table.TableName)
	b.WriteString(" SET ")
	first := true
	for _, af := range field.Fields {
		child, ok := af.(ast.ArgFieldItem)
		if !ok || child.Field.Set == nil {
			continue
		}
		cols, vals, err := expandSetExpression(ctx, table, child.Field.Name, *child.Field.Set)
		if err != nil {
			return nil, err
		}
		for i, col := range cols {
			if !first {
				b.WriteString(", ")
			}
			first = false
			b.Ident(col).WriteString(" = ").Arg(vals[i])
		}
	}

	where, err := whereForUnaliasedField(ctx, table, field, ast.Update, table.TableName)
	if err != nil {
		return nil, err
	}
	if where != nil {
		b.WriteString(" WHERE ")
		where(b)
	}

	selectText, selectArgs, err := buildScalarReadback(ctx, table, field, ast.Select, alias)
	if err != nil {
		return nil, err
	}

	return []Statement{
		{SQL: b.String(), Args: b.Args()},
		{SQL: selectText, Args: selectArgs},
	}, nil
}

// CompileDelete compiles a `delete` operation into a SELECT capturing the
// rows about to be removed (when the query requests any readback fields)
// followed by the DELETE itself, both filtered by the same predicate — user
// @where ANDed with the table's Delete permission.
func CompileDelete(ctx *typecheck.Context, info *typecheck.QueryInfo, q *ast.Query) ([]Statement, error) {
	field, table, err := rootFieldAndTable(ctx, info, q)
	if err != nil {
		return nil, err
	}

	var statements []Statement
	if len(readbackExprs(table, field)) > 0 {
		text, args, err := buildScalarReadback(ctx, table, field, ast.Delete, table.TableName)
		if err != nil {
			return nil, err
		}
		statements = append(statements, Statement{SQL: text, Args: args})
	}

	b := sql.Dialect("sqlite3")
	b.WriteString("DELETE FROM ")
	b.Ident(table.TableName)
	where, err := whereForUnaliasedField(ctx, table, field, ast.Delete, table.TableName)
	if err != nil {
		return nil, err
	}
	if where != nil {
		b.WriteString(" WHERE ")
		where(b)
	}
	statements = append(statements, Statement{SQL: b.String(), Args: b.Args()})
	return statements, nil
}

// buildScalarReadback renders a flat (no nested links) row fold for a
// mutation's response: `SELECT json_group_array(json_object(...)) AS
// "name" FROM "table" AS "alias" WHERE (permission_where[op]) AND
// (user_where)`.
func buildScalarReadback(ctx *typecheck.Context, table *typecheck.Table, field ast.QueryField, op ast.QueryOperation, alias string) (string, []any, error) {
	var pairs []string
	for _, af := range field.Fields {
		child, ok := af.(ast.ArgFieldItem)
		if !ok {
			continue
		}
		col, ok := findColumn(table, child.Field.Name)
		if !ok {
			continue
		}
		pairs = append(pairs, col.Name, qualifiedIdent(alias, col.Name))
	}

	column := sql.JSONGroupArray(sql.JSONObject(pairs...)) + " AS " + quoteIdent(aliasedFieldName(field))
	sel := sql.Select("sqlite3", column).From(table.TableName, alias)

	where, err := whereForField(ctx, table, field, op, alias)
	if err != nil {
		return "", nil, err
	}
	if where != nil {
		sel.Where(where)
	}
	text, args := sel.Query()
	return text, args, nil
}

// whereForUnaliasedField is whereForField with the bare table name standing
// in for an alias: UPDATE/DELETE have no FROM clause to alias, but
// "table.column" qualifies a bare column exactly as well as "alias.column"
// would.
func whereForUnaliasedField(ctx *typecheck.Context, table *typecheck.Table, field ast.QueryField, op ast.QueryOperation, tableName string) (sql.P, error) {
	return whereForField(ctx, table, field, op, tableName)
}

// rootFieldAndTable resolves a mutation's single top-level field and the
// Table it targets.
func rootFieldAndTable(ctx *typecheck.Context, info *typecheck.QueryInfo, q *ast.Query) (ast.QueryField, *typecheck.Table, error) {
	for _, tlf := range q.Fields {
		f, ok := tlf.(ast.TopLevelField)
		if !ok {
			continue
		}
		table, ok := ctx.Table(info.Namespace, recordNameForField(ctx, info.Namespace, f.Field.Name))
		if !ok {
			return ast.QueryField{}, nil, fmt.Errorf("sqlgen: unknown table for field %q", f.Field.Name)
		}
		return f.Field, table, nil
	}
	return ast.QueryField{}, nil, fmt.Errorf("sqlgen: query %q has no top-level field", q.Name)
}
