package typecheck

import (
	"fmt"

	"github.com/pyreql/pyre"
	"github.com/pyreql/pyre/ast"
)

// QueryInfo is the per-query metadata computed by CheckQueries: the
// primary namespace touched, every cross-schema namespace attached along
// the way, and the resolved type of each declared parameter.
type QueryInfo struct {
	Namespace  string
	Namespaces map[string]bool
	Variables  map[string]string
}

// CheckQueries validates every query in list against ctx, rooted at
// namespace, returning a map from query name to QueryInfo or a non-nil
// aggregate error.
func CheckQueries(ctx *Context, namespace string, list *ast.QueryList) (map[string]*QueryInfo, error) {
	results := make(map[string]*QueryInfo)
	var errs []error

	seen := make(map[string]bool)
	for _, def := range list.Queries {
		item, ok := def.(ast.QueryItem)
		if !ok {
			continue
		}
		q := item.Query
		if seen[q.Name] {
			errs = append(errs, pyre.NewTypecheckError(pyre.DuplicateField, namespace,
				fmt.Sprintf("query %q is declared more than once", q.Name), spanOf(q.Start, q.End)))
			continue
		}
		seen[q.Name] = true

		info, qerrs := checkQuery(ctx, namespace, &q)
		errs = append(errs, qerrs...)
		results[q.Name] = info
	}

	if agg := pyre.NewAggregateError(errs...); agg != nil {
		return nil, agg
	}
	return results, nil
}

func checkQuery(ctx *Context, namespace string, q *ast.Query) (*QueryInfo, []error) {
	info := &QueryInfo{
		Namespace:  namespace,
		Namespaces: map[string]bool{namespace: true},
		Variables:  make(map[string]string),
	}
	for _, arg := range q.Args {
		if arg.Type != nil {
			info.Variables[arg.Name] = *arg.Type
		}
	}

	var errs []error
	aliases := make(map[string]int)
	for _, tlf := range q.Fields {
		field, ok := tlf.(ast.TopLevelField)
		if !ok {
			continue
		}
		aliases[ast.GetAliasedName(field.Field)]++
	}
	for name, count := range aliases {
		if count > 1 {
			errs = append(errs, pyre.NewTypecheckError(pyre.DuplicateField, namespace,
				fmt.Sprintf("field %q appears more than once in query %q without distinct aliases", name, q.Name)))
		}
	}

	for _, tlf := range q.Fields {
		field, ok := tlf.(ast.TopLevelField)
		if !ok {
			continue
		}
		table := findTableByFieldName(ctx, namespace, field.Field.Name)
		if table == nil {
			errs = append(errs, pyre.NewTypecheckError(pyre.UnknownField, namespace,
				fmt.Sprintf("query %q references unknown table %q", q.Name, field.Field.Name),
				spanOf(field.Field.StartFieldName, field.Field.EndFieldName)))
			continue
		}
		if (q.Operation == ast.Update || q.Operation == ast.Delete) && table.Record != nil {
			if !fieldHasWhere(field.Field) && ast.GetPermissions(table.Record, q.Operation) == nil {
				errs = append(errs, pyre.NewTypecheckError(pyre.UnknownField, namespace,
					fmt.Sprintf("%s on %q requires a @where clause or a restricting permission rule", q.Operation, table.TableName)))
			}
		}
		if q.Operation == ast.Insert {
			errs = append(errs, checkRequiredInsertColumns(namespace, table, field.Field)...)
		}
		errs = append(errs, checkQueryField(ctx, namespace, q.Operation, table, field.Field)...)
	}

	return info, errs
}

// findTableByFieldName resolves a top-level query field to the table it
// selects from. Query fields name the record itself, decapitalised (e.g.
// `user` for `record User`), not its pluralised table name, so a select
// against it still yields an array (the field name describes the shape of
// one row, not the cardinality of the result).
func findTableByFieldName(ctx *Context, namespace, fieldName string) *Table {
	for _, t := range ctx.Tables {
		if t.Namespace == namespace && decapitalize(t.RecordName) == fieldName {
			return t
		}
	}
	return nil
}

func decapitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'A' && s[0] <= 'Z' {
		return string(s[0]+32) + s[1:]
	}
	return s
}

func checkQueryField(ctx *Context, filepath string, op ast.QueryOperation, table *Table, field ast.QueryField) []error {
	var errs []error

	if field.Set != nil {
		if !hasColumn(table, field.Name) {
			errs = append(errs, pyre.NewTypecheckError(pyre.UnknownField, filepath,
				fmt.Sprintf("set expression references unknown column %q on table %q", field.Name, table.TableName)))
		} else if lit, ok := (*field.Set).(ast.LiteralTypeValueExpr); ok {
			errs = append(errs, checkTaggedLiteral(ctx, filepath, table, field.Name, lit)...)
		}
	}

	childAliases := make(map[string]int)
	for _, af := range field.Fields {
		if child, ok := af.(ast.ArgFieldItem); ok {
			childAliases[ast.GetAliasedName(child.Field)]++
		}
	}
	for name, count := range childAliases {
		if count > 1 {
			errs = append(errs, pyre.NewTypecheckError(pyre.DuplicateField, filepath,
				fmt.Sprintf("field %q appears more than once under %q without distinct aliases", name, field.Name)))
		}
	}

	for _, af := range field.Fields {
		switch f := af.(type) {
		case ast.ArgFieldItem:
			errs = append(errs, checkNestedField(ctx, filepath, op, table, f.Field)...)
		case ast.ArgItem:
			errs = append(errs, checkArg(ctx, filepath, table, f.Arg.Arg)...)
		}
	}

	return errs
}

func checkNestedField(ctx *Context, filepath string, op ast.QueryOperation, table *Table, field ast.QueryField) []error {
	if field.Name == "*" {
		return nil // sqlgen's jsonPairs expands "*" into every scalar column of table.
	}
	if hasColumn(table, field.Name) {
		return checkQueryField(ctx, filepath, op, table, field)
	}
	for _, link := range table.Links {
		if link.LinkName == field.Name {
			foreign, ok := ctx.Tables[link.ForeignKey]
			if !ok {
				return nil
			}
			return checkQueryField(ctx, filepath, op, foreign, field)
		}
	}
	return []error{pyre.NewTypecheckError(pyre.UnknownField, filepath,
		fmt.Sprintf("field %q is not a column or link of table %q", field.Name, table.TableName),
		spanOf(field.StartFieldName, field.EndFieldName))}
}

func checkArg(ctx *Context, filepath string, table *Table, arg ast.Arg) []error {
	switch a := arg.(type) {
	case ast.OrderByArg:
		if !hasColumn(table, a.Field) {
			return []error{pyre.NewTypecheckError(pyre.UnknownField, filepath,
				fmt.Sprintf("@sort references unknown column %q on table %q", a.Field, table.TableName))}
		}
	case ast.WhereClauseArg:
		return validateWhereAgainstTable(ctx, filepath, a.Where, table)
	}
	return nil
}

func fieldHasWhere(field ast.QueryField) bool {
	for _, af := range field.Fields {
		if ai, ok := af.(ast.ArgItem); ok {
			if _, ok := ai.Arg.Arg.(ast.WhereClauseArg); ok {
				return true
			}
		}
	}
	return false
}

// checkRequiredInsertColumns reports a missing required field for every
// non-nullable column with no default and no primary-key auto-generation
// that the insert's set-block leaves unassigned.
func checkRequiredInsertColumns(filepath string, table *Table, field ast.QueryField) []error {
	assigned := make(map[string]bool)
	for _, af := range field.Fields {
		if child, ok := af.(ast.ArgFieldItem); ok && child.Field.Set != nil {
			assigned[child.Field.Name] = true
		}
	}

	var errs []error
	for _, col := range table.Columns {
		if col.Nullable || assigned[col.Name] || ast.HasDefaultValue(col) || ast.IsPrimaryKey(col) {
			continue
		}
		errs = append(errs, pyre.NewTypecheckError(pyre.UnknownField, filepath,
			fmt.Sprintf("insert into %q is missing required column %q", table.TableName, col.Name)))
	}
	return errs
}

// checkTaggedLiteral validates a tagged-union literal assigned to columnName
// via `Set`: the literal's variant name must exist on the column's declared
// type, and every non-nullable, no-default field of that specific variant
// must appear among the literal's assignments.
func checkTaggedLiteral(ctx *Context, filepath string, table *Table, columnName string, lit ast.LiteralTypeValueExpr) []error {
	col := findTableColumn(table, columnName)
	if col == nil {
		return nil
	}
	tt, ok := ctx.Type(table.Namespace, col.Type)
	if !ok {
		return nil
	}

	var variant *ast.Variant
	for i := range tt.Variants {
		if tt.Variants[i].Name == lit.Details.Name {
			variant = &tt.Variants[i]
			break
		}
	}
	if variant == nil {
		return []error{pyre.NewTypecheckError(pyre.UnknownField, filepath,
			fmt.Sprintf("%q is not a variant of type %q", lit.Details.Name, tt.Name), lit.Span)}
	}

	assigned := make(map[string]bool)
	for _, fa := range lit.Details.Fields {
		assigned[fa.Name] = true
	}

	var errs []error
	for _, vcol := range ast.CollectColumns(variant.Fields) {
		if vcol.Nullable || assigned[vcol.Name] || ast.HasDefaultValue(vcol) || ast.IsPrimaryKey(vcol) {
			continue
		}
		errs = append(errs, pyre.NewTypecheckError(pyre.UnknownField, filepath,
			fmt.Sprintf("variant %q of %q is missing required field %q", variant.Name, tt.Name, vcol.Name)))
	}
	return errs
}

func findTableColumn(table *Table, name string) *ast.Column {
	for i := range table.Columns {
		if table.Columns[i].Name == name {
			return &table.Columns[i]
		}
	}
	return nil
}
