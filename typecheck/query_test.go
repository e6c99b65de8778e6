package typecheck_test

import (
	"testing"

	"github.com/pyreql/pyre"
	"github.com/pyreql/pyre/ast"
	"github.com/pyreql/pyre/typecheck"
	"github.com/stretchr/testify/require"
)

func buildUsersContext(t *testing.T) *typecheck.Context {
	t.Helper()
	db := oneSchema(publicRecord("User",
		ast.ColumnField{Column: ast.Column{Name: "name", Type: "String"}},
	))
	ctx, err := typecheck.CheckSchema(db)
	require.NoError(t, err)
	return ctx
}

func selectQuery(name string, fields ...ast.QueryField) *ast.QueryList {
	tlfs := make([]ast.TopLevelQueryField, len(fields))
	for i, f := range fields {
		tlfs[i] = ast.TopLevelField{Field: f}
	}
	return &ast.QueryList{Queries: []ast.QueryDef{
		ast.QueryItem{Query: ast.Query{Operation: ast.Select, Name: name, Fields: tlfs}},
	}}
}

func argField(name string) ast.ArgField { return ast.ArgFieldItem{Field: ast.QueryField{Name: name}} }

func TestCheckQueries_ResolvesSingularRecordFieldName(t *testing.T) {
	ctx := buildUsersContext(t)

	list := selectQuery("GetUsers", ast.QueryField{
		Name:   "user",
		Fields: []ast.ArgField{argField("id"), argField("name")},
	})

	infos, err := typecheck.CheckQueries(ctx, ast.DefaultSchemaName, list)
	require.NoError(t, err)
	require.Contains(t, infos, "GetUsers")
}

func TestCheckQueries_UnknownTopLevelField(t *testing.T) {
	ctx := buildUsersContext(t)

	list := selectQuery("GetWidgets", ast.QueryField{Name: "widget"})

	_, err := typecheck.CheckQueries(ctx, ast.DefaultSchemaName, list)
	require.Error(t, err)
	require.True(t, pyre.IsTypecheckError(err, pyre.UnknownField))
}

func TestCheckQueries_UnknownNestedColumn(t *testing.T) {
	ctx := buildUsersContext(t)

	list := selectQuery("GetUsers", ast.QueryField{
		Name:   "user",
		Fields: []ast.ArgField{argField("id"), argField("nickname")},
	})

	_, err := typecheck.CheckQueries(ctx, ast.DefaultSchemaName, list)
	require.Error(t, err)
	require.True(t, pyre.IsTypecheckError(err, pyre.UnknownField))
}

func TestCheckQueries_DuplicateQueryName(t *testing.T) {
	ctx := buildUsersContext(t)

	list := &ast.QueryList{Queries: []ast.QueryDef{
		ast.QueryItem{Query: ast.Query{Operation: ast.Select, Name: "GetUsers", Fields: []ast.TopLevelQueryField{
			ast.TopLevelField{Field: ast.QueryField{Name: "user"}},
		}}},
		ast.QueryItem{Query: ast.Query{Operation: ast.Select, Name: "GetUsers", Fields: []ast.TopLevelQueryField{
			ast.TopLevelField{Field: ast.QueryField{Name: "user"}},
		}}},
	}}

	_, err := typecheck.CheckQueries(ctx, ast.DefaultSchemaName, list)
	require.Error(t, err)
	require.True(t, pyre.IsTypecheckError(err, pyre.DuplicateField))
}

func TestCheckQueries_InsertMissingRequiredColumn(t *testing.T) {
	ctx := buildUsersContext(t)

	list := &ast.QueryList{Queries: []ast.QueryDef{
		ast.QueryItem{Query: ast.Query{Operation: ast.Insert, Name: "CreateUser", Fields: []ast.TopLevelQueryField{
			ast.TopLevelField{Field: ast.QueryField{Name: "user"}},
		}}},
	}}

	_, err := typecheck.CheckQueries(ctx, ast.DefaultSchemaName, list)
	require.Error(t, err)
	require.True(t, pyre.IsTypecheckError(err, pyre.UnknownField))
}

func TestCheckQueries_UpdateRequiresWhereOrPermission(t *testing.T) {
	ctx := buildUsersContext(t)

	list := &ast.QueryList{Queries: []ast.QueryDef{
		ast.QueryItem{Query: ast.Query{Operation: ast.Update, Name: "RenameUser", Fields: []ast.TopLevelQueryField{
			ast.TopLevelField{Field: ast.QueryField{Name: "user"}},
		}}},
	}}

	// publicRecord's @public permission restricts nothing, so an update with
	// no @where would touch every row unconditionally; that combination is
	// rejected.
	_, err := typecheck.CheckQueries(ctx, ast.DefaultSchemaName, list)
	require.Error(t, err)
	require.True(t, pyre.IsTypecheckError(err, pyre.UnknownField))
}

func TestCheckQueries_UpdateWithWherePasses(t *testing.T) {
	ctx := buildUsersContext(t)

	list := &ast.QueryList{Queries: []ast.QueryDef{
		ast.QueryItem{Query: ast.Query{Operation: ast.Update, Name: "RenameUser", Fields: []ast.TopLevelQueryField{
			ast.TopLevelField{Field: ast.QueryField{Name: "user", Fields: []ast.ArgField{
				ast.ArgItem{Arg: ast.LocatedArg{Arg: ast.WhereClauseArg{Where: ast.ColumnWhere{
					Name: "name", Operator: ast.Equal, Value: ast.StringValue{Value: "a"},
				}}}},
			}}},
		}}}},
	}

	_, err := typecheck.CheckQueries(ctx, ast.DefaultSchemaName, list)
	require.NoError(t, err)
}

func buildTaggedStatusContext(t *testing.T) *typecheck.Context {
	t.Helper()
	tagged := ast.TaggedDefinition{Name: "Status", Variants: []ast.Variant{
		{Name: "Active"},
		{Name: "Special", Fields: []ast.Field{
			ast.ColumnField{Column: ast.Column{Name: "reason", Type: "String"}},
		}},
	}}
	db := oneSchema(tagged, publicRecord("Item",
		ast.ColumnField{Column: ast.Column{Name: "status", Type: "Status"}},
	))
	ctx, err := typecheck.CheckSchema(db)
	require.NoError(t, err)
	return ctx
}

func setField(name string, value ast.QueryValue) ast.ArgField {
	return ast.ArgFieldItem{Field: ast.QueryField{Name: name, Set: &value}}
}

func createItemQuery(setArg ast.ArgField) *ast.QueryList {
	return &ast.QueryList{Queries: []ast.QueryDef{
		ast.QueryItem{Query: ast.Query{Operation: ast.Insert, Name: "CreateItem", Fields: []ast.TopLevelQueryField{
			ast.TopLevelField{Field: ast.QueryField{Name: "item", Fields: []ast.ArgField{setArg}}},
		}}},
	}}
}

func TestCheckQueries_SetTaggedLiteralUnknownVariant(t *testing.T) {
	ctx := buildTaggedStatusContext(t)

	list := createItemQuery(setField("status", ast.LiteralTypeValueExpr{
		Details: ast.LiteralTypeValueDetails{Name: "Bogus"},
	}))

	_, err := typecheck.CheckQueries(ctx, ast.DefaultSchemaName, list)
	require.Error(t, err)
	require.True(t, pyre.IsTypecheckError(err, pyre.UnknownField))
}

func TestCheckQueries_SetTaggedLiteralMissingRequiredField(t *testing.T) {
	ctx := buildTaggedStatusContext(t)

	list := createItemQuery(setField("status", ast.LiteralTypeValueExpr{
		Details: ast.LiteralTypeValueDetails{Name: "Special"},
	}))

	_, err := typecheck.CheckQueries(ctx, ast.DefaultSchemaName, list)
	require.Error(t, err)
	require.True(t, pyre.IsTypecheckError(err, pyre.UnknownField))
}

func TestCheckQueries_SetTaggedLiteralComplete(t *testing.T) {
	ctx := buildTaggedStatusContext(t)

	list := createItemQuery(setField("status", ast.LiteralTypeValueExpr{
		Details: ast.LiteralTypeValueDetails{
			Name:   "Special",
			Fields: []ast.FieldAssignment{{Name: "reason", Value: ast.StringValue{Value: "x"}}},
		},
	}))

	_, err := typecheck.CheckQueries(ctx, ast.DefaultSchemaName, list)
	require.NoError(t, err)
}
