package sqlgen_test

import (
	"strings"
	"testing"

	"github.com/pyreql/pyre/ast"
	"github.com/pyreql/pyre/sqlgen"
	"github.com/pyreql/pyre/typecheck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idColumn() ast.Field {
	return ast.ColumnField{Column: ast.Column{Name: "id", Type: "Int", Directives: []ast.ColumnDirective{ast.PrimaryKeyDirective{}}}}
}

func publicRecord(name string, fields ...ast.Field) ast.RecordDefinition {
	all := append([]ast.Field{idColumn()}, fields...)
	all = append(all, ast.FieldDirectiveField{Directive: ast.PermissionsDirective{Details: ast.StarPermission{}}})
	return ast.RecordDefinition{Name: name, Fields: all}
}

func recordWithPermission(name string, perm ast.PermissionDetails, fields ...ast.Field) ast.RecordDefinition {
	all := append([]ast.Field{idColumn()}, fields...)
	all = append(all, ast.FieldDirectiveField{Directive: ast.PermissionsDirective{Details: perm}})
	return ast.RecordDefinition{Name: name, Fields: all}
}

func col(name, typ string) ast.Field {
	return ast.ColumnField{Column: ast.Column{Name: name, Type: typ}}
}

func oneSchema(defs ...ast.Definition) *ast.Database {
	return &ast.Database{Schemas: []*ast.Schema{
		{Namespace: ast.DefaultSchemaName, Files: []*ast.SchemaFile{{Path: "schema.pyre", Definitions: defs}}},
	}}
}

func argField(name string) ast.ArgField { return ast.ArgFieldItem{Field: ast.QueryField{Name: name}} }

func nestedField(name string, children ...ast.ArgField) ast.ArgField {
	return ast.ArgFieldItem{Field: ast.QueryField{Name: name, Fields: children}}
}

func selectList(name string, root ast.QueryField) *ast.QueryList {
	return &ast.QueryList{Queries: []ast.QueryDef{
		ast.QueryItem{Query: ast.Query{Operation: ast.Select, Name: name, Fields: []ast.TopLevelQueryField{
			ast.TopLevelField{Field: root},
		}}},
	}}
}

func TestCompileSelect_SimpleRecord(t *testing.T) {
	db := oneSchema(publicRecord("User", col("name", "String")))
	ctx, err := typecheck.CheckSchema(db)
	require.NoError(t, err)

	list := selectList("GetUsers", ast.QueryField{Name: "user", Fields: []ast.ArgField{argField("id"), argField("name")}})
	infos, err := typecheck.CheckQueries(ctx, ast.DefaultSchemaName, list)
	require.NoError(t, err)

	q := list.Queries[0].(ast.QueryItem).Query
	batch, err := sqlgen.Compile(ctx, infos["GetUsers"], &q)
	require.NoError(t, err)
	require.Len(t, batch.Statements, 1)

	sql := batch.Statements[0].SQL
	assert.True(t, strings.HasPrefix(sql, "SELECT json_group_array(json_object("))
	assert.Contains(t, sql, `'id', "t0"."id"`)
	assert.Contains(t, sql, `'name', "t0"."name"`)
	assert.Contains(t, sql, `FROM "users" AS "t0"`)
	assert.Contains(t, sql, `AS "user"`)
}

func TestCompileSelect_PermissionAndWhereCombine(t *testing.T) {
	perm := ast.OnOperationPermission{Rules: []ast.PermissionOnOperation{{
		Operations: []ast.QueryOperation{ast.Select},
		Where: ast.ColumnWhere{
			Name: "authorId", Operator: ast.Equal,
			Value: ast.VariableValue{Details: ast.VariableDetails{Name: "Session.userId", SessionField: strPtr("userId")}},
		},
	}}}
	db := oneSchema(recordWithPermission("Post", perm, col("authorId", "Int"), col("title", "String")))
	ctx, err := typecheck.CheckSchema(db)
	require.NoError(t, err)

	list := selectList("GetPosts", ast.QueryField{
		Name: "post",
		Fields: []ast.ArgField{
			argField("id"),
			ast.ArgItem{Arg: ast.LocatedArg{Arg: ast.WhereClauseArg{Where: ast.ColumnWhere{
				Name: "title", Operator: ast.Equal, Value: ast.StringValue{Value: "hello"},
			}}}},
		},
	})
	infos, err := typecheck.CheckQueries(ctx, ast.DefaultSchemaName, list)
	require.NoError(t, err)

	q := list.Queries[0].(ast.QueryItem).Query
	batch, err := sqlgen.Compile(ctx, infos["GetPosts"], &q)
	require.NoError(t, err)
	stmt := batch.Statements[0]

	assert.Contains(t, stmt.SQL, "WHERE (")
	assert.Contains(t, stmt.SQL, `"t0"."title" = ?`)
	assert.Contains(t, stmt.SQL, `"t0"."authorId" = ?`)
	require.Len(t, stmt.Args, 2)
	assert.Equal(t, sqlgen.Param{Name: "Session.userId"}, stmt.Args[0])
	assert.Equal(t, "hello", stmt.Args[1])
}

func TestCompileSelect_NestedReciprocalLink(t *testing.T) {
	authorLink := ast.FieldDirectiveField{Directive: ast.LinkDirective{Details: ast.LinkDetails{
		LinkName: "author",
		LocalIDs: []string{"authorId"},
		Foreign:  ast.Qualified{Schema: ast.DefaultSchemaName, Table: "User", Fields: []string{"id"}},
	}}}
	db := oneSchema(
		publicRecord("User", col("name", "String")),
		publicRecord("Post", col("authorId", "Int"), col("title", "String"), authorLink),
	)
	ctx, err := typecheck.CheckSchema(db)
	require.NoError(t, err)

	list := selectList("GetUsers", ast.QueryField{
		Name: "user",
		Fields: []ast.ArgField{
			argField("id"),
			nestedField("posts", argField("id"), argField("title")),
		},
	})
	infos, err := typecheck.CheckQueries(ctx, ast.DefaultSchemaName, list)
	require.NoError(t, err)

	q := list.Queries[0].(ast.QueryItem).Query
	batch, err := sqlgen.Compile(ctx, infos["GetUsers"], &q)
	require.NoError(t, err)
	stmt := batch.Statements[0]

	assert.Contains(t, stmt.SQL, `FROM "users" AS "t0"`)
	assert.Contains(t, stmt.SQL, `json_group_array(json_object('id', "t1"."id", 'title', "t1"."title"))`)
	assert.Contains(t, stmt.SQL, `FROM "posts" AS "t1"`)
	assert.Contains(t, stmt.SQL, `"t0"."id" = "t1"."authorId"`)
}

func TestCompileSelect_DefaultOrdersByPrimaryKeyWithoutSort(t *testing.T) {
	db := oneSchema(publicRecord("User", col("name", "String")))
	ctx, err := typecheck.CheckSchema(db)
	require.NoError(t, err)

	list := selectList("GetUsers", ast.QueryField{Name: "user", Fields: []ast.ArgField{argField("id")}})
	infos, err := typecheck.CheckQueries(ctx, ast.DefaultSchemaName, list)
	require.NoError(t, err)

	q := list.Queries[0].(ast.QueryItem).Query
	batch, err := sqlgen.Compile(ctx, infos["GetUsers"], &q)
	require.NoError(t, err)
	assert.Contains(t, batch.Statements[0].SQL, `ORDER BY "t0"."id"`)
}

func TestCompileSelect_ExplicitSortSuppressesDefaultOrder(t *testing.T) {
	db := oneSchema(publicRecord("User", col("name", "String")))
	ctx, err := typecheck.CheckSchema(db)
	require.NoError(t, err)

	list := selectList("GetUsers", ast.QueryField{
		Name: "user",
		Fields: []ast.ArgField{
			argField("id"),
			ast.ArgItem{Arg: ast.LocatedArg{Arg: ast.OrderByArg{Field: "name", Direction: ast.Desc}}},
		},
	})
	infos, err := typecheck.CheckQueries(ctx, ast.DefaultSchemaName, list)
	require.NoError(t, err)

	q := list.Queries[0].(ast.QueryItem).Query
	batch, err := sqlgen.Compile(ctx, infos["GetUsers"], &q)
	require.NoError(t, err)
	sql := batch.Statements[0].SQL
	assert.Contains(t, sql, `ORDER BY "t0"."name" DESC`)
	assert.Equal(t, 1, strings.Count(sql, "ORDER BY"))
}

func TestCompileSelect_WildcardExpandsEveryColumn(t *testing.T) {
	db := oneSchema(publicRecord("User", col("name", "String"), col("email", "String")))
	ctx, err := typecheck.CheckSchema(db)
	require.NoError(t, err)

	list := selectList("GetUsers", ast.QueryField{Name: "user", Fields: []ast.ArgField{argField("*")}})
	infos, err := typecheck.CheckQueries(ctx, ast.DefaultSchemaName, list)
	require.NoError(t, err)

	q := list.Queries[0].(ast.QueryItem).Query
	batch, err := sqlgen.Compile(ctx, infos["GetUsers"], &q)
	require.NoError(t, err)
	sql := batch.Statements[0].SQL
	assert.Contains(t, sql, `'id', "t0"."id"`)
	assert.Contains(t, sql, `'name', "t0"."name"`)
	assert.Contains(t, sql, `'email', "t0"."email"`)
}

func strPtr(s string) *string { return &s }
