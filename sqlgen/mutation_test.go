package sqlgen_test

import (
	"testing"

	"github.com/pyreql/pyre/ast"
	"github.com/pyreql/pyre/sqlgen"
	"github.com/pyreql/pyre/typecheck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mutationList(op ast.QueryOperation, name string, root ast.QueryField) *ast.QueryList {
	return &ast.QueryList{Queries: []ast.QueryDef{
		ast.QueryItem{Query: ast.Query{Operation: op, Name: name, Fields: []ast.TopLevelQueryField{
			ast.TopLevelField{Field: root},
		}}},
	}}
}

func setField(name string, value ast.QueryValue) ast.ArgField {
	return ast.ArgFieldItem{Field: ast.QueryField{Name: name, Set: &value}}
}

func whereArg(w ast.WhereArg) ast.ArgField {
	return ast.ArgItem{Arg: ast.LocatedArg{Arg: ast.WhereClauseArg{Where: w}}}
}

func TestCompileInsert_TaggedUnionExpansion(t *testing.T) {
	status := ast.TaggedDefinition{Name: "Status", Variants: []ast.Variant{
		{Name: "Basic"},
		{Name: "Special", Fields: []ast.Field{col("reason", "String")}},
	}}
	db := oneSchema(status, publicRecord("Post", col("status", "Status"), col("title", "String")))
	ctx, err := typecheck.CheckSchema(db)
	require.NoError(t, err)

	variant := ast.QueryValue(ast.LiteralTypeValueExpr{Details: ast.LiteralTypeValueDetails{
		Name:   "Special",
		Fields: []ast.FieldAssignment{{Name: "reason", Value: ast.StringValue{Value: "x"}}},
	}})

	list := mutationList(ast.Insert, "AddPost", ast.QueryField{
		Name: "post",
		Fields: []ast.ArgField{
			argField("id"),
			setField("status", variant),
			setField("title", ast.StringValue{Value: "hi"}),
		},
	})
	infos, err := typecheck.CheckQueries(ctx, ast.DefaultSchemaName, list)
	require.NoError(t, err)

	q := list.Queries[0].(ast.QueryItem).Query
	batch, err := sqlgen.Compile(ctx, infos["AddPost"], &q)
	require.NoError(t, err)
	require.Len(t, batch.Statements, 1)

	stmt := batch.Statements[0]
	assert.Contains(t, stmt.SQL, `INSERT INTO "posts"`)
	assert.Contains(t, stmt.SQL, `"status"`)
	assert.Contains(t, stmt.SQL, `"status__reason"`)
	assert.Contains(t, stmt.SQL, `"title"`)
	assert.Contains(t, stmt.SQL, `RETURNING "id"`)
	require.Len(t, stmt.Args, 3)
	assert.Equal(t, "Special", stmt.Args[0])
	assert.Equal(t, "x", stmt.Args[1])
	assert.Equal(t, "hi", stmt.Args[2])
}

func TestCompileUpdate_TwoStatements(t *testing.T) {
	db := oneSchema(publicRecord("Post", col("title", "String")))
	ctx, err := typecheck.CheckSchema(db)
	require.NoError(t, err)

	list := mutationList(ast.Update, "RenamePost", ast.QueryField{
		Name: "post",
		Fields: []ast.ArgField{
			setField("title", ast.StringValue{Value: "new"}),
			whereArg(ast.ColumnWhere{Name: "id", Operator: ast.Equal, Value: ast.IntValue{Value: 1}}),
			argField("id"),
		},
	})
	infos, err := typecheck.CheckQueries(ctx, ast.DefaultSchemaName, list)
	require.NoError(t, err)

	q := list.Queries[0].(ast.QueryItem).Query
	batch, err := sqlgen.Compile(ctx, infos["RenamePost"], &q)
	require.NoError(t, err)
	require.Len(t, batch.Statements, 2)

	update := batch.Statements[0]
	assert.Contains(t, update.SQL, `UPDATE "posts" SET "title" = ?`)
	assert.Contains(t, update.SQL, `WHERE "posts"."id" = ?`)
	require.Len(t, update.Args, 2)
	assert.Equal(t, "new", update.Args[0])
	assert.Equal(t, int64(1), update.Args[1])

	readback := batch.Statements[1]
	assert.Contains(t, readback.SQL, `FROM "posts" AS "posts"`)
	assert.Contains(t, readback.SQL, `'title', "posts"."title"`)
	assert.Contains(t, readback.SQL, `'id', "posts"."id"`)
	assert.Contains(t, readback.SQL, `WHERE "posts"."id" = ?`)
	require.Len(t, readback.Args, 1)
	assert.Equal(t, int64(1), readback.Args[0])
}

func TestCompileDelete_CaptureThenDelete(t *testing.T) {
	db := oneSchema(publicRecord("Post", col("title", "String")))
	ctx, err := typecheck.CheckSchema(db)
	require.NoError(t, err)

	list := mutationList(ast.Delete, "RemovePost", ast.QueryField{
		Name: "post",
		Fields: []ast.ArgField{
			argField("id"),
			argField("title"),
			whereArg(ast.ColumnWhere{Name: "id", Operator: ast.Equal, Value: ast.IntValue{Value: 2}}),
		},
	})
	infos, err := typecheck.CheckQueries(ctx, ast.DefaultSchemaName, list)
	require.NoError(t, err)

	q := list.Queries[0].(ast.QueryItem).Query
	batch, err := sqlgen.Compile(ctx, infos["RemovePost"], &q)
	require.NoError(t, err)
	require.Len(t, batch.Statements, 2)

	capture := batch.Statements[0]
	assert.Contains(t, capture.SQL, `json_object('id', "posts"."id", 'title', "posts"."title")`)
	assert.Contains(t, capture.SQL, `FROM "posts" AS "posts"`)
	assert.Contains(t, capture.SQL, `WHERE "posts"."id" = ?`)
	require.Len(t, capture.Args, 1)
	assert.Equal(t, int64(2), capture.Args[0])

	del := batch.Statements[1]
	assert.Contains(t, del.SQL, `DELETE FROM "posts"`)
	assert.Contains(t, del.SQL, `WHERE "posts"."id" = ?`)
	require.Len(t, del.Args, 1)
	assert.Equal(t, int64(2), del.Args[0])
}

func TestCompileDelete_NoCaptureWithoutReadbackFields(t *testing.T) {
	db := oneSchema(publicRecord("Post", col("title", "String")))
	ctx, err := typecheck.CheckSchema(db)
	require.NoError(t, err)

	list := mutationList(ast.Delete, "PurgePost", ast.QueryField{
		Name: "post",
		Fields: []ast.ArgField{
			whereArg(ast.ColumnWhere{Name: "id", Operator: ast.Equal, Value: ast.IntValue{Value: 3}}),
		},
	})
	infos, err := typecheck.CheckQueries(ctx, ast.DefaultSchemaName, list)
	require.NoError(t, err)

	q := list.Queries[0].(ast.QueryItem).Query
	batch, err := sqlgen.Compile(ctx, infos["PurgePost"], &q)
	require.NoError(t, err)
	require.Len(t, batch.Statements, 1)

	stmt := batch.Statements[0]
	assert.Contains(t, stmt.SQL, `DELETE FROM "posts"`)
	assert.Contains(t, stmt.SQL, `WHERE "posts"."id" = ?`)
	require.Len(t, stmt.Args, 1)
	assert.Equal(t, int64(3), stmt.Args[0])
}
