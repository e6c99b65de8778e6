package sqlgen_test

import (
	"testing"

	"github.com/pyreql/pyre/ast"
	"github.com/pyreql/pyre/sqlgen"
	"github.com/pyreql/pyre/typecheck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whereQuery(t *testing.T, where ast.WhereArg) *sqlgen.Statement {
	t.Helper()
	return whereQueryWithSession(t, where, nil)
}

func whereQueryWithSession(t *testing.T, where ast.WhereArg, sessionFields []ast.Field) *sqlgen.Statement {
	t.Helper()
	defs := []ast.Definition{publicRecord("User", col("name", "String"))}
	if sessionFields != nil {
		defs = append(defs, ast.SessionDefinition{Details: ast.SessionDetails{Fields: sessionFields}})
	}
	db := oneSchema(defs...)
	ctx, err := typecheck.CheckSchema(db)
	require.NoError(t, err)

	list := selectList("GetUsers", ast.QueryField{
		Name: "user",
		Fields: []ast.ArgField{
			argField("id"),
			ast.ArgItem{Arg: ast.LocatedArg{Arg: ast.WhereClauseArg{Where: where}}},
		},
	})
	infos, err := typecheck.CheckQueries(ctx, ast.DefaultSchemaName, list)
	require.NoError(t, err)

	q := list.Queries[0].(ast.QueryItem).Query
	batch, err := sqlgen.Compile(ctx, infos["GetUsers"], &q)
	require.NoError(t, err)
	return &batch.Statements[0]
}

func TestCompileWhere_LikeAndNotLike(t *testing.T) {
	stmt := whereQuery(t, ast.ColumnWhere{Name: "name", Operator: ast.Like, Value: ast.StringValue{Value: "a%"}})
	assert.Contains(t, stmt.SQL, `"t0"."name" LIKE ?`)
	assert.Equal(t, "a%", stmt.Args[0])

	stmt = whereQuery(t, ast.ColumnWhere{Name: "name", Operator: ast.NotLike, Value: ast.StringValue{Value: "b%"}})
	assert.Contains(t, stmt.SQL, `NOT`)
	assert.Contains(t, stmt.SQL, `"t0"."name" LIKE ?`)
}

func TestCompileWhere_InAndNotIn(t *testing.T) {
	stmt := whereQuery(t, ast.ColumnWhere{
		Name: "name", Operator: ast.In,
		Value: ast.VariableValue{Details: ast.VariableDetails{Name: "names"}},
	})
	assert.Contains(t, stmt.SQL, `"t0"."name" IN (?)`)

	stmt = whereQuery(t, ast.ColumnWhere{
		Name: "name", Operator: ast.NotIn,
		Value: ast.VariableValue{Details: ast.VariableDetails{Name: "names"}},
	})
	assert.Contains(t, stmt.SQL, `NOT`)
	assert.Contains(t, stmt.SQL, `"t0"."name" IN (?)`)
}

func TestCompileWhere_AndOrCombine(t *testing.T) {
	stmt := whereQuery(t, ast.AndWhere{Args: []ast.WhereArg{
		ast.ColumnWhere{Name: "name", Operator: ast.Equal, Value: ast.StringValue{Value: "a"}},
		ast.OrWhere{Args: []ast.WhereArg{
			ast.ColumnWhere{Name: "id", Operator: ast.Equal, Value: ast.IntValue{Value: 1}},
			ast.ColumnWhere{Name: "id", Operator: ast.Equal, Value: ast.IntValue{Value: 2}},
		}},
	}})
	assert.Contains(t, stmt.SQL, `"t0"."name" = ?`)
	assert.Contains(t, stmt.SQL, `"t0"."id" = ?`)
	require.Len(t, stmt.Args, 3)
}

func TestCompileWhere_SessionComparisonLeftSide(t *testing.T) {
	stmt := whereQueryWithSession(t, ast.ColumnWhere{
		IsSession: true, Name: "userId", Operator: ast.GreaterThanOrEqual,
		Value: ast.IntValue{Value: 5},
	}, []ast.Field{col("userId", "Int")})
	assert.Contains(t, stmt.SQL, " >= ")
	require.Len(t, stmt.Args, 2)
	assert.Equal(t, sqlgen.Param{Name: "Session.userId"}, stmt.Args[0])
	assert.Equal(t, int64(5), stmt.Args[1])
}
