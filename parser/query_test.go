package parser_test

import (
	"testing"

	"github.com/pyreql/pyre/ast"
	"github.com/pyreql/pyre/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQueries_SimpleSelect(t *testing.T) {
	src := "query GetUsers {\n  user {\n    id\n    name\n  }\n}\n"

	list, err := parser.ParseQueries("queries.pyre", src)
	require.NoError(t, err)
	require.Len(t, list.Queries, 1)

	item := list.Queries[0].(ast.QueryItem)
	assert.Equal(t, ast.Select, item.Query.Operation)
	assert.Equal(t, "GetUsers", item.Query.Name)
	require.Len(t, item.Query.Fields, 1)

	top := item.Query.Fields[0].(ast.TopLevelField)
	assert.Equal(t, "user", top.Field.Name)

	cols := ast.CollectQueryFields(top.Field.Fields)
	require.Len(t, cols, 2)
	assert.Equal(t, "id", cols[0].Name)
	assert.Equal(t, "name", cols[1].Name)
}

func TestParseQueries_ParameterisedWhere(t *testing.T) {
	src := "query GetUser($name: String) {\n  user {\n    @where { name == $name }\n    id\n    name\n  }\n}\n"

	list, err := parser.ParseQueries("queries.pyre", src)
	require.NoError(t, err)
	item := list.Queries[0].(ast.QueryItem)
	require.Len(t, item.Query.Args, 1)
	assert.Equal(t, "name", item.Query.Args[0].Name)
	require.NotNil(t, item.Query.Args[0].Type)
	assert.Equal(t, "String", *item.Query.Args[0].Type)

	top := item.Query.Fields[0].(ast.TopLevelField)
	wheres := ast.CollectWheres(top.Field.Fields)
	require.Len(t, wheres, 1)
	cw := wheres[0].(ast.ColumnWhere)
	assert.Equal(t, "name", cw.Name)
	assert.Equal(t, ast.Equal, cw.Operator)
	v := cw.Value.(ast.VariableValue)
	assert.Equal(t, "name", v.Details.Name)
}

func TestParseQueries_WhereCombinators(t *testing.T) {
	src := "query GetUsers {\n  user {\n    @where { name == $a && (age == $b || age == $c) }\n    id\n  }\n}\n"

	list, err := parser.ParseQueries("queries.pyre", src)
	require.NoError(t, err)
	item := list.Queries[0].(ast.QueryItem)
	top := item.Query.Fields[0].(ast.TopLevelField)
	wheres := ast.CollectWheres(top.Field.Fields)
	require.Len(t, wheres, 1)

	and, ok := wheres[0].(ast.AndWhere)
	require.True(t, ok)
	require.Len(t, and.Args, 2)

	or, ok := and.Args[1].(ast.OrWhere)
	require.True(t, ok)
	require.Len(t, or.Args, 2)
}

func TestParseQueries_NestedLinkSelection(t *testing.T) {
	src := "query GetUsers {\n  user {\n    id\n    posts {\n      id\n      title\n    }\n  }\n}\n"

	list, err := parser.ParseQueries("queries.pyre", src)
	require.NoError(t, err)
	item := list.Queries[0].(ast.QueryItem)
	top := item.Query.Fields[0].(ast.TopLevelField)
	children := ast.CollectQueryFields(top.Field.Fields)
	require.Len(t, children, 2)
	assert.Equal(t, "posts", children[1].Name)
	assert.Len(t, ast.CollectQueryFields(children[1].Fields), 2)
}

func TestParseQueries_InsertWithSet(t *testing.T) {
	src := "insert CreateUser($name: String) {\n  user {\n    name = $name\n    id\n  }\n}\n"

	list, err := parser.ParseQueries("queries.pyre", src)
	require.NoError(t, err)
	item := list.Queries[0].(ast.QueryItem)
	assert.Equal(t, ast.Insert, item.Query.Operation)

	top := item.Query.Fields[0].(ast.TopLevelField)
	children := ast.CollectQueryFields(top.Field.Fields)
	require.Len(t, children, 2)
	require.NotNil(t, children[0].Set)
	v := (*children[0].Set).(ast.VariableValue)
	assert.Equal(t, "name", v.Details.Name)
}

func TestParseQueries_LimitOffsetSort(t *testing.T) {
	src := "query GetUsers {\n  user {\n    @limit 10\n    @offset 5\n    @sort(name, Desc)\n    id\n  }\n}\n"

	list, err := parser.ParseQueries("queries.pyre", src)
	require.NoError(t, err)
	item := list.Queries[0].(ast.QueryItem)
	top := item.Query.Fields[0].(ast.TopLevelField)

	var sawLimit, sawOffset, sawSort bool
	for _, af := range top.Field.Fields {
		ai, ok := af.(ast.ArgItem)
		if !ok {
			continue
		}
		switch a := ai.Arg.Arg.(type) {
		case ast.LimitArg:
			sawLimit = true
			assert.Equal(t, int32(10), a.Value.(ast.IntValue).Value)
		case ast.OffsetArg:
			sawOffset = true
			assert.Equal(t, int32(5), a.Value.(ast.IntValue).Value)
		case ast.OrderByArg:
			sawSort = true
			assert.Equal(t, ast.Desc, a.Direction)
			assert.Equal(t, "name", a.Field)
		}
	}
	assert.True(t, sawLimit && sawOffset && sawSort)
}

func TestParseQueries_UnionLiteralInsert(t *testing.T) {
	src := "insert CreateUser {\n  user {\n    status = Special { reason = \"x\" }\n  }\n}\n"

	list, err := parser.ParseQueries("queries.pyre", src)
	require.NoError(t, err)
	item := list.Queries[0].(ast.QueryItem)
	top := item.Query.Fields[0].(ast.TopLevelField)
	children := ast.CollectQueryFields(top.Field.Fields)
	require.Len(t, children, 1)
	lit := (*children[0].Set).(ast.LiteralTypeValueExpr)
	assert.Equal(t, "Special", lit.Details.Name)
	require.Len(t, lit.Details.Fields, 1)
	assert.Equal(t, "reason", lit.Details.Fields[0].Name)
	assert.Equal(t, "x", lit.Details.Fields[0].Value.(ast.StringValue).Value)
}

func TestParseQueries_RejectsIndentedTopLevelKeyword(t *testing.T) {
	_, err := parser.ParseQueries("queries.pyre", "  query GetUsers {\n  }\n")
	require.Error(t, err)
}
