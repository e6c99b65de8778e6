package ast_test

import (
	"testing"

	"github.com/pyreql/pyre/ast"
	"github.com/stretchr/testify/assert"
)

func simpleQuery(name string) *ast.Query {
	return &ast.Query{
		Operation: ast.Select,
		Name:      name,
		Args: []ast.QueryParamDefinition{
			{Name: "id", Type: strPtr("Int")},
		},
		Fields: []ast.TopLevelQueryField{
			ast.TopLevelField{Field: ast.QueryField{Name: "id"}},
			ast.TopLevelField{Field: ast.QueryField{Name: "name"}},
		},
	}
}

func strPtr(s string) *string { return &s }

func TestHashQueryInterfaceStableAcrossLocations(t *testing.T) {
	q1 := simpleQuery("GetUser")
	line := 10
	q2 := simpleQuery("GetUser")
	q2.Start = &ast.Location{Line: line}

	assert.Equal(t, ast.HashQueryInterface(q1), ast.HashQueryInterface(q2))
}

func TestHashQueryInterfaceChangesWithName(t *testing.T) {
	a := ast.HashQueryInterface(simpleQuery("GetUser"))
	b := ast.HashQueryInterface(simpleQuery("GetUsers"))

	assert.NotEqual(t, a, b)
}

func TestHashQueryFullChangesWithWhereClause(t *testing.T) {
	base := simpleQuery("GetUser")

	withWhere := simpleQuery("GetUser")
	withWhere.Fields = append(withWhere.Fields, ast.TopLevelField{Field: ast.QueryField{
		Name: "posts",
		Fields: []ast.ArgField{
			ast.ArgItem{Arg: ast.LocatedArg{Arg: ast.WhereClauseArg{
				Where: ast.ColumnWhere{Name: "published", Operator: ast.Equal, Value: ast.BoolValue{Value: true}},
			}}},
		},
	}})

	assert.NotEqual(t, ast.HashQueryFull(base), ast.HashQueryFull(withWhere))
}

func TestHashQueryInterfaceStableAcrossWhereClause(t *testing.T) {
	// Both queries select the same "posts" field shape; only the bound
	// @where predicate differs. That predicate belongs to the public
	// contract's body, not its interface, so HashQueryInterface must not
	// see it while HashQueryFull does (TestHashQueryFullChangesWithWhereClause).
	sameShape := simpleQuery("GetUser")
	sameShape.Fields = append(sameShape.Fields, ast.TopLevelField{Field: ast.QueryField{
		Name: "posts",
		Fields: []ast.ArgField{
			ast.ArgItem{Arg: ast.LocatedArg{Arg: ast.WhereClauseArg{
				Where: ast.ColumnWhere{Name: "published", Operator: ast.Equal, Value: ast.BoolValue{Value: false}},
			}}},
		},
	}})
	differentWhere := simpleQuery("GetUser")
	differentWhere.Fields = append(differentWhere.Fields, ast.TopLevelField{Field: ast.QueryField{
		Name: "posts",
		Fields: []ast.ArgField{
			ast.ArgItem{Arg: ast.LocatedArg{Arg: ast.WhereClauseArg{
				Where: ast.ColumnWhere{Name: "published", Operator: ast.Equal, Value: ast.BoolValue{Value: true}},
			}}},
		},
	}})

	assert.Equal(t, ast.HashQueryInterface(sameShape), ast.HashQueryInterface(differentWhere))
	assert.NotEqual(t, ast.HashQueryFull(sameShape), ast.HashQueryFull(differentWhere))
}

func TestHashQueryIgnoresComments(t *testing.T) {
	a := simpleQuery("GetUser")
	b := simpleQuery("GetUser")
	b.Fields = append(b.Fields, ast.TopLevelComment{Text: "a trailing remark"})

	assert.Equal(t, ast.HashQueryInterface(a), ast.HashQueryInterface(b))
}
