package sqlgen

import (
	"fmt"

	"github.com/pyreql/pyre/ast"
	"github.com/pyreql/pyre/dialect/sql"
)

// compileWhere lowers a WhereArg tree into a sql.P, qualifying every bare
// column reference with alias. A ColumnWhere's IsSession flag never reaches
// here with a literal Session value to compare against — Session.field only
// ever appears as the *value* side (see parser/expr.go); IsSession marks the
// rarer reverse shape `Session.field == ...`, where alias is irrelevant
// because the left side binds to a Param instead of a column.
func compileWhere(alias string, w ast.WhereArg) (sql.P, error) {
	switch arg := w.(type) {
	case ast.ColumnWhere:
		return compileColumnWhere(alias, arg)
	case ast.AndWhere:
		ps, err := compileWhereList(alias, arg.Args)
		if err != nil {
			return nil, err
		}
		return sql.And(ps...), nil
	case ast.OrWhere:
		ps, err := compileWhereList(alias, arg.Args)
		if err != nil {
			return nil, err
		}
		return sql.Or(ps...), nil
	default:
		return nil, fmt.Errorf("sqlgen: unsupported where clause shape %T", w)
	}
}

func compileWhereList(alias string, args []ast.WhereArg) ([]sql.P, error) {
	ps := make([]sql.P, len(args))
	for i, a := range args {
		p, err := compileWhere(alias, a)
		if err != nil {
			return nil, err
		}
		ps[i] = p
	}
	return ps, nil
}

func compileColumnWhere(alias string, cw ast.ColumnWhere) (sql.P, error) {
	if cw.IsSession {
		return compileComparison(Param{Name: "Session." + cw.Name}, cw.Operator, cw.Value)
	}

	ident := alias + "." + cw.Name
	v, err := valueArg(cw.Value)
	if err != nil {
		return nil, err
	}
	return comparisonPredicate(ident, cw.Operator, v)
}

// compileComparison handles the rare `Session.field <op> value` shape: the
// left side is itself a Param, so it cannot use the ident-keyed predicate
// helpers in dialect/sql, which assume a column on the left.
func compileComparison(left Param, op ast.Operator, rhs ast.QueryValue) (sql.P, error) {
	right, err := valueArg(rhs)
	if err != nil {
		return nil, err
	}
	opText, err := sqlOperatorText(op)
	if err != nil {
		return nil, err
	}
	return func(b *sql.Builder) {
		b.Arg(left).WriteString(opText).Arg(right)
	}, nil
}

func comparisonPredicate(ident string, op ast.Operator, v any) (sql.P, error) {
	switch op {
	case ast.Equal:
		return sql.EQ(ident, v), nil
	case ast.NotEqual:
		return sql.NEQ(ident, v), nil
	case ast.LessThan:
		return sql.LT(ident, v), nil
	case ast.LessThanOrEqual:
		return sql.LTE(ident, v), nil
	case ast.GreaterThan:
		return sql.GT(ident, v), nil
	case ast.GreaterThanOrEqual:
		return sql.GTE(ident, v), nil
	case ast.Like:
		return likePredicate(ident, v), nil
	case ast.NotLike:
		return sql.Not(likePredicate(ident, v)), nil
	case ast.In:
		return inPredicate(ident, v), nil
	case ast.NotIn:
		return sql.Not(inPredicate(ident, v)), nil
	default:
		return nil, fmt.Errorf("sqlgen: unsupported operator %v", op)
	}
}

func likePredicate(ident string, v any) sql.P {
	return func(b *sql.Builder) { b.Ident(ident).WriteString(" LIKE ").Arg(v) }
}

// inPredicate builds "ident IN (?)" against a single bound value (a slice
// literal is not part of this grammar; `in` compares against a $variable or
// Session field whose bound value the driver expands at execute time).
func inPredicate(ident string, v any) sql.P {
	return func(b *sql.Builder) {
		b.Ident(ident).WriteString(" IN (").Arg(v).WriteByte(')')
	}
}

func sqlOperatorText(op ast.Operator) (string, error) {
	switch op {
	case ast.Equal:
		return " = ", nil
	case ast.NotEqual:
		return " <> ", nil
	case ast.LessThan:
		return " < ", nil
	case ast.LessThanOrEqual:
		return " <= ", nil
	case ast.GreaterThan:
		return " > ", nil
	case ast.GreaterThanOrEqual:
		return " >= ", nil
	default:
		return "", fmt.Errorf("sqlgen: operator %v is not valid against a Session-bound left side", op)
	}
}

// andWheres ANDs together any number of possibly-nil WhereArgs (typically a
// permission rule and a user-supplied @where), skipping absent ones and
// collapsing to a single clause rather than a needless one-term AND.
func andWheres(alias string, wheres ...*ast.WhereArg) (sql.P, error) {
	var ps []sql.P
	for _, w := range wheres {
		if w == nil {
			continue
		}
		p, err := compileWhere(alias, *w)
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	switch len(ps) {
	case 0:
		return nil, nil
	case 1:
		return ps[0], nil
	default:
		return sql.And(ps...), nil
	}
}
