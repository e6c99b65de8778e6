package ast

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Neither hash reads Start/End locations, so both are stable across
// reformatting.

// HashQueryInterface returns query's interface hash: covers operation,
// name, parameter types, and field shape. Stable across body edits that
// don't change the public contract — in particular, a field's `@where`/
// `@sort`/`@limit`/`@offset`/`set =` contents never reach this hash, only
// the field's own name, alias, and nesting.
func HashQueryInterface(query *Query) string {
	h := sha256.New()
	hashQueryShape(h, query, false)
	return hex.EncodeToString(h.Sum(nil))
}

// HashQueryFull returns query's full hash: covers everything semantic,
// including where-clause trees.
func HashQueryFull(query *Query) string {
	h := sha256.New()
	hashQueryShape(h, query, true)
	return hex.EncodeToString(h.Sum(nil))
}

func hashQueryShape(h hashWriter, query *Query, full bool) {
	fmt.Fprintf(h, "%d", query.Operation)
	h.Write([]byte(query.Name))
	for _, arg := range query.Args {
		h.Write([]byte(arg.Name))
		if arg.Type != nil {
			h.Write([]byte(*arg.Type))
		}
	}
	hashFields(h, query.Fields, full)
}

type hashWriter interface {
	Write(p []byte) (int, error)
}

func hashFields(h hashWriter, fields []TopLevelQueryField, full bool) {
	for _, field := range fields {
		tf, ok := field.(TopLevelField)
		if !ok {
			continue // Lines and Comment entries don't affect either hash.
		}
		hashQueryField(h, tf.Field, full)
	}
}

func hashQueryField(h hashWriter, qf QueryField, full bool) {
	h.Write([]byte(qf.Name))
	if qf.Alias != nil {
		h.Write([]byte(*qf.Alias))
	}
	if full && qf.Set != nil {
		hashQueryValue(h, *qf.Set)
	}
	for _, d := range qf.Directives {
		h.Write([]byte(d))
	}
	for _, af := range qf.Fields {
		switch f := af.(type) {
		case ArgFieldItem:
			hashQueryField(h, f.Field, full)
		case ArgItem:
			if full {
				hashArg(h, f.Arg.Arg)
			}
		case ArgLinesItem:
			// blank-line runs never affect a hash
		case ArgCommentItem:
			// comments never affect a hash
		}
	}
}

func hashArg(h hashWriter, arg Arg) {
	switch a := arg.(type) {
	case LimitArg:
		h.Write([]byte("limit"))
		hashQueryValue(h, a.Value)
	case OffsetArg:
		h.Write([]byte("offset"))
		hashQueryValue(h, a.Value)
	case OrderByArg:
		h.Write([]byte("order_by"))
		h.Write([]byte(DirectionToString(a.Direction)))
		h.Write([]byte(a.Field))
	case WhereClauseArg:
		h.Write([]byte("where"))
		hashWhereArg(h, a.Where)
	}
}

func hashWhereArg(h hashWriter, w WhereArg) {
	switch arg := w.(type) {
	case ColumnWhere:
		fmt.Fprintf(h, "%t", arg.IsSession)
		h.Write([]byte(arg.Name))
		fmt.Fprintf(h, "%d", arg.Operator)
		hashQueryValue(h, arg.Value)
	case AndWhere:
		h.Write([]byte("and"))
		for _, sub := range arg.Args {
			hashWhereArg(h, sub)
		}
	case OrWhere:
		h.Write([]byte("or"))
		for _, sub := range arg.Args {
			hashWhereArg(h, sub)
		}
	}
}

func hashQueryValue(h hashWriter, v QueryValue) {
	switch val := v.(type) {
	case FnValue:
		h.Write([]byte("fn"))
		h.Write([]byte(val.Fn.Name))
		for _, arg := range val.Fn.Args {
			hashQueryValue(h, arg)
		}
	case VariableValue:
		h.Write([]byte("variable"))
		h.Write([]byte(val.Details.Name))
	case StringValue:
		h.Write([]byte("string"))
		h.Write([]byte(val.Value))
	case IntValue:
		h.Write([]byte("int"))
		fmt.Fprintf(h, "%d", val.Value)
	case FloatValue:
		h.Write([]byte("float"))
		fmt.Fprintf(h, "%v", val.Value)
	case BoolValue:
		h.Write([]byte("bool"))
		fmt.Fprintf(h, "%t", val.Value)
	case NullValue:
		h.Write([]byte("null"))
	case LiteralTypeValueExpr:
		h.Write([]byte("literal_type"))
		h.Write([]byte(val.Details.Name))
		for _, fa := range val.Details.Fields {
			h.Write([]byte(fa.Name))
			hashQueryValue(h, fa.Value)
		}
	}
}
