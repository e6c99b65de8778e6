package sqlgen

import (
	"fmt"

	"github.com/pyreql/pyre/ast"
)

// Param is a named placeholder left in a compiled statement's bound
// arguments for a `$variable` or `Session.field` leaf. The compiler never
// resolves these to concrete values itself (the same compiled SQL must be
// reusable across sessions); callers resolve them with BindArgs immediately
// before execution.
type Param struct{ Name string }

// paramName renders the variable a WhereArg/set-expression leaf refers to
// into the key BindArgs expects: "$name" for a query parameter, or
// "Session.field" for a session variable.
func paramName(v ast.VariableDetails) string {
	if v.SessionField != nil {
		return "Session." + *v.SessionField
	}
	return "$" + v.Name
}

// valueArg converts a literal or variable QueryValue into the `any` that
// belongs at this leaf's position in a Builder's bound-argument slice: a
// concrete Go value for literals, a Param marker for `$var`/`Session.field`.
// Fn values and tagged-union literals are not legal directly at a scalar
// leaf position; callers that might see one (set-expressions) handle those
// shapes themselves before reaching here.
func valueArg(v ast.QueryValue) (any, error) {
	switch val := v.(type) {
	case ast.StringValue:
		return val.Value, nil
	case ast.IntValue:
		return int64(val.Value), nil
	case ast.FloatValue:
		return float64(val.Value), nil
	case ast.BoolValue:
		return val.Value, nil
	case ast.NullValue:
		return nil, nil
	case ast.VariableValue:
		return Param{Name: paramName(val.Details)}, nil
	case ast.FnValue:
		return fnValueArg(val.Fn)
	default:
		return nil, fmt.Errorf("sqlgen: value of type %T is not valid in a scalar position", v)
	}
}

// fnValueArg evaluates the small set of built-in functions sqlgen
// recognizes at compile time. "now" is the only one the schema's
// @default(now) and query bodies are expected to use; it is left as a
// Param named "now()", so its value is bound through BindArgs at execute
// time rather than fixed at compile time.
func fnValueArg(fn ast.FnDetails) (any, error) {
	switch fn.Name {
	case "now":
		return Param{Name: "now()"}, nil
	default:
		return nil, fmt.Errorf("sqlgen: unknown function %q", fn.Name)
	}
}

// BindArgs resolves every Param marker in args against bindings, returning
// a slice ready to pass to a driver's Exec/Query. Every Param, "now()"
// included, needs an entry in bindings; a missing one is an error.
func BindArgs(args []any, bindings map[string]any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		p, ok := a.(Param)
		if !ok {
			out[i] = a
			continue
		}
		v, ok := bindings[p.Name]
		if !ok {
			return nil, fmt.Errorf("sqlgen: no binding supplied for %q", p.Name)
		}
		out[i] = v
	}
	return out, nil
}
