package ast

// QueryList is the parsed contents of one `.pyre` query file: an ordered
// mix of queries, standalone comments, and blank-line runs.
type QueryList struct {
	Queries []QueryDef
}

// QueryDef is the tagged sum of top-level entries in a QueryList.
type QueryDef interface{ isQueryDef() }

// QueryItem wraps a Query as a QueryDef.
type QueryItem struct{ Query Query }

// QueryCommentItem is a standalone comment between queries.
type QueryCommentItem struct{ Text string }

// QueryLinesItem preserves a blank-line run between queries.
type QueryLinesItem struct{ Count int }

func (QueryItem) isQueryDef()        {}
func (QueryCommentItem) isQueryDef() {}
func (QueryLinesItem) isQueryDef()   {}

// QueryOperation is the operation a Query performs.
type QueryOperation int

const (
	Select QueryOperation = iota
	Insert
	Update
	Delete
)

func (op QueryOperation) String() string {
	switch op {
	case Select:
		return "select"
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// Query is one named query or mutation definition, plus the two
// content-addressed hashes computed by HashQueryInterface and
// HashQueryFull.
type Query struct {
	InterfaceHash string
	FullHash      string

	Operation QueryOperation
	Name      string
	Args      []QueryParamDefinition
	Fields    []TopLevelQueryField

	Start *Location
	End   *Location
}

// TopLevelQueryField is the tagged sum of entries at a query's first field
// level.
type TopLevelQueryField interface{ isTopLevelQueryField() }

// TopLevelField wraps a QueryField as a TopLevelQueryField.
type TopLevelField struct{ Field QueryField }

// TopLevelLines preserves a blank-line run.
type TopLevelLines struct{ Count int }

// TopLevelComment is a standalone comment inside the query body.
type TopLevelComment struct{ Text string }

func (TopLevelField) isTopLevelQueryField()   {}
func (TopLevelLines) isTopLevelQueryField()   {}
func (TopLevelComment) isTopLevelQueryField() {}

// QueryParamDefinition is one `$name: Type[?]` declared in a query's header.
type QueryParamDefinition struct {
	Name string
	Type *string

	StartName *Location
	EndName   *Location
	StartType *Location
	EndType   *Location
}

// GetSelectAlias returns the qualified alias a field's JSON key would use
// in a flat (non-nested) result shape: {tableAlias}__{fieldAlias}. Neither
// the select lowering nor the mutation lowering calls it; both build nested
// JSON keyed by the bare field name.
func GetSelectAlias(tableAlias string, field QueryField) string {
	return tableAlias + "__" + GetAliasedName(field)
}

// GetAliasedName returns field's alias if set, else its bare name.
func GetAliasedName(field QueryField) string {
	if field.Alias != nil {
		return *field.Alias
	}
	return field.Name
}

// QueryField is one selected or mutated field inside a query body.
type QueryField struct {
	Name       string
	Alias      *string
	Set        *QueryValue
	Directives []string
	Fields     []ArgField

	StartFieldName *Location
	EndFieldName   *Location
	Start          *Location
	End            *Location
}

// ArgField is the tagged sum of what can appear nested under a QueryField:
// a child field, a located Arg (@where/@limit/@offset/@sort), a blank-line
// run, or a comment.
type ArgField interface{ isArgField() }

// ArgFieldItem wraps a child QueryField.
type ArgFieldItem struct{ Field QueryField }

// ArgItem wraps a LocatedArg.
type ArgItem struct{ Arg LocatedArg }

// ArgLinesItem preserves a blank-line run.
type ArgLinesItem struct{ Count int }

// ArgCommentItem is a standalone comment.
type ArgCommentItem struct{ Text string }

func (ArgFieldItem) isArgField()   {}
func (ArgItem) isArgField()        {}
func (ArgLinesItem) isArgField()   {}
func (ArgCommentItem) isArgField() {}

// LocatedArg pairs an Arg with the source span of the whole directive.
type LocatedArg struct {
	Arg   Arg
	Start *Location
	End   *Location
}

// CollectQueryFields returns every child QueryField among fields, in order.
func CollectQueryFields(fields []ArgField) []QueryField {
	var out []QueryField
	for _, f := range fields {
		if af, ok := f.(ArgFieldItem); ok {
			out = append(out, af.Field)
		}
	}
	return out
}

// CollectWheres returns every WhereArg among fields' @where directives, in
// order.
func CollectWheres(fields []ArgField) []WhereArg {
	var out []WhereArg
	for _, f := range fields {
		ai, ok := f.(ArgItem)
		if !ok {
			continue
		}
		if w, ok := ai.Arg.Arg.(WhereClauseArg); ok {
			out = append(out, w.Where)
		}
	}
	return out
}

// Arg is the tagged sum of query-field directives: @limit, @offset,
// @sort (OrderBy), and @where.
type Arg interface{ isArg() }

// LimitArg is `@limit <expr>`.
type LimitArg struct{ Value QueryValue }

// OffsetArg is `@offset <expr>`.
type OffsetArg struct{ Value QueryValue }

// OrderByArg is `@sort(<path>, Asc|Desc)`.
type OrderByArg struct {
	Direction Direction
	Field     string
}

// WhereClauseArg is `@where { <bool-expr> }`.
type WhereClauseArg struct{ Where WhereArg }

func (LimitArg) isArg()       {}
func (OffsetArg) isArg()      {}
func (OrderByArg) isArg()     {}
func (WhereClauseArg) isArg() {}

// Direction is an ORDER BY direction.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// DirectionToString renders a Direction the way the SQL generator expects.
func DirectionToString(d Direction) string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// WhereArg is the boolean tree a `@where`/permission rule compiles to:
// leaf column comparisons combined with And/Or.
type WhereArg interface{ isWhereArg() }

// ColumnWhere compares a column (or, if IsSession, a session field) against
// Value using Operator.
type ColumnWhere struct {
	IsSession bool
	Name      string
	Operator  Operator
	Value     QueryValue
}

// AndWhere is the conjunction of its Args.
type AndWhere struct{ Args []WhereArg }

// OrWhere is the disjunction of its Args.
type OrWhere struct{ Args []WhereArg }

func (ColumnWhere) isWhereArg() {}
func (AndWhere) isWhereArg()    {}
func (OrWhere) isWhereArg()     {}

// Operator is a where-clause comparison operator.
type Operator int

const (
	Equal Operator = iota
	NotEqual
	GreaterThan
	LessThan
	GreaterThanOrEqual
	LessThanOrEqual
	In
	NotIn
	Like
	NotLike
)

// QueryValue is the tagged sum of what can appear on the right-hand side of
// a where-clause, a `set =`, or a function argument.
type QueryValue interface{ isQueryValue() }

// FnValue is a call to a named built-in function, e.g. `now()`.
type FnValue struct{ Fn FnDetails }

// LiteralTypeValueExpr is a tagged-union literal, e.g. `Special { reason = "x" }`.
type LiteralTypeValueExpr struct {
	Span    Range
	Details LiteralTypeValueDetails
}

// VariableValue references a query parameter or a session field.
type VariableValue struct {
	Span    Range
	Details VariableDetails
}

// StringValue is a string literal.
type StringValue struct {
	Span  Range
	Value string
}

// IntValue is an integer literal.
type IntValue struct {
	Span  Range
	Value int32
}

// FloatValue is a floating-point literal.
type FloatValue struct {
	Span  Range
	Value float32
}

// BoolValue is a boolean literal.
type BoolValue struct {
	Span  Range
	Value bool
}

// NullValue is the literal `null`.
type NullValue struct{ Span Range }

func (FnValue) isQueryValue()              {}
func (LiteralTypeValueExpr) isQueryValue() {}
func (VariableValue) isQueryValue()        {}
func (StringValue) isQueryValue()          {}
func (IntValue) isQueryValue()             {}
func (FloatValue) isQueryValue()           {}
func (BoolValue) isQueryValue()            {}
func (NullValue) isQueryValue()            {}

// LiteralTypeValueDetails is a tagged-union literal's variant name plus its
// optional field assignments (e.g. for `Special { reason = $r }`).
type LiteralTypeValueDetails struct {
	Name   string
	Fields []FieldAssignment
}

// FieldAssignment is one `name = value` inside a tagged-union literal or an
// insert/update set-block.
type FieldAssignment struct {
	Name  string
	Value QueryValue
}

// FnDetails is a call to a built-in function.
type FnDetails struct {
	Name string
	Args []QueryValue

	Location       Range
	LocationFnName Range
	LocationArg    Range
}

// VariableDetails is a reference to `$name` or `Session.field`.
type VariableDetails struct {
	Name         string
	SessionField *string
}

// ToPyreVariableName renders a VariableDetails back to its source form,
// used in error messages.
func ToPyreVariableName(v VariableDetails) string {
	if v.SessionField != nil {
		return "Session." + *v.SessionField
	}
	return "$" + v.Name
}

// SessionFieldName renders col as a `Session.` qualified reference.
func SessionFieldName(col Column) string {
	return "Session." + col.Name
}
