package sql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pyreql/pyre/dialect"
)

// Builder is the low-level SQL string builder every higher-level builder in
// this package embeds. It owns identifier quoting and placeholder
// numbering, both of which are dialect-specific.
type Builder struct {
	sb      strings.Builder
	args    []any
	dialect string
	total   int // total placeholders written, for Postgres-style $N numbering
}

// Dialect returns a Builder scoped to the given dialect name. SQLite is the
// only dialect sqlgen emits for, but the builder stays dialect-aware so the
// same statements can be exercised against the other drivers the
// constraint-error classifier recognizes.
func Dialect(name string) *Builder {
	return &Builder{dialect: name}
}

// String returns the accumulated SQL text.
func (b *Builder) String() string { return b.sb.String() }

// Args returns the accumulated bound arguments, in placeholder order.
func (b *Builder) Args() []any { return b.args }

// Quote quotes an identifier for the builder's dialect.
func (b *Builder) Quote(ident string) string {
	switch b.dialect {
	case dialect.MySQL:
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	default: // SQLite and Postgres both accept double-quoted identifiers.
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
	}
}

// Ident writes a quoted identifier, or a dotted pair (table.column) quoted
// on both sides if ident contains a ".".
func (b *Builder) Ident(ident string) *Builder {
	if i := strings.IndexByte(ident, '.'); i >= 0 {
		b.sb.WriteString(b.Quote(ident[:i]))
		b.sb.WriteByte('.')
		b.sb.WriteString(b.Quote(ident[i+1:]))
		return b
	}
	b.sb.WriteString(b.Quote(ident))
	return b
}

// WriteString writes raw SQL text.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// WriteByte writes a single raw byte.
func (b *Builder) WriteByte(c byte) *Builder {
	b.sb.WriteByte(c)
	return b
}

// Arg writes a placeholder for v and records v as a bound argument.
func (b *Builder) Arg(v any) *Builder {
	b.args = append(b.args, v)
	b.total++
	if b.dialect == dialect.Postgres {
		b.sb.WriteByte('$')
		b.sb.WriteString(strconv.Itoa(b.total))
		return b
	}
	b.sb.WriteByte('?')
	return b
}

// JoinComma writes n comma-joined elements produced by write.
func (b *Builder) JoinComma(n int, write func(i int)) *Builder {
	for i := 0; i < n; i++ {
		if i > 0 {
			b.sb.WriteString(", ")
		}
		write(i)
	}
	return b
}

// P is a predicate: a fragment of SQL plus the arguments it binds, combined
// into a Builder's WHERE clause by And/Or/Not.
type P func(*Builder)

// EQ builds "ident = ?".
func EQ(ident string, v any) P {
	return func(b *Builder) {
		b.Ident(ident).WriteString(" = ").Arg(v)
	}
}

// NEQ builds "ident <> ?".
func NEQ(ident string, v any) P {
	return func(b *Builder) {
		b.Ident(ident).WriteString(" <> ").Arg(v)
	}
}

// GT builds "ident > ?".
func GT(ident string, v any) P {
	return func(b *Builder) { b.Ident(ident).WriteString(" > ").Arg(v) }
}

// GTE builds "ident >= ?".
func GTE(ident string, v any) P {
	return func(b *Builder) { b.Ident(ident).WriteString(" >= ").Arg(v) }
}

// LT builds "ident < ?".
func LT(ident string, v any) P {
	return func(b *Builder) { b.Ident(ident).WriteString(" < ").Arg(v) }
}

// LTE builds "ident <= ?".
func LTE(ident string, v any) P {
	return func(b *Builder) { b.Ident(ident).WriteString(" <= ").Arg(v) }
}

// Like builds "ident LIKE ?".
func Like(ident, pattern string) P {
	return func(b *Builder) { b.Ident(ident).WriteString(" LIKE ").Arg(pattern) }
}

// Contains builds a LIKE predicate matching any occurrence of v.
func Contains(ident, v string) P { return Like(ident, "%"+escapeLike(v)+"%") }

// HasPrefix builds a LIKE predicate matching a leading v.
func HasPrefix(ident, v string) P { return Like(ident, escapeLike(v)+"%") }

// HasSuffix builds a LIKE predicate matching a trailing v.
func HasSuffix(ident, v string) P { return Like(ident, "%"+escapeLike(v)) }

func escapeLike(v string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return r.Replace(v)
}

// IsNull builds "ident IS NULL".
func IsNull(ident string) P {
	return func(b *Builder) { b.Ident(ident).WriteString(" IS NULL") }
}

// NotNull builds "ident IS NOT NULL".
func NotNull(ident string) P {
	return func(b *Builder) { b.Ident(ident).WriteString(" IS NOT NULL") }
}

// In builds "ident IN (?, ?, ...)". An empty vs produces a predicate that
// never matches ("1 = 0"), since SQL's empty-IN-list is undefined.
func In[T any](ident string, vs ...T) P {
	return func(b *Builder) {
		if len(vs) == 0 {
			b.WriteString("1 = 0")
			return
		}
		b.Ident(ident).WriteString(" IN (")
		b.JoinComma(len(vs), func(i int) { b.Arg(vs[i]) })
		b.WriteByte(')')
	}
}

// And combines predicates with AND, parenthesized as a single unit.
func And(ps ...P) P {
	return func(b *Builder) {
		b.WriteByte('(')
		for i, p := range ps {
			if i > 0 {
				b.WriteString(" AND ")
			}
			p(b)
		}
		b.WriteByte(')')
	}
}

// Or combines predicates with OR, parenthesized as a single unit.
func Or(ps ...P) P {
	return func(b *Builder) {
		b.WriteByte('(')
		for i, p := range ps {
			if i > 0 {
				b.WriteString(" OR ")
			}
			p(b)
		}
		b.WriteByte(')')
	}
}

// Not negates a predicate.
func Not(p P) P {
	return func(b *Builder) {
		b.WriteString("NOT ")
		p(b)
	}
}

// OrderDirection is the sort direction of an ORDER BY term.
type OrderDirection string

// Supported sort directions.
const (
	OrderAsc  OrderDirection = "ASC"
	OrderDesc OrderDirection = "DESC"
)

// Selector builds a single SELECT statement. sqlgen nests one Selector as a
// correlated subquery per linked record; Selector renders no WITH clause,
// so no CTE form of a query is produced.
type Selector struct {
	*Builder
	table    string
	alias    string
	columns  []string
	joins    []joinClause
	where    P
	order    []orderTerm
	limit    *int
	offset   *int
	forLock  string
	distinct bool
}

type joinClause struct {
	kind  string // "JOIN", "LEFT JOIN"
	table string
	alias string
	on    P
}

type orderTerm struct {
	ident string
	dir   OrderDirection
}

// Select starts a Selector for the given dialect with the given output
// columns (raw SQL fragments, e.g. "u.id" or "json_object(...) AS data").
func Select(name string, columns ...string) *Selector {
	return &Selector{Builder: Dialect(name), columns: columns}
}

// From sets the Selector's source table and optional alias ("table AS alias").
func (s *Selector) From(table string, alias ...string) *Selector {
	s.table = table
	if len(alias) > 0 {
		s.alias = alias[0]
	}
	return s
}

// Distinct marks the Selector as SELECT DISTINCT.
func (s *Selector) Distinct() *Selector {
	s.distinct = true
	return s
}

// Join adds an inner join.
func (s *Selector) Join(table, alias string, on P) *Selector {
	s.joins = append(s.joins, joinClause{kind: "JOIN", table: table, alias: alias, on: on})
	return s
}

// LeftJoin adds a left outer join, used for the nullable side of an
// optional Link.
func (s *Selector) LeftJoin(table, alias string, on P) *Selector {
	s.joins = append(s.joins, joinClause{kind: "LEFT JOIN", table: table, alias: alias, on: on})
	return s
}

// Where sets the Selector's WHERE predicate, replacing any previous one.
func (s *Selector) Where(p P) *Selector {
	s.where = p
	return s
}

// OrderBy appends an ORDER BY term.
func (s *Selector) OrderBy(ident string, dir OrderDirection) *Selector {
	s.order = append(s.order, orderTerm{ident: ident, dir: dir})
	return s
}

// Limit sets a LIMIT clause on this Selector only. sqlgen sets it directly
// on the Selector of the level it belongs to, including a link's correlated
// subquery; a limit or offset does not switch sqlgen to another strategy.
func (s *Selector) Limit(n int) *Selector {
	s.limit = &n
	return s
}

// Offset sets an OFFSET clause.
func (s *Selector) Offset(n int) *Selector {
	s.offset = &n
	return s
}

// ForUpdate appends "FOR UPDATE" to the rendered statement, whatever the
// Selector's dialect.
func (s *Selector) ForUpdate() *Selector {
	s.forLock = "FOR UPDATE"
	return s
}

// Query renders the Selector into SQL text and its bound arguments.
func (s *Selector) Query() (string, []any) {
	b := Dialect(s.dialectName())
	b.WriteString("SELECT ")
	if s.distinct {
		b.WriteString("DISTINCT ")
	}
	if len(s.columns) == 0 {
		b.WriteByte('*')
	} else {
		b.WriteString(strings.Join(s.columns, ", "))
	}
	b.WriteString(" FROM ")
	b.Ident(s.table)
	if s.alias != "" {
		b.WriteString(" AS ")
		b.Ident(s.alias)
	}
	for _, j := range s.joins {
		b.WriteByte(' ')
		b.WriteString(j.kind)
		b.WriteByte(' ')
		b.Ident(j.table)
		b.WriteString(" AS ")
		b.Ident(j.alias)
		b.WriteString(" ON ")
		j.on(b)
	}
	if s.where != nil {
		b.WriteString(" WHERE ")
		s.where(b)
	}
	if len(s.order) > 0 {
		b.WriteString(" ORDER BY ")
		b.JoinComma(len(s.order), func(i int) {
			o := s.order[i]
			b.Ident(o.ident).WriteByte(' ').WriteString(string(o.dir))
		})
	}
	if s.limit != nil {
		fmt.Fprintf(&b.sb, " LIMIT %d", *s.limit)
	}
	if s.offset != nil {
		fmt.Fprintf(&b.sb, " OFFSET %d", *s.offset)
	}
	if s.forLock != "" {
		b.WriteByte(' ')
		b.WriteString(s.forLock)
	}
	return b.String(), b.Args()
}

func (s *Selector) dialectName() string {
	if s.Builder != nil {
		return s.Builder.dialect
	}
	return dialect.SQLite
}

// JSONObject renders `json_object('k1', v1, 'k2', v2, ...)`, used to fold a
// record's scalar fields into a single JSON value for the nested-select
// strategy.
func JSONObject(pairs ...string) string {
	if len(pairs)%2 != 0 {
		panic("sql: JSONObject requires an even number of arguments")
	}
	quoted := make([]string, len(pairs))
	for i, p := range pairs {
		if i%2 == 0 {
			quoted[i] = "'" + strings.ReplaceAll(p, "'", "''") + "'"
		} else {
			quoted[i] = p
		}
	}
	return "json_object(" + strings.Join(quoted, ", ") + ")"
}

// JSONGroupArray renders `json_group_array(expr)`, used to collect the rows
// of a to-many Link into a JSON array in a single correlated subquery.
func JSONGroupArray(expr string) string {
	return "json_group_array(" + expr + ")"
}

// InsertBuilder builds a single INSERT statement.
type InsertBuilder struct {
	*Builder
	table     string
	columns   []string
	returning []string
}

// InsertInto starts an InsertBuilder for the given table.
func InsertInto(name, table string) *InsertBuilder {
	return &InsertBuilder{Builder: Dialect(name), table: table}
}

// Columns sets the columns to insert, in order.
func (i *InsertBuilder) Columns(cols ...string) *InsertBuilder {
	i.columns = cols
	return i
}

// Returning requests RETURNING of the given columns (Postgres/SQLite only;
// MySQL callers use last_insert_rowid()-equivalent driver APIs instead).
func (i *InsertBuilder) Returning(cols ...string) *InsertBuilder {
	i.returning = cols
	return i
}

// Values renders one VALUES row of values, one per column in Columns order,
// and returns the finished SQL text and bound arguments.
func (i *InsertBuilder) Values(values ...any) (string, []any) {
	b := Dialect(i.dialectName())
	b.WriteString("INSERT INTO ")
	b.Ident(i.table)
	b.WriteString(" (")
	b.JoinComma(len(i.columns), func(idx int) { b.Ident(i.columns[idx]) })
	b.WriteString(") VALUES (")
	b.JoinComma(len(values), func(idx int) { b.Arg(values[idx]) })
	b.WriteByte(')')
	if len(i.returning) > 0 {
		b.WriteString(" RETURNING ")
		b.JoinComma(len(i.returning), func(idx int) { b.Ident(i.returning[idx]) })
	}
	return b.String(), b.Args()
}

func (i *InsertBuilder) dialectName() string {
	if i.Builder != nil {
		return i.Builder.dialect
	}
	return dialect.SQLite
}
