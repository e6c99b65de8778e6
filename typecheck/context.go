// Package typecheck resolves a parsed ast.Database into a Context: the
// compiled, validated projection consumed by sqlgen. It has two phases —
// CheckSchema builds the Context once; CheckQueries validates a QueryList
// against an existing Context for every later compilation.
package typecheck

import (
	"sort"

	"github.com/pyreql/pyre/ast"
)

// Context is the compiled, immutable projection of a Database. It is built
// once by CheckSchema and reused across many query compilations; the only
// mutation the typechecker ever performs on it afterward is internal to a
// single CheckQueries call (the current filepath, threaded as an explicit
// argument rather than stored on Context).
type Context struct {
	// Tables is keyed by "namespace.RecordName".
	Tables map[string]*Table
	// Types is keyed by "namespace.TypeName".
	Types map[string]*TaggedType
	// SessionFields is the set of field names declared in each namespace's
	// `session` block, keyed by namespace; a namespace with no session
	// block maps to an empty set. Used to validate Session.field
	// references in permission rules and @where clauses.
	SessionFields map[string]map[string]bool
	// permissionCache is keyed by (table key, operation).
	permissionCache map[permissionCacheKey]*ast.WhereArg
}

type permissionCacheKey struct {
	table string
	op    ast.QueryOperation
}

// Table is the typechecker's resolved view of one record: its canonical
// table name, its columns, its resolved links (including synthesised
// reciprocals), and its sync layer.
type Table struct {
	Namespace  string
	RecordName string
	TableName  string
	Columns    []ast.Column
	Links      []ResolvedLink
	Record     *ast.RecordDetails

	// SyncLayer is this table's depth in the link dependency DAG; see synclayer.go.
	SyncLayer int
}

// ResolvedLink is a link directive (explicit or synthesised) attached to a
// Table, with its foreign Table resolved by key.
type ResolvedLink struct {
	ast.LinkDetails
	// Synthesised is true for a reciprocal link typecheck generated rather
	// than one the user declared explicitly.
	Synthesised bool
	// ForeignKey is the resolved table key ("namespace.RecordName") of the
	// link's foreign table.
	ForeignKey string
}

// TaggedType is the typechecker's resolved view of one tagged union: its
// variants and the shared column shape every variant's fields lower to.
type TaggedType struct {
	Namespace string
	Name      string
	Variants  []ast.Variant
	// Fields maps a shared field name to its declared type string, enforced
	// identical across every variant that declares it.
	Fields map[string]string
}

// TableKey returns the Context lookup key for a table in namespace.
func TableKey(namespace, recordName string) string { return namespace + "." + recordName }

// TypeKey returns the Context lookup key for a tagged type in namespace.
func TypeKey(namespace, typeName string) string { return namespace + "." + typeName }

// Table looks up a resolved table by namespace and record name.
func (c *Context) Table(namespace, recordName string) (*Table, bool) {
	t, ok := c.Tables[TableKey(namespace, recordName)]
	return t, ok
}

// Type looks up a resolved tagged type by namespace and type name.
func (c *Context) Type(namespace, typeName string) (*TaggedType, bool) {
	t, ok := c.Types[TypeKey(namespace, typeName)]
	return t, ok
}

// Permissions returns the cached WhereArg for table (by key) and op, or nil
// if the operation carries no restriction (an absent permission rule, or
// @public).
func (c *Context) Permissions(tableKey string, op ast.QueryOperation) *ast.WhereArg {
	return c.permissionCache[permissionCacheKey{table: tableKey, op: op}]
}

// SortedTableKeys returns every table key in c, sorted for deterministic
// iteration (used anywhere output order must be stable, e.g. DDL emission).
func (c *Context) SortedTableKeys() []string {
	keys := make([]string, 0, len(c.Tables))
	for k := range c.Tables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
