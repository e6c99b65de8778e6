package ast

import (
	"fmt"
	"strings"

	"github.com/go-openapi/inflect"
)

// DefaultSchemaName is the namespace assumed when a schema declares none.
const DefaultSchemaName = "_default"

// Database is an ordered set of Schemas.
type Database struct {
	Schemas []*Schema
}

// Schema is a namespace plus at most one SessionDetails and an ordered list
// of source files contributing definitions to it.
type Schema struct {
	Namespace string
	Session   *SessionDetails
	Files     []*SchemaFile
}

// NewSchema returns a Schema defaulted to DefaultSchemaName.
func NewSchema() *Schema {
	return &Schema{Namespace: DefaultSchemaName}
}

// IsEmpty reports whether schema has no definitions in any of its files.
func (s *Schema) IsEmpty() bool {
	for _, f := range s.Files {
		if len(f.Definitions) > 0 {
			return false
		}
	}
	return true
}

// SessionDetails is the ordered list of fields declared inside a `session`
// block, addressable in queries and permissions as Session.fieldName.
type SessionDetails struct {
	Fields []Field
	Start  *Location
	End    *Location
}

// SchemaFile is one parsed `.pyre` schema file: its path plus the ordered
// definitions it contributed.
type SchemaFile struct {
	Path        string
	Definitions []Definition
}

// Definition is the tagged sum of top-level schema elements: blank-line
// runs, standalone comments, records, tagged unions, and the session block.
type Definition interface{ isDefinition() }

// LinesDefinition preserves a run of blank lines for the formatter.
type LinesDefinition struct{ Count int }

// CommentDefinition is a standalone `//` comment between definitions.
type CommentDefinition struct{ Text string }

// SessionDefinition wraps a schema's session block as a Definition.
type SessionDefinition struct{ Details SessionDetails }

// RecordDefinition declares a table-shaped entity.
type RecordDefinition struct {
	Name      string
	Fields    []Field
	Start     *Location
	End       *Location
	StartName *Location
	EndName   *Location
}

// TaggedDefinition declares a tagged union (sum) type.
type TaggedDefinition struct {
	Name     string
	Variants []Variant
	Start    *Location
	End      *Location
}

func (LinesDefinition) isDefinition()   {}
func (CommentDefinition) isDefinition() {}
func (SessionDefinition) isDefinition() {}
func (RecordDefinition) isDefinition()  {}
func (TaggedDefinition) isDefinition()  {}

// RecordDetails is the typechecker's view of a parsed record: the same
// shape as RecordDefinition, used once a record has been looked up by name
// rather than walked positionally.
type RecordDetails struct {
	Name      string
	Fields    []Field
	Start     *Location
	End       *Location
	StartName *Location
	EndName   *Location
}

// Variant is one arm of a tagged union, with an optional field list (bare
// variants carry none).
type Variant struct {
	Name      string
	Fields    []Field
	Start     *Location
	End       *Location
	StartName *Location
	EndName   *Location
}

// BareVariant returns a Variant with no fields, for tagged-union arms
// declared without a `{ ... }` block.
func BareVariant(name string) Variant {
	return Variant{Name: name}
}

// Field is the tagged sum of what can appear inside a record or session
// body: a column, a blank-line run, an inline comment, or a directive.
type Field interface{ isField() }

// ColumnField wraps a Column as a Field.
type ColumnField struct{ Column Column }

// ColumnLinesField preserves a blank-line run between columns.
type ColumnLinesField struct{ Count int }

// ColumnCommentField is an inline or standalone comment between columns.
type ColumnCommentField struct{ Text string }

// FieldDirectiveField wraps a FieldDirective as a Field.
type FieldDirectiveField struct{ Directive FieldDirective }

func (ColumnField) isField()         {}
func (ColumnLinesField) isField()    {}
func (ColumnCommentField) isField()  {}
func (FieldDirectiveField) isField() {}

// Column is a single scalar or tagged-union-typed field of a record.
type Column struct {
	Name              string
	Type              string
	SerializationType SerializationType
	Nullable          bool
	Directives        []ColumnDirective

	Start            *Location
	End              *Location
	StartName        *Location
	EndName          *Location
	StartTypeName    *Location
	EndTypeName      *Location
}

// ColumnDirective is the tagged sum of per-column directives.
type ColumnDirective interface{ isColumnDirective() }

// PrimaryKeyDirective marks a column as the record's `@id`.
type PrimaryKeyDirective struct{}

// UniqueDirective marks a column `@unique`.
type UniqueDirective struct{}

// DefaultDirective records a column's `@default(...)`.
type DefaultDirective struct {
	ID    string
	Value DefaultValue
}

func (PrimaryKeyDirective) isColumnDirective() {}
func (UniqueDirective) isColumnDirective()     {}
func (DefaultDirective) isColumnDirective()    {}

// DefaultValue is the tagged sum of what `@default(...)` can hold.
type DefaultValue interface{ isDefaultValue() }

// NowDefault is `@default(now)`.
type NowDefault struct{}

// UuidDefault is `@default(uuid)`: a random v4 UUID generated fresh for
// every inserted row, the branded-ID counterpart to NowDefault's clock.
type UuidDefault struct{}

// LiteralDefault is `@default(<literal>)`.
type LiteralDefault struct{ Value QueryValue }

func (NowDefault) isDefaultValue()      {}
func (UuidDefault) isDefaultValue()     {}
func (LiteralDefault) isDefaultValue()  {}

// SerializationType is the tagged sum describing how a column's declared
// type lowers to a physical SQL type: either a concrete primitive, or a
// reference to another named tagged-union type resolved during typecheck.
type SerializationType interface{ isSerializationType() }

// ConcreteSerialization wraps a ConcreteSerializationType.
type ConcreteSerialization struct{ Kind ConcreteSerializationType }

// NamedSerialization defers to a tagged-union type looked up by name.
type NamedSerialization struct{ TypeName string }

func (ConcreteSerialization) isSerializationType() {}
func (NamedSerialization) isSerializationType()    {}

// ConcreteSerializationType enumerates the scalar kinds a column can hold,
// per SQLite's storage classes (https://sqlite.org/datatype3.html).
type ConcreteSerializationType int

const (
	Integer ConcreteSerializationType = iota
	Real
	Text
	Blob
	Date     // stored as TEXT
	DateTime // stored as an INTEGER unix epoch
	JSONB    // a BLOB known to hold valid JSON
	VectorBlob
)

// ToSQLType maps a concrete serialization kind to its SQLite column type.
// Round-trip precision for sub-second DateTime values is not addressed.
func (k ConcreteSerializationType) ToSQLType() string {
	switch k {
	case Integer, DateTime:
		return "INTEGER"
	case Real:
		return "REAL"
	case Text, Date:
		return "TEXT"
	case Blob, JSONB, VectorBlob:
		return "BLOB"
	default:
		return "TEXT"
	}
}

// VectorType names a fixed-width vector element type, per
// https://docs.turso.tech/features/ai-and-embeddings#types.
type VectorType int

const (
	Float64 VectorType = iota
	Float32
	Float16
	BFloat16
	Float8
	Float1
)

// FieldDirective is the tagged sum of directives that can appear at field
// position inside a record or session body.
type FieldDirective interface{ isFieldDirective() }

// WatchedDirective marks a record `@watched(...)`.
type WatchedDirective struct{ Details WatchedDetails }

// TableNameDirective overrides a record's table name via `@tablename "..."`.
type TableNameDirective struct {
	Span Range
	Name string
}

// LinkDirective declares a relationship to another record.
type LinkDirective struct{ Details LinkDetails }

// PermissionsDirective declares a record's access-control rules.
type PermissionsDirective struct{ Details PermissionDetails }

func (WatchedDirective) isFieldDirective()     {}
func (TableNameDirective) isFieldDirective()   {}
func (LinkDirective) isFieldDirective()        {}
func (PermissionsDirective) isFieldDirective() {}

// PermissionDetails is the tagged sum of the two accepted `@permissions`
// shapes: a single bare where-clause applied to every operation, or a block
// of per-operation rules.
type PermissionDetails interface{ isPermissionDetails() }

// StarPermission applies the same WhereArg to every operation.
type StarPermission struct{ Where WhereArg }

// OnOperationPermission carries one WhereArg per listed operation set.
type OnOperationPermission struct{ Rules []PermissionOnOperation }

func (StarPermission) isPermissionDetails()        {}
func (OnOperationPermission) isPermissionDetails() {}

// PermissionOnOperation is one `op[, op...] { where }` rule.
type PermissionOnOperation struct {
	Operations []QueryOperation
	Where      WhereArg
}

// WatchedDetails records which operations a `@watched` directive observes.
// The compiler core accepts and preserves this directive but does not act
// on it; it is consumed by the peripheral sync/delta subsystem.
type WatchedDetails struct {
	Selects bool
	Inserts bool
	Updates bool
	Deletes bool
}

// LinkDetails describes a declared relationship: the link's own name, the
// local columns that hold the foreign key, and the foreign table/columns it
// targets.
type LinkDetails struct {
	LinkName  string
	LocalIDs  []string
	Foreign   Qualified
	StartName *Location
	EndName   *Location
}

// Qualified names a (schema, table, fields) tuple, used as a link target.
type Qualified struct {
	Schema string
	Table  string
	Fields []string
}

// GetPermissions returns the WhereArg governing op on record, or nil if the
// record's permission directive grants no special access for op (an absent
// rule on an OnOperationPermission) or the record somehow carries none (a
// typecheck error elsewhere would have already caught this).
func GetPermissions(record *RecordDetails, op QueryOperation) *WhereArg {
	for _, f := range record.Fields {
		fd, ok := f.(FieldDirectiveField)
		if !ok {
			continue
		}
		perm, ok := fd.Directive.(PermissionsDirective)
		if !ok {
			continue
		}
		switch p := perm.Details.(type) {
		case StarPermission:
			if p.Where == nil {
				return nil // @public: no predicate restricts this operation.
			}
			w := p.Where
			return &w
		case OnOperationPermission:
			var matching []WhereArg
			for _, rule := range p.Rules {
				for _, o := range rule.Operations {
					if o == op {
						matching = append(matching, rule.Where)
					}
				}
			}
			switch len(matching) {
			case 0:
				return nil
			case 1:
				return &matching[0]
			default:
				w := WhereArg(AndWhere{Args: matching})
				return &w
			}
		}
	}
	return nil
}

// HasDefaultValue reports whether col carries an `@default` directive.
func HasDefaultValue(col Column) bool {
	for _, d := range col.Directives {
		if _, ok := d.(DefaultDirective); ok {
			return true
		}
	}
	return false
}

// IsPrimaryKey reports whether col carries the `@id` directive.
func IsPrimaryKey(col Column) bool {
	for _, d := range col.Directives {
		if _, ok := d.(PrimaryKeyDirective); ok {
			return true
		}
	}
	return false
}

// GetPrimaryIDFieldName returns the name of the field carrying `@id`, if any.
func GetPrimaryIDFieldName(fields []Field) (string, bool) {
	for _, f := range fields {
		if cf, ok := f.(ColumnField); ok && IsPrimaryKey(cf.Column) {
			return cf.Column.Name, true
		}
	}
	return "", false
}

// IsFieldPrimaryKey reports whether any of fieldNames names the record's
// primary key column.
func IsFieldPrimaryKey(fieldNames []string, fields []Field) bool {
	for _, f := range fields {
		cf, ok := f.(ColumnField)
		if !ok || !IsPrimaryKey(cf.Column) {
			continue
		}
		for _, n := range fieldNames {
			if n == cf.Column.Name {
				return true
			}
		}
	}
	return false
}

// ToWatchedOperations flattens a record's `@watched` directive (if any)
// into the set of operations it observes.
func ToWatchedOperations(record *RecordDetails) []QueryOperation {
	var ops []QueryOperation
	for _, f := range record.Fields {
		fd, ok := f.(FieldDirectiveField)
		if !ok {
			continue
		}
		w, ok := fd.Directive.(WatchedDirective)
		if !ok {
			continue
		}
		if w.Details.Selects {
			ops = append(ops, Select)
		}
		if w.Details.Inserts {
			ops = append(ops, Insert)
		}
		if w.Details.Updates {
			ops = append(ops, Update)
		}
		if w.Details.Deletes {
			ops = append(ops, Delete)
		}
	}
	return ops
}

// GetTablename resolves a record's canonical table name: an explicit
// `@tablename` override if present, otherwise the pluralised,
// decapitalised record name.
func GetTablename(recordName string, fields []Field) string {
	for _, f := range fields {
		fd, ok := f.(FieldDirectiveField)
		if !ok {
			continue
		}
		if tn, ok := fd.Directive.(TableNameDirective); ok {
			return tn.Name
		}
	}
	return inflect.Pluralize(decapitalize(recordName))
}

func decapitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// HasFieldname reports whether field is a Column named desiredName.
func HasFieldname(field Field, desiredName string) bool {
	cf, ok := field.(ColumnField)
	return ok && cf.Column.Name == desiredName
}

// HasFieldOrLinkname reports whether field is a Column or a Link named
// desiredName.
func HasFieldOrLinkname(field Field, desiredName string) bool {
	switch f := field.(type) {
	case ColumnField:
		return f.Column.Name == desiredName
	case FieldDirectiveField:
		if l, ok := f.Directive.(LinkDirective); ok {
			return l.Details.LinkName == desiredName
		}
	}
	return false
}

// HasLinkNamed reports whether field is a Link named desiredName.
func HasLinkNamed(field Field, desiredName string) bool {
	fd, ok := field.(FieldDirectiveField)
	if !ok {
		return false
	}
	l, ok := fd.Directive.(LinkDirective)
	return ok && l.Details.LinkName == desiredName
}

// IsColumn reports whether field is a Column.
func IsColumn(field Field) bool {
	_, ok := field.(ColumnField)
	return ok
}

// IsColumnSpace reports whether field is a blank-line run.
func IsColumnSpace(field Field) bool {
	_, ok := field.(ColumnLinesField)
	return ok
}

// LinkEquivalent reports whether two links share the same local columns
// and foreign target, regardless of their own names. Used to detect that a
// reciprocal link synthesised by typecheck already exists explicitly.
func LinkEquivalent(a, b LinkDetails) bool {
	if len(a.LocalIDs) != len(b.LocalIDs) {
		return false
	}
	for i := range a.LocalIDs {
		if a.LocalIDs[i] != b.LocalIDs[i] {
			return false
		}
	}
	return qualifiedFieldsEqual(a.Foreign, b.Foreign)
}

func qualifiedFieldsEqual(a, b Qualified) bool {
	if a.Schema != b.Schema || a.Table != b.Table || len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Fields {
		if a.Fields[i] != b.Fields[i] {
			return false
		}
	}
	return true
}

// LinkIdentity returns a deterministic name for the foreign-key constraint
// a link lowers to.
func LinkIdentity(localTable string, link LinkDetails) string {
	return fmt.Sprintf("%s_%s_%s_%s_fk",
		localTable,
		strings.Join(link.LocalIDs, "_"),
		link.Foreign.Table,
		strings.Join(link.Foreign.Fields, "-"),
	)
}

// LinkedToUniqueField is a cheap, name-only fallback: it assumes a link
// targeting a field literally named "id" is unique without consulting the
// foreign record's schema. Prefer LinkedToUniqueFieldWithRecord.
func LinkedToUniqueField(link LinkDetails) bool {
	for _, f := range link.Foreign.Fields {
		if f == "id" {
			return true
		}
	}
	return false
}

// LinkedToUniqueFieldWithRecord checks whether link targets a column (or,
// for a single-field link, the column) carrying @id or @unique on
// foreignRecord. Composite UNIQUE constraints across multiple link fields
// are not yet validated; such links fall back to requiring every field be
// named "id".
func LinkedToUniqueFieldWithRecord(link LinkDetails, foreignRecord *RecordDetails) bool {
	if len(link.Foreign.Fields) == 1 {
		name := link.Foreign.Fields[0]
		for _, f := range foreignRecord.Fields {
			cf, ok := f.(ColumnField)
			if !ok || cf.Column.Name != name {
				continue
			}
			for _, d := range cf.Column.Directives {
				switch d.(type) {
				case PrimaryKeyDirective, UniqueDirective:
					return true
				}
			}
			return false
		}
	}
	for _, f := range link.Foreign.Fields {
		if f != "id" {
			return false
		}
	}
	return true
}

// ToReciprocal builds the implicit reverse link a foreign record gains when
// another record links to it: named after the pluralised, decapitalised
// local table, pointing back at the original link's local columns.
func ToReciprocal(localNamespace, localTable string, link LinkDetails) LinkDetails {
	return LinkDetails{
		LinkName: inflect.Pluralize(decapitalize(localTable)),
		LocalIDs: link.Foreign.Fields,
		Foreign: Qualified{
			Schema: localNamespace,
			Table:  localTable,
			Fields: link.LocalIDs,
		},
	}
}

// GetForeignTablename resolves the canonical table name of a link's target
// record by scanning schema for a matching Record definition. Falls back to
// the raw record name if the record cannot be found (e.g. cross-namespace
// links not yet resolved).
func GetForeignTablename(schema *Schema, link LinkDetails) string {
	for _, file := range schema.Files {
		for _, def := range file.Definitions {
			rd, ok := def.(RecordDefinition)
			if !ok || rd.Name != link.Foreign.Table {
				continue
			}
			return GetTablename(rd.Name, rd.Fields)
		}
	}
	return link.Foreign.Table
}

// CollectColumns returns every Column among fields, in order.
func CollectColumns(fields []Field) []Column {
	var cols []Column
	for _, f := range fields {
		if cf, ok := f.(ColumnField); ok {
			cols = append(cols, cf.Column)
		}
	}
	return cols
}

// CollectLinks returns every LinkDetails among fields, in order.
func CollectLinks(fields []Field) []LinkDetails {
	var links []LinkDetails
	for _, f := range fields {
		fd, ok := f.(FieldDirectiveField)
		if !ok {
			continue
		}
		if l, ok := fd.Directive.(LinkDirective); ok {
			links = append(links, l.Details)
		}
	}
	return links
}
