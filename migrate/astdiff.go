// Package migrate diffs a declared Pyre schema against both an earlier
// declared schema (the AST-level diff, used to flag dangerous changes
// before any SQL is planned) and a live database's introspected shape (the
// DbDiff, used to plan DDL). It implements its own emission ordering rather
// than delegating to a generic differ, because the DDL a migration applies
// must follow a fixed, safety-motivated sequence: add tables, add columns,
// drop columns, drop tables, then record the new schema snapshot.
package migrate

import (
	"fmt"
	"sort"

	"github.com/pyreql/pyre/ast"
)

// SchemaDiff is the AST-level, definition-by-definition diff between two
// declared schemas: which records/tagged types were added or removed
// wholesale, and which existing ones changed shape.
type SchemaDiff struct {
	Added           []ast.Definition
	Removed         []ast.Definition
	ModifiedRecords []RecordDiff
	ModifiedTaggeds []TaggedDiff
}

// RecordDiff is the set of field-level changes found on one record that
// exists, under the same name, in both schemas.
type RecordDiff struct {
	Name    string
	Changes []RecordChange
}

// RecordChangeKind distinguishes the three ways a record's field list can
// change between two schema versions.
type RecordChangeKind int

const (
	FieldAdded RecordChangeKind = iota
	FieldRemoved
	FieldModified
)

// RecordChange is one field-level change within a RecordDiff.
type RecordChange struct {
	Kind   RecordChangeKind
	Column ast.Column // the added or removed column; for FieldModified, the new column
	Diff   *ColumnDiff
}

// ColumnDiff details exactly what changed about a column that survived
// under the same name: its declared type, its nullability, and the set of
// directives (@id/@unique/@default) it carries.
type ColumnDiff struct {
	TypeChanged       *TypeChange
	NullableChanged   *NullableChange
	AddedDirectives   []ast.ColumnDirective
	RemovedDirectives []ast.ColumnDirective
}

// TypeChange records a column's declared type string before and after.
type TypeChange struct{ Old, New string }

// NullableChange records a column's nullability before and after.
type NullableChange struct{ Old, New bool }

// TaggedDiff is the set of variant-level changes found on one tagged union
// that exists, under the same name, in both schemas.
type TaggedDiff struct {
	Name    string
	Changes []TaggedChange
}

// TaggedChangeKind distinguishes the three ways a tagged union's variant
// list can change between two schema versions.
type TaggedChangeKind int

const (
	VariantAdded TaggedChangeKind = iota
	VariantRemoved
	VariantModified
)

// TaggedChange is one variant-level change within a TaggedDiff.
type TaggedChange struct {
	Kind       TaggedChangeKind
	Variant    ast.Variant // the added or removed variant; for VariantModified, the new variant
	OldVariant ast.Variant // only set for VariantModified
}

// DiffSchema compares two declared Schemas' record and tagged-type
// definitions by name, ignoring Lines/Comment/Session definitions (those
// carry no data shape to migrate).
func DiffSchema(previous, next *ast.Schema) SchemaDiff {
	prevDefs := namedDefinitions(previous)
	nextDefs := namedDefinitions(next)

	var diff SchemaDiff
	for _, name := range sortedKeys(nextDefs) {
		nextDef := nextDefs[name]
		prevDef, existed := prevDefs[name]
		if !existed {
			diff.Added = append(diff.Added, nextDef)
			continue
		}
		switch nd := nextDef.(type) {
		case ast.TaggedDefinition:
			pd, ok := prevDef.(ast.TaggedDefinition)
			if !ok {
				continue // name collision across kinds; nothing sensible to diff
			}
			if changes := diffVariants(pd.Variants, nd.Variants); len(changes) > 0 {
				diff.ModifiedTaggeds = append(diff.ModifiedTaggeds, TaggedDiff{Name: name, Changes: changes})
			}
		case ast.RecordDefinition:
			pd, ok := prevDef.(ast.RecordDefinition)
			if !ok {
				continue
			}
			if changes := diffFields(ast.CollectColumns(pd.Fields), ast.CollectColumns(nd.Fields)); len(changes) > 0 {
				diff.ModifiedRecords = append(diff.ModifiedRecords, RecordDiff{Name: name, Changes: changes})
			}
		}
	}
	for _, name := range sortedKeys(prevDefs) {
		if _, stillExists := nextDefs[name]; !stillExists {
			diff.Removed = append(diff.Removed, prevDefs[name])
		}
	}
	return diff
}

func namedDefinitions(schema *ast.Schema) map[string]ast.Definition {
	defs := make(map[string]ast.Definition)
	for _, file := range schema.Files {
		for _, def := range file.Definitions {
			switch d := def.(type) {
			case ast.RecordDefinition:
				defs[d.Name] = d
			case ast.TaggedDefinition:
				defs[d.Name] = d
			}
		}
	}
	return defs
}

func diffFields(prev, next []ast.Column) []RecordChange {
	var changes []RecordChange
	nextByName := make(map[string]ast.Column, len(next))
	for _, c := range next {
		nextByName[c.Name] = c
	}
	prevByName := make(map[string]ast.Column, len(prev))
	for _, c := range prev {
		prevByName[c.Name] = c
	}

	for _, c := range next {
		old, existed := prevByName[c.Name]
		if !existed {
			changes = append(changes, RecordChange{Kind: FieldAdded, Column: c})
			continue
		}
		if d := diffColumn(old, c); d != nil {
			changes = append(changes, RecordChange{Kind: FieldModified, Column: c, Diff: d})
		}
	}
	for _, c := range prev {
		if _, stillExists := nextByName[c.Name]; !stillExists {
			changes = append(changes, RecordChange{Kind: FieldRemoved, Column: c})
		}
	}
	return changes
}

func diffColumn(old, next ast.Column) *ColumnDiff {
	var d ColumnDiff
	changed := false

	if old.Type != next.Type {
		d.TypeChanged = &TypeChange{Old: old.Type, New: next.Type}
		changed = true
	}
	if old.Nullable != next.Nullable {
		d.NullableChanged = &NullableChange{Old: old.Nullable, New: next.Nullable}
		changed = true
	}

	oldDirectives := directivesByKey(old.Directives)
	newDirectives := directivesByKey(next.Directives)
	for _, key := range sortedKeys(newDirectives) {
		if _, ok := oldDirectives[key]; !ok {
			d.AddedDirectives = append(d.AddedDirectives, newDirectives[key])
			changed = true
		}
	}
	for _, key := range sortedKeys(oldDirectives) {
		if _, ok := newDirectives[key]; !ok {
			d.RemovedDirectives = append(d.RemovedDirectives, oldDirectives[key])
			changed = true
		}
	}

	if !changed {
		return nil
	}
	return &d
}

// directivesByKey keys a column's directives the way the schema's own
// uniqueness rules do: at most one @id, one @unique, and one @default per
// id string, so added/removed computation is a plain map diff.
func directivesByKey(directives []ast.ColumnDirective) map[string]ast.ColumnDirective {
	out := make(map[string]ast.ColumnDirective, len(directives))
	for _, d := range directives {
		switch dd := d.(type) {
		case ast.PrimaryKeyDirective:
			out["_key"] = dd
		case ast.UniqueDirective:
			out["_uniq"] = dd
		case ast.DefaultDirective:
			out[dd.ID] = dd
		}
	}
	return out
}

func diffVariants(prev, next []ast.Variant) []TaggedChange {
	var changes []TaggedChange
	nextByName := make(map[string]ast.Variant, len(next))
	for _, v := range next {
		nextByName[v.Name] = v
	}
	prevByName := make(map[string]ast.Variant, len(prev))
	for _, v := range prev {
		prevByName[v.Name] = v
	}

	for _, v := range next {
		old, existed := prevByName[v.Name]
		if !existed {
			changes = append(changes, TaggedChange{Kind: VariantAdded, Variant: v})
			continue
		}
		if !variantsEqual(old, v) {
			changes = append(changes, TaggedChange{Kind: VariantModified, Variant: v, OldVariant: old})
		}
	}
	for _, v := range prev {
		if _, stillExists := nextByName[v.Name]; !stillExists {
			changes = append(changes, TaggedChange{Kind: VariantRemoved, Variant: v})
		}
	}
	return changes
}

// variantsEqual compares two variants by their columns' name/type/nullable
// triples only; source positions and directive identity never affect
// whether a migration needs to react to a variant change.
func variantsEqual(a, b ast.Variant) bool {
	ac, bc := ast.CollectColumns(a.Fields), ast.CollectColumns(b.Fields)
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if ac[i].Name != bc[i].Name || ac[i].Type != bc[i].Type || ac[i].Nullable != bc[i].Nullable {
			return false
		}
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToErrors lists every dangerous change in diff as a DangerousChange: a
// removed record or tagged type, a removed column, a removed tagged
// variant, any change to a column's declared type (whichever direction it
// goes; no type change is classed as a safe widening), and a
// nullable->non-nullable change, so a caller can choose to abort rather
// than silently apply a change that can fail against existing data. Added
// fields/variants and a column becoming nullable are omitted.
func (diff SchemaDiff) ToErrors() []DangerousChange {
	var out []DangerousChange

	for _, def := range diff.Removed {
		switch d := def.(type) {
		case ast.RecordDefinition:
			out = append(out, DangerousChange{Table: d.Name, Message: fmt.Sprintf("record %q was removed from the schema", d.Name)})
		case ast.TaggedDefinition:
			out = append(out, DangerousChange{Table: d.Name, Message: fmt.Sprintf("tagged type %q was removed from the schema", d.Name)})
		}
	}

	for _, rd := range diff.ModifiedRecords {
		for _, change := range rd.Changes {
			switch change.Kind {
			case FieldRemoved:
				out = append(out, DangerousChange{
					Table: rd.Name, Column: change.Column.Name,
					Message: fmt.Sprintf("column %q was removed from %q", change.Column.Name, rd.Name),
				})
			case FieldModified:
				if change.Diff.TypeChanged != nil {
					out = append(out, DangerousChange{
						Table: rd.Name, Column: change.Column.Name,
						Message: fmt.Sprintf("column %q changed type from %q to %q", change.Column.Name, change.Diff.TypeChanged.Old, change.Diff.TypeChanged.New),
					})
				}
				if change.Diff.NullableChanged != nil && change.Diff.NullableChanged.Old && !change.Diff.NullableChanged.New {
					out = append(out, DangerousChange{
						Table: rd.Name, Column: change.Column.Name,
						Message: fmt.Sprintf("column %q became required where it was previously nullable", change.Column.Name),
					})
				}
			}
		}
	}

	for _, td := range diff.ModifiedTaggeds {
		for _, change := range td.Changes {
			if change.Kind == VariantRemoved {
				out = append(out, DangerousChange{
					Table: td.Name, Column: change.Variant.Name,
					Message: fmt.Sprintf("variant %q was removed from tagged type %q", change.Variant.Name, td.Name),
				})
			}
		}
	}

	return out
}

// DangerousChange is one change ToErrors refuses to pass through silently.
type DangerousChange struct {
	Table   string
	Column  string
	Message string
}
