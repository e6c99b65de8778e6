package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	atlasschema "ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"

	"github.com/pyreql/pyre/ast"
	"github.com/pyreql/pyre/typecheck"
)

// PhysicalColumn is one column of a table's physical, SQL-level layout:
// what a tagged-union field or a plain scalar column lowers to once the
// discriminator-plus-shared-fields expansion has been applied.
type PhysicalColumn struct {
	Name       string
	SQLType    string // lower-cased, e.g. "integer", "text", "real", "blob"
	NotNull    bool
	Default    string // a ready-to-splice SQL literal/expression, or "" for none
	PrimaryKey bool
}

// ForeignKey is a link's lowering to an inline FK clause: the local columns
// holding the reference and the table/columns they point at.
type ForeignKey struct {
	Columns    []string
	RefTable   string
	RefColumns []string
}

// PhysicalTable is one record's full physical layout: its table name, its
// columns in declaration order (tagged-union columns expanded), and its
// foreign keys.
type PhysicalTable struct {
	Name        string
	Columns     []PhysicalColumn
	ForeignKeys []ForeignKey
}

// DeclaredTables projects every record in schema into its PhysicalTable
// shape, the way db/diff.rs's create_table_from_fields does: walking each
// record's columns, expanding a tagged-union-typed column into its
// discriminator column plus one nullable `<col>__<field>` column per shared
// variant field.
func DeclaredTables(ctx *typecheck.Context, schema *ast.Schema) []PhysicalTable {
	var tables []PhysicalTable
	for _, file := range schema.Files {
		for _, def := range file.Definitions {
			record, ok := def.(ast.RecordDefinition)
			if !ok {
				continue
			}
			tables = append(tables, physicalTableFromRecord(ctx, schema.Namespace, record))
		}
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return tables
}

func physicalTableFromRecord(ctx *typecheck.Context, namespace string, record ast.RecordDefinition) PhysicalTable {
	t := PhysicalTable{Name: ast.GetTablename(record.Name, record.Fields)}
	seen := make(map[string]bool)
	addFields(ctx, namespace, ast.CollectColumns(record.Fields), &t, "", seen, false)

	for _, link := range ast.CollectLinks(record.Fields) {
		refSchema := schema(ctx, namespace, link)
		t.ForeignKeys = append(t.ForeignKeys, ForeignKey{
			Columns:    link.LocalIDs,
			RefTable:   ast.GetForeignTablename(refSchema, link),
			RefColumns: link.Foreign.Fields,
		})
	}
	return t
}

// schema looks up the ast.Schema a link's declared (possibly
// cross-namespace) target lives in, falling back to the asking table's own
// namespace's schema when no override is recorded. DeclaredTables is always
// called per-schema, so this only needs the current schema's definitions
// visible to GetForeignTablename's own record scan.
func schema(ctx *typecheck.Context, namespace string, link ast.LinkDetails) *ast.Schema {
	// GetForeignTablename only needs a schema to scan for a matching record
	// name; reconstructing one from the resolved table is sufficient since
	// physicalTableFromRecord only needs the *name*, not the full record.
	fk := link.Foreign
	if fk.Schema == "" {
		fk.Schema = namespace
	}
	if t, ok := ctx.Table(fk.Schema, fk.Table); ok {
		return &ast.Schema{Namespace: fk.Schema, Files: []*ast.SchemaFile{{
			Definitions: []ast.Definition{ast.RecordDefinition{Name: t.RecordName, Fields: t.Record.Fields}},
		}}}
	}
	return &ast.Schema{Namespace: fk.Schema}
}

// addFields lowers fields into columns, recursing into a tagged-union
// column's variants (forcing their shared fields nullable, since only one
// variant's fields are populated per row) the way db/diff.rs's add_fields
// does. namespace prefix builds a variant field's physical column name as
// "<column>__<field>".
func addFields(ctx *typecheck.Context, namespace string, fields []ast.Column, t *PhysicalTable, prefix string, seen map[string]bool, forceNullable bool) {
	for _, col := range fields {
		name := col.Name
		if prefix != "" {
			name = prefix + "__" + col.Name
		}
		if seen[name] {
			continue
		}
		seen[name] = true

		defaultSQL := defaultValueSQL(col)
		if tt, ok := ctx.Type(namespace, col.Type); ok {
			t.Columns = append(t.Columns, PhysicalColumn{
				Name:    name,
				SQLType: strings.ToLower(ast.Text.ToSQLType()),
				NotNull: !forceNullable && !col.Nullable,
			})
			for _, fieldName := range sortedKeys(tt.Fields) {
				addFields(ctx, namespace, []ast.Column{{Name: fieldName, Type: tt.Fields[fieldName]}}, t, name, seen, true)
			}
			continue
		}

		t.Columns = append(t.Columns, PhysicalColumn{
			Name:       name,
			SQLType:    strings.ToLower(concreteSQLType(col.Type)),
			NotNull:    !forceNullable && !col.Nullable,
			Default:    defaultSQL,
			PrimaryKey: ast.IsPrimaryKey(col),
		})
	}
}

// concreteSQLType maps a column's declared primitive type name to its
// SQLite storage class, mirroring ast.ConcreteSerializationType.ToSQLType.
func concreteSQLType(typeName string) string {
	switch typeName {
	case "Int":
		return "INTEGER"
	case "Float":
		return "REAL"
	case "String", "Date":
		return "TEXT"
	case "DateTime":
		return "INTEGER"
	case "Bool":
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// sqliteUuidV4Expr generates a random v4 UUID string entirely in SQL,
// evaluated fresh per inserted row: no application code ever sees or mints
// the value, so @default(uuid) costs nothing beyond the DDL default clause.
const sqliteUuidV4Expr = `lower(hex(randomblob(4)) || '-' || hex(randomblob(2)) || ` +
	`'-4' || substr(hex(randomblob(2)), 2) || '-' || ` +
	`substr('89ab', abs(random()) % 4 + 1, 1) || substr(hex(randomblob(2)), 2) || ` +
	`'-' || hex(randomblob(6)))`

func defaultValueSQL(col ast.Column) string {
	for _, d := range col.Directives {
		dd, ok := d.(ast.DefaultDirective)
		if !ok {
			continue
		}
		switch v := dd.Value.(type) {
		case ast.NowDefault:
			return "(unixepoch())"
		case ast.UuidDefault:
			return "(" + sqliteUuidV4Expr + ")"
		case ast.LiteralDefault:
			return "(" + literalSQL(v.Value) + ")"
		}
	}
	return ""
}

func literalSQL(v ast.QueryValue) string {
	switch val := v.(type) {
	case ast.StringValue:
		return "'" + strings.ReplaceAll(val.Value, "'", "''") + "'"
	case ast.IntValue:
		return fmt.Sprintf("%d", val.Value)
	case ast.FloatValue:
		return fmt.Sprintf("%v", val.Value)
	case ast.BoolValue:
		if val.Value {
			return "1"
		}
		return "0"
	case ast.NullValue:
		return "null"
	default:
		return "null"
	}
}

// DbDiff is the introspection-level diff between a declared schema's
// physical layout and a live database's introspected layout: tables to add
// wholesale, tables no longer declared, and per-table column adds/drops/
// alterations for tables present in both. Column comparison uses
// lower-cased SQL type strings and NOT NULL flags, per spec.
type DbDiff struct {
	AddedTables   []PhysicalTable
	DroppedTables []PhysicalTable
	ModifiedTables []TableDiff
}

// TableDiff is the column-level diff for one table that exists in both the
// declared schema and the live database.
type TableDiff struct {
	Name           string
	AddedColumns   []PhysicalColumn
	DroppedColumns []PhysicalColumn
	AlteredColumns []ColumnAlteration
}

// ColumnAlteration is a column present under the same name on both sides
// whose type or nullability differs.
type ColumnAlteration struct {
	Name          string
	OldSQLType    string
	NewSQLType    string
	OldNotNull    bool
	NewNotNull    bool
}

// DiffTables compares declared (the schema's own physical projection,
// from DeclaredTables) against introspected (the live database's tables,
// from Introspect) and returns the DbDiff to plan DDL from.
func DiffTables(declared []PhysicalTable, introspected []*atlasschema.Table) DbDiff {
	var diff DbDiff

	introByName := make(map[string]*atlasschema.Table, len(introspected))
	for _, t := range introspected {
		introByName[t.Name] = t
	}
	declaredByName := make(map[string]PhysicalTable, len(declared))
	for _, t := range declared {
		declaredByName[t.Name] = t
	}

	for _, t := range declared {
		intro, exists := introByName[t.Name]
		if !exists {
			diff.AddedTables = append(diff.AddedTables, t)
			continue
		}
		if td := diffTableColumns(t, intro); len(td.AddedColumns) > 0 || len(td.DroppedColumns) > 0 || len(td.AlteredColumns) > 0 {
			diff.ModifiedTables = append(diff.ModifiedTables, td)
		}
	}
	for _, t := range introspected {
		if _, stillDeclared := declaredByName[t.Name]; !stillDeclared {
			diff.DroppedTables = append(diff.DroppedTables, introspectedToPhysical(t))
		}
	}

	sort.Slice(diff.AddedTables, func(i, j int) bool { return diff.AddedTables[i].Name < diff.AddedTables[j].Name })
	sort.Slice(diff.DroppedTables, func(i, j int) bool { return diff.DroppedTables[i].Name < diff.DroppedTables[j].Name })
	sort.Slice(diff.ModifiedTables, func(i, j int) bool { return diff.ModifiedTables[i].Name < diff.ModifiedTables[j].Name })
	return diff
}

func diffTableColumns(declared PhysicalTable, intro *atlasschema.Table) TableDiff {
	td := TableDiff{Name: declared.Name}

	introCols := make(map[string]*atlasschema.Column, len(intro.Columns))
	for _, c := range intro.Columns {
		introCols[c.Name] = c
	}
	declaredCols := make(map[string]PhysicalColumn, len(declared.Columns))
	for _, c := range declared.Columns {
		declaredCols[c.Name] = c
	}

	for _, c := range declared.Columns {
		ic, exists := introCols[c.Name]
		if !exists {
			td.AddedColumns = append(td.AddedColumns, c)
			continue
		}
		oldType := strings.ToLower(ic.Type.Raw)
		oldNotNull := !ic.Type.Null
		if oldType != c.SQLType || oldNotNull != c.NotNull {
			td.AlteredColumns = append(td.AlteredColumns, ColumnAlteration{
				Name:       c.Name,
				OldSQLType: oldType, NewSQLType: c.SQLType,
				OldNotNull: oldNotNull, NewNotNull: c.NotNull,
			})
		}
	}
	for _, c := range intro.Columns {
		if _, stillDeclared := declaredCols[c.Name]; !stillDeclared {
			td.DroppedColumns = append(td.DroppedColumns, PhysicalColumn{
				Name:    c.Name,
				SQLType: strings.ToLower(c.Type.Raw),
				NotNull: !c.Type.Null,
			})
		}
	}
	return td
}

func introspectedToPhysical(t *atlasschema.Table) PhysicalTable {
	pt := PhysicalTable{Name: t.Name}
	for _, c := range t.Columns {
		pt.Columns = append(pt.Columns, PhysicalColumn{
			Name:    c.Name,
			SQLType: strings.ToLower(c.Type.Raw),
			NotNull: !c.Type.Null,
		})
	}
	return pt
}

// Introspect opens an Atlas SQLite driver over db and inspects its current
// schema, excluding sqlite's own bookkeeping tables and the migration
// bookkeeping tables this package installs — those are never subject to a
// declared-schema diff.
func Introspect(ctx context.Context, db *sql.DB) ([]*atlasschema.Table, error) {
	drv, err := sqlite.Open(db)
	if err != nil {
		return nil, fmt.Errorf("migrate: opening atlas sqlite driver: %w", err)
	}
	sch, err := drv.InspectSchema(ctx, "", &atlasschema.InspectOptions{
		Exclude: []string{"sqlite_sequence", bookkeepingMigrationsTable, bookkeepingSchemaTable},
	})
	if err != nil {
		return nil, fmt.Errorf("migrate: inspecting schema: %w", err)
	}
	return sch.Tables, nil
}
