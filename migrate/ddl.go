package migrate

import (
	dialectsql "github.com/pyreql/pyre/dialect/sql"
)

// Statement is one DDL or bookkeeping statement to execute, in order, inside
// a single migration transaction.
type Statement struct {
	SQL  string
	Args []any
}

// Plan lowers a DbDiff into the ordered batch of statements a migration
// applies: bookkeeping tables first (idempotent, so safe to repeat every
// run), then added tables, then added columns, then dropped columns, then
// dropped tables, then a new schema snapshot row. This order exists so a
// migration never drops anything a newly-added table might still reference,
// and so a table being removed has already shed any columns other
// statements might have touched.
func Plan(diff DbDiff, schemaText string) []Statement {
	var stmts []Statement

	stmts = append(stmts,
		Statement{SQL: createMigrationsTableSQL},
		Statement{SQL: createSchemaTableSQL},
	)

	for _, t := range diff.AddedTables {
		stmts = append(stmts, Statement{SQL: CreateTableSQL(t)})
	}
	for _, td := range diff.ModifiedTables {
		for _, c := range td.AddedColumns {
			stmts = append(stmts, Statement{SQL: AddColumnSQL(td.Name, c)})
		}
	}
	for _, td := range diff.ModifiedTables {
		for _, c := range td.DroppedColumns {
			stmts = append(stmts, Statement{SQL: DropColumnSQL(td.Name, c.Name)})
		}
	}
	for _, t := range diff.DroppedTables {
		stmts = append(stmts, Statement{SQL: DropTableSQL(t.Name)})
	}

	stmts = append(stmts, Statement{SQL: insertSchemaSnapshotSQL, Args: []any{schemaText}})

	return stmts
}

// CreateTableSQL renders t's full CREATE TABLE statement: every physical
// column (tagged-union columns already expanded by DeclaredTables), its
// primary key, and one inline REFERENCES clause per foreign key.
func CreateTableSQL(t PhysicalTable) string {
	b := dialectsql.Dialect("sqlite3")
	b.WriteString("CREATE TABLE ").Ident(t.Name).WriteString(" (")

	var pk []string
	for i, c := range t.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		writeColumnDef(b, c)
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	if len(pk) > 0 {
		b.WriteString(", PRIMARY KEY (")
		for i, name := range pk {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Ident(name)
		}
		b.WriteByte(')')
	}
	for _, fk := range t.ForeignKeys {
		b.WriteString(", FOREIGN KEY (")
		for i, name := range fk.Columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Ident(name)
		}
		b.WriteString(") REFERENCES ").Ident(fk.RefTable).WriteString(" (")
		for i, name := range fk.RefColumns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Ident(name)
		}
		b.WriteByte(')')
	}
	b.WriteByte(')')
	return b.String()
}

// AddColumnSQL renders a single ALTER TABLE ... ADD COLUMN statement.
func AddColumnSQL(table string, c PhysicalColumn) string {
	b := dialectsql.Dialect("sqlite3")
	b.WriteString("ALTER TABLE ").Ident(table).WriteString(" ADD COLUMN ")
	writeColumnDef(b, c)
	return b.String()
}

// DropColumnSQL renders a DROP COLUMN statement. SQLite (3.35+, as vendored
// by modernc.org/sqlite) supports this directly; the older copy-into-a-new-
// table-and-rename dance earlier SQLite builds needed is not implemented,
// since this module pins a SQLite version that never needs it.
func DropColumnSQL(table, column string) string {
	b := dialectsql.Dialect("sqlite3")
	b.WriteString("ALTER TABLE ").Ident(table).WriteString(" DROP COLUMN ").Ident(column)
	return b.String()
}

// DropTableSQL renders a DROP TABLE statement.
func DropTableSQL(table string) string {
	b := dialectsql.Dialect("sqlite3")
	b.WriteString("DROP TABLE ").Ident(table)
	return b.String()
}

func writeColumnDef(b *dialectBuilder, c PhysicalColumn) {
	b.Ident(c.Name).WriteByte(' ').WriteString(c.SQLType)
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.Default != "" {
		b.WriteString(" DEFAULT ").WriteString(c.Default)
	}
}

// dialectBuilder aliases the sql package's Builder so writeColumnDef's
// signature doesn't need the package-qualified name repeated at every call
// site.
type dialectBuilder = dialectsql.Builder
