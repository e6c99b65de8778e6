package typecheck

import (
	"fmt"

	"github.com/pyreql/pyre"
	"github.com/pyreql/pyre/ast"
)

// CheckSchema resolves db into a Context, or returns a non-nil error list
// (via pyre.NewAggregateError) covering every problem found. Unlike the
// parser, this phase never bails on the first error: independent records
// are checked independently so one malformed record doesn't hide errors in
// the rest of the schema.
func CheckSchema(db *ast.Database) (*Context, error) {
	ctx := &Context{
		Tables:          make(map[string]*Table),
		Types:           make(map[string]*TaggedType),
		SessionFields:   make(map[string]map[string]bool),
		permissionCache: make(map[permissionCacheKey]*ast.WhereArg),
	}
	var errs []error

	for _, schema := range db.Schemas {
		errs = append(errs, buildTypes(ctx, schema)...)
	}
	for _, schema := range db.Schemas {
		errs = append(errs, buildTables(ctx, schema)...)
	}
	for _, schema := range db.Schemas {
		errs = append(errs, checkSessions(ctx, schema)...)
	}

	// Reciprocal links and permission validation both need every table
	// resolved first, so they run in a second pass over the built Context.
	synthesiseReciprocals(ctx)
	errs = append(errs, validatePermissions(ctx)...)

	if agg := pyre.NewAggregateError(errs...); agg != nil {
		return nil, agg
	}

	computeSyncLayers(ctx.Tables)
	return ctx, nil
}

func buildTypes(ctx *Context, schema *ast.Schema) []error {
	var errs []error
	for _, file := range schema.Files {
		for _, def := range file.Definitions {
			tagged, ok := def.(ast.TaggedDefinition)
			if !ok {
				continue
			}
			key := TypeKey(schema.Namespace, tagged.Name)
			if _, exists := ctx.Types[key]; exists {
				errs = append(errs, pyre.NewTypecheckError(pyre.DuplicateRecord, file.Path,
					fmt.Sprintf("tagged type %q is declared more than once", tagged.Name), spanOf(tagged.Start, tagged.End)))
				continue
			}

			fields := make(map[string]string)
			for _, variant := range tagged.Variants {
				for _, f := range variant.Fields {
					cf, ok := f.(ast.ColumnField)
					if !ok {
						continue
					}
					if existing, seen := fields[cf.Column.Name]; seen && existing != cf.Column.Type {
						errs = append(errs, pyre.NewTypecheckError(pyre.VariantFieldTypeCollision, file.Path,
							fmt.Sprintf("field %q of type %q has conflicting types %q and %q across variants",
								cf.Column.Name, tagged.Name, existing, cf.Column.Type),
							spanOf(cf.Column.Start, cf.Column.End)))
						continue
					}
					fields[cf.Column.Name] = cf.Column.Type
				}
			}

			ctx.Types[key] = &TaggedType{
				Namespace: schema.Namespace,
				Name:      tagged.Name,
				Variants:  tagged.Variants,
				Fields:    fields,
			}
		}
	}
	return errs
}

func buildTables(ctx *Context, schema *ast.Schema) []error {
	var errs []error
	for _, file := range schema.Files {
		for _, def := range file.Definitions {
			record, ok := def.(ast.RecordDefinition)
			if !ok {
				continue
			}
			key := TableKey(schema.Namespace, record.Name)
			if _, exists := ctx.Tables[key]; exists {
				errs = append(errs, pyre.NewTypecheckError(pyre.DuplicateRecord, file.Path,
					fmt.Sprintf("record %q is declared more than once", record.Name), spanOf(record.Start, record.End)))
				continue
			}

			details := &ast.RecordDetails{
				Name: record.Name, Fields: record.Fields,
				Start: record.Start, End: record.End,
				StartName: record.StartName, EndName: record.EndName,
			}

			table := &Table{
				Namespace:  schema.Namespace,
				RecordName: record.Name,
				TableName:  ast.GetTablename(record.Name, record.Fields),
				Columns:    ast.CollectColumns(record.Fields),
				Record:     details,
			}

			for _, link := range ast.CollectLinks(record.Fields) {
				fk := link.Foreign
				if fk.Schema == "" {
					fk.Schema = schema.Namespace
				}
				table.Links = append(table.Links, ResolvedLink{
					LinkDetails: link,
					ForeignKey:  TableKey(fk.Schema, fk.Table),
				})
			}

			if errs2 := validateTypeNames(ctx, file.Path, table); len(errs2) > 0 {
				errs = append(errs, errs2...)
			}
			if errs2 := validatePermissionDirectiveCount(file.Path, details); len(errs2) > 0 {
				errs = append(errs, errs2...)
			}

			ctx.Tables[key] = table
		}
	}
	return errs
}

// validateTypeNames checks every column's declared type names either a
// primitive or a tagged type known in this table's namespace, producing
// UnknownType when neither is true.
func validateTypeNames(ctx *Context, filepath string, table *Table) []error {
	var errs []error
	for _, col := range table.Columns {
		if isPrimitiveType(col.Type) {
			continue
		}
		if _, ok := ctx.Type(table.Namespace, col.Type); ok {
			continue
		}
		errs = append(errs, pyre.NewTypecheckError(pyre.UnknownType, filepath,
			fmt.Sprintf("column %q references unknown type %q", col.Name, col.Type),
			spanOf(col.StartTypeName, col.EndTypeName)))
	}
	return errs
}

func isPrimitiveType(t string) bool {
	switch t {
	case "String", "Int", "Float", "Bool", "DateTime", "Date":
		return true
	default:
		return false
	}
}

// validatePermissionDirectiveCount enforces exactly one @public/@permissions
// directive per record.
func validatePermissionDirectiveCount(filepath string, record *ast.RecordDetails) []error {
	count := 0
	for _, f := range record.Fields {
		fd, ok := f.(ast.FieldDirectiveField)
		if !ok {
			continue
		}
		if _, ok := fd.Directive.(ast.PermissionsDirective); ok {
			count++
		}
	}
	switch {
	case count == 0:
		return []error{pyre.NewTypecheckError(pyre.MissingPermissions, filepath,
			fmt.Sprintf("record %q declares no @public or @permissions directive", record.Name),
			spanOf(record.Start, record.End))}
	case count > 1:
		return []error{pyre.NewTypecheckError(pyre.MultiplePermissions, filepath,
			fmt.Sprintf("record %q declares more than one permission directive", record.Name),
			spanOf(record.Start, record.End))}
	}
	return nil
}

// checkSessions enforces at most one session per schema.
func checkSessions(ctx *Context, schema *ast.Schema) []error {
	count := 0
	var last *ast.SessionDetails
	for _, file := range schema.Files {
		for _, def := range file.Definitions {
			if sd, ok := def.(ast.SessionDefinition); ok {
				count++
				details := sd.Details
				last = &details
			}
		}
	}

	fields := make(map[string]bool)
	if last != nil {
		for _, col := range ast.CollectColumns(last.Fields) {
			fields[col.Name] = true
		}
	}
	ctx.SessionFields[schema.Namespace] = fields

	if count > 1 {
		return []error{pyre.NewTypecheckError(pyre.MultipleSessionDefinitions, schema.Namespace,
			fmt.Sprintf("schema %q declares more than one session block", schema.Namespace),
			spanOf(last.Start, last.End))}
	}
	return nil
}

// synthesiseReciprocals gives every linked-to table an implicit reverse
// link, unless an equivalent one already exists explicitly. Synthesised
// links are appended directly to the foreign table's Links (keyed by table
// id, rather than mutating the original record).
func synthesiseReciprocals(ctx *Context) {
	type pending struct {
		targetKey string
		link      ResolvedLink
	}
	var additions []pending

	for key, table := range ctx.Tables {
		for _, link := range table.Links {
			foreign, ok := ctx.Tables[link.ForeignKey]
			if !ok {
				continue // unresolvable target; already reported as an error elsewhere
			}
			reciprocal := ast.ToReciprocal(table.Namespace, table.TableName, link.LinkDetails)

			exists := false
			for _, existing := range foreign.Links {
				if ast.LinkEquivalent(existing.LinkDetails, reciprocal) {
					exists = true
					break
				}
			}
			if exists {
				continue
			}
			additions = append(additions, pending{
				targetKey: link.ForeignKey,
				link: ResolvedLink{
					LinkDetails: reciprocal,
					Synthesised: true,
					ForeignKey:  key,
				},
			})
		}
	}

	for _, add := range additions {
		ctx.Tables[add.targetKey].Links = append(ctx.Tables[add.targetKey].Links, add.link)
	}
}

// validatePermissions parses every record's permission directive into the
// Context's permission cache and validates every bare column/Session
// reference against the owning table's columns and session fields.
func validatePermissions(ctx *Context) []error {
	var errs []error
	for key, table := range ctx.Tables {
		for _, op := range []ast.QueryOperation{ast.Select, ast.Insert, ast.Update, ast.Delete} {
			where := ast.GetPermissions(table.Record, op)
			if where == nil {
				continue
			}
			errs = append(errs, validateWhereAgainstTable(ctx, table.Record.Name, *where, table)...)
			ctx.permissionCache[permissionCacheKey{table: key, op: op}] = where
		}
	}
	return errs
}

func validateWhereAgainstTable(ctx *Context, filepath string, where ast.WhereArg, table *Table) []error {
	var errs []error
	switch w := where.(type) {
	case ast.ColumnWhere:
		if w.IsSession {
			if !ctx.SessionFields[table.Namespace][w.Name] {
				errs = append(errs, pyre.NewTypecheckError(pyre.UnknownField, filepath,
					fmt.Sprintf("permission rule references unknown session field %q (schema %q declares no such session field)", w.Name, table.Namespace)))
			}
		} else if !hasColumn(table, w.Name) {
			errs = append(errs, pyre.NewTypecheckError(pyre.UnknownField, filepath,
				fmt.Sprintf("permission rule references unknown column %q on table %q", w.Name, table.TableName)))
		}
	case ast.AndWhere:
		for _, sub := range w.Args {
			errs = append(errs, validateWhereAgainstTable(ctx, filepath, sub, table)...)
		}
	case ast.OrWhere:
		for _, sub := range w.Args {
			errs = append(errs, validateWhereAgainstTable(ctx, filepath, sub, table)...)
		}
	}
	return errs
}

func hasColumn(table *Table, name string) bool {
	for _, c := range table.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

func spanOf(start, end *ast.Location) ast.Range {
	r := ast.Range{}
	if start != nil {
		r.Start = *start
	}
	if end != nil {
		r.End = *end
	}
	return r
}
