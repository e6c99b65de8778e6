package parser

import (
	"github.com/pyreql/pyre/ast"
	"github.com/pyreql/pyre/parser/token"
)

// ParseSchema parses the full contents of one .pyre schema file, rooted at
// ast.DefaultSchemaName (namespace assignment across files happens one
// layer up, outside this package's scope — see spec.md's Non-goal on
// filesystem/namespace discovery).
func ParseSchema(filepath, src string) (*ast.SchemaFile, *ast.SessionDetails, error) {
	p, err := newParser(filepath, src)
	if err != nil {
		return nil, nil, err
	}

	file := &ast.SchemaFile{Path: filepath}
	var session *ast.SessionDetails

	for !p.atEOF() {
		if n := p.skipNewlines(); n > 0 {
			file.Definitions = append(file.Definitions, ast.LinesDefinition{Count: n})
			continue
		}
		if p.cur().Kind == token.Comment {
			tok := p.advance()
			file.Definitions = append(file.Definitions, ast.CommentDefinition{Text: tok.Literal})
			continue
		}
		if p.cur().Kind == token.EOF {
			break
		}
		if p.cur().Column != 1 {
			return nil, nil, p.errorf("a top-level keyword at column 1")
		}

		switch {
		case p.cur().Kind == token.Ident && p.cur().Literal == "record":
			rec, err := p.parseRecord()
			if err != nil {
				return nil, nil, err
			}
			file.Definitions = append(file.Definitions, *rec)

		case p.cur().Kind == token.Ident && p.cur().Literal == "type":
			tagged, err := p.parseTagged()
			if err != nil {
				return nil, nil, err
			}
			file.Definitions = append(file.Definitions, *tagged)

		case p.cur().Kind == token.Ident && p.cur().Literal == "session":
			details, err := p.parseSession()
			if err != nil {
				return nil, nil, err
			}
			session = details
			file.Definitions = append(file.Definitions, ast.SessionDefinition{Details: *details})

		default:
			return nil, nil, p.errorf("'record', 'type', or 'session'")
		}
	}

	return file, session, nil
}

func (p *parser) parseRecord() (*ast.RecordDefinition, error) {
	start := p.cur().Start
	p.advance() // 'record'
	nameTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}

	fields, err := p.parseFields()
	if err != nil {
		return nil, err
	}

	endTok, err := p.expect(token.RBrace)
	if err != nil {
		return nil, err
	}

	return &ast.RecordDefinition{
		Name: nameTok.Literal, Fields: fields,
		Start: locPtr(start), End: locPtr(endTok.End),
		StartName: locPtr(nameTok.Start), EndName: locPtr(nameTok.End),
	}, nil
}

func (p *parser) parseSession() (*ast.SessionDetails, error) {
	start := p.cur().Start
	p.advance() // 'session'
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	fields, err := p.parseFields()
	if err != nil {
		return nil, err
	}
	endTok, err := p.expect(token.RBrace)
	if err != nil {
		return nil, err
	}
	return &ast.SessionDetails{Fields: fields, Start: locPtr(start), End: locPtr(endTok.End)}, nil
}

// parseFields parses the body of a record/session block: columns, links,
// directives, blank-line runs, and inline comments, until the closing '}'.
func (p *parser) parseFields() ([]ast.Field, error) {
	var fields []ast.Field
	for p.cur().Kind != token.RBrace && !p.atEOF() {
		if n := p.skipNewlines(); n > 0 {
			fields = append(fields, ast.ColumnLinesField{Count: n})
			continue
		}
		if p.cur().Kind == token.Comment {
			tok := p.advance()
			fields = append(fields, ast.ColumnCommentField{Text: tok.Literal})
			continue
		}

		if p.cur().Kind == token.At {
			directive, err := p.parseRecordDirective()
			if err != nil {
				return nil, err
			}
			fields = append(fields, ast.FieldDirectiveField{Directive: directive})
			continue
		}

		if p.cur().Kind != token.Ident {
			return nil, p.errorf("a field, link, or directive")
		}

		nameTok := p.advance()
		if p.cur().Kind == token.At {
			link, err := p.parseLinkDirective(nameTok)
			if err != nil {
				return nil, err
			}
			fields = append(fields, ast.FieldDirectiveField{Directive: link})
			continue
		}

		col, err := p.parseColumn(nameTok)
		if err != nil {
			return nil, err
		}
		fields = append(fields, ast.ColumnField{Column: *col})
	}
	return fields, nil
}

func (p *parser) parseColumn(nameTok token.Token) (*ast.Column, error) {
	typeTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	nullable := false
	if p.cur().Kind == token.Question {
		p.advance()
		nullable = true
	}

	col := &ast.Column{
		Name: nameTok.Literal, Type: typeTok.Literal, Nullable: nullable,
		SerializationType: ast.ConcreteSerialization{Kind: concreteKindOf(typeTok.Literal)},
		Start:             locPtr(nameTok.Start), StartName: locPtr(nameTok.Start), EndName: locPtr(nameTok.End),
		StartTypeName: locPtr(typeTok.Start), EndTypeName: locPtr(typeTok.End),
	}

	for p.cur().Kind == token.At {
		dir, err := p.parseColumnDirective()
		if err != nil {
			return nil, err
		}
		col.Directives = append(col.Directives, dir)
	}
	col.End = locPtr(p.cur().Start)
	return col, nil
}

func concreteKindOf(typeName string) ast.ConcreteSerializationType {
	switch typeName {
	case "Int":
		return ast.Integer
	case "Float":
		return ast.Real
	case "Bool":
		return ast.Integer
	case "Date":
		return ast.Date
	case "DateTime":
		return ast.DateTime
	case "String":
		return ast.Text
	default:
		return ast.Text // a tagged-union type name; refined once typecheck resolves it
	}
}

func (p *parser) parseColumnDirective() (ast.ColumnDirective, error) {
	p.advance() // '@'
	nameTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	switch nameTok.Literal {
	case "id":
		return ast.PrimaryKeyDirective{}, nil
	case "unique":
		return ast.UniqueDirective{}, nil
	case "default":
		if _, err := p.expect(token.LParen); err != nil {
			return nil, err
		}
		var value ast.DefaultValue
		switch {
		case p.cur().Kind == token.Ident && p.cur().Literal == "now":
			p.advance()
			value = ast.NowDefault{}
		case p.cur().Kind == token.Ident && p.cur().Literal == "uuid":
			p.advance()
			value = ast.UuidDefault{}
		default:
			v, err := p.parseQueryValue()
			if err != nil {
				return nil, err
			}
			value = ast.LiteralDefault{Value: v}
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return ast.DefaultDirective{ID: "default", Value: value}, nil
	default:
		return nil, p.errorf("'id', 'unique', or 'default'")
	}
}

// parseRecordDirective parses a directive written at field position without
// a leading name: @tablename, @public, @permissions, @watched.
func (p *parser) parseRecordDirective() (ast.FieldDirective, error) {
	atTok := p.advance() // '@'
	nameTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	switch nameTok.Literal {
	case "tablename":
		strTok, err := p.expect(token.String)
		if err != nil {
			return nil, err
		}
		return ast.TableNameDirective{Span: ast.Range{Start: atTok.Start, End: strTok.End}, Name: strTok.Literal}, nil

	case "public":
		return ast.PermissionsDirective{Details: ast.StarPermission{}}, nil

	case "permissions":
		details, err := p.parsePermissionsBody()
		if err != nil {
			return nil, err
		}
		return ast.PermissionsDirective{Details: details}, nil

	case "watched":
		details, err := p.parseWatchedBody()
		if err != nil {
			return nil, err
		}
		return ast.WatchedDirective{Details: details}, nil

	default:
		return nil, p.errorf("'tablename', 'public', 'permissions', or 'watched'")
	}
}

func (p *parser) parseWatchedBody() (ast.WatchedDetails, error) {
	details := ast.WatchedDetails{Selects: true, Inserts: true, Updates: true, Deletes: true}
	if p.cur().Kind != token.LParen {
		return details, nil
	}
	p.advance()
	details = ast.WatchedDetails{}
	for p.cur().Kind != token.RParen {
		opTok, err := p.expect(token.Ident)
		if err != nil {
			return details, err
		}
		switch opTok.Literal {
		case "select":
			details.Selects = true
		case "insert":
			details.Inserts = true
		case "update":
			details.Updates = true
		case "delete":
			details.Deletes = true
		default:
			return details, p.errorf("an operation name")
		}
		if p.cur().Kind == token.Comma {
			p.advance()
		}
	}
	p.advance() // ')'
	return details, nil
}

// parsePermissionsBody parses the body of `@permissions { ... }`: either a
// bare where-clause applying to every operation, or one-or-more
// `op[,op...] { where }` rules.
func (p *parser) parsePermissionsBody() (ast.PermissionDetails, error) {
	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	p.skipNewlines()

	if looksLikeOperationRule(p) {
		var rules []ast.PermissionOnOperation
		for p.cur().Kind != token.RBrace {
			p.skipNewlines()
			if p.cur().Kind == token.RBrace {
				break
			}
			var ops []ast.QueryOperation
			for {
				opTok, err := p.expect(token.Ident)
				if err != nil {
					return nil, err
				}
				op, ok := operationFromKeyword(opTok.Literal)
				if !ok {
					return nil, p.errorf("an operation name")
				}
				ops = append(ops, op)
				if p.cur().Kind == token.Comma {
					p.advance()
					continue
				}
				break
			}
			if _, err := p.expect(token.LBrace); err != nil {
				return nil, err
			}
			where, err := p.parseWhereExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBrace); err != nil {
				return nil, err
			}
			rules = append(rules, ast.PermissionOnOperation{Operations: ops, Where: where})
			p.skipNewlines()
		}
		if _, err := p.expect(token.RBrace); err != nil {
			return nil, err
		}
		return ast.OnOperationPermission{Rules: rules}, nil
	}

	where, err := p.parseWhereExpr()
	if err != nil {
		return nil, err
	}
	p.skipNewlines()
	if _, err := p.expect(token.RBrace); err != nil {
		return nil, err
	}
	return ast.StarPermission{Where: where}, nil
}

// looksLikeOperationRule reports whether the parser is sitting at
// `ident[,ident...] {`, the shape of an operation-scoped permission rule,
// without consuming any tokens.
func looksLikeOperationRule(p *parser) bool {
	i := p.pos
	for {
		if p.toks[i].Kind != token.Ident {
			return false
		}
		if _, ok := operationFromKeyword(p.toks[i].Literal); !ok {
			return false
		}
		i++
		if p.toks[i].Kind == token.Comma {
			i++
			continue
		}
		break
	}
	return p.toks[i].Kind == token.LBrace
}

func operationFromKeyword(s string) (ast.QueryOperation, bool) {
	switch s {
	case "select":
		return ast.Select, true
	case "insert":
		return ast.Insert, true
	case "update":
		return ast.Update, true
	case "delete":
		return ast.Delete, true
	default:
		return 0, false
	}
}

// parseLinkDirective parses `name @link(...)`, where nameTok is the
// already-consumed link name.
func (p *parser) parseLinkDirective(nameTok token.Token) (ast.FieldDirective, error) {
	p.advance() // '@'
	if _, err := p.expectIdent("link"); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}

	var segments [][]string
	for {
		seg, err := p.parseDottedPath()
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
		if p.cur().Kind == token.Comma {
			p.advance()
			continue
		}
		break
	}
	endTok, err := p.expect(token.RParen)
	if err != nil {
		return nil, err
	}

	var localIDs []string
	var foreign ast.Qualified
	last := segments[len(segments)-1]
	switch len(last) {
	case 2:
		foreign = ast.Qualified{Table: last[0], Fields: []string{last[1]}}
	case 3:
		foreign = ast.Qualified{Schema: last[0], Table: last[1], Fields: []string{last[2]}}
	default:
		return nil, p.errorf("a Table.field or Schema.Table.field path")
	}
	for _, seg := range segments[:len(segments)-1] {
		if len(seg) != 1 {
			return nil, p.errorf("a local column name")
		}
		localIDs = append(localIDs, seg[0])
	}

	return ast.LinkDirective{Details: ast.LinkDetails{
		LinkName: nameTok.Literal, LocalIDs: localIDs, Foreign: foreign,
		StartName: locPtr(nameTok.Start), EndName: locPtr(endTok.End),
	}}, nil
}

func (p *parser) parseDottedPath() ([]string, error) {
	first, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	segs := []string{first.Literal}
	for p.cur().Kind == token.Dot {
		p.advance()
		next, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		segs = append(segs, next.Literal)
	}
	return segs, nil
}

func (p *parser) parseTagged() (*ast.TaggedDefinition, error) {
	start := p.cur().Start
	p.advance() // 'type'
	nameTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.Set); err != nil {
		return nil, err
	}

	var variants []ast.Variant
	for {
		v, err := p.parseVariant()
		if err != nil {
			return nil, err
		}
		variants = append(variants, *v)
		if p.cur().Kind != token.Pipe {
			break
		}
		p.advance()
	}

	end := p.cur().Start
	return &ast.TaggedDefinition{Name: nameTok.Literal, Variants: variants, Start: locPtr(start), End: locPtr(end)}, nil
}

func (p *parser) parseVariant() (*ast.Variant, error) {
	nameTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	v := &ast.Variant{
		Name: nameTok.Literal, Start: locPtr(nameTok.Start),
		StartName: locPtr(nameTok.Start), EndName: locPtr(nameTok.End),
	}
	if p.cur().Kind == token.LBrace {
		p.advance()
		fields, err := p.parseFields()
		if err != nil {
			return nil, err
		}
		endTok, err := p.expect(token.RBrace)
		if err != nil {
			return nil, err
		}
		v.Fields = fields
		v.End = locPtr(endTok.End)
	} else {
		v.End = locPtr(nameTok.End)
	}
	return v, nil
}
