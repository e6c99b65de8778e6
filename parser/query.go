package parser

import (
	"github.com/pyreql/pyre/ast"
	"github.com/pyreql/pyre/parser/token"
)

// ParseQueries parses the full contents of one query source file into an
// ast.QueryList.
func ParseQueries(filepath, src string) (*ast.QueryList, error) {
	p, err := newParser(filepath, src)
	if err != nil {
		return nil, err
	}

	list := &ast.QueryList{}
	for !p.atEOF() {
		if n := p.skipNewlines(); n > 0 {
			list.Queries = append(list.Queries, ast.QueryLinesItem{Count: n})
			continue
		}
		if p.cur().Kind == token.Comment {
			tok := p.advance()
			list.Queries = append(list.Queries, ast.QueryCommentItem{Text: tok.Literal})
			continue
		}
		if p.cur().Kind == token.EOF {
			break
		}
		if p.cur().Column != 1 {
			return nil, p.errorf("a top-level keyword at column 1")
		}

		q, err := p.parseQuery()
		if err != nil {
			return nil, err
		}
		list.Queries = append(list.Queries, ast.QueryItem{Query: *q})
	}
	return list, nil
}

func (p *parser) parseQuery() (*ast.Query, error) {
	start := p.cur().Start
	opTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	op, ok := topLevelOperation(opTok.Literal)
	if !ok {
		return nil, p.errorf("'query', 'insert', 'update', or 'delete'")
	}

	nameTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}

	var params []ast.QueryParamDefinition
	if p.cur().Kind == token.LParen {
		p.advance()
		for p.cur().Kind != token.RParen {
			param, err := p.parseParamDefinition()
			if err != nil {
				return nil, err
			}
			params = append(params, *param)
			if p.cur().Kind == token.Comma {
				p.advance()
			}
		}
		p.advance() // ')'
	}

	if _, err := p.expect(token.LBrace); err != nil {
		return nil, err
	}
	fields, err := p.parseTopLevelFields()
	if err != nil {
		return nil, err
	}
	endTok, err := p.expect(token.RBrace)
	if err != nil {
		return nil, err
	}

	q := &ast.Query{
		Operation: op, Name: nameTok.Literal, Args: params, Fields: fields,
		Start: locPtr(start), End: locPtr(endTok.End),
	}
	q.InterfaceHash = ast.HashQueryInterface(q)
	q.FullHash = ast.HashQueryFull(q)
	return q, nil
}

func topLevelOperation(s string) (ast.QueryOperation, bool) {
	switch s {
	case "query":
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

func (p *parser) parseParamDefinition() (*ast.QueryParamDefinition, error) {
	if _, err := p.expect(token.Dollar); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	param := &ast.QueryParamDefinition{Name: nameTok.Literal, StartName: locPtr(nameTok.Start), EndName: locPtr(nameTok.End)}
	if p.cur().Kind == token.Colon {
		p.advance()
		typeTok, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		typ := typeTok.Literal
		if p.cur().Kind == token.Question {
			p.advance()
			typ += "?"
		}
		param.Type = &typ
		param.StartType = locPtr(typeTok.Start)
		param.EndType = locPtr(p.cur().Start)
	}
	return param, nil
}

func (p *parser) parseTopLevelFields() ([]ast.TopLevelQueryField, error) {
	var fields []ast.TopLevelQueryField
	for p.cur().Kind != token.RBrace && !p.atEOF() {
		if n := p.skipNewlines(); n > 0 {
			fields = append(fields, ast.TopLevelLines{Count: n})
			continue
		}
		if p.cur().Kind == token.Comment {
			tok := p.advance()
			fields = append(fields, ast.TopLevelComment{Text: tok.Literal})
			continue
		}
		field, err := p.parseQueryField()
		if err != nil {
			return nil, err
		}
		fields = append(fields, ast.TopLevelField{Field: *field})
	}
	return fields, nil
}

// parseQueryField parses one selection: a leaf column, a `name = value` set
// expression, or a nested block containing further ArgFields (child
// selections and directives like @where/@limit/@offset/@sort).
func (p *parser) parseQueryField() (*ast.QueryField, error) {
	nameTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	field := &ast.QueryField{Name: nameTok.Literal, StartFieldName: locPtr(nameTok.Start), EndFieldName: locPtr(nameTok.End)}

	if p.cur().Kind == token.Colon {
		p.advance()
		realNameTok, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		alias := field.Name
		field.Alias = &alias
		field.Name = realNameTok.Literal
		field.StartFieldName = locPtr(realNameTok.Start)
		field.EndFieldName = locPtr(realNameTok.End)
	}

	field.Start = field.StartFieldName

	if p.cur().Kind == token.Set {
		p.advance()
		value, err := p.parseQueryValue()
		if err != nil {
			return nil, err
		}
		field.Set = &value
	}

	if p.cur().Kind == token.LBrace {
		p.advance()
		argFields, err := p.parseArgFields()
		if err != nil {
			return nil, err
		}
		endTok, err := p.expect(token.RBrace)
		if err != nil {
			return nil, err
		}
		field.Fields = argFields
		field.End = locPtr(endTok.End)
	} else {
		field.End = locPtr(p.cur().Start)
	}

	return field, nil
}

func (p *parser) parseArgFields() ([]ast.ArgField, error) {
	var fields []ast.ArgField
	for p.cur().Kind != token.RBrace && !p.atEOF() {
		if n := p.skipNewlines(); n > 0 {
			fields = append(fields, ast.ArgLinesItem{Count: n})
			continue
		}
		if p.cur().Kind == token.Comment {
			tok := p.advance()
			fields = append(fields, ast.ArgCommentItem{Text: tok.Literal})
			continue
		}
		if p.cur().Kind == token.At {
			arg, err := p.parseDirectiveArg()
			if err != nil {
				return nil, err
			}
			fields = append(fields, ast.ArgItem{Arg: *arg})
			continue
		}
		field, err := p.parseQueryField()
		if err != nil {
			return nil, err
		}
		fields = append(fields, ast.ArgFieldItem{Field: *field})
	}
	return fields, nil
}

// parseDirectiveArg parses `@where { ... }`, `@limit <value>`,
// `@offset <value>`, and `@sort(field, Asc|Desc)`.
func (p *parser) parseDirectiveArg() (*ast.LocatedArg, error) {
	start := p.cur().Start
	p.advance() // '@'
	nameTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}

	switch nameTok.Literal {
	case "where":
		if _, err := p.expect(token.LBrace); err != nil {
			return nil, err
		}
		where, err := p.parseWhereExpr()
		if err != nil {
			return nil, err
		}
		endTok, err := p.expect(token.RBrace)
		if err != nil {
			return nil, err
		}
		return &ast.LocatedArg{Arg: ast.WhereClauseArg{Where: where}, Start: locPtr(start), End: locPtr(endTok.End)}, nil

	case "limit":
		v, err := p.parseQueryValue()
		if err != nil {
			return nil, err
		}
		return &ast.LocatedArg{Arg: ast.LimitArg{Value: v}, Start: locPtr(start), End: locPtr(p.cur().Start)}, nil

	case "offset":
		v, err := p.parseQueryValue()
		if err != nil {
			return nil, err
		}
		return &ast.LocatedArg{Arg: ast.OffsetArg{Value: v}, Start: locPtr(start), End: locPtr(p.cur().Start)}, nil

	case "sort":
		if _, err := p.expect(token.LParen); err != nil {
			return nil, err
		}
		fieldTok, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Comma); err != nil {
			return nil, err
		}
		dirTok, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		var dir ast.Direction
		switch dirTok.Literal {
		case "Asc":
			dir = ast.Asc
		case "Desc":
			dir = ast.Desc
		default:
			return nil, p.errorf("'Asc' or 'Desc'")
		}
		endTok, err := p.expect(token.RParen)
		if err != nil {
			return nil, err
		}
		return &ast.LocatedArg{Arg: ast.OrderByArg{Direction: dir, Field: fieldTok.Literal}, Start: locPtr(start), End: locPtr(endTok.End)}, nil

	default:
		return nil, p.errorf("'where', 'limit', 'offset', or 'sort'")
	}
}
