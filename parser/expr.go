package parser

import (
	"strconv"

	"github.com/pyreql/pyre/ast"
	"github.com/pyreql/pyre/parser/token"
)

// parseWhereExpr parses a boolean expression over columns, Session fields,
// and literals: the grammar shared by permission rules and `@where` blocks.
// `||` binds loosest, `&&` next, comparisons tightest; parentheses group.
func (p *parser) parseWhereExpr() (ast.WhereArg, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (ast.WhereArg, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	args := []ast.WhereArg{first}
	for p.cur().Kind == token.PipePipe {
		p.advance()
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		args = append(args, next)
	}
	if len(args) == 1 {
		return args[0], nil
	}
	return ast.OrWhere{Args: args}, nil
}

func (p *parser) parseAnd() (ast.WhereArg, error) {
	first, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	args := []ast.WhereArg{first}
	for p.cur().Kind == token.AmpAmp {
		p.advance()
		next, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		args = append(args, next)
	}
	if len(args) == 1 {
		return args[0], nil
	}
	return ast.AndWhere{Args: args}, nil
}

func (p *parser) parseComparison() (ast.WhereArg, error) {
	if p.cur().Kind == token.LParen {
		p.advance()
		expr, err := p.parseWhereExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
		return expr, nil
	}

	isSession := false
	nameTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	name := nameTok.Literal
	if name == "Session" && p.cur().Kind == token.Dot {
		p.advance()
		fieldTok, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		isSession = true
		name = fieldTok.Literal
	}

	op, err := p.parseOperator()
	if err != nil {
		return nil, err
	}
	value, err := p.parseQueryValue()
	if err != nil {
		return nil, err
	}

	return ast.ColumnWhere{IsSession: isSession, Name: name, Operator: op, Value: value}, nil
}

func (p *parser) parseOperator() (ast.Operator, error) {
	switch p.cur().Kind {
	case token.Eq:
		p.advance()
		return ast.Equal, nil
	case token.Neq:
		p.advance()
		return ast.NotEqual, nil
	case token.Lt:
		p.advance()
		return ast.LessThan, nil
	case token.Lte:
		p.advance()
		return ast.LessThanOrEqual, nil
	case token.Gt:
		p.advance()
		return ast.GreaterThan, nil
	case token.Gte:
		p.advance()
		return ast.GreaterThanOrEqual, nil
	case token.Ident:
		switch p.cur().Literal {
		case "in":
			p.advance()
			return ast.In, nil
		case "like":
			p.advance()
			return ast.Like, nil
		case "not":
			p.advance()
			nextTok, err := p.expect(token.Ident)
			if err != nil {
				return 0, err
			}
			switch nextTok.Literal {
			case "in":
				return ast.NotIn, nil
			case "like":
				return ast.NotLike, nil
			default:
				return 0, p.errorf("'in' or 'like'")
			}
		}
	}
	return 0, p.errorf("a comparison operator")
}

// parseQueryValue parses any value position: a literal, a `$variable`, a
// `Session.field` reference, a tagged-variant literal, or a function call.
func (p *parser) parseQueryValue() (ast.QueryValue, error) {
	tok := p.cur()
	switch tok.Kind {
	case token.String:
		p.advance()
		return ast.StringValue{Span: ast.Range{Start: tok.Start, End: tok.End}, Value: tok.Literal}, nil

	case token.Int:
		p.advance()
		n, err := strconv.ParseInt(tok.Literal, 10, 32)
		if err != nil {
			return nil, p.errorf("a valid integer literal")
		}
		return ast.IntValue{Span: ast.Range{Start: tok.Start, End: tok.End}, Value: int32(n)}, nil

	case token.Float:
		p.advance()
		f, err := strconv.ParseFloat(tok.Literal, 32)
		if err != nil {
			return nil, p.errorf("a valid float literal")
		}
		return ast.FloatValue{Span: ast.Range{Start: tok.Start, End: tok.End}, Value: float32(f)}, nil

	case token.Dollar:
		p.advance()
		nameTok, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		return ast.VariableValue{
			Span:    ast.Range{Start: tok.Start, End: nameTok.End},
			Details: ast.VariableDetails{Name: nameTok.Literal},
		}, nil

	case token.Ident:
		switch tok.Literal {
		case "true", "false":
			p.advance()
			return ast.BoolValue{Span: ast.Range{Start: tok.Start, End: tok.End}, Value: tok.Literal == "true"}, nil
		case "null":
			p.advance()
			return ast.NullValue{Span: ast.Range{Start: tok.Start, End: tok.End}}, nil
		case "Session":
			p.advance()
			if _, err := p.expect(token.Dot); err != nil {
				return nil, err
			}
			fieldTok, err := p.expect(token.Ident)
			if err != nil {
				return nil, err
			}
			field := fieldTok.Literal
			return ast.VariableValue{
				Span:    ast.Range{Start: tok.Start, End: fieldTok.End},
				Details: ast.VariableDetails{Name: "Session." + field, SessionField: &field},
			}, nil
		}

		// An identifier followed by '{' is a tagged-variant literal (e.g.
		// `Special { reason = "x" }`); one followed by '(' is a function
		// call (e.g. `now()`); the identifier's case is not checked. A bare
		// identifier otherwise is not a legal value in this grammar position.
		p.advance()
		if p.cur().Kind == token.LBrace {
			return p.parseLiteralTypeValue(tok)
		}
		if p.cur().Kind == token.LParen {
			return p.parseFnValue(tok)
		}
		return nil, p.errorf("a value")

	default:
		return nil, p.errorf("a value")
	}
}

func (p *parser) parseLiteralTypeValue(nameTok token.Token) (ast.QueryValue, error) {
	p.advance() // '{'
	p.skipNewlines()
	var fields []ast.FieldAssignment
	for p.cur().Kind != token.RBrace {
		fieldTok, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Set); err != nil {
			return nil, err
		}
		value, err := p.parseQueryValue()
		if err != nil {
			return nil, err
		}
		fields = append(fields, ast.FieldAssignment{Name: fieldTok.Literal, Value: value})
		if p.cur().Kind == token.Comma {
			p.advance()
		}
		p.skipNewlines()
	}
	endTok, err := p.expect(token.RBrace)
	if err != nil {
		return nil, err
	}
	return ast.LiteralTypeValueExpr{
		Span:    ast.Range{Start: nameTok.Start, End: endTok.End},
		Details: ast.LiteralTypeValueDetails{Name: nameTok.Literal, Fields: fields},
	}, nil
}

func (p *parser) parseFnValue(nameTok token.Token) (ast.QueryValue, error) {
	p.advance() // '('
	var args []ast.QueryValue
	for p.cur().Kind != token.RParen {
		v, err := p.parseQueryValue()
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		if p.cur().Kind == token.Comma {
			p.advance()
		}
	}
	endTok, err := p.expect(token.RParen)
	if err != nil {
		return nil, err
	}
	full := ast.Range{Start: nameTok.Start, End: endTok.End}
	return ast.FnValue{Fn: ast.FnDetails{
		Name: nameTok.Literal, Args: args,
		Location: full, LocationFnName: ast.Range{Start: nameTok.Start, End: nameTok.End}, LocationArg: full,
	}}, nil
}
