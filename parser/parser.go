// Package parser turns pyre schema and query source text into ast.Database
// and ast.QueryList values. Like the lexer it wraps, it never recovers from
// a malformed token: the first problem produces one *pyre.ParsingError and
// parsing stops: a fail-fast style, in contrast to the typechecker's
// accumulate-everything style.
package parser

import (
	"fmt"

	"github.com/pyreql/pyre"
	"github.com/pyreql/pyre/ast"
	"github.com/pyreql/pyre/parser/token"
)

// parser holds the token stream and cursor shared by the schema and query
// grammars.
type parser struct {
	filepath string
	toks     []token.Token
	pos      int
}

func newParser(filepath, src string) (*parser, error) {
	toks, err := token.All(src)
	if err != nil {
		return nil, pyre.NewParsingError(filepath, err.Error(), ast.Location{})
	}
	return &parser{filepath: filepath, toks: toks}, nil
}

func (p *parser) cur() token.Token  { return p.toks[p.pos] }
func (p *parser) atEOF() bool       { return p.cur().Kind == token.EOF }
func (p *parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

// skipNewlines consumes any run of blank lines, returning how many it saw
// (callers that track LinesDefinition/ColumnLinesField use the count).
func (p *parser) skipNewlines() int {
	n := 0
	for p.cur().Kind == token.Newline {
		p.advance()
		n++
	}
	return n
}

func (p *parser) expect(kind token.Kind) (token.Token, error) {
	if p.cur().Kind != kind {
		return token.Token{}, p.errorf(kind.String())
	}
	return p.advance(), nil
}

func (p *parser) expectIdent(literal string) (token.Token, error) {
	if p.cur().Kind != token.Ident || p.cur().Literal != literal {
		return token.Token{}, p.errorf(fmt.Sprintf("%q", literal))
	}
	return p.advance(), nil
}

func (p *parser) errorf(expecting string) error {
	return pyre.NewParsingError(p.filepath, expecting, p.cur().Start)
}

func locPtr(l ast.Location) *ast.Location { return &l }
