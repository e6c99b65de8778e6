package token

import (
	"fmt"
	"strings"

	"github.com/pyreql/pyre/ast"
)

// Lexer scans pyre source text into a flat Token stream, tracking a
// line/column position for every token so parse errors can point at an
// exact location in the source file.
type Lexer struct {
	src    string
	offset int
	line   int
	column int
}

// New returns a Lexer positioned at the start of src.
func New(src string) *Lexer {
	return &Lexer{src: src, line: 1, column: 1}
}

func (l *Lexer) loc() ast.Location {
	return ast.Location{Offset: l.offset, Line: l.line, Column: l.column}
}

func (l *Lexer) peek() byte {
	if l.offset >= len(l.src) {
		return 0
	}
	return l.src[l.offset]
}

func (l *Lexer) peekAt(n int) byte {
	if l.offset+n >= len(l.src) {
		return 0
	}
	return l.src[l.offset+n]
}

func (l *Lexer) advance() byte {
	c := l.src[l.offset]
	l.offset++
	if c == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return c
}

// Next scans and returns the next Token, skipping spaces and tabs but
// surfacing newlines (needed by the parser's column-0 keyword check) and
// comments (preserved in the AST for round-tripping).
func (l *Lexer) Next() (Token, error) {
	for l.peek() == ' ' || l.peek() == '\t' || l.peek() == '\r' {
		l.advance()
	}

	start := l.loc()

	if l.offset >= len(l.src) {
		return Token{Kind: EOF, Start: start, End: start}, nil
	}

	c := l.peek()

	switch {
	case c == '\n':
		l.advance()
		return Token{Kind: Newline, Start: start, End: l.loc()}, nil

	case c == '/' && l.peekAt(1) == '/':
		l.advance()
		l.advance()
		var sb strings.Builder
		for l.peek() != '\n' && l.offset < len(l.src) {
			sb.WriteByte(l.advance())
		}
		return Token{Kind: Comment, Literal: strings.TrimPrefix(sb.String(), " "), Start: start, End: l.loc()}, nil

	case c == '"':
		return l.scanString(start)

	case isDigit(c):
		return l.scanNumber(start)

	case isIdentStart(c):
		return l.scanIdent(start)

	default:
		return l.scanSymbol(start)
	}
}

func (l *Lexer) scanString(start ast.Location) (Token, error) {
	l.advance() // opening quote
	var sb strings.Builder
	for {
		if l.offset >= len(l.src) {
			return Token{}, fmt.Errorf("%d:%d: unterminated string literal", start.Line, start.Column)
		}
		c := l.peek()
		if c == '"' {
			l.advance()
			break
		}
		if c == '\\' {
			l.advance()
			esc := l.advance()
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '"', '\\':
				sb.WriteByte(esc)
			default:
				sb.WriteByte(esc)
			}
			continue
		}
		sb.WriteByte(l.advance())
	}
	return Token{Kind: String, Literal: sb.String(), Start: start, End: l.loc()}, nil
}

func (l *Lexer) scanNumber(start ast.Location) (Token, error) {
	var sb strings.Builder
	isFloat := false
	for isDigit(l.peek()) {
		sb.WriteByte(l.advance())
	}
	if l.peek() == '.' && isDigit(l.peekAt(1)) {
		isFloat = true
		sb.WriteByte(l.advance())
		for isDigit(l.peek()) {
			sb.WriteByte(l.advance())
		}
	}
	kind := Int
	if isFloat {
		kind = Float
	}
	return Token{Kind: kind, Literal: sb.String(), Start: start, End: l.loc()}, nil
}

func (l *Lexer) scanIdent(start ast.Location) (Token, error) {
	var sb strings.Builder
	for isIdentPart(l.peek()) {
		sb.WriteByte(l.advance())
	}
	return Token{Kind: Ident, Literal: sb.String(), Start: start, End: l.loc()}, nil
}

func (l *Lexer) scanSymbol(start ast.Location) (Token, error) {
	c := l.advance()
	switch c {
	case '@':
		return Token{Kind: At, Start: start, End: l.loc()}, nil
	case '$':
		return Token{Kind: Dollar, Start: start, End: l.loc()}, nil
	case '{':
		return Token{Kind: LBrace, Start: start, End: l.loc()}, nil
	case '}':
		return Token{Kind: RBrace, Start: start, End: l.loc()}, nil
	case '(':
		return Token{Kind: LParen, Start: start, End: l.loc()}, nil
	case ')':
		return Token{Kind: RParen, Start: start, End: l.loc()}, nil
	case '[':
		return Token{Kind: LBracket, Start: start, End: l.loc()}, nil
	case ']':
		return Token{Kind: RBracket, Start: start, End: l.loc()}, nil
	case ',':
		return Token{Kind: Comma, Start: start, End: l.loc()}, nil
	case ':':
		return Token{Kind: Colon, Start: start, End: l.loc()}, nil
	case '.':
		return Token{Kind: Dot, Start: start, End: l.loc()}, nil
	case '?':
		return Token{Kind: Question, Start: start, End: l.loc()}, nil
	case '&':
		if l.peek() == '&' {
			l.advance()
			return Token{Kind: AmpAmp, Start: start, End: l.loc()}, nil
		}
		return Token{Kind: Illegal, Literal: "&", Start: start, End: l.loc()},
			fmt.Errorf("%d:%d: unexpected character %q", start.Line, start.Column, c)
	case '|':
		if l.peek() == '|' {
			l.advance()
			return Token{Kind: PipePipe, Start: start, End: l.loc()}, nil
		}
		return Token{Kind: Pipe, Start: start, End: l.loc()}, nil
	case '=':
		if l.peek() == '=' {
			l.advance()
			return Token{Kind: Eq, Start: start, End: l.loc()}, nil
		}
		return Token{Kind: Set, Start: start, End: l.loc()}, nil
	case '!':
		if l.peek() == '=' {
			l.advance()
			return Token{Kind: Neq, Start: start, End: l.loc()}, nil
		}
		return Token{Kind: Bang, Start: start, End: l.loc()}, nil
	case '<':
		if l.peek() == '=' {
			l.advance()
			return Token{Kind: Lte, Start: start, End: l.loc()}, nil
		}
		return Token{Kind: Lt, Start: start, End: l.loc()}, nil
	case '>':
		if l.peek() == '=' {
			l.advance()
			return Token{Kind: Gte, Start: start, End: l.loc()}, nil
		}
		return Token{Kind: Gt, Start: start, End: l.loc()}, nil
	default:
		return Token{Kind: Illegal, Literal: string(c), Start: start, End: l.loc()},
			fmt.Errorf("%d:%d: unexpected character %q", start.Line, start.Column, c)
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

// All scans src fully into a token slice, for parsers that prefer random
// lookahead over streaming Next calls.
func All(src string) ([]Token, error) {
	lx := New(src)
	var toks []Token
	for {
		tok, err := lx.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == EOF {
			return toks, nil
		}
	}
}
