// Package token defines the lexical tokens shared by the schema and query
// parsers and the hand-written scanner that produces them.
package token

import "github.com/pyreql/pyre/ast"

// Kind identifies the lexical class of a Token.
type Kind int

const (
	EOF Kind = iota
	Illegal

	Ident  // foo, Bar, record, query, Asc ...
	Int    // 123
	Float  // 1.5
	String // "..."
	At     // @
	Dollar // $

	LBrace   // {
	RBrace   // }
	LParen   // (
	RParen   // )
	LBracket // [
	RBracket // ]
	Comma    // ,
	Colon    // :
	Dot      // .
	Question // ?
	Bang     // !
	Pipe     // | (tagged-union variant separator)

	AmpAmp   // &&
	PipePipe // ||

	Eq  // ==
	Neq // !=
	Lt  // <
	Lte // <=
	Gt  // >
	Gte // >=
	Set // = (set-block and tagged-literal field assignments, and `type X =` declarations)

	Comment // // ... (text without the leading slashes)
	Newline
)

// String names a Kind for diagnostics.
func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Illegal:
		return "illegal token"
	case Ident:
		return "identifier"
	case Int:
		return "integer literal"
	case Float:
		return "float literal"
	case String:
		return "string literal"
	case At:
		return "'@'"
	case Dollar:
		return "'$'"
	case LBrace:
		return "'{'"
	case RBrace:
		return "'}'"
	case LParen:
		return "'('"
	case RParen:
		return "')'"
	case LBracket:
		return "'['"
	case RBracket:
		return "']'"
	case Comma:
		return "','"
	case Colon:
		return "':'"
	case Dot:
		return "'.'"
	case Question:
		return "'?'"
	case Bang:
		return "'!'"
	case Pipe:
		return "'|'"
	case AmpAmp:
		return "'&&'"
	case PipePipe:
		return "'||'"
	case Eq:
		return "'=='"
	case Neq:
		return "'!='"
	case Lt:
		return "'<'"
	case Lte:
		return "'<='"
	case Gt:
		return "'>'"
	case Gte:
		return "'>='"
	case Set:
		return "'='"
	case Comment:
		return "comment"
	case Newline:
		return "newline"
	default:
		return "unknown token"
	}
}

// Token is one lexical unit: its kind, literal text, and source span.
type Token struct {
	Kind    Kind
	Literal string
	Start   ast.Location
	End     ast.Location
}

// Keywords lists the grammar's reserved identifiers. Every keyword is
// lexically just an Ident; the parser matches keywords by their Literal
// text and does not consult this map.
var Keywords = map[string]bool{
	"record":  true,
	"type":    true,
	"session": true,
	"query":   true,
	"insert":  true,
	"update":  true,
	"delete":  true,
	"true":    true,
	"false":   true,
	"null":    true,
	"now":     true,
	"Asc":     true,
	"Desc":    true,
	"in":      true,
	"like":    true,
	"not":     true,
}
