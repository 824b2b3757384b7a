package syntax

import "github.com/wake-build/wake/internal/loc"

// Kind enumerates lexical token categories.
type Kind int

const (
	EOF Kind = iota
	ID          // lower-case identifier or operator
	CONID       // upper-case identifier (constructor / type)
	INTEGER
	DOUBLE
	STRING
	REGEXP
	LPAREN
	RPAREN
	LBRACE
	RBRACE
	COMMA
	EQUALS
	ARROW   // ->
	BACKARROW // <-
	PIPE    // |
	KW_DEF
	KW_GLOBAL
	KW_PUBLISH
	KW_SUBSCRIBE
	KW_MATCH
	KW_IF
	KW_THEN
	KW_ELSE
	KW_DATA
	KW_TUPLE
	KW_FROM
	KW_IMPORT
	KW_PACKAGE
	KW_EXPORT
	INDENT
	DEDENT
	NEWLINE
)

// Token is one lexical unit with its source span.
type Token struct {
	Kind Kind
	Text string
	Loc  loc.Location
}

var keywords = map[string]Kind{
	"def":       KW_DEF,
	"global":    KW_GLOBAL,
	"publish":   KW_PUBLISH,
	"subscribe": KW_SUBSCRIBE,
	"match":     KW_MATCH,
	"if":        KW_IF,
	"then":      KW_THEN,
	"else":      KW_ELSE,
	"data":      KW_DATA,
	"tuple":     KW_TUPLE,
	"from":      KW_FROM,
	"import":    KW_IMPORT,
	"package":   KW_PACKAGE,
	"export":    KW_EXPORT,
}
