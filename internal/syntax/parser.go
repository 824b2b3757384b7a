package syntax

import (
	"fmt"

	"github.com/wake-build/wake/internal/ast"
	"github.com/wake-build/wake/internal/loc"
)

// Parser builds an ast.Expr tree from a Lexer's token stream: a
// straightforward recursive-descent parser over the off-side-rule token
// stream the Lexer already normalized into INDENT/DEDENT/NEWLINE.
type Parser struct {
	toks []Token
	pos  int
	file string
	errs []error
}

// NewParser creates a Parser over the full token list for one file.
func NewParser(file string, toks []Token) *Parser {
	return &Parser{toks: toks, file: file}
}

// Errors returns parse errors collected so far; parsing continues past an
// error where possible to batch diagnostics.
func (p *Parser) Errors() []error { return p.errs }

func (p *Parser) errorf(at loc.Location, format string, args ...interface{}) {
	p.errs = append(p.errs, fmt.Errorf("%s: %s", at, fmt.Sprintf(format, args...)))
}

func (p *Parser) cur() Token {
	if p.pos >= len(p.toks) {
		return Token{Kind: EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) at(k Kind) bool { return p.cur().Kind == k }

func (p *Parser) advance() Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k Kind, what string) Token {
	if !p.at(k) {
		p.errorf(p.cur().Loc, "expected %s, found %q", what, p.cur().Text)
		return p.cur()
	}
	return p.advance()
}

// skipNewlines consumes any run of NEWLINE tokens (blank lines between
// top-level definitions).
func (p *Parser) skipNewlines() {
	for p.at(NEWLINE) {
		p.advance()
	}
}

// ParseFile parses one file into a *ast.DefMap of its top-level
// definitions.
func (p *Parser) ParseFile() *ast.DefMap {
	dm := &ast.DefMap{}
	dm.Loc = loc.Location{File: p.file}
	for !p.at(EOF) {
		p.skipNewlines()
		if p.at(EOF) {
			break
		}
		switch p.cur().Kind {
		case KW_DEF:
			d := p.parseDef(false)
			dm.Defs = append(dm.Defs, d)
		case KW_GLOBAL:
			p.advance()
			d := p.parseDef(true)
			dm.Defs = append(dm.Defs, d)
		case KW_PUBLISH:
			p.advance()
			name := p.expect(ID, "publish name").Text
			p.expect(EQUALS, "'='")
			body := p.parseExpr()
			dm.Pubs = append(dm.Pubs, name)
			dm.Defs = append(dm.Defs, ast.Def{Name: "publish " + name, Body: body})
		case KW_DATA:
			p.advance()
			p.parseData(dm)
		default:
			p.errorf(p.cur().Loc, "expected a top-level definition, found %q", p.cur().Text)
			p.advance()
		}
		p.skipNewlines()
	}
	return dm
}

func (p *Parser) parseDef(global bool) ast.Def {
	start := p.cur().Loc
	p.advance() // 'def'
	name := p.parseDefName()
	var args []string
	for p.at(ID) {
		args = append(args, p.advance().Text)
	}
	p.expect(EQUALS, "'='")
	body := p.parseExpr()
	for i := len(args) - 1; i >= 0; i-- {
		body = &ast.Lambda{ArgName: args[i], Body: body, FnName: name}
	}
	return ast.Def{Name: name, Body: body, Global: global, Loc: start.Union(p.cur().Loc)}
}

// parseDefName accepts either a plain identifier or a parenthesized
// operator name, e.g. `def (++) a b = ...`.
func (p *Parser) parseDefName() string {
	if p.at(LPAREN) {
		p.advance()
		name := p.advance().Text
		p.expect(RPAREN, "')'")
		return name
	}
	return p.expect(ID, "definition name").Text
}

// parseData parses `data Name a b = Ctor1 t1 t2 | Ctor2 t3` into an
// ast.DataDecl and attaches it to dm.Datas; internal/resolve turns it into
// a types.Sum, registering each constructor the same way
// cmd/wake/prelude.go's buildPrelude registers the seven built-in ones.
func (p *Parser) parseData(dm *ast.DefMap) {
	start := p.cur().Loc
	name := p.expect(CONID, "type name").Text
	var params []string
	for p.at(ID) {
		params = append(params, p.advance().Text)
	}
	decl := &ast.DataDecl{Name: name, Params: params, Loc: start}
	if p.at(EQUALS) {
		p.advance()
		for {
			ctorTok := p.expect(CONID, "constructor name")
			var fields []string
			for p.at(ID) || p.at(CONID) || p.at(LPAREN) {
				fields = append(fields, p.parseTypeAtomHead())
			}
			decl.Ctors = append(decl.Ctors, ast.DataCtor{Name: ctorTok.Text, Fields: fields, Loc: ctorTok.Loc})
			if p.at(PIPE) {
				p.advance()
				continue
			}
			break
		}
	}
	dm.Datas = append(dm.Datas, decl)
}

// parseTypeAtomHead consumes one constructor-argument type atom (a bare
// parameter/type name, or a parenthesized application like `(List a)`)
// and returns just its leading name. That's enough for the resolver to
// recognize a parameter reference or a self-recursive occurrence of the
// type being declared, without a full type-expression grammar.
func (p *Parser) parseTypeAtomHead() string {
	if p.at(LPAREN) {
		p.advance()
		head := ""
		if p.at(ID) || p.at(CONID) {
			head = p.cur().Text
		}
		depth := 1
		for depth > 0 && !p.at(EOF) {
			if p.at(LPAREN) {
				depth++
			} else if p.at(RPAREN) {
				depth--
			}
			p.advance()
		}
		return head
	}
	return p.advance().Text
}

// parseExpr parses a full expression: the lowest-precedence forms
// (lambda, if/then/else, match) delegate down to parseApp/parseAtom for
// application and atoms.
func (p *Parser) parseExpr() ast.Expr {
	switch p.cur().Kind {
	case KW_IF:
		return p.parseIf()
	case KW_MATCH:
		return p.parseMatch()
	case KW_SUBSCRIBE:
		start := p.advance().Loc
		name := p.expect(ID, "subscribe name").Text
		sub := &ast.Subscribe{Name: name}
		sub.Loc = start
		return sub
	default:
		return p.parseOperator(0)
	}
}

func (p *Parser) parseIf() ast.Expr {
	start := p.advance().Loc // 'if'
	cond := p.parseOperator(0)
	p.expect(KW_THEN, "'then'")
	then := p.parseExpr()
	p.expect(KW_ELSE, "'else'")
	els := p.parseExpr()
	// Desugars to a Match on Boolean, matching the resolver's own
	// if/then/else lowering.
	m := &ast.Match{
		Scrutinees: []ast.Expr{cond},
		Arms: []ast.MatchArm{
			{Patterns: []*ast.Pattern{{Tag: "True"}}, Body: then, Loc: start},
			{Patterns: []*ast.Pattern{{Tag: "False"}}, Body: els, Loc: start},
		},
	}
	m.Loc = start
	return m
}

func (p *Parser) parseMatch() ast.Expr {
	start := p.advance().Loc // 'match'
	var scrutinees []ast.Expr
	scrutinees = append(scrutinees, p.parseOperator(0))
	for p.at(COMMA) {
		p.advance()
		scrutinees = append(scrutinees, p.parseOperator(0))
	}
	p.expect(INDENT, "indented match arms")
	var arms []ast.MatchArm
	for !p.at(DEDENT) && !p.at(EOF) {
		p.skipNewlines()
		if p.at(DEDENT) {
			break
		}
		armStart := p.cur().Loc
		var pats []*ast.Pattern
		pats = append(pats, p.parsePattern())
		for p.at(COMMA) {
			p.advance()
			pats = append(pats, p.parsePattern())
		}
		var guard ast.Expr
		if p.at(KW_IF) {
			p.advance()
			guard = p.parseOperator(0)
		}
		p.expect(EQUALS, "'='")
		body := p.parseExpr()
		arms = append(arms, ast.MatchArm{Patterns: pats, Guard: guard, Body: body, Loc: armStart})
		p.skipNewlines()
	}
	p.expect(DEDENT, "end of match arms")
	m := &ast.Match{Scrutinees: scrutinees, Arms: arms}
	m.Loc = start
	return m
}

func (p *Parser) parsePattern() *ast.Pattern {
	t := p.cur()
	switch t.Kind {
	case ID:
		p.advance()
		if t.Text == "_" {
			return &ast.Pattern{Loc: t.Loc, Tag: "_", IsWild: true}
		}
		return &ast.Pattern{Loc: t.Loc, Tag: t.Text, Name: t.Text, IsVar: true}
	case CONID:
		p.advance()
		pat := &ast.Pattern{Loc: t.Loc, Tag: t.Text}
		for p.at(ID) || p.at(CONID) || p.at(LPAREN) {
			pat.Args = append(pat.Args, p.parsePatternAtom())
		}
		return pat
	case INTEGER, DOUBLE, STRING:
		p.advance()
		lit := &ast.Literal{Value: t.Text, Kind: litKindOf(t.Kind)}
		lit.Loc = t.Loc
		return &ast.Pattern{Loc: t.Loc, Tag: "<literal>", Literal: lit}
	case LPAREN:
		p.advance()
		pat := p.parsePattern()
		p.expect(RPAREN, "')'")
		return pat
	default:
		p.errorf(t.Loc, "expected a pattern, found %q", t.Text)
		p.advance()
		return &ast.Pattern{Loc: t.Loc, Tag: "_", IsWild: true}
	}
}

func (p *Parser) parsePatternAtom() *ast.Pattern {
	if p.at(LPAREN) {
		return p.parsePattern()
	}
	t := p.advance()
	if t.Kind == CONID {
		return &ast.Pattern{Loc: t.Loc, Tag: t.Text}
	}
	if t.Text == "_" {
		return &ast.Pattern{Loc: t.Loc, Tag: "_", IsWild: true}
	}
	return &ast.Pattern{Loc: t.Loc, Tag: t.Text, Name: t.Text, IsVar: true}
}

func litKindOf(k Kind) ast.LitKind {
	switch k {
	case DOUBLE:
		return ast.LitDouble
	case STRING:
		return ast.LitString
	case REGEXP:
		return ast.LitRegExp
	default:
		return ast.LitInteger
	}
}

// binops lists the surface infix operators in ascending precedence
// binding tiers; each tier desugars to an App chain calling the named
// primitive, e.g. `a ++ b` becomes `App(App(VarRef("++"), a), b)`.
var binops = [][]string{
	{"||"},
	{"&&"},
	{"==", "!=", "<", ">", "<=", ">="},
	{"++"},
	{"+", "-"},
	{"*", "/", "%"},
}

func (p *Parser) parseOperator(tier int) ast.Expr {
	if tier >= len(binops) {
		return p.parseApp()
	}
	lhs := p.parseOperator(tier + 1)
	for p.at(ID) && isOpTier(p.cur().Text, binops[tier]) {
		opTok := p.advance()
		rhs := p.parseOperator(tier + 1)
		op := &ast.VarRef{Name: opTok.Text}
		op.Loc = opTok.Loc
		app1 := &ast.App{Fn: op, Val: lhs}
		app1.Loc = opTok.Loc
		app2 := &ast.App{Fn: app1, Val: rhs}
		app2.Loc = opTok.Loc
		lhs = app2
	}
	return lhs
}

func isOpTier(text string, tier []string) bool {
	for _, t := range tier {
		if t == text {
			return true
		}
	}
	return false
}

func (p *Parser) parseApp() ast.Expr {
	fn := p.parseAtom()
	for isAtomStart(p.cur().Kind) {
		val := p.parseAtom()
		app := &ast.App{Fn: fn, Val: val}
		app.Loc = fn.Location().Union(val.Location())
		fn = app
	}
	return fn
}

func isAtomStart(k Kind) bool {
	switch k {
	case ID, CONID, INTEGER, DOUBLE, STRING, REGEXP, LPAREN:
		return true
	default:
		return false
	}
}

func (p *Parser) parseAtom() ast.Expr {
	t := p.cur()
	switch t.Kind {
	case ID:
		if t.Text == "\\" {
			return p.parseLambda()
		}
		p.advance()
		v := &ast.VarRef{Name: t.Text}
		v.Loc = t.Loc
		return v
	case CONID:
		p.advance()
		v := &ast.VarRef{Name: t.Text}
		v.Loc = t.Loc
		return v
	case INTEGER, DOUBLE, STRING, REGEXP:
		p.advance()
		lit := &ast.Literal{Value: t.Text, Kind: litKindOf(t.Kind)}
		lit.Loc = t.Loc
		return lit
	case LPAREN:
		p.advance()
		inner := p.parseExpr()
		p.expect(RPAREN, "')'")
		return inner
	default:
		p.errorf(t.Loc, "expected an expression, found %q", t.Text)
		p.advance()
		lit := &ast.Literal{Value: "0", Kind: ast.LitInteger}
		lit.Loc = t.Loc
		return lit
	}
}

func (p *Parser) parseLambda() ast.Expr {
	start := p.advance().Loc // backslash
	arg := p.expect(ID, "lambda argument").Text
	p.expect(ARROW, "'->'")
	body := p.parseExpr()
	lam := &ast.Lambda{ArgName: arg, Body: body, Token: start}
	lam.Loc = start.Union(body.Location())
	return lam
}

