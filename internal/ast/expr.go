// Package ast is the single discriminated-union Expr tree that flows
// through the whole frontend: the parser produces it, the resolver
// rewrites DefMap/Top/Subscribe/Match nodes into DefBinding/Lambda/VarRef
// in place, and the typechecker annotates every node's Type field, all
// without changing representation.
package ast

import (
	"github.com/wake-build/wake/internal/loc"
	"github.com/wake-build/wake/internal/types"
)

// Expr is implemented by every node kind in the tree. Loc and the mutable
// Type/Meta fields are common to all of them.
type Expr interface {
	exprNode()
	Location() loc.Location
	TypeVar() *types.TypeVar
	SetTypeVar(*types.TypeVar)
}

// base is embedded by every concrete node to provide the common fields
// without repeating boilerplate accessors.
type base struct {
	Loc  loc.Location
	Type *types.TypeVar
	Meta int // scratch word used by optimizer passes (term-id, liveness bit, ...)
}

func (b *base) Location() loc.Location         { return b.Loc }
func (b *base) TypeVar() *types.TypeVar         { return b.Type }
func (b *base) SetTypeVar(tv *types.TypeVar)    { b.Type = tv }

// VarRef is a use of a name. Before resolution Index/Target are zero;
// the resolver fills Index with a scope-chain depth and Target with the
// DefBinding (or primitive) the name refers to.
type VarRef struct {
	base
	Name   string
	Index  int  // scope-chain depth at which Target lives
	Target Expr // the binding this reference resolves to
}

func (*VarRef) exprNode() {}

// App is function application: Fn applied to Val.
type App struct {
	base
	Fn  Expr
	Val Expr
}

func (*App) exprNode() {}

// Lambda is a single-argument function. ArgName is the argument's binding
// name ("_" if discarded); FnName is an optional name used for
// self-reference/error messages (the name the user wrote in `def f x = ...`).
type Lambda struct {
	base
	ArgName string
	Body    Expr
	FnName  string
	Token   loc.Location // location of just the argument token, for arity diagnostics
}

func (*Lambda) exprNode() {}

// LitKind distinguishes the primitive types a Literal may hold.
type LitKind int

const (
	LitInteger LitKind = iota
	LitDouble
	LitString
	LitRegExp
)

// Literal is a constant value folded directly into the tree. Value is the
// textual form from the token; later stages (SSA lowering) parse it into
// the runtime representation.
type Literal struct {
	base
	Value string
	Kind  LitKind
}

func (*Literal) exprNode() {}

// PrimFlags classifies a primitive's side-effect behavior for the purity
// pass.
type PrimFlags uint8

const (
	PrimPure PrimFlags = 1 << iota
	PrimOrdered
	PrimEffect
	PrimFnArg
)

// Prim is a call to a registered native primitive.
type Prim struct {
	base
	Name  string
	Args  []Expr
	Flags PrimFlags
	Data  interface{} // primitive-specific payload attached by the registry
}

func (*Prim) exprNode() {}

// Def is one name→expression mapping inside a DefMap, annotated with
// whether the name was declared `global`.
type Def struct {
	Name   string
	Body   Expr
	Global bool
	Loc    loc.Location
}

// DataCtor is one constructor clause of a DataDecl: a name plus the
// leading head token of each declared field's type atom (a parameter
// name, a self-recursive reference, or "" for anything else), captured by
// the parser's parseTypeAtomHead so the resolver can recognize the common
// cases without a full type-expression grammar.
type DataCtor struct {
	Name   string
	Fields []string
	Loc    loc.Location
}

// DataDecl is a user `data Name a b = Ctor1 t1 t2 | Ctor2 t3` declaration,
// collected by the parser and turned into a types.Sum by the resolver the
// same way cmd/wake/prelude.go builds the seven built-in sums.
type DataDecl struct {
	Name   string
	Params []string
	Ctors  []DataCtor
	Loc    loc.Location
}

// DefMap is a lexical scope: simultaneous definitions, publish channels,
// and a body evaluated in that scope.
type DefMap struct {
	base
	Defs  []Def
	Datas []*DataDecl // `data` declarations made in this scope
	Pubs  []string    // names published for Subscribe to pick up
	Body  Expr
}

func (*DefMap) exprNode() {}

// FileScope is one source file's top-level DefMap plus its integer id,
// used to disambiguate same-named locals across files.
type FileScope struct {
	ID     int
	File   string
	DefMap *DefMap
}

// Top is the root of the whole program: one FileScope per source file
// plus a globals index and a body expression to evaluate.
type Top struct {
	base
	Files   []FileScope
	Globals map[string]Expr
	Body    Expr
}

func (*Top) exprNode() {}

// Pattern is the surface-syntax pattern tree used by Match arms: a tag
// name plus positional args, reused for both value patterns and type
// expressions in the parser.
type Pattern struct {
	Loc     loc.Location
	Tag     string // constructor name, "_", a literal, or a variable name
	Name    string // binding name, if Tag is a variable
	Args    []*Pattern
	IsVar   bool // true if this pattern is a plain variable binding
	IsWild  bool // true if this pattern is `_`
	Literal Expr // set if Tag is a literal pattern
}

// MatchArm is one `pattern = body` arm of a Match.
type MatchArm struct {
	Patterns []*Pattern // one pattern per scrutinee
	Guard    Expr       // nil if unguarded
	Body     Expr
	Loc      loc.Location
}

// Match is a multi-scrutinee pattern match, compiled away by the resolver
// before the typechecker sees it. By the time Type is assigned on
// surviving nodes, Match has become nested Destruct/App.
type Match struct {
	base
	Scrutinees []Expr
	Arms       []MatchArm
}

func (*Match) exprNode() {}

// Subscribe reads the most recent publish of Name in the enclosing scope
// chain, or Nil if it was never published.
type Subscribe struct {
	base
	Name string
}

func (*Subscribe) exprNode() {}

// Construct builds a record of Sum's Cons-th constructor from Args.
type Construct struct {
	base
	Sum  *types.Sum
	Cons *types.Constructor
	Args []Expr
}

func (*Construct) exprNode() {}

// Destruct is a compiled match: one Handler Lambda per constructor of Sum,
// applied to whichever constructor the scrutinee turns out to carry.
type Destruct struct {
	base
	Sum      *types.Sum
	Handlers []Expr // one per Sum.Members, in constructor-index order
}

func (*Destruct) exprNode() {}

// Get reads the Index-th field of a Sum's Cons-th constructor out of Arg.
type Get struct {
	base
	Sum   *types.Sum
	Cons  *types.Constructor
	Index int
	Arg   Expr
}

func (*Get) exprNode() {}

// SCCGroup tags the mutually-recursive group a Fun binding belongs to,
// assigned by Tarjan SCC over Lambda-valued bindings within a stratified
// level.
type SCCGroup int

// DefBinding is the resolver's lowered form of a DefMap scope: Vals are
// evaluated before Body with no cross-references permitted between them;
// Funs are grouped into SCCs for the typechecker's generalization.
type DefBinding struct {
	base
	Vals []Def
	Funs []Def
	SCC  []SCCGroup // SCC[i] is the group id of Funs[i]
	Body Expr
}

func (*DefBinding) exprNode() {}
