// Package ssa lowers a resolved, typechecked ast.Expr tree into the flat
// term graph the optimizer and runtime operate on.
package ssa

import "fmt"

// ID packs a term's (depth, offset) coordinate into one word: depth is the
// number of enclosing Fun scopes between the reference and its binder,
// offset is the binder's position within that scope's argument/def list.
// One fixed-width word keeps storage and comparison cheap across the
// optimizer's term-heavy passes.
type ID uint64

func Pack(depth, offset int) ID {
	return ID(uint64(uint32(depth))<<32 | uint64(uint32(offset)))
}

func (id ID) Depth() int  { return int(int32(id >> 32)) }
func (id ID) Offset() int { return int(int32(id & 0xffffffff)) }

func (id ID) String() string { return fmt.Sprintf("(%d,%d)", id.Depth(), id.Offset()) }

// Kind discriminates the term variants.
type Kind int

const (
	KArg Kind = iota
	KLit
	KApp
	KPrim
	KGet
	KDes
	KCon
	KFun
)

// Term is one node of the flat graph: every operand is a Pack()ed (depth,
// offset) coordinate into an enclosing Fun's term list rather than a
// pointer, so the optimizer can move or clone whole Fun bodies without a
// pointer-fixup pass.
type Term struct {
	Kind Kind

	// KLit
	LitValue string
	LitKind  int

	// KArg: no extra fields; identity is the Term's own position.

	// KApp
	AppFn, AppArg ID

	// KPrim
	PrimName string
	PrimArgs []ID
	PrimData interface{}

	// KGet
	GetSum   string
	GetCons  int
	GetIndex int
	GetArg   ID

	// KDes
	DesSum     string
	DesHandlers []ID

	// KCon
	ConSum  string
	ConCons int
	ConArgs []ID

	// KFun
	FunBody []Term // this Fun's own flat term list, terminated by its return term
	FunName string // for diagnostics/profiling labels only

	// Scratch bits used by optimizer passes (liveness, CSE key, scope depth,
	// purity flags).
	Live  bool
	Scope int
	Meta  int
}

// Graph is the whole program's lowered form: one top-level Fun.
type Graph struct {
	Top Term // Kind == KFun
}
