package types

import "fmt"

// Env is the type environment the inferencer consults: a chain of frames,
// each mapping a name to either a monomorphic TypeVar (still being
// inferred, as for a recursive group before its SCC converges) or an
// already-generalized polymorphic scheme (instantiated fresh at each use).
type Env struct {
	mono   map[string]*TypeVar
	poly   map[string]*Scheme
	parent *Env
}

// Scheme is a generalized type: Quantified lists the free variables that
// get a fresh copy at every Instantiate.
type Scheme struct {
	Quantified []*TypeVar
	Body       *TypeVar
}

func NewEnv(parent *Env) *Env {
	return &Env{mono: map[string]*TypeVar{}, poly: map[string]*Scheme{}, parent: parent}
}

func (e *Env) BindMono(name string, tv *TypeVar) { e.mono[name] = tv }
func (e *Env) BindPoly(name string, sc *Scheme)  { e.poly[name] = sc }

// Lookup returns the type of name, instantiating a fresh copy if it names a
// polymorphic scheme.
func (e *Env) Lookup(clock *Clock, name string) (*TypeVar, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if tv, ok := cur.mono[name]; ok {
			return tv, true
		}
		if sc, ok := cur.poly[name]; ok {
			return Instantiate(clock, sc.Body, sc.Quantified), true
		}
	}
	return nil, false
}

// TypeError carries a site Location string (callers format with loc.Location)
// plus the underlying UnifyError, so every unification failure names both
// sides and the expression it occurred at.
type TypeError struct {
	At    string
	Cause error
}

func (e *TypeError) Error() string { return fmt.Sprintf("%s: %v", e.At, e.Cause) }
func (e *TypeError) Unwrap() error { return e.Cause }

// Inferer runs Algorithm-W-style inference driven by explicit Unify calls
// rather than substitution threading, since the TypeVar union-find already
// carries all bound state. Inferer never sees the caller's expression
// representation: the typechecker walks its own tree and calls Unify/Fn
// directly, keeping internal/types free of a dependency on internal/ast.
type Inferer struct {
	Clock *Clock
	Sums  *Distinguished
	errs  []error
}

func NewInferer(clock *Clock, sums *Distinguished) *Inferer {
	return &Inferer{Clock: clock, Sums: sums}
}

func (inf *Inferer) Errors() []error { return inf.errs }

// Unify unifies a and b, recording a TypeError tagged with at on failure
// instead of returning it, so callers can keep walking the tree and collect
// every diagnostic in one pass.
func (inf *Inferer) Unify(at string, a, b *TypeVar) *TypeVar {
	if err := Unify(a, b); err != nil {
		inf.errs = append(inf.errs, &TypeError{At: at, Cause: err})
	}
	return a
}

// FreshFn returns a function type a -> b as a two-child TypeVar: arrows
// are just a binary "fn" constructor, not a special case in unification.
func (inf *Inferer) FreshFn(arg, ret *TypeVar) *TypeVar {
	return NewCon(inf.Clock, "fn", arg, ret)
}

// Fn destructures a function type, unifying it with a fresh "fn a b" shape
// if tv is still an unbound variable.
func (inf *Inferer) Fn(at string, tv *TypeVar) (arg, ret *TypeVar) {
	r := tv.Find()
	if r.Name == "fn" && len(r.Children) == 2 {
		return r.Children[0].Var, r.Children[1].Var
	}
	arg = NewFree(inf.Clock)
	ret = NewFree(inf.Clock)
	inf.Unify(at, tv, inf.FreshFn(arg, ret))
	return arg, ret
}

// GeneralizeScheme wraps Generalize for the common let-binding case:
// quantify every free variable in tv born at or after since into a Scheme.
func (inf *Inferer) GeneralizeScheme(tv *TypeVar, since DOB) *Scheme {
	return &Scheme{Quantified: Generalize(tv, since), Body: tv}
}
