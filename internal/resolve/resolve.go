// Package resolve turns a parsed surface ast.Top into a name-resolved tree:
// every VarRef is pointed at its binding, DefMap scopes are compiled into
// DefBinding groups ordered by stratified SCC, and Match nodes are lowered
// into Destruct/Construct/Get.
package resolve

import (
	"fmt"
	"strings"

	"github.com/wake-build/wake/internal/ast"
	"github.com/wake-build/wake/internal/types"
)

// scope is one link in the lexical scope chain: a flat map of names visible
// at this level plus the enclosing scope (nil at the root, which holds
// primitives and prelude globals).
type scope struct {
	names  map[string]ast.Expr
	parent *scope
	depth  int
}

func newScope(parent *scope) *scope {
	d := 0
	if parent != nil {
		d = parent.depth + 1
	}
	return &scope{names: map[string]ast.Expr{}, parent: parent, depth: d}
}

func (s *scope) lookup(name string) (ast.Expr, int, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if e, ok := cur.names[name]; ok {
			return e, s.depth - cur.depth, true
		}
	}
	return nil, 0, false
}

// operatorAlias maps a surface infix operator's token text to the
// primitive it calls. The parser desugars `a + b` to
// `App(App(VarRef("+"), a), b)`; resolveExpr's primitive fallback applies
// the alias when "+" is not a lexical binding.
var operatorAlias = map[string]string{
	"+":  "integer_add",
	"-":  "integer_sub",
	"*":  "integer_mul",
	"/":  "integer_div",
	"%":  "integer_mod",
	"++": "string_cat",
	"==": "integer_eq",
	"!=": "integer_ne",
	"<":  "integer_lt",
	">":  "integer_gt",
	"<=": "integer_le",
	">=": "integer_ge",
	"&&": "bool_and",
	"||": "bool_or",
}

// Resolver carries the distinguished sums needed to lower Match/if-then-else
// arms into Destruct trees, and accumulates diagnostics.
type Resolver struct {
	Sums  *types.Distinguished
	errs  []error
	dist  map[string]*types.Sum // constructor name -> owning sum: the driver's built-in sums plus registerData's user `data` decls
	prims map[string]int        // primitive name -> declared arity, from prim.Registry.Arities()
	clock *types.Clock          // shared with the typechecker; stamps TypeVars built for user `data` decls
}

// New creates a Resolver. dist maps constructor names to their owning
// Sum, prims maps primitive names to arities, and clock is shared with
// the typechecker so TypeVars minted here carry consistent DOBs.
func New(sums *types.Distinguished, dist map[string]*types.Sum, prims map[string]int, clock *types.Clock) *Resolver {
	return &Resolver{Sums: sums, dist: dist, prims: prims, clock: clock}
}

func (r *Resolver) Errors() []error { return r.errs }

func (r *Resolver) errorf(at ast.Expr, format string, args ...interface{}) {
	r.errs = append(r.errs, fmt.Errorf("%s: %s", at.Location(), fmt.Sprintf(format, args...)))
}

// ResolveTop resolves every file's DefMap, nested in discovery order
// under a shared root scope (global defs declared `global` are hoisted to
// the root so order doesn't matter for them), then resolves the top-level
// Body innermost.
func (r *Resolver) ResolveTop(top *ast.Top) ast.Expr {
	root := newScope(nil)
	// `data` declarations are visible across the whole program regardless
	// of which file declared them, the same way a `global` def is: register
	// every one before resolving any file's body so forward/cross-file
	// references to a constructor always find their Sum.
	for i := range top.Files {
		for _, d := range top.Files[i].DefMap.Datas {
			r.registerData(d)
		}
	}
	// First pass: register every `global` def from every file so mutual
	// cross-file references resolve regardless of file order.
	for i := range top.Files {
		for _, d := range top.Files[i].DefMap.Defs {
			if d.Global {
				root.names[d.Name] = d.Body
			}
		}
	}
	// Files nest in discovery order: each file's DefMap wraps everything
	// after it, so a later file (and the final Body) sits inside every
	// earlier file's scope chain. A publish chain spans files through the
	// ordinary outer-scope lookup, and shadowing keeps same-named
	// file-locals from colliding.
	var rest ast.Expr = top.Body
	for i := len(top.Files) - 1; i >= 0; i-- {
		dm := top.Files[i].DefMap
		dm.Body = rest
		rest = dm
	}
	return r.resolveExpr(rest, root)
}

// resolveDefMap compiles one DefMap into a DefBinding: Vals (non-function
// bindings, evaluated eagerly and in no particular cross-order) and Funs
// (lambda-valued bindings, grouped into SCCs) are separated, and every Def's
// body is resolved against a scope containing all of the DefMap's own names
// plus the enclosing scope.
func (r *Resolver) resolveDefMap(dm *ast.DefMap, parent *scope) *ast.DefBinding {
	inner := newScope(parent)
	r.chainPublishes(dm, inner)
	for _, d := range dm.Defs {
		inner.names[d.Name] = d.Body
	}

	r.checkValueCycles(dm)

	var vals, funs []ast.Def
	funIndex := map[string]int{}
	for _, d := range dm.Defs {
		if _, ok := d.Body.(*ast.Lambda); ok {
			funIndex[d.Name] = len(funs)
			funs = append(funs, d)
		} else {
			vals = append(vals, d)
		}
	}

	adj := make([][]int, len(funs))
	for i, d := range funs {
		adj[i] = collectFunRefs(d.Body, funIndex)
	}
	comp := tarjan(adj)
	numComp := 0
	for _, c := range comp {
		if c+1 > numComp {
			numComp = c + 1
		}
	}
	dag := componentDAG(adj, comp, numComp)
	levels := stratify(dag)

	scc := make([]ast.SCCGroup, len(funs))
	for i, c := range comp {
		scc[i] = ast.SCCGroup(levels[c])
	}

	for i := range vals {
		vals[i].Body = r.resolveExpr(vals[i].Body, inner)
	}
	for i := range funs {
		funs[i].Body = r.resolveExpr(funs[i].Body, inner)
	}
	body := r.resolveExpr(dm.Body, inner)

	db := &ast.DefBinding{Vals: vals, Funs: funs, SCC: scc, Body: body}
	db.SetTypeVar(nil)
	return db
}

// checkValueCycles detects cycles among dm's own definitions that pass
// through at least one non-Lambda ("val") binding. An SCC of size > 1, or
// a single node with a self-edge, containing any non-Lambda member is a
// value definition cycle. It must error here, not recurse forever at
// evaluation time.
func (r *Resolver) checkValueCycles(dm *ast.DefMap) {
	index := make(map[string]int, len(dm.Defs))
	isLambda := make([]bool, len(dm.Defs))
	for i, d := range dm.Defs {
		index[d.Name] = i
		_, isLambda[i] = d.Body.(*ast.Lambda)
	}

	adj := make([][]int, len(dm.Defs))
	for i, d := range dm.Defs {
		adj[i] = collectFunRefs(d.Body, index)
	}
	comp := tarjan(adj)

	numComp := 0
	for _, c := range comp {
		if c+1 > numComp {
			numComp = c + 1
		}
	}
	members := make([][]int, numComp)
	for i, c := range comp {
		members[c] = append(members[c], i)
	}
	hasSelfEdge := func(i int) bool {
		for _, w := range adj[i] {
			if w == i {
				return true
			}
		}
		return false
	}

	for _, group := range members {
		cyclic := len(group) > 1 || (len(group) == 1 && hasSelfEdge(group[0]))
		if !cyclic {
			continue
		}
		anyVal := false
		for _, i := range group {
			if !isLambda[i] {
				anyVal = true
				break
			}
		}
		if !anyVal {
			continue // a cycle of purely Lambda bindings is ordinary mutual recursion
		}
		var parts []string
		for _, i := range group {
			d := dm.Defs[i]
			parts = append(parts, fmt.Sprintf("%s at %s", d.Name, d.Loc))
		}
		r.errs = append(r.errs, fmt.Errorf("value definition cycle detected including: %s", strings.Join(parts, "; ")))
	}
}

// registerData builds a types.Sum for one user `data` declaration and
// adds its constructors to r.dist, the same map cmd/wake/prelude.go seeds
// with the built-in sums, so constructor lookup works identically for a
// user sum and a prelude one.
//
// Each field's type is resolved from the leading head parseTypeAtomHead
// captured: a name matching one of the declaration's own parameters reuses
// that parameter's TypeVar (so, e.g., two fields both named `a` unify to
// the same type), a name matching the declaration's own type name is a
// self-recursive occurrence (types.NewCon applied over the Sum's params,
// the same shape buildPrelude gives List's Cons), and anything else (a
// concrete type name, a parenthesized application this parser doesn't
// decompose further, or no head at all) gets its own fresh free TypeVar.
// This is coarser than a real type-expression evaluator (it can't catch a
// field type mismatch against a named type it doesn't recognize) but it
// makes every user sum constructible, destructurable, and matchable.
func (r *Resolver) registerData(d *ast.DataDecl) {
	sum := &types.Sum{Name: d.Name}
	params := make(map[string]*types.TypeVar, len(d.Params))
	for _, p := range d.Params {
		tv := types.NewFree(r.clock)
		sum.Params = append(sum.Params, tv)
		params[p] = tv
	}

	for i, c := range d.Ctors {
		if prior, exists := r.dist[c.Name]; exists {
			r.errs = append(r.errs, fmt.Errorf("%s: constructor %q is already defined (sum %q)", c.Loc, c.Name, prior.Name))
			continue
		}
		cons := &types.Constructor{Name: c.Name, Index: i}
		for _, field := range c.Fields {
			switch {
			case field == d.Name:
				args := make([]*types.TypeVar, len(sum.Params))
				copy(args, sum.Params)
				cons.Args = append(cons.Args, types.NewCon(r.clock, d.Name, args...))
			case params[field] != nil:
				cons.Args = append(cons.Args, params[field])
			default:
				cons.Args = append(cons.Args, types.NewFree(r.clock))
			}
		}
		sum.Members = append(sum.Members, cons)
		r.dist[c.Name] = sum
	}
}

// collectFunRefs returns, for one function def's body, the indices (within
// the same mutually-recursive DefMap) of every other function it refers to.
func collectFunRefs(e ast.Expr, funIndex map[string]int) []int {
	seen := map[int]bool{}
	var walk func(ast.Expr)
	walk = func(e ast.Expr) {
		if e == nil {
			return
		}
		switch n := e.(type) {
		case *ast.VarRef:
			if i, ok := funIndex[n.Name]; ok {
				seen[i] = true
			}
		case *ast.App:
			walk(n.Fn)
			walk(n.Val)
		case *ast.Lambda:
			walk(n.Body)
		case *ast.Prim:
			for _, a := range n.Args {
				walk(a)
			}
		case *ast.Match:
			for _, s := range n.Scrutinees {
				walk(s)
			}
			for _, arm := range n.Arms {
				walk(arm.Guard)
				walk(arm.Body)
			}
		case *ast.DefMap:
			for _, d := range n.Defs {
				walk(d.Body)
			}
			walk(n.Body)
		}
	}
	walk(e)
	out := make([]int, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	return out
}

// constructorExpr builds the value a bare constructor name denotes: a
// zero-arity constructor is just a Construct node, but a positive-arity one
// (Cons, Pair, Ok, ...) is a curried function, so it's wrapped in one
// synthetic Lambda per field, each Lambda's body referencing its own
// argument by the same scope-depth convention resolveExpr's Lambda case
// establishes (innermost scope is the last field bound).
func (r *Resolver) constructorExpr(at ast.Expr, sum *types.Sum, cons *types.Constructor) ast.Expr {
	arity := len(cons.Args)
	if arity == 0 {
		c := &ast.Construct{Sum: sum, Cons: cons}
		c.Loc = at.Location()
		return c
	}

	lambdas := make([]*ast.Lambda, arity)
	for i := 0; i < arity; i++ {
		lam := &ast.Lambda{ArgName: fmt.Sprintf("_ctor%d", i)}
		lam.Loc = at.Location()
		lambdas[i] = lam
	}

	args := make([]ast.Expr, arity)
	for i := 0; i < arity; i++ {
		vr := &ast.VarRef{Name: lambdas[i].ArgName, Target: lambdas[i], Index: arity - 1 - i}
		vr.Loc = at.Location()
		args[i] = vr
	}

	construct := &ast.Construct{Sum: sum, Cons: cons, Args: args}
	construct.Loc = at.Location()

	var body ast.Expr = construct
	for i := arity - 1; i >= 0; i-- {
		lambdas[i].Body = body
		body = lambdas[i]
	}
	return body
}

// primExpr builds the curried function a bare primitive name denotes, the
// same shape constructorExpr builds for a bare constructor name: one
// synthetic Lambda per declared argument, wrapping an ast.Prim that
// collects them. A zero-arity primitive has no arguments to
// curry and lowers straight to the Prim node.
func (r *Resolver) primExpr(at ast.Expr, name string, arity int) ast.Expr {
	if arity <= 0 {
		p := &ast.Prim{Name: name}
		p.Loc = at.Location()
		return p
	}

	lambdas := make([]*ast.Lambda, arity)
	for i := 0; i < arity; i++ {
		lam := &ast.Lambda{ArgName: fmt.Sprintf("_prim%d", i)}
		lam.Loc = at.Location()
		lambdas[i] = lam
	}

	args := make([]ast.Expr, arity)
	for i := 0; i < arity; i++ {
		vr := &ast.VarRef{Name: lambdas[i].ArgName, Target: lambdas[i], Index: arity - 1 - i}
		vr.Loc = at.Location()
		args[i] = vr
	}

	p := &ast.Prim{Name: name, Args: args}
	p.Loc = at.Location()

	var body ast.Expr = p
	for i := arity - 1; i >= 0; i-- {
		lambdas[i].Body = body
		body = lambdas[i]
	}
	return body
}

// resolveExpr walks e, binding every VarRef to its definition and lowering
// DefMap/Match nodes it encounters.
func (r *Resolver) resolveExpr(e ast.Expr, s *scope) ast.Expr {
	switch n := e.(type) {
	case *ast.VarRef:
		target, depth, ok := s.lookup(n.Name)
		if ok {
			n.Target = target
			n.Index = depth
			return n
		}
		// Not a lexical binding: a capitalized name that's unbound is a
		// constructor reference (True, Nil, Cons, Ok, ...), not an error.
		// The parser has no notion of constructors, so CONID tokens arrive
		// here as ordinary VarRefs; lower them into Construct now.
		if sum, ok := r.dist[n.Name]; ok {
			if cons := sum.IndexOf(n.Name); cons != nil {
				return r.constructorExpr(n, sum, cons)
			}
		}
		// Still not found: an infix operator's token text (e.g. "+")
		// aliases to a registered primitive's real name; a lowercase name
		// may also be a primitive's real name used directly (job_create,
		// print, ...).
		primName := n.Name
		if alias, ok := operatorAlias[n.Name]; ok {
			primName = alias
		}
		if arity, ok := r.prims[primName]; ok {
			return r.primExpr(n, primName, arity)
		}
		r.errorf(n, "undefined variable %q", n.Name)
		return n
	case *ast.App:
		n.Fn = r.resolveExpr(n.Fn, s)
		n.Val = r.resolveExpr(n.Val, s)
		return n
	case *ast.Lambda:
		inner := newScope(s)
		inner.names[n.ArgName] = n
		n.Body = r.resolveExpr(n.Body, inner)
		return n
	case *ast.Literal:
		return n
	case *ast.Prim:
		for i := range n.Args {
			n.Args[i] = r.resolveExpr(n.Args[i], s)
		}
		return n
	case *ast.DefMap:
		return r.resolveDefMap(n, s)
	case *ast.Match:
		return r.compileMatch(n, s)
	case *ast.Subscribe:
		// A subscription reads the innermost publish chain of its name, or
		// the empty list if nothing in scope ever published it.
		if pubName, ok := lookupPublishName(s, n.Name); ok {
			target, depth, _ := s.lookup(pubName)
			vr := &ast.VarRef{Name: pubName, Target: target, Index: depth}
			vr.Loc = n.Location()
			return vr
		}
		return r.nilListExpr(n)
	default:
		return e
	}
}

// publishName is the per-scope hidden binding a `publish X = ...` becomes:
// qualifying by scope depth keeps an inner scope's chain from shadowing the
// outer link it appends onto.
func publishName(depth int, name string) string {
	return fmt.Sprintf("publish %d %s", depth, name)
}

// lookupPublishName finds the innermost scope that carries a publish chain
// for name, returning the depth-qualified binding to reference.
func lookupPublishName(s *scope, name string) (string, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		key := publishName(cur.depth, name)
		if _, ok := cur.names[key]; ok {
			return key, true
		}
	}
	return "", false
}

// chainPublishes rewrites dm's raw `publish X` definitions (as the parser
// emits them) into depth-qualified chain links: each one's body becomes
// `list_cat newItems parent`, where parent is the previous publish of the
// same name in this scope, else the innermost outer chain, else Nil. The
// last publish of each name holds the scope's canonical chain, which is
// what a Subscribe resolves to.
func (r *Resolver) chainPublishes(dm *ast.DefMap, inner *scope) {
	last := map[string]int{}
	for i := range dm.Defs {
		d := &dm.Defs[i]
		name := strings.TrimPrefix(d.Name, "publish ")
		if name == d.Name {
			continue
		}
		var parentExpr ast.Expr
		if j, ok := last[name]; ok {
			hidden := fmt.Sprintf("%s #%d", publishName(inner.depth, name), j)
			dm.Defs[j].Name = hidden
			vr := &ast.VarRef{Name: hidden}
			vr.Loc = d.Loc
			parentExpr = vr
		} else if outer, ok := lookupPublishName(inner.parent, name); ok {
			vr := &ast.VarRef{Name: outer}
			vr.Loc = d.Loc
			parentExpr = vr
		} else {
			parentExpr = r.nilListExpr(d.Body)
		}
		p := &ast.Prim{Name: "list_cat", Args: []ast.Expr{d.Body, parentExpr}}
		p.Loc = d.Loc
		d.Body = p
		d.Name = publishName(inner.depth, name)
		last[name] = i
	}
}

// nilListExpr builds an empty-list Construct at at's location.
func (r *Resolver) nilListExpr(at ast.Expr) ast.Expr {
	sum, ok := r.dist["Nil"]
	if !ok {
		r.errorf(at, "subscribe requires the List sum, which is not defined")
		return at
	}
	c := &ast.Construct{Sum: sum, Cons: sum.IndexOf("Nil")}
	c.Loc = at.Location()
	return c
}
