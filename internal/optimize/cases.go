package optimize

import "github.com/wake-build/wake/internal/ssa"

// PassCases implements case-of-known-constructor: a Destruct applied
// directly to a Construct of the same sum is rewritten to call that
// handler's Fun on the Construct's own arguments instead of allocating and
// immediately re-inspecting a tagged value.
func PassCases(g *ssa.Graph) (*ssa.Graph, bool) {
	changed := rewriteCases(&g.Top)
	return g, changed
}

func rewriteCases(fn *ssa.Term) bool {
	changed := false
	// Appending new terms while rewriting grows fn.FunBody, so the loop
	// bound is snapshotted and every lookup goes through a value copy
	// indexed fresh each time rather than a pointer held across an append.
	n := len(fn.FunBody)
	for i := 0; i < n; i++ {
		t := fn.FunBody[i]
		if t.Kind == ssa.KFun {
			if rewriteCases(&fn.FunBody[i]) {
				changed = true
			}
			continue
		}
		if t.Kind != ssa.KApp {
			continue
		}
		des, ok := resolveLocal(fn, t.AppFn)
		if !ok || des.Kind != ssa.KDes {
			continue
		}
		con, ok := resolveLocal(fn, t.AppArg)
		if !ok || con.Kind != ssa.KCon || con.ConSum != des.DesSum {
			continue
		}
		if con.ConCons >= len(des.DesHandlers) {
			continue
		}
		handler := des.DesHandlers[con.ConCons]
		// Replace the application with handler applied to each
		// constructor argument in turn (a curried chain; handlers are
		// single-argument Funs).
		// Handlers with zero fields are applied to a placeholder literal
		// "()" (LitKind 3, so it evaluates to a RegExp-tagged literal).
		args := con.ConArgs
		if len(args) == 0 {
			fn.FunBody = append(fn.FunBody, ssa.Term{Kind: ssa.KLit, LitValue: "()", LitKind: int(3)})
			args = []ssa.ID{ssa.Pack(0, len(fn.FunBody)-1)}
		}
		cur := handler
		for j, argID := range args {
			if j == len(args)-1 {
				fn.FunBody[i] = ssa.Term{Kind: ssa.KApp, AppFn: cur, AppArg: argID}
				break
			}
			fn.FunBody = append(fn.FunBody, ssa.Term{Kind: ssa.KApp, AppFn: cur, AppArg: argID})
			cur = ssa.Pack(0, len(fn.FunBody)-1)
		}
		changed = true
	}
	return changed
}

// resolveLocal looks up a term reference within the same Fun (depth 0
// only), returning a value copy so callers never hold a pointer across a
// later append that could reallocate fn.FunBody's backing array.
func resolveLocal(fn *ssa.Term, id ssa.ID) (ssa.Term, bool) {
	if id.Depth() != 0 {
		return ssa.Term{}, false
	}
	off := id.Offset()
	if off < 0 || off >= len(fn.FunBody) {
		return ssa.Term{}, false
	}
	return fn.FunBody[off], true
}
