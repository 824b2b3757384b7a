package optimize

import "github.com/wake-build/wake/internal/ssa"

// PassScope stamps every term's Scope field with the nesting depth of the
// Fun it lives in. No other pass in this package reads the field.
func PassScope(g *ssa.Graph) (*ssa.Graph, bool) {
	changed := stampScope(&g.Top, 0)
	return g, changed
}

func stampScope(fn *ssa.Term, depth int) bool {
	changed := false
	for i := range fn.FunBody {
		t := &fn.FunBody[i]
		if t.Scope != depth {
			t.Scope = depth
			changed = true
		}
		if t.Kind == ssa.KFun {
			if stampScope(t, depth+1) {
				changed = true
			}
		}
	}
	return changed
}
