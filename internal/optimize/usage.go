package optimize

import "github.com/wake-build/wake/internal/ssa"

// PassUsage computes, for each Fun, which of its own terms are reachable
// from that Fun's last (return) term, stamping Term.Live accordingly.
// PassSweep later drops anything left unmarked.
func PassUsage(g *ssa.Graph) (*ssa.Graph, bool) {
	changed := markUsage(&g.Top)
	return g, changed
}

func markUsage(fn *ssa.Term) bool {
	changed := false
	n := len(fn.FunBody)
	if n == 0 {
		return false
	}
	live := make([]bool, n)
	var mark func(id ssa.ID)
	mark = func(id ssa.ID) {
		if id.Depth() != 0 {
			return
		}
		off := id.Offset()
		if off < 0 || off >= n || live[off] {
			return
		}
		live[off] = true
		markOperands(fn.FunBody[off], mark)
	}
	mark(ssa.Pack(0, n-1))
	for i := range fn.FunBody {
		if fn.FunBody[i].Live != live[i] {
			fn.FunBody[i].Live = live[i]
			changed = true
		}
		if fn.FunBody[i].Kind == ssa.KFun {
			if markUsage(&fn.FunBody[i]) {
				changed = true
			}
		}
	}
	return changed
}

func markOperands(t ssa.Term, mark func(ssa.ID)) {
	switch t.Kind {
	case ssa.KApp:
		mark(t.AppFn)
		mark(t.AppArg)
	case ssa.KPrim:
		for _, a := range t.PrimArgs {
			mark(a)
		}
	case ssa.KGet:
		mark(t.GetArg)
	case ssa.KDes:
		for _, h := range t.DesHandlers {
			mark(h)
		}
	case ssa.KCon:
		for _, a := range t.ConArgs {
			mark(a)
		}
	}
}
