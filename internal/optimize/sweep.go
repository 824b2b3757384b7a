package optimize

import "github.com/wake-build/wake/internal/ssa"

// PassSweep is the final pass: it compacts each Fun's body, dropping terms
// pass_usage left marked dead and rewriting every surviving reference to
// its new index. Index 0 (the Fun's own KArg slot, if present) and the
// last term (the Fun's return value) are always kept live regardless of
// Live's bit, since sweep runs after usage but a Fun's argument and return
// identity must survive even if pass_cse folded every other reference to
// them.
func PassSweep(g *ssa.Graph) (*ssa.Graph, bool) {
	changed := sweep(&g.Top)
	return g, changed
}

func sweep(fn *ssa.Term) bool {
	changed := false
	n := len(fn.FunBody)
	if n == 0 {
		return false
	}
	keep := make([]bool, n)
	for i, t := range fn.FunBody {
		keep[i] = t.Live
	}
	keep[n-1] = true
	if fn.FunBody[0].Kind == ssa.KArg {
		keep[0] = true
	}

	remap := make([]int, n)
	var compacted []ssa.Term
	for i, t := range fn.FunBody {
		if !keep[i] {
			changed = true
			remap[i] = -1
			continue
		}
		remap[i] = len(compacted)
		compacted = append(compacted, t)
	}
	if !changed {
		for i := range fn.FunBody {
			if fn.FunBody[i].Kind == ssa.KFun {
				if sweep(&fn.FunBody[i]) {
					changed = true
				}
			}
		}
		return changed
	}

	fix := func(id ssa.ID) ssa.ID {
		if id.Depth() != 0 {
			return id
		}
		off := id.Offset()
		if off < 0 || off >= n || remap[off] == -1 {
			return id // dangling reference into a dropped term; left as-is, sweep is conservative
		}
		return ssa.Pack(0, remap[off])
	}
	for i := range compacted {
		t := &compacted[i]
		switch t.Kind {
		case ssa.KApp:
			t.AppFn = fix(t.AppFn)
			t.AppArg = fix(t.AppArg)
		case ssa.KPrim:
			for j := range t.PrimArgs {
				t.PrimArgs[j] = fix(t.PrimArgs[j])
			}
		case ssa.KGet:
			t.GetArg = fix(t.GetArg)
		case ssa.KDes:
			for j := range t.DesHandlers {
				t.DesHandlers[j] = fix(t.DesHandlers[j])
			}
		case ssa.KCon:
			for j := range t.ConArgs {
				t.ConArgs[j] = fix(t.ConArgs[j])
			}
		case ssa.KFun:
			sweep(t)
		}
	}
	fn.FunBody = compacted
	return true
}
