package optimize

import "github.com/wake-build/wake/internal/ssa"

// PassDecon folds a Get applied directly to a Construct of the same sum
// and constructor into the constructed field value itself, skipping the
// intermediate allocation entirely.
func PassDecon(g *ssa.Graph) (*ssa.Graph, bool) {
	changed := foldGets(&g.Top)
	return g, changed
}

func foldGets(fn *ssa.Term) bool {
	changed := false
	for i := range fn.FunBody {
		t := &fn.FunBody[i]
		if t.Kind == ssa.KFun {
			if foldGets(t) {
				changed = true
			}
			continue
		}
		if t.Kind != ssa.KGet {
			continue
		}
		con, ok := resolveLocal(fn, t.GetArg)
		if !ok || con.Kind != ssa.KCon {
			continue
		}
		if con.ConSum != t.GetSum || con.ConCons != t.GetCons {
			continue
		}
		if t.GetIndex < 0 || t.GetIndex >= len(con.ConArgs) {
			continue
		}
		*t = ssa.Term{Kind: ssa.KPrim, PrimName: "id", PrimArgs: []ssa.ID{con.ConArgs[t.GetIndex]}}
		changed = true
	}
	return changed
}
