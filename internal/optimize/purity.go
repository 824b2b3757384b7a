package optimize

import "github.com/wake-build/wake/internal/ssa"

// impurePrims lists primitives with observable side effects beyond their
// result (job launch, catalog I/O, publish/subscribe). Everything else is
// pure and safe for the cse pass to deduplicate. It covers every
// Pure: false entry of internal/prim's registry.
var impurePrims = map[string]bool{
	"job_create":  true,
	"job_launch":  true,
	"job_virtual": true,
	"job_output":  true,
	"job_status":  true,
	"match_fail":  true,
	"target_new":  true,
	"target_get":  true,
	"target_set":  true,
	"publish":     true,
	"subscribe":   true,
	"print":       true,
	"system_exit": true,
}

// PassPurity propagates impurity: a Prim term is impure if its own name is
// listed, or if it is "id"/"match_fail" wrapping an impure argument from
// the same Fun body. Pure terms become PassCSE candidates; this pass does not mutate the
// graph, only annotates Meta (bit 0) with the impurity verdict, so it
// reports changed only on the first pass that settles a term's bit.
func PassPurity(g *ssa.Graph) (*ssa.Graph, bool) {
	changed := markPurity(&g.Top)
	return g, changed
}

const impureBit = 1

func markPurity(fn *ssa.Term) bool {
	changed := false
	for i := range fn.FunBody {
		t := &fn.FunBody[i]
		impure := false
		if t.Kind == ssa.KPrim && impurePrims[t.PrimName] {
			impure = true
		}
		if t.Kind == ssa.KPrim && (t.PrimName == "id" || t.PrimName == "match_fail") {
			for _, a := range t.PrimArgs {
				if a.Depth() == 0 && a.Offset() < i && fn.FunBody[a.Offset()].Meta&impureBit != 0 {
					impure = true
				}
			}
		}
		wasImpure := t.Meta&impureBit != 0
		if impure != wasImpure {
			if impure {
				t.Meta |= impureBit
			} else {
				t.Meta &^= impureBit
			}
			changed = true
		}
		if t.Kind == ssa.KFun {
			if markPurity(t) {
				changed = true
			}
		}
	}
	return changed
}
