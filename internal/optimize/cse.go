package optimize

import (
	"fmt"

	"github.com/wake-build/wake/internal/ssa"
)

// PassCSE deduplicates structurally identical pure terms within one Fun's
// body: the second occurrence of an identical KLit, KGet or KPrim (pure,
// per pass_purity's Meta bit) becomes a reference to the first.
func PassCSE(g *ssa.Graph) (*ssa.Graph, bool) {
	changed := dedupe(&g.Top)
	return g, changed
}

func dedupe(fn *ssa.Term) bool {
	changed := false
	seen := map[string]int{}
	for i := range fn.FunBody {
		t := &fn.FunBody[i]
		if t.Kind == ssa.KFun {
			if dedupe(t) {
				changed = true
			}
			continue
		}
		if t.Meta&impureBit != 0 {
			continue
		}
		key, ok := cseKey(*t)
		if !ok {
			continue
		}
		if first, dup := seen[key]; dup {
			*t = ssa.Term{Kind: ssa.KPrim, PrimName: "id", PrimArgs: []ssa.ID{ssa.Pack(0, first)}}
			changed = true
			continue
		}
		seen[key] = i
	}
	return changed
}

// cseKey builds a structural key for pure, side-effect-free term kinds.
// KFun/KArg/KDes/KCon are excluded: a Fun's identity matters (closures
// capture scope), and constructors/destructs are cheap enough that
// deduplicating them buys little while risking aliasing bugs if the
// runtime ever adds per-allocation identity semantics.
func cseKey(t ssa.Term) (string, bool) {
	switch t.Kind {
	case ssa.KLit:
		return fmt.Sprintf("lit:%d:%s", t.LitKind, t.LitValue), true
	case ssa.KPrim:
		return fmt.Sprintf("prim:%s:%v", t.PrimName, t.PrimArgs), true
	case ssa.KGet:
		return fmt.Sprintf("get:%s:%d:%d:%v", t.GetSum, t.GetCons, t.GetIndex, t.GetArg), true
	default:
		return "", false
	}
}
