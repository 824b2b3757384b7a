package optimize

import "github.com/wake-build/wake/internal/ssa"

// PassInline inlines a Fun applied exactly once within its own enclosing
// Fun, splicing the callee's body directly in place of the call. Multi-use or cross-scope Funs are left as calls.
func PassInline(g *ssa.Graph) (*ssa.Graph, bool) {
	changed := inlineSingleUse(&g.Top)
	return g, changed
}

func inlineSingleUse(fn *ssa.Term) bool {
	changed := false
	useCount := countLocalUses(fn)

	for i := 0; i < len(fn.FunBody); i++ {
		t := fn.FunBody[i]
		if t.Kind == ssa.KFun {
			if inlineSingleUse(&fn.FunBody[i]) {
				changed = true
			}
			continue
		}
		if t.Kind != ssa.KApp || t.AppFn.Depth() != 0 {
			continue
		}
		calleeOff := t.AppFn.Offset()
		if calleeOff < 0 || calleeOff >= len(fn.FunBody) {
			continue
		}
		if useCount[calleeOff] != 1 || fn.FunBody[calleeOff].Kind != ssa.KFun {
			continue
		}
		callee := fn.FunBody[calleeOff]
		if len(callee.FunBody) == 0 {
			continue
		}
		// Splice callee's body (minus its KArg slot 0, replaced by the
		// call's argument) onto the end of fn's own body, shifted by the
		// current length; the callee's argument references (depth 0,
		// offset 0) become the call's AppArg, and every other callee-local
		// reference is rebased by the splice offset.
		base := len(fn.FunBody)
		for j, ct := range callee.FunBody {
			if j == 0 {
				continue // the KArg slot itself is never referenced directly post-splice
			}
			fn.FunBody = append(fn.FunBody, rebase(ct, t.AppArg, base))
		}
		lastLocal := ssa.Pack(0, len(fn.FunBody)-1)
		fn.FunBody[i] = ssa.Term{Kind: ssa.KPrim, PrimName: "id", PrimArgs: []ssa.ID{lastLocal}}
		changed = true
		useCount = countLocalUses(fn)
	}
	return changed
}

// rebase rewrites a callee-local term for its new position in the caller:
// depth-0 offset-0 references (the callee's own argument) become argID;
// every other depth-0 reference shifts by base-1 (the KArg slot is
// dropped); deeper (enclosing-scope) references pass through unchanged
// except depth is reduced by one since one Fun boundary was erased.
func rebase(t ssa.Term, argID ssa.ID, base int) ssa.Term {
	fix := func(id ssa.ID) ssa.ID {
		if id.Depth() != 0 {
			return ssa.Pack(id.Depth()-1, id.Offset())
		}
		if id.Offset() == 0 {
			return argID
		}
		return ssa.Pack(0, base+id.Offset()-1)
	}
	switch t.Kind {
	case ssa.KApp:
		t.AppFn = fix(t.AppFn)
		t.AppArg = fix(t.AppArg)
	case ssa.KPrim:
		args := make([]ssa.ID, len(t.PrimArgs))
		for i, a := range t.PrimArgs {
			args[i] = fix(a)
		}
		t.PrimArgs = args
	case ssa.KGet:
		t.GetArg = fix(t.GetArg)
	case ssa.KDes:
		hs := make([]ssa.ID, len(t.DesHandlers))
		for i, h := range t.DesHandlers {
			hs[i] = fix(h)
		}
		t.DesHandlers = hs
	case ssa.KCon:
		args := make([]ssa.ID, len(t.ConArgs))
		for i, a := range t.ConArgs {
			args[i] = fix(a)
		}
		t.ConArgs = args
	}
	return t
}

func countLocalUses(fn *ssa.Term) []int {
	counts := make([]int, len(fn.FunBody))
	count := func(id ssa.ID) {
		if id.Depth() == 0 {
			if off := id.Offset(); off >= 0 && off < len(counts) {
				counts[off]++
			}
		}
	}
	for _, t := range fn.FunBody {
		markOperands(t, count)
	}
	return counts
}
