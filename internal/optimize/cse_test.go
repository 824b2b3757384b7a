package optimize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wake-build/wake/internal/ssa"
)

func TestPassCSE_DeduplicatesIdenticalPureLiterals(t *testing.T) {
	g := &ssa.Graph{Top: ssa.Term{
		Kind: ssa.KFun,
		FunBody: []ssa.Term{
			{Kind: ssa.KLit, LitKind: 0, LitValue: "1"},
			{Kind: ssa.KLit, LitKind: 0, LitValue: "1"},
		},
	}}

	out, changed := PassCSE(g)
	assert.True(t, changed)
	assert.Equal(t, ssa.KLit, out.Top.FunBody[0].Kind)
	assert.Equal(t, ssa.KPrim, out.Top.FunBody[1].Kind)
	assert.Equal(t, "id", out.Top.FunBody[1].PrimName)
}

func TestPassCSE_LeavesImpureTermsAlone(t *testing.T) {
	g := &ssa.Graph{Top: ssa.Term{
		Kind: ssa.KFun,
		FunBody: []ssa.Term{
			{Kind: ssa.KPrim, PrimName: "print", Meta: impureBit},
			{Kind: ssa.KPrim, PrimName: "print", Meta: impureBit},
		},
	}}

	_, changed := PassCSE(g)
	assert.False(t, changed, "impure terms must never be merged by CSE")
}

func TestPassPurity_MarksKnownImpurePrims(t *testing.T) {
	g := &ssa.Graph{Top: ssa.Term{
		Kind: ssa.KFun,
		FunBody: []ssa.Term{
			{Kind: ssa.KPrim, PrimName: "job_launch"},
			{Kind: ssa.KPrim, PrimName: "add"},
		},
	}}

	out, changed := PassPurity(g)
	assert.True(t, changed)
	assert.NotZero(t, out.Top.FunBody[0].Meta&impureBit)
	assert.Zero(t, out.Top.FunBody[1].Meta&impureBit)
}
