package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wake-build/wake/internal/heap"
	"github.com/wake-build/wake/internal/job"
	"github.com/wake-build/wake/internal/prim"
	"github.com/wake-build/wake/internal/ssa"
)

// TestRuntime_SuspendsOnJobAndResumesAfterFinish checks that the evaluator
// never blocks on I/O from inside a step: a primitive that
// returns *prim.Suspend must park its continuation on rt.pending rather
// than block, and Drain must pick back up once Resume observes the job
// has finished.
func TestRuntime_SuspendsOnJobAndResumesAfterFinish(t *testing.T) {
	j := job.New(1, "cpu", ".", []string{"true"}, nil, "")

	calls := 0
	reg := prim.NewRegistry()
	reg.Register(prim.Entry{Name: "probe", Arity: 0, Fn: func(h *heap.Arena, args []heap.Pointer) (heap.Pointer, error) {
		calls++
		if !j.Stage().Has(job.StageFinished) {
			return heap.Nil, &prim.Suspend{Job: j}
		}
		return h.Alloc(&heap.Literal{Tag: heap.VInteger, Text: "42"}), nil
	}})

	graph := &ssa.Graph{Top: ssa.Term{Kind: ssa.KFun, FunBody: []ssa.Term{
		{Kind: ssa.KPrim, PrimName: "probe"},
	}}}

	arena := heap.NewArena(0)
	rt := New(arena, reg)
	rt.Start(graph)
	rt.Drain()

	require.False(t, rt.Done(), "evaluation must suspend rather than block on the unfinished job")
	pending := rt.Pending()
	require.Len(t, pending, 1)
	assert.Same(t, j, pending[0])

	j.Advance(job.StageForked)
	j.Advance(job.StageStdout)
	j.Advance(job.StageStderr)
	j.Advance(job.StageMerged)
	j.Advance(job.StageFinished)

	rt.Resume()
	rt.Drain()

	require.True(t, rt.Done())
	v, err := rt.Result()
	require.NoError(t, err)
	lit, ok := arena.Get(v).(*heap.Literal)
	require.True(t, ok)
	assert.Equal(t, "42", lit.Text)
	assert.Equal(t, 2, calls, "probe must run once before suspending and once more after resume")
}

// TestRuntime_CollectsMidEvaluation runs a program against an arena too
// small to hold its garbage, forcing a collection at the constructor's
// allocation checkpoint. The inner call leaves two dead literals behind,
// so the collection compacts and every surviving pointer moves; the final
// record must still read back the right fields.
func TestRuntime_CollectsMidEvaluation(t *testing.T) {
	reg := prim.NewRegistry()

	inner := ssa.Term{Kind: ssa.KFun, FunBody: []ssa.Term{
		{Kind: ssa.KLit, LitValue: "a"},
		{Kind: ssa.KLit, LitValue: "b"},
		{Kind: ssa.KLit, LitValue: "c"},
	}}
	graph := &ssa.Graph{Top: ssa.Term{Kind: ssa.KFun, FunBody: []ssa.Term{
		inner,
		{Kind: ssa.KApp, AppFn: ssa.Pack(0, 0), AppArg: ssa.Pack(0, 0)},
		{Kind: ssa.KLit, LitValue: "d"},
		{Kind: ssa.KCon, ConSum: "Pair", ConCons: 0, ConArgs: []ssa.ID{ssa.Pack(0, 1), ssa.Pack(0, 2)}},
	}}}

	// closure + a + b + c + d fills the arena; the record's checkpoint
	// must collect before allocating.
	arena := heap.NewArena(5)
	rt := New(arena, reg)
	rt.Start(graph)
	rt.Drain()

	require.True(t, rt.Done())
	v, err := rt.Result()
	require.NoError(t, err)
	require.GreaterOrEqual(t, arena.GetStats().GCCount, uint64(1), "the arena limit must have forced a collection")

	rec, ok := arena.Get(v).(*heap.Record)
	require.True(t, ok)
	require.Len(t, rec.Args, 2)
	first, ok := arena.Get(rec.Args[0]).(*heap.Literal)
	require.True(t, ok)
	assert.Equal(t, "c", first.Text)
	second, ok := arena.Get(rec.Args[1]).(*heap.Literal)
	require.True(t, ok)
	assert.Equal(t, "d", second.Text)
}

// TestRuntime_SimpleLiteralEvaluates is the minimal pushFrame/runFrame
// sanity check: a body with no KApp/KPrim suspension point must still
// evaluate synchronously to completion within a single Drain.
func TestRuntime_SimpleLiteralEvaluates(t *testing.T) {
	reg := prim.NewRegistry()
	graph := &ssa.Graph{Top: ssa.Term{Kind: ssa.KFun, FunBody: []ssa.Term{
		{Kind: ssa.KLit, LitKind: 0, LitValue: "7"},
	}}}

	arena := heap.NewArena(0)
	rt := New(arena, reg)
	rt.Start(graph)
	rt.Drain()

	require.True(t, rt.Done())
	v, err := rt.Result()
	require.NoError(t, err)
	lit, ok := arena.Get(v).(*heap.Literal)
	require.True(t, ok)
	assert.Equal(t, "7", lit.Text)
}
