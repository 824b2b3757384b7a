package prim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wake-build/wake/internal/heap"
)

func newTargetFixture(t *testing.T) (*heap.Arena, *Registry, *TargetEnv) {
	t.Helper()
	h := heap.NewArena(0)
	r := NewRegistry()
	env := NewTargetEnv()
	RegisterTargets(r, env)
	return h, r, env
}

// TestTargetMemoizesOnce: the first get reserves the key, a set fulfills
// it, and every later get returns the stored value without recomputation.
func TestTargetMemoizesOnce(t *testing.T) {
	h, r, _ := newTargetFixture(t)

	name := h.Alloc(&heap.Literal{Tag: heap.VString, Text: "compileModule"})
	handle, err := r.Call(h, "target_new", []heap.Pointer{name})
	require.NoError(t, err)

	key := h.Alloc(&heap.Literal{Tag: heap.VString, Text: "module-a"})
	miss, err := r.Call(h, "target_get", []heap.Pointer{handle, key})
	require.NoError(t, err)
	rec, ok := h.Get(miss).(*heap.Record)
	require.True(t, ok)
	assert.Equal(t, "Result", rec.SumName)
	assert.Equal(t, 1, rec.Cons, "first get must be a miss")

	value := h.Alloc(&heap.Literal{Tag: heap.VString, Text: "module-a.o"})
	set, err := r.Call(h, "target_set", []heap.Pointer{handle, key, value})
	require.NoError(t, err)
	assert.Equal(t, value, set)

	hit, err := r.Call(h, "target_get", []heap.Pointer{handle, key})
	require.NoError(t, err)
	rec, ok = h.Get(hit).(*heap.Record)
	require.True(t, ok)
	assert.Equal(t, 0, rec.Cons, "second get must be a hit")
	lit, ok := h.Get(rec.Args[0]).(*heap.Literal)
	require.True(t, ok)
	assert.Equal(t, "module-a.o", lit.Text)
}

// TestTargetSetTwiceFails: fulfilling the same key twice breaks the
// at-most-once contract and must be an error.
func TestTargetSetTwiceFails(t *testing.T) {
	h, r, _ := newTargetFixture(t)

	name := h.Alloc(&heap.Literal{Tag: heap.VString, Text: "t"})
	handle, err := r.Call(h, "target_new", []heap.Pointer{name})
	require.NoError(t, err)

	key := h.Alloc(&heap.Literal{Tag: heap.VString, Text: "k"})
	value := h.Alloc(&heap.Literal{Tag: heap.VString, Text: "v"})
	_, err = r.Call(h, "target_set", []heap.Pointer{handle, key, value})
	require.NoError(t, err)
	_, err = r.Call(h, "target_set", []heap.Pointer{handle, key, value})
	require.Error(t, err)
}

// TestTargetUnfulfilledReported: a reserved-but-never-set key shows up in
// the build-end report.
func TestTargetUnfulfilledReported(t *testing.T) {
	h, r, env := newTargetFixture(t)

	name := h.Alloc(&heap.Literal{Tag: heap.VString, Text: "lint"})
	handle, err := r.Call(h, "target_new", []heap.Pointer{name})
	require.NoError(t, err)

	key := h.Alloc(&heap.Literal{Tag: heap.VString, Text: "pkg-z"})
	_, err = r.Call(h, "target_get", []heap.Pointer{handle, key})
	require.NoError(t, err)

	missing := env.Unfulfilled()
	require.Len(t, missing, 1)
	assert.Equal(t, "lint (pkg-z)", missing[0])
}

// TestTargetRootsTraceStoredValues: fulfilled entries expose their value
// slots as GC roots, so a collection can't drop a memoized result.
func TestTargetRootsTraceStoredValues(t *testing.T) {
	h, r, env := newTargetFixture(t)

	name := h.Alloc(&heap.Literal{Tag: heap.VString, Text: "t"})
	handle, err := r.Call(h, "target_new", []heap.Pointer{name})
	require.NoError(t, err)
	key := h.Alloc(&heap.Literal{Tag: heap.VString, Text: "k"})
	value := h.Alloc(&heap.Literal{Tag: heap.VString, Text: "kept"})
	_, err = r.Call(h, "target_set", []heap.Pointer{handle, key, value})
	require.NoError(t, err)

	heap.Collect(h, []heap.Root{env})

	roots := env.Roots()
	require.Len(t, roots, 1)
	lit, ok := h.Get(*roots[0]).(*heap.Literal)
	require.True(t, ok)
	assert.Equal(t, "kept", lit.Text)
}
