package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRoot struct{ slots []*Pointer }

func (r *testRoot) Roots() []*Pointer { return r.slots }

func TestCollect_DropsUnreachable(t *testing.T) {
	a := NewArena(0)
	kept := a.Alloc(&Literal{Tag: VInteger, Text: "kept"})
	a.Alloc(&Literal{Tag: VInteger, Text: "garbage"})

	root := &testRoot{slots: []*Pointer{&kept}}
	Collect(a, []Root{root})

	require.Equal(t, 1, a.Len())
	v := a.Get(kept).(*Literal)
	assert.Equal(t, "kept", v.Text)
}

func TestCollect_HandlesCycles(t *testing.T) {
	a := NewArena(0)
	r1 := &Record{SumName: "Pair", Cons: 0, Args: []Pointer{Nil, Nil}}
	p1 := a.Alloc(r1)
	r2 := &Record{SumName: "Pair", Cons: 0, Args: []Pointer{p1, Nil}}
	p2 := a.Alloc(r2)
	// r1 now points back to r2, forming a cycle.
	r1.Args[0] = p2

	root := &testRoot{slots: []*Pointer{&p2}}
	require.NotPanics(t, func() {
		Collect(a, []Root{root})
	})
	assert.Equal(t, 2, a.Len())
}
