package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArena_AllocAndGet(t *testing.T) {
	a := NewArena(0)
	p1 := a.Alloc(&Literal{Tag: VInteger, Text: "1"})
	p2 := a.Alloc(&Literal{Tag: VInteger, Text: "2"})

	require.False(t, p1.IsNil())
	require.NotEqual(t, p1, p2)

	v1 := a.Get(p1).(*Literal)
	assert.Equal(t, "1", v1.Text)

	stats := a.GetStats()
	assert.Equal(t, 2, stats.Live)
	assert.Equal(t, uint64(2), stats.AllocCount)
}

func TestArena_ReserveGCNeeded(t *testing.T) {
	a := NewArena(1)
	require.NoError(t, a.Reserve(1))
	a.Alloc(&Literal{Tag: VInteger, Text: "1"})

	err := a.Reserve(1)
	require.Error(t, err)
	var gcErr *GCNeeded
	require.ErrorAs(t, err, &gcErr)
	assert.Equal(t, 1, gcErr.Requested)
}

func TestArena_GetInvalidPointerPanics(t *testing.T) {
	a := NewArena(0)
	assert.Panics(t, func() {
		a.Get(Pointer(99))
	})
}

func TestPointer_NilAndString(t *testing.T) {
	assert.True(t, Nil.IsNil())
	assert.Equal(t, "<nil>", Nil.String())
	assert.Equal(t, "#5", Pointer(5).String())
}
