package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wake-build/wake/internal/heap"
)

func TestPromise_AwaitBeforeFulfillFIFO(t *testing.T) {
	p := NewPromise()
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		p.Await(func(heap.Pointer) { order = append(order, i) })
	}
	assert.False(t, p.IsFulfilled())

	p.Fulfill(heap.Pointer(7))
	assert.True(t, p.IsFulfilled())
	assert.Equal(t, heap.Pointer(7), p.Value())
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestPromise_AwaitAfterFulfillRunsImmediately(t *testing.T) {
	p := NewPromise()
	p.Fulfill(heap.Pointer(3))

	var got heap.Pointer
	p.Await(func(v heap.Pointer) { got = v })
	assert.Equal(t, heap.Pointer(3), got)
}

func TestPromise_DoubleFulfillPanics(t *testing.T) {
	p := NewPromise()
	p.Fulfill(heap.Pointer(1))
	assert.Panics(t, func() { p.Fulfill(heap.Pointer(2)) })
}
