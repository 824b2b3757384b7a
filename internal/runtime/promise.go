// Package runtime is the single-threaded cooperative evaluator: a
// trampoline over a work stack, backed by the content-addressed heap.
package runtime

import "github.com/wake-build/wake/internal/heap"

// Promise is a single-assignment cell: at most one Fulfill call ever
// succeeds, and every Waiter registered before fulfillment fires exactly
// once, in registration order.
type Promise struct {
	fulfilled bool
	value     heap.Pointer
	waiters   []Waiter
}

// Waiter is re-queued onto the evaluator's Work stack once its Promise
// resolves; Resume receives the fulfilled value.
type Waiter func(value heap.Pointer)

// NewPromise creates an unfulfilled cell.
func NewPromise() *Promise { return &Promise{} }

// IsFulfilled reports whether Value is already available.
func (p *Promise) IsFulfilled() bool { return p.fulfilled }

// Value returns the fulfilled value; callers must check IsFulfilled first.
func (p *Promise) Value() heap.Pointer { return p.value }

// Await registers w to run once p fulfills. If p is already fulfilled, w
// runs immediately (still synchronously, preserving the invariant that a
// Waiter never outlives the tick it was meant for).
func (p *Promise) Await(w Waiter) {
	if p.fulfilled {
		w(p.value)
		return
	}
	p.waiters = append(p.waiters, w)
}

// Fulfill sets p's value and fires every registered waiter in order.
// A Promise is single-assignment: fulfilling it twice is a runtime bug,
// so it panics rather than silently overwriting. Wake programs cannot
// construct this themselves; only the evaluator calls Fulfill.
func (p *Promise) Fulfill(value heap.Pointer) {
	if p.fulfilled {
		panic("runtime: promise fulfilled twice")
	}
	p.fulfilled = true
	p.value = value
	waiters := p.waiters
	p.waiters = nil
	for _, w := range waiters {
		w(value)
	}
}
