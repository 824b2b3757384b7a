// Package heap implements Wake's single-arena, copying garbage-collected
// value store.
package heap

import "fmt"

// Pointer is an arena-relative handle to a heap-allocated value: a plain
// bounds-checked uint32 offset, no unsafe. The GC relocates objects by
// rewriting these handles, never by exposing raw addresses.
type Pointer uint32

// Nil is the canonical null handle; offset 0 is never allocated (the arena
// reserves it as a sentinel).
const Nil Pointer = 0

func (p Pointer) IsNil() bool { return p == Nil }

func (p Pointer) String() string {
	if p.IsNil() {
		return "<nil>"
	}
	return fmt.Sprintf("#%d", uint32(p))
}

// Root is a GC root: a slot the collector must trace and relocate even
// though nothing in the heap points to it (the evaluator's live Work
// stack, Scope chain, and top-level Promise table).
type Root interface {
	Roots() []*Pointer
}
