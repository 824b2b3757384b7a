// Package prim is the native primitive registry: a name -> typed function
// table with purity flags, shared by the resolver (through Arities) and the
// evaluator. The optimizer's purity pass keeps its own list of impure
// primitive names.
package prim

import (
	"fmt"

	"github.com/wake-build/wake/internal/heap"
)

// Fn is one primitive's native implementation: given the heap (to allocate
// its result) and its already-evaluated arguments, produce a result
// pointer or an error. Wake-level errors (e.g. division by zero) are
// reported as Go errors here; the evaluator ends evaluation with that error.
type Fn func(h *heap.Arena, args []heap.Pointer) (heap.Pointer, error)

// Entry pairs one primitive's implementation with its declared arity and
// purity; the resolver reads the arities and the evaluator calls Fn.
type Entry struct {
	Name  string
	Arity int
	Pure  bool
	Fn    Fn
}

// Registry is the whole table, keyed by primitive name.
type Registry struct {
	entries map[string]*Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]*Entry{}}
}

// Register adds e, panicking on a duplicate name: primitive registration
// happens once at startup from a fixed table, so a collision is a coding
// error, not a runtime condition to recover from.
func (r *Registry) Register(e Entry) {
	if _, dup := r.entries[e.Name]; dup {
		panic(fmt.Sprintf("prim: duplicate registration of %q", e.Name))
	}
	r.entries[e.Name] = &e
}

func (r *Registry) Lookup(name string) (*Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// Arities reports every registered primitive's declared arity, so the
// resolver can recognize a bare name as a primitive call without importing
// this package's runtime dependencies (internal/catalog, internal/job).
func (r *Registry) Arities() map[string]int {
	out := make(map[string]int, len(r.entries))
	for name, e := range r.entries {
		out[name] = e.Arity
	}
	return out
}

// Call invokes name with args, checking arity first so a malformed call
// site (a bug in lowering, never something a well-typed Wake program can
// produce) fails with a clear message instead of an index panic deep
// inside Fn.
func (r *Registry) Call(h *heap.Arena, name string, args []heap.Pointer) (heap.Pointer, error) {
	e, ok := r.entries[name]
	if !ok {
		return heap.Nil, fmt.Errorf("prim: unknown primitive %q", name)
	}
	if e.Arity >= 0 && len(args) != e.Arity {
		return heap.Nil, fmt.Errorf("prim: %q expects %d arguments, got %d", name, e.Arity, len(args))
	}
	return e.Fn(h, args)
}
