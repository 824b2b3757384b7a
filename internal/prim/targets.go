package prim

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/wake-build/wake/internal/heap"
)

// TargetEnv holds every target table created during one build. A target
// enforces at-most-once evaluation per argument tuple: the first getter
// reserves a key and computes the value, every later getter for the same
// key reads the stored result. Entries reserved but never set are listed
// by Unfulfilled, which the driver logs as warnings at build end.
//
// The env lives outside the heap but stores heap Pointers, so it is a GC
// root (Roots below) and must be registered with the runtime before
// evaluation starts.
type TargetEnv struct {
	mu     sync.Mutex
	tables []*targetTable
}

type targetTable struct {
	name    string
	entries map[string]*targetEntry
}

type targetEntry struct {
	fulfilled bool
	value     heap.Pointer
}

func NewTargetEnv() *TargetEnv {
	return &TargetEnv{}
}

// Roots exposes every stored value slot for GC tracing: a memoized result
// may be the only live reference to its value between two reads.
func (e *TargetEnv) Roots() []*heap.Pointer {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*heap.Pointer
	for _, t := range e.tables {
		for _, ent := range t.entries {
			if ent.fulfilled {
				out = append(out, &ent.value)
			}
		}
	}
	return out
}

// Unfulfilled lists every "name (key)" pair that was reserved by a get
// but never completed by a set, in deterministic order.
func (e *TargetEnv) Unfulfilled() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, t := range e.tables {
		for key, ent := range t.entries {
			if !ent.fulfilled {
				out = append(out, fmt.Sprintf("%s (%s)", t.name, key))
			}
		}
	}
	sort.Strings(out)
	return out
}

// RegisterTargets installs the target primitives into r.
func RegisterTargets(r *Registry, env *TargetEnv) {
	r.Register(Entry{Name: "target_new", Arity: 1, Pure: false, Fn: env.create})
	r.Register(Entry{Name: "target_get", Arity: 2, Pure: false, Fn: env.get})
	r.Register(Entry{Name: "target_set", Arity: 3, Pure: false, Fn: env.set})
}

func targetHandle(h *heap.Arena, index int) heap.Pointer {
	lit := h.Alloc(&heap.Literal{Tag: heap.VInteger, Text: strconv.Itoa(index)})
	return h.Alloc(&heap.Record{SumName: "Target", Cons: 0, Args: []heap.Pointer{lit}})
}

func (e *TargetEnv) tableFromHandle(h *heap.Arena, p heap.Pointer) (*targetTable, error) {
	rec, ok := h.Get(p).(*heap.Record)
	if !ok || rec.SumName != "Target" || len(rec.Args) != 1 {
		return nil, fmt.Errorf("prim: expected a Target value")
	}
	lit, ok := h.Get(rec.Args[0]).(*heap.Literal)
	if !ok {
		return nil, fmt.Errorf("prim: malformed Target handle")
	}
	idx, err := strconv.Atoi(lit.Text)
	if err != nil {
		return nil, fmt.Errorf("prim: malformed Target handle")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if idx < 0 || idx >= len(e.tables) {
		return nil, fmt.Errorf("prim: unknown Target %d", idx)
	}
	return e.tables[idx], nil
}

// create implements target_new: args are [name]. Returns a fresh, empty
// Target handle.
func (e *TargetEnv) create(h *heap.Arena, args []heap.Pointer) (heap.Pointer, error) {
	name, err := asString(h, args[0])
	if err != nil {
		return heap.Nil, err
	}
	e.mu.Lock()
	idx := len(e.tables)
	e.tables = append(e.tables, &targetTable{name: name, entries: map[string]*targetEntry{}})
	e.mu.Unlock()
	return targetHandle(h, idx), nil
}

// get implements target_get: args are [target, key]. Returns
// `Ok value` when the key is already fulfilled. Otherwise reserves the
// key (recording that a computation for it is now owed) and returns
// `Fail`, telling the caller it holds the one right to compute and
// target_set the value.
func (e *TargetEnv) get(h *heap.Arena, args []heap.Pointer) (heap.Pointer, error) {
	t, err := e.tableFromHandle(h, args[0])
	if err != nil {
		return heap.Nil, err
	}
	key, err := asString(h, args[1])
	if err != nil {
		return heap.Nil, err
	}
	e.mu.Lock()
	ent, ok := t.entries[key]
	if !ok {
		t.entries[key] = &targetEntry{}
		e.mu.Unlock()
		msg := h.Alloc(&heap.Literal{Tag: heap.VString, Text: key})
		return h.Alloc(&heap.Record{SumName: "Result", Cons: 1, Args: []heap.Pointer{msg}}), nil
	}
	fulfilled, value := ent.fulfilled, ent.value
	e.mu.Unlock()
	if !fulfilled {
		// Reserved but not yet set: the reserving computation references
		// this same key, so the target's value depends on itself.
		return heap.Nil, fmt.Errorf("prim: target %q is cyclic on key %q", t.name, key)
	}
	return h.Alloc(&heap.Record{SumName: "Result", Cons: 0, Args: []heap.Pointer{value}}), nil
}

// set implements target_set: args are [target, key, value]. Fulfills a
// reserved key exactly once and returns the value. Setting an already
// fulfilled key is a hash-collision-grade fault: two computations claimed
// the same argument tuple, so at-most-once no longer holds.
func (e *TargetEnv) set(h *heap.Arena, args []heap.Pointer) (heap.Pointer, error) {
	t, err := e.tableFromHandle(h, args[0])
	if err != nil {
		return heap.Nil, err
	}
	key, err := asString(h, args[1])
	if err != nil {
		return heap.Nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := t.entries[key]
	if !ok {
		ent = &targetEntry{}
		t.entries[key] = ent
	}
	if ent.fulfilled {
		return heap.Nil, fmt.Errorf("prim: target %q set twice for key %q", t.name, key)
	}
	ent.fulfilled = true
	ent.value = args[2]
	return args[2], nil
}
