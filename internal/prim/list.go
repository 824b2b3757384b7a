package prim

import (
	"fmt"

	"github.com/wake-build/wake/internal/heap"
)

// listToStrings walks a Wake List<String> (Nil/Cons records over the
// "List" sum, constructor indices fixed by cmd/wake/prelude.go: Nil=0,
// Cons=1) into a Go slice. Native primitives work in plain Go slices
// rather than walking Records themselves at every call site.
func listToStrings(h *heap.Arena, p heap.Pointer) ([]string, error) {
	var out []string
	for {
		rec, ok := h.Get(p).(*heap.Record)
		if !ok || rec.SumName != "List" {
			return nil, fmt.Errorf("prim: expected a List value")
		}
		if rec.Cons == 0 { // Nil
			return out, nil
		}
		if rec.Cons != 1 || len(rec.Args) != 2 {
			return nil, fmt.Errorf("prim: malformed List record")
		}
		s, err := asString(h, rec.Args[0])
		if err != nil {
			return nil, err
		}
		out = append(out, s)
		p = rec.Args[1]
	}
}

// stringsToList builds a Wake List<String> from ss, tail-to-head so the
// result links up in the original order.
func stringsToList(h *heap.Arena, ss []string) heap.Pointer {
	tail := h.Alloc(&heap.Record{SumName: "List", Cons: 0})
	for i := len(ss) - 1; i >= 0; i-- {
		elem := h.Alloc(&heap.Literal{Tag: heap.VString, Text: ss[i]})
		tail = h.Alloc(&heap.Record{SumName: "List", Cons: 1, Args: []heap.Pointer{elem, tail}})
	}
	return tail
}

func asBool(h *heap.Arena, p heap.Pointer) (bool, error) {
	rec, ok := h.Get(p).(*heap.Record)
	if !ok || rec.SumName != "Boolean" {
		return false, fmt.Errorf("prim: expected a Boolean value")
	}
	return rec.Cons == 0, nil // True=0, False=1 (cmd/wake/prelude.go)
}

func boolValue(h *heap.Arena, b bool) heap.Pointer {
	cons := 1
	if b {
		cons = 0
	}
	return h.Alloc(&heap.Record{SumName: "Boolean", Cons: cons})
}
