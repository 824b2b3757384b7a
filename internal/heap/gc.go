package heap

// Collect runs a copying GC pass: every object transitively reachable from
// roots is kept, in first-visited order, and every Pointer slot in the
// surviving graph (root slots and object slots alike) is rewritten to the
// object's new position.
//
// Relocation works on slot addresses, not values. Slots can be aliased: a
// frame's Scope chain is also reachable from any Closure that captured it,
// and two Closures can share an outer Scope. Collecting the addresses into
// one deduplicated set first means each slot is read (old value) and
// written (forwarded value) exactly once, no matter how many owners it
// has. Cycles terminate because an object's forwarding position is
// recorded before its slots are traced.
func Collect(a *Arena, roots []Root) {
	a.mu.Lock()
	old := a.objects
	a.mu.Unlock()

	seen := make(map[*Pointer]bool)
	var addrs []*Pointer
	add := func(slots []*Pointer) {
		for _, s := range slots {
			if s != nil && !seen[s] {
				seen[s] = true
				addrs = append(addrs, s)
			}
		}
	}
	for _, r := range roots {
		add(r.Roots())
	}

	forward := make([]Pointer, len(old)+1) // index 0 unused (matches Nil)
	var compacted []Object
	var trace func(p Pointer)
	trace = func(p Pointer) {
		if p.IsNil() || forward[p] != Nil {
			return
		}
		obj := old[p-1]
		compacted = append(compacted, obj)
		forward[p] = Pointer(len(compacted))
		slots := obj.Slots()
		add(slots)
		for _, s := range slots {
			trace(*s)
		}
	}
	// addrs grows while tracing discovers object slots; index, don't range.
	for i := 0; i < len(addrs); i++ {
		trace(*addrs[i])
	}

	for _, s := range addrs {
		if !(*s).IsNil() {
			*s = forward[*s]
		}
	}

	a.replace(compacted)
}
