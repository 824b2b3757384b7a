package runtime

import (
	"github.com/wake-build/wake/internal/heap"
	"github.com/wake-build/wake/internal/ssa"
)

// Closure captures the Fun term plus the Scope it closed over, so applying
// it later extends that Scope with one new argument slot. A Closure with a
// nil Fun and non-empty DesHandlers is a destruct dispatcher instead: it
// inspects the Record it's applied to and tail-calls the matching handler
// (the runtime counterpart of optimize.PassCases' static fold, used when
// the constructor isn't known until the value actually arrives).
type Closure struct {
	Fun         *ssa.Term
	Outer       *Scope
	DesHandlers []heap.Pointer
	DesSum      string
}

func (c *Closure) Kind() uint8 { return heap.VClosure }
func (c *Closure) Size() int   { return 32 + 8*len(c.DesHandlers) }

// Slots covers the whole captured Scope chain, not just the immediate
// frame: a body can reference any enclosing argument, so every link must
// survive a collection. The chain is shared with live frames and sibling
// closures; the collector dedupes addresses.
func (c *Closure) Slots() []*heap.Pointer {
	var out []*heap.Pointer
	for s := c.Outer; s != nil; s = s.Parent {
		for i := range s.Slots {
			out = append(out, &s.Slots[i])
		}
	}
	for i := range c.DesHandlers {
		out = append(out, &c.DesHandlers[i])
	}
	return out
}
