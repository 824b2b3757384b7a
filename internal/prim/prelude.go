package prim

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/wake-build/wake/internal/heap"
)

// RegisterPrelude installs the fixed-arity native primitives every Wake
// program can call directly (arithmetic, comparison, string ops): the
// small, stable core registered unconditionally before any user-visible
// `publish`-based extension mechanism runs.
func RegisterPrelude(r *Registry) {
	r.Register(Entry{Name: "integer_add", Arity: 2, Pure: true, Fn: intBinOp(func(a, b *big.Int) *big.Int { return new(big.Int).Add(a, b) })})
	r.Register(Entry{Name: "integer_sub", Arity: 2, Pure: true, Fn: intBinOp(func(a, b *big.Int) *big.Int { return new(big.Int).Sub(a, b) })})
	r.Register(Entry{Name: "integer_mul", Arity: 2, Pure: true, Fn: intBinOp(func(a, b *big.Int) *big.Int { return new(big.Int).Mul(a, b) })})
	r.Register(Entry{Name: "integer_div", Arity: 2, Pure: true, Fn: intDivOp})
	r.Register(Entry{Name: "integer_mod", Arity: 2, Pure: true, Fn: intModOp})
	r.Register(Entry{Name: "integer_cmp", Arity: 2, Pure: true, Fn: intCmpOp})

	// The `==`, `!=`, `<`, `>`, `<=`, `>=` surface operators (internal/resolve's
	// operator-alias table) resolve to these Integer-typed comparisons; a
	// real Wake build script compares integers and strings far more often
	// than any other type, so string comparison goes through string_cmp
	// directly and every other type is out of scope for this pass.
	r.Register(Entry{Name: "integer_eq", Arity: 2, Pure: true, Fn: intBoolCmpOp(func(c int) bool { return c == 0 })})
	r.Register(Entry{Name: "integer_ne", Arity: 2, Pure: true, Fn: intBoolCmpOp(func(c int) bool { return c != 0 })})
	r.Register(Entry{Name: "integer_lt", Arity: 2, Pure: true, Fn: intBoolCmpOp(func(c int) bool { return c < 0 })})
	r.Register(Entry{Name: "integer_gt", Arity: 2, Pure: true, Fn: intBoolCmpOp(func(c int) bool { return c > 0 })})
	r.Register(Entry{Name: "integer_le", Arity: 2, Pure: true, Fn: intBoolCmpOp(func(c int) bool { return c <= 0 })})
	r.Register(Entry{Name: "integer_ge", Arity: 2, Pure: true, Fn: intBoolCmpOp(func(c int) bool { return c >= 0 })})

	// double_eq backs literal Double patterns; exact bit equality on the
	// parsed values, so 1.0 and 1.00 match while 0.1+0.2 and 0.3 don't.
	r.Register(Entry{Name: "double_eq", Arity: 2, Pure: true, Fn: func(h *heap.Arena, args []heap.Pointer) (heap.Pointer, error) {
		a, err := asDouble(h, args[0])
		if err != nil {
			return heap.Nil, err
		}
		b, err := asDouble(h, args[1])
		if err != nil {
			return heap.Nil, err
		}
		return boolValue(h, a == b), nil
	}})

	r.Register(Entry{Name: "string_cat", Arity: 2, Pure: true, Fn: func(h *heap.Arena, args []heap.Pointer) (heap.Pointer, error) {
		a, err := asString(h, args[0])
		if err != nil {
			return heap.Nil, err
		}
		b, err := asString(h, args[1])
		if err != nil {
			return heap.Nil, err
		}
		return h.Alloc(&heap.Literal{Tag: heap.VString, Text: a + b}), nil
	}})
	r.Register(Entry{Name: "string_len", Arity: 1, Pure: true, Fn: func(h *heap.Arena, args []heap.Pointer) (heap.Pointer, error) {
		s, err := asString(h, args[0])
		if err != nil {
			return heap.Nil, err
		}
		return h.Alloc(&heap.Literal{Tag: heap.VInteger, Text: fmt.Sprintf("%d", len(s))}), nil
	}})
	r.Register(Entry{Name: "string_cmp", Arity: 2, Pure: true, Fn: func(h *heap.Arena, args []heap.Pointer) (heap.Pointer, error) {
		a, err := asString(h, args[0])
		if err != nil {
			return heap.Nil, err
		}
		b, err := asString(h, args[1])
		if err != nil {
			return heap.Nil, err
		}
		return h.Alloc(&heap.Literal{Tag: heap.VInteger, Text: fmt.Sprintf("%d", strings.Compare(a, b))}), nil
	}})

	// "id" is the pass-through primitive the optimizer's cse/decon/inline
	// passes splice in to replace a folded term without renumbering every
	// later reference (internal/optimize/{cse,decon,inline}.go).
	r.Register(Entry{Name: "id", Arity: 1, Pure: true, Fn: func(h *heap.Arena, args []heap.Pointer) (heap.Pointer, error) {
		return args[0], nil
	}})
	r.Register(Entry{Name: "match_fail", Arity: 1, Pure: false, Fn: func(h *heap.Arena, args []heap.Pointer) (heap.Pointer, error) {
		msg, _ := asString(h, args[0])
		return heap.Nil, fmt.Errorf("match failure: %s", msg)
	}})

	// list_cat backs the publish-channel chain the resolver builds per
	// scope: each publish appends its items onto the outer channel's list.
	// Elements are opaque pointers, so this works for any element type.
	r.Register(Entry{Name: "list_cat", Arity: 2, Pure: true, Fn: listCatOp})

	// bool_and/bool_or back the `&&`/`||` surface operators (internal/resolve's
	// operator-alias table). Both arguments are evaluated eagerly since the
	// evaluator has no notion of a lazy primitive argument, trading away
	// short-circuiting for the surface operators' ordinary call semantics.
	r.Register(Entry{Name: "bool_and", Arity: 2, Pure: true, Fn: func(h *heap.Arena, args []heap.Pointer) (heap.Pointer, error) {
		a, err := asBool(h, args[0])
		if err != nil {
			return heap.Nil, err
		}
		b, err := asBool(h, args[1])
		if err != nil {
			return heap.Nil, err
		}
		return boolValue(h, a && b), nil
	}})
	r.Register(Entry{Name: "bool_or", Arity: 2, Pure: true, Fn: func(h *heap.Arena, args []heap.Pointer) (heap.Pointer, error) {
		a, err := asBool(h, args[0])
		if err != nil {
			return heap.Nil, err
		}
		b, err := asBool(h, args[1])
		if err != nil {
			return heap.Nil, err
		}
		return boolValue(h, a || b), nil
	}})

	r.Register(Entry{Name: "print", Arity: 1, Pure: false, Fn: func(h *heap.Arena, args []heap.Pointer) (heap.Pointer, error) {
		s, err := asString(h, args[0])
		if err != nil {
			return heap.Nil, err
		}
		fmt.Println(s)
		return h.Alloc(&heap.Record{SumName: "Unit", Cons: 0}), nil
	}})
}

func asString(h *heap.Arena, p heap.Pointer) (string, error) {
	lit, ok := h.Get(p).(*heap.Literal)
	if !ok {
		return "", fmt.Errorf("prim: expected a String value")
	}
	return lit.Text, nil
}

func asInt(h *heap.Arena, p heap.Pointer) (*big.Int, error) {
	lit, ok := h.Get(p).(*heap.Literal)
	if !ok || lit.Tag != heap.VInteger {
		return nil, fmt.Errorf("prim: expected an Integer value")
	}
	n, ok := new(big.Int).SetString(lit.Text, 10)
	if !ok {
		return nil, fmt.Errorf("prim: malformed integer literal %q", lit.Text)
	}
	return n, nil
}

func asDouble(h *heap.Arena, p heap.Pointer) (float64, error) {
	lit, ok := h.Get(p).(*heap.Literal)
	if !ok || lit.Tag != heap.VDouble {
		return 0, fmt.Errorf("prim: expected a Double value")
	}
	f, err := strconv.ParseFloat(lit.Text, 64)
	if err != nil {
		return 0, fmt.Errorf("prim: malformed double literal %q", lit.Text)
	}
	return f, nil
}

func intBinOp(op func(a, b *big.Int) *big.Int) Fn {
	return func(h *heap.Arena, args []heap.Pointer) (heap.Pointer, error) {
		a, err := asInt(h, args[0])
		if err != nil {
			return heap.Nil, err
		}
		b, err := asInt(h, args[1])
		if err != nil {
			return heap.Nil, err
		}
		return h.Alloc(&heap.Literal{Tag: heap.VInteger, Text: op(a, b).String()}), nil
	}
}

func intDivOp(h *heap.Arena, args []heap.Pointer) (heap.Pointer, error) {
	a, err := asInt(h, args[0])
	if err != nil {
		return heap.Nil, err
	}
	b, err := asInt(h, args[1])
	if err != nil {
		return heap.Nil, err
	}
	if b.Sign() == 0 {
		return heap.Nil, fmt.Errorf("prim: division by zero")
	}
	return h.Alloc(&heap.Literal{Tag: heap.VInteger, Text: new(big.Int).Quo(a, b).String()}), nil
}

func intModOp(h *heap.Arena, args []heap.Pointer) (heap.Pointer, error) {
	a, err := asInt(h, args[0])
	if err != nil {
		return heap.Nil, err
	}
	b, err := asInt(h, args[1])
	if err != nil {
		return heap.Nil, err
	}
	if b.Sign() == 0 {
		return heap.Nil, fmt.Errorf("prim: division by zero")
	}
	// Rem, not Mod: truncated remainder matches integer_div's Quo, so
	// (a/b)*b + a%b == a holds for negative operands too.
	return h.Alloc(&heap.Literal{Tag: heap.VInteger, Text: new(big.Int).Rem(a, b).String()}), nil
}

// listCatOp concatenates two List records: the first list's spine is
// rebuilt with its tail pointed at the second list, which is shared
// untouched.
func listCatOp(h *heap.Arena, args []heap.Pointer) (heap.Pointer, error) {
	var elems []heap.Pointer
	p := args[0]
	for {
		rec, ok := h.Get(p).(*heap.Record)
		if !ok || rec.SumName != "List" {
			return heap.Nil, fmt.Errorf("prim: list_cat expects List values")
		}
		if rec.Cons == 0 {
			break
		}
		if rec.Cons != 1 || len(rec.Args) != 2 {
			return heap.Nil, fmt.Errorf("prim: malformed List record")
		}
		elems = append(elems, rec.Args[0])
		p = rec.Args[1]
	}
	if rec, ok := h.Get(args[1]).(*heap.Record); !ok || rec.SumName != "List" {
		return heap.Nil, fmt.Errorf("prim: list_cat expects List values")
	}
	tail := args[1]
	for i := len(elems) - 1; i >= 0; i-- {
		tail = h.Alloc(&heap.Record{SumName: "List", Cons: 1, Args: []heap.Pointer{elems[i], tail}})
	}
	return tail, nil
}

func intBoolCmpOp(pred func(c int) bool) Fn {
	return func(h *heap.Arena, args []heap.Pointer) (heap.Pointer, error) {
		a, err := asInt(h, args[0])
		if err != nil {
			return heap.Nil, err
		}
		b, err := asInt(h, args[1])
		if err != nil {
			return heap.Nil, err
		}
		return boolValue(h, pred(a.Cmp(b))), nil
	}
}

// intCmpOp returns an Order constructor index (0=LT, 1=EQ, 2=GT) encoded as
// an Integer. The result stays a plain Integer; no Order record is built
// from it.
func intCmpOp(h *heap.Arena, args []heap.Pointer) (heap.Pointer, error) {
	a, err := asInt(h, args[0])
	if err != nil {
		return heap.Nil, err
	}
	b, err := asInt(h, args[1])
	if err != nil {
		return heap.Nil, err
	}
	return h.Alloc(&heap.Literal{Tag: heap.VInteger, Text: fmt.Sprintf("%d", a.Cmp(b)+1)}), nil
}
