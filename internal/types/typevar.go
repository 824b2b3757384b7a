// Package types implements the Hindley-Milner unifier used by the
// typechecker: a union-find TypeVar with a date-of-birth
// marker so generalized variables can't be unified with variables that
// didn't exist yet when they were generalized.
package types

import "fmt"

// DOB is a date-of-birth marker: a monotonically increasing clock value
// stamped onto every TypeVar created at a given binding site. Generalized
// type variables may not unify with fresher (larger-DOB) free variables;
// this is what keeps quantification sound across recursive SCCs.
type DOB uint64

// Clock hands out strictly increasing DOB values. One Clock is shared by
// an entire typechecking run.
type Clock struct{ next DOB }

// Tick returns the next DOB and advances the clock.
func (c *Clock) Tick() DOB {
	c.next++
	return c.next
}

// Child is a named argument position of a TypeVar, e.g. the element type
// of a List or the two members of a Pair.
type Child struct {
	Name string // optional field name; "" if positional-only
	Var  *TypeVar
}

// TypeVar is a union-find node. Find() follows Link (with path
// compression) to the representative of the variable's equivalence class.
// A representative with a non-empty Name is a concrete type constructor
// applied to Children; an empty Name is a free variable.
type TypeVar struct {
	Name     string
	Children []Child
	DOB      DOB
	Link     *TypeVar // non-nil once unioned into another class
	rank     int
}

// NewFree allocates a fresh free type variable stamped with the clock's
// current DOB.
func NewFree(clock *Clock) *TypeVar {
	return &TypeVar{DOB: clock.Tick()}
}

// NewCon allocates a concrete type constructor applied to children, e.g.
// NewCon(clock, "List", elem).
func NewCon(clock *Clock, name string, children ...*TypeVar) *TypeVar {
	tv := &TypeVar{Name: name, DOB: clock.Tick()}
	for _, c := range children {
		tv.Children = append(tv.Children, Child{Var: c})
	}
	return tv
}

// Find returns the representative of tv's equivalence class, compressing
// the path as it walks.
func (tv *TypeVar) Find() *TypeVar {
	root := tv
	for root.Link != nil {
		root = root.Link
	}
	for tv.Link != nil {
		next := tv.Link
		tv.Link = root
		tv = next
	}
	return root
}

// IsFree reports whether tv's representative is an unbound variable.
func (tv *TypeVar) IsFree() bool {
	r := tv.Find()
	return r.Name == "" && r.Link == nil
}

// String renders a TypeVar for diagnostics: a free variable prints as
// "?N" keyed by address identity; a constructor prints "Name a b".
func (tv *TypeVar) String() string {
	r := tv.Find()
	if r.Name == "" {
		return fmt.Sprintf("?%p", r)
	}
	if len(r.Children) == 0 {
		return r.Name
	}
	s := r.Name
	for _, c := range r.Children {
		s += " " + c.Var.String()
	}
	return s
}
