package types

import "fmt"

// UnifyError is a two-sided diagnostic: a site-specific message callback
// formats the final text, but Unify itself always has both conflicting
// types available.
type UnifyError struct {
	Left, Right *TypeVar
	Detail      string
}

func (e *UnifyError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("cannot unify %s with %s: %s", e.Left, e.Right, e.Detail)
	}
	return fmt.Sprintf("cannot unify %s with %s", e.Left, e.Right)
}

// Unify unions a and b's equivalence classes, recursively unifying
// children of matching constructors. The older (smaller) DOB survives as
// the union's DOB, since the older variable is the one whose scope the
// newer one must not be allowed to escape.
func Unify(a, b *TypeVar) error {
	ra, rb := a.Find(), b.Find()
	if ra == rb {
		return nil
	}

	switch {
	case ra.Name == "" && rb.Name == "":
		link(ra, rb)
		return nil
	case ra.Name == "":
		return bindFreeTo(ra, rb)
	case rb.Name == "":
		return bindFreeTo(rb, ra)
	}

	if ra.Name != rb.Name || len(ra.Children) != len(rb.Children) {
		return &UnifyError{Left: ra, Right: rb}
	}
	// Union first so recursive occurrences (e.g. a recursive ADT) see a
	// settled representative instead of looping.
	survivor := ra
	if rb.DOB < ra.DOB {
		survivor = rb
	}
	linkTo(ra, survivor)
	linkTo(rb, survivor)
	for i := range ra.Children {
		if err := Unify(ra.Children[i].Var, rb.Children[i].Var); err != nil {
			return err
		}
	}
	return nil
}

// bindFreeTo makes free (a variable) resolve to con (a constructor),
// after an occurs check to reject infinite types.
func bindFreeTo(free, con *TypeVar) error {
	if occurs(free, con) {
		return &UnifyError{Left: free, Right: con, Detail: "infinite type"}
	}
	dob := free.DOB
	if con.DOB < dob {
		dob = con.DOB
	}
	free.Name = con.Name
	free.Children = con.Children
	free.DOB = dob
	con.Link = free
	return nil
}

func occurs(free, within *TypeVar) bool {
	r := within.Find()
	if r == free {
		return true
	}
	for _, c := range r.Children {
		if occurs(free, c.Var) {
			return true
		}
	}
	return false
}

// link unions two free variables by rank; the surviving root takes the
// smaller (older) of the two DOBs, so older variables survive.
func link(a, b *TypeVar) {
	if a.DOB > b.DOB {
		a, b = b, a
	}
	dob := a.DOB
	if a.rank < b.rank {
		a, b = b, a
	}
	b.Link = a
	a.DOB = dob
	if a.rank == b.rank {
		a.rank++
	}
}

func linkTo(from, to *TypeVar) {
	if from != to {
		from.Link = to
	}
}

// Generalize snapshots tv's free variables with DOB >= since as
// quantified; callers defer this until an entire recursive SCC has
// converged. Generalize itself is a marking operation: it returns the set
// of free variables reachable from tv that were born no earlier than
// since, which the caller instantiates afresh at each use site.
func Generalize(tv *TypeVar, since DOB) []*TypeVar {
	seen := map[*TypeVar]bool{}
	var free []*TypeVar
	var walk func(*TypeVar)
	walk = func(t *TypeVar) {
		r := t.Find()
		if seen[r] {
			return
		}
		seen[r] = true
		if r.Name == "" {
			if r.DOB >= since {
				free = append(free, r)
			}
			return
		}
		for _, c := range r.Children {
			walk(c.Var)
		}
	}
	walk(tv)
	return free
}

// Instantiate copies tv, replacing every variable in quantified with a
// fresh one (sharing substitutions across the copy so shared structure
// among the quantified variables is preserved).
func Instantiate(clock *Clock, tv *TypeVar, quantified []*TypeVar) *TypeVar {
	subst := make(map[*TypeVar]*TypeVar, len(quantified))
	for _, q := range quantified {
		subst[q.Find()] = NewFree(clock)
	}
	var copyVar func(*TypeVar) *TypeVar
	copyVar = func(t *TypeVar) *TypeVar {
		r := t.Find()
		if fresh, ok := subst[r]; ok {
			return fresh
		}
		if r.Name == "" {
			return r
		}
		children := make([]Child, len(r.Children))
		for i, c := range r.Children {
			children[i] = Child{Name: c.Name, Var: copyVar(c.Var)}
		}
		return &TypeVar{Name: r.Name, Children: children, DOB: r.DOB}
	}
	return copyVar(tv)
}
