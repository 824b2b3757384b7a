package resolve

import (
	"github.com/wake-build/wake/internal/ast"
	"github.com/wake-build/wake/internal/types"
)

// compileMatch lowers a (possibly multi-scrutinee, possibly guarded) Match
// into nested Destruct/Get/App by worklist: repeatedly pick the first
// scrutinee, build one Destruct with a handler Lambda per constructor, and
// recurse into the remaining scrutinees/patterns within each handler.
func (r *Resolver) compileMatch(m *ast.Match, s *scope) ast.Expr {
	if len(m.Arms) == 0 {
		r.errorf(m, "Non-exhaustive match; missing: _")
		return r.failExpr(m, "non-exhaustive match")
	}
	used := make([]bool, len(m.Arms))
	rows := make([]row, len(m.Arms))
	for i, arm := range m.Arms {
		rows[i] = row{pats: arm.Patterns, guard: arm.Guard, body: arm.Body, used: &used[i]}
	}
	out := r.compileRows(m.Scrutinees, rows, s, m)
	for i, u := range used {
		if !u {
			r.errorf(m, "unreachable pattern in arm %d", i+1)
		}
	}
	return out
}

type row struct {
	pats  []*ast.Pattern
	guard ast.Expr
	body  ast.Expr
	used  *bool
}

// compileRows compiles a pattern matrix (one column per scrutinee) into an
// expression tree. scruts[0..] are expressions already bound to variables
// (or arbitrary exprs on first entry); rows are matched top to bottom,
// first match wins.
func (r *Resolver) compileRows(scruts []ast.Expr, rows []row, s *scope, at ast.Expr) ast.Expr {
	if len(rows) == 0 {
		return r.failExpr(at, "non-exhaustive match: no pattern applies")
	}
	if len(scruts) == 0 {
		// All columns consumed: guard (if any) decides whether this row
		// fires, otherwise fall through to the next row.
		row0 := rows[0]
		if row0.used != nil {
			*row0.used = true
		}
		body := r.resolveExpr(row0.body, s)
		if row0.guard == nil {
			return body
		}
		// A guard is a runtime Boolean dispatch: True takes this row's
		// body, False falls through to whatever the remaining rows
		// compile to. Built as a Destruct directly since body and guard
		// are already resolved.
		guard := r.resolveExpr(row0.guard, s)
		elseBody := r.compileRows(scruts, rows[1:], s, at)
		if r.Sums.Boolean == nil {
			r.errorf(at, "match guard requires the Boolean sum, which is not defined")
			return body
		}
		thenLam := &ast.Lambda{ArgName: "_", Body: body}
		thenLam.Loc = at.Location()
		elseLam := &ast.Lambda{ArgName: "_", Body: elseBody}
		elseLam.Loc = at.Location()
		des := &ast.Destruct{Sum: r.Sums.Boolean, Handlers: []ast.Expr{thenLam, elseLam}}
		des.Loc = at.Location()
		app := &ast.App{Fn: des, Val: guard}
		app.Loc = at.Location()
		return app
	}

	col0 := scruts[0]
	rows = r.desugarLiterals(col0, rows)
	sum := r.sumForColumn(rows)
	if sum == nil {
		// Plain variable/wildcard column: bind and recurse without
		// consulting any sum.
		inner := newScope(s)
		next := make([]row, len(rows))
		for i, rw := range rows {
			next[i] = row{pats: rw.pats[1:], guard: rw.guard, body: rw.body, used: rw.used}
			if rw.pats[0].IsVar {
				inner.names[rw.pats[0].Name] = col0
			}
		}
		return r.compileRows(scruts[1:], next, inner, at)
	}

	handlers := make([]ast.Expr, len(sum.Members))
	for ci, ctor := range sum.Members {
		var subRows []row
		for _, rw := range rows {
			p := rw.pats[0]
			if p.IsWild || p.IsVar || (p.Tag == ctor.Name) {
				args := p.Args
				newPats := make([]*ast.Pattern, 0, len(ctor.Args)+len(rw.pats)-1)
				if p.Tag == ctor.Name {
					newPats = append(newPats, args...)
				} else {
					for range ctor.Args {
						newPats = append(newPats, &ast.Pattern{IsWild: true, Tag: "_"})
					}
				}
				newPats = append(newPats, rw.pats[1:]...)
				subRows = append(subRows, row{pats: newPats, guard: rw.guard, body: rw.body, used: rw.used})
			}
		}
		if len(subRows) == 0 {
			// No row covers this constructor: synthesize the concrete
			// value the program would fail on.
			r.errorf(at, "Non-exhaustive match; missing: %s", counterexample(ctor))
		}
		fieldScruts := make([]ast.Expr, len(ctor.Args))
		for fi := range ctor.Args {
			g := &ast.Get{Sum: sum, Cons: ctor, Index: fi, Arg: col0}
			g.Loc = at.Location()
			fieldScruts[fi] = g
		}
		body := r.compileRows(append(fieldScruts, scruts[1:]...), subRows, s, at)
		lam := &ast.Lambda{ArgName: "_", Body: body}
		lam.Loc = at.Location()
		handlers[ci] = lam
	}
	des := &ast.Destruct{Sum: sum, Handlers: handlers}
	des.Loc = at.Location()
	app := &ast.App{Fn: des, Val: col0}
	app.Loc = at.Location()
	return app
}

// desugarLiterals rewrites any literal pattern in the first column into a
// wildcard plus an equality guard on the scrutinee, conjoined with the
// row's own guard if it has one. The column then discriminates on
// constructors (or nothing) like any other.
func (r *Resolver) desugarLiterals(col ast.Expr, rows []row) []row {
	any := false
	for _, rw := range rows {
		if rw.pats[0].Literal != nil {
			any = true
			break
		}
	}
	if !any {
		return rows
	}
	next := make([]row, len(rows))
	for i, rw := range rows {
		nr := rw
		if p := rw.pats[0]; p.Literal != nil {
			g := literalGuard(col, p.Literal.(*ast.Literal))
			if nr.guard != nil {
				and := &ast.Prim{Name: "bool_and", Args: []ast.Expr{g, nr.guard}}
				and.Loc = p.Loc
				nr.guard = and
			} else {
				nr.guard = g
			}
			pats := make([]*ast.Pattern, 0, len(rw.pats))
			pats = append(pats, &ast.Pattern{Loc: p.Loc, Tag: "_", IsWild: true})
			pats = append(pats, rw.pats[1:]...)
			nr.pats = pats
		}
		next[i] = nr
	}
	return next
}

// literalGuard builds the Boolean equality test a literal pattern stands
// for, picking the comparison primitive by the literal's type.
func literalGuard(col ast.Expr, lit *ast.Literal) ast.Expr {
	switch lit.Kind {
	case ast.LitString:
		cmp := &ast.Prim{Name: "string_cmp", Args: []ast.Expr{col, lit}}
		cmp.Loc = lit.Loc
		zero := &ast.Literal{Value: "0", Kind: ast.LitInteger}
		zero.Loc = lit.Loc
		eq := &ast.Prim{Name: "integer_eq", Args: []ast.Expr{cmp, zero}}
		eq.Loc = lit.Loc
		return eq
	case ast.LitDouble:
		eq := &ast.Prim{Name: "double_eq", Args: []ast.Expr{col, lit}}
		eq.Loc = lit.Loc
		return eq
	default:
		eq := &ast.Prim{Name: "integer_eq", Args: []ast.Expr{col, lit}}
		eq.Loc = lit.Loc
		return eq
	}
}

// sumForColumn finds the Sum the first column's patterns discriminate on,
// or nil if every row's first pattern is a variable/wildcard.
func (r *Resolver) sumForColumn(rows []row) *types.Sum {
	for _, rw := range rows {
		p := rw.pats[0]
		if !p.IsVar && !p.IsWild {
			if sum, ok := r.dist[p.Tag]; ok {
				return sum
			}
		}
	}
	return nil
}

// counterexample renders one uncovered constructor as the value a
// non-exhaustive match would fail on: "False", "Cons _ _", ...
func counterexample(ctor *types.Constructor) string {
	out := ctor.Name
	for range ctor.Args {
		out += " _"
	}
	return out
}

func (r *Resolver) failExpr(at ast.Expr, msg string) ast.Expr {
	p := &ast.Prim{Name: "match_fail", Args: []ast.Expr{stringLit(at, msg)}}
	p.Loc = at.Location()
	return p
}

func stringLit(at ast.Expr, s string) ast.Expr {
	l := &ast.Literal{Value: s, Kind: ast.LitString}
	l.Loc = at.Location()
	return l
}
