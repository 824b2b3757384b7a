package ssa

import (
	"github.com/wake-build/wake/internal/ast"
)

// lowerScope tracks, for the Fun currently being built, every name visible
// in an enclosing Fun (depth > 0) or in this Fun's own flat term list
// (depth 0, offset is the term's index once emitted).
type lowerScope struct {
	names  map[ast.Expr]ID
	parent *lowerScope
	terms  *[]Term
}

// Lower compiles a resolved+typechecked expression into a Graph whose Top
// is a single nullary Fun evaluating body. By
// convention the last Term appended to a Fun's body is that Fun's return
// value, so the caller of Lower reads Graph.Top.FunBody[len(...)-1].
func Lower(body ast.Expr) *Graph {
	var top []Term
	ls := &lowerScope{names: map[ast.Expr]ID{}, terms: &top}
	ret := lowerExpr(ls, body)
	terminate(ls, ret)
	return &Graph{Top: Term{Kind: KFun, FunBody: top, FunName: "main"}}
}

// terminate guarantees ret is the last term of ls's body, emitting a
// pass-through KGet-free identity (a one-argument Prim "id") when an
// earlier-emitted or enclosing-scope term was returned directly.
func terminate(ls *lowerScope, ret ID) {
	if ret.Depth() == 0 && int(ret.Offset()) == len(*ls.terms)-1 {
		return
	}
	emit(ls, Term{Kind: KPrim, PrimName: "id", PrimArgs: []ID{ret}})
}

func emit(ls *lowerScope, t Term) ID {
	*ls.terms = append(*ls.terms, t)
	return Pack(0, len(*ls.terms)-1)
}

// lowerExpr returns the ID of the term representing e within ls's Fun,
// emitting into ls.terms as needed. It is a direct structural translation:
// most ast node kinds map to exactly one emitted term (plus recursively
// lowered children); a VarRef reuses the ID of the term it refers to and
// a DefBinding emits no term of its own.
func lowerExpr(ls *lowerScope, e ast.Expr) ID {
	switch n := e.(type) {
	case *ast.Literal:
		return emit(ls, Term{Kind: KLit, LitValue: n.Value, LitKind: int(n.Kind)})

	case *ast.VarRef:
		if id, ok := ls.names[n.Target]; ok {
			return id
		}
		if n.Target != nil {
			return lowerExpr(ls, n.Target)
		}
		return emit(ls, Term{Kind: KLit, LitValue: "<unresolved:" + n.Name + ">"})

	case *ast.App:
		fn := lowerExpr(ls, n.Fn)
		arg := lowerExpr(ls, n.Val)
		return emit(ls, Term{Kind: KApp, AppFn: fn, AppArg: arg})

	case *ast.Lambda:
		var body []Term
		inner := &lowerScope{names: map[ast.Expr]ID{}, parent: ls, terms: &body}
		argID := emit(inner, Term{Kind: KArg}) // the argument is always term 0 of its own Fun
		inner.names[n] = argID
		ret := lowerExpr(inner, n.Body)
		terminate(inner, ret)
		return emit(ls, Term{Kind: KFun, FunBody: body, FunName: n.FnName})

	case *ast.Prim:
		args := make([]ID, len(n.Args))
		for i, a := range n.Args {
			args[i] = lowerExpr(ls, a)
		}
		return emit(ls, Term{Kind: KPrim, PrimName: n.Name, PrimArgs: args, PrimData: n.Data})

	case *ast.Construct:
		args := make([]ID, len(n.Args))
		for i, a := range n.Args {
			args[i] = lowerExpr(ls, a)
		}
		return emit(ls, Term{Kind: KCon, ConSum: n.Sum.Name, ConCons: n.Cons.Index, ConArgs: args})

	case *ast.Destruct:
		handlers := make([]ID, len(n.Handlers))
		for i, h := range n.Handlers {
			handlers[i] = lowerExpr(ls, h)
		}
		return emit(ls, Term{Kind: KDes, DesSum: n.Sum.Name, DesHandlers: handlers})

	case *ast.Get:
		arg := lowerExpr(ls, n.Arg)
		return emit(ls, Term{Kind: KGet, GetSum: n.Sum.Name, GetCons: n.Cons.Index, GetIndex: n.Index, GetArg: arg})

	case *ast.DefBinding:
		for i := range n.Vals {
			ls.names[n.Vals[i].Body] = lowerExpr(ls, n.Vals[i].Body)
		}
		// Mutually recursive Funs are lowered as ordinary Lambdas; the
		// resolver has already proven their SCC grouping is sound, so no
		// extra fixpoint machinery is needed at this stage.
		for i := range n.Funs {
			ls.names[n.Funs[i].Body] = lowerExpr(ls, n.Funs[i].Body)
		}
		return lowerExpr(ls, n.Body)

	case *ast.Subscribe:
		return emit(ls, Term{Kind: KPrim, PrimName: "subscribe", PrimData: n.Name})

	case *ast.Match:
		// Should already be compiled away by the resolver (internal/resolve
		// pattern.go); if not, lower only the first arm as a best effort.
		if len(n.Arms) > 0 {
			return lowerExpr(ls, n.Arms[0].Body)
		}
		return emit(ls, Term{Kind: KLit, LitValue: "<empty-match>", LitKind: int(ast.LitString)})

	default:
		return emit(ls, Term{Kind: KLit, LitValue: "<unsupported>", LitKind: int(ast.LitString)})
	}
}
