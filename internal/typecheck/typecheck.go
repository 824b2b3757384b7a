// Package typecheck drives internal/types' union-find inferencer over a
// resolved internal/ast tree, annotating every node's TypeVar field.
package typecheck

import (
	"fmt"

	"github.com/wake-build/wake/internal/ast"
	"github.com/wake-build/wake/internal/types"
)

// Checker walks a resolved ast.Expr tree, assigning and unifying TypeVars.
type Checker struct {
	clock *types.Clock
	inf   *types.Inferer
	env   map[ast.Expr]*types.Scheme // Lambda/DefBinding binder -> generalized scheme, keyed by binder identity
}

func New(sums *types.Distinguished) *Checker {
	clock := &types.Clock{}
	return &Checker{clock: clock, inf: types.NewInferer(clock, sums), env: map[ast.Expr]*types.Scheme{}}
}

func (c *Checker) Errors() []error { return c.inf.Errors() }

// Infer assigns e.TypeVar() (and every subexpression's) and returns it.
func (c *Checker) Infer(e ast.Expr) *types.TypeVar {
	if e == nil {
		return types.NewFree(c.clock)
	}
	tv := c.infer(e)
	e.SetTypeVar(tv)
	return tv
}

func (c *Checker) infer(e ast.Expr) *types.TypeVar {
	switch n := e.(type) {
	case *ast.Literal:
		switch n.Kind {
		case ast.LitInteger:
			return types.NewCon(c.clock, "Integer")
		case ast.LitDouble:
			return types.NewCon(c.clock, "Double")
		case ast.LitString:
			return types.NewCon(c.clock, "String")
		case ast.LitRegExp:
			return types.NewCon(c.clock, "RegExp")
		}
		return types.NewFree(c.clock)

	case *ast.VarRef:
		if n.Target != nil {
			if sc, ok := c.env[n.Target]; ok {
				return types.Instantiate(c.clock, sc.Body, sc.Quantified)
			}
			return c.Infer(n.Target)
		}
		return types.NewFree(c.clock)

	case *ast.Lambda:
		argTV := types.NewFree(c.clock)
		c.env[e] = &types.Scheme{Body: argTV} // monomorphic while the body is checked
		bodyTV := c.Infer(n.Body)
		return c.inf.FreshFn(argTV, bodyTV)

	case *ast.App:
		fnTV := c.Infer(n.Fn)
		argTV, retTV := c.inf.Fn(loc(n), fnTV)
		valTV := c.Infer(n.Val)
		c.inf.Unify(loc(n), argTV, valTV)
		return retTV

	case *ast.Prim:
		for _, a := range n.Args {
			c.Infer(a)
		}
		return types.NewFree(c.clock)

	case *ast.Subscribe:
		return types.NewCon(c.clock, "List", types.NewFree(c.clock))

	case *ast.Construct:
		for i, a := range n.Args {
			argTV := c.Infer(a)
			if i < len(n.Cons.Args) {
				c.inf.Unify(loc(n), argTV, n.Cons.Args[i])
			}
		}
		return sumType(c.clock, n.Sum)

	case *ast.Destruct:
		sumTV := sumType(c.clock, n.Sum)
		var result *types.TypeVar
		for i, h := range n.Handlers {
			hTV := c.Infer(h)
			_, ret := c.inf.Fn(loc(n), hTV)
			if i == 0 {
				result = ret
			} else {
				c.inf.Unify(loc(n), result, ret)
			}
		}
		if result == nil {
			result = types.NewFree(c.clock)
		}
		self := c.inf.FreshFn(sumTV, result)
		return self

	case *ast.Get:
		argTV := c.Infer(n.Arg)
		c.inf.Unify(loc(n), argTV, sumType(c.clock, n.Sum))
		if n.Index < len(n.Cons.Args) {
			return n.Cons.Args[n.Index]
		}
		return types.NewFree(c.clock)

	case *ast.DefBinding:
		since := c.clock.Tick()
		for i := range n.Vals {
			tv := c.Infer(n.Vals[i].Body)
			c.env[n.Vals[i].Body] = c.inf.GeneralizeScheme(tv, since)
		}
		groupStart := 0
		for groupStart < len(n.Funs) {
			end := groupStart
			for end < len(n.Funs) && n.SCC[end] == n.SCC[groupStart] {
				end++
			}
			for i := groupStart; i < end; i++ {
				tv := c.Infer(n.Funs[i].Body)
				c.env[n.Funs[i].Body] = &types.Scheme{Body: tv}
			}
			for i := groupStart; i < end; i++ {
				sc := c.env[n.Funs[i].Body]
				sc.Quantified = types.Generalize(sc.Body, since)
			}
			groupStart = end
		}
		return c.Infer(n.Body)

	case *ast.Match:
		// Match nodes should have been compiled away by the resolver; if
		// one survives, fall back to inferring its first arm only.
		if len(n.Arms) > 0 {
			return c.Infer(n.Arms[0].Body)
		}
		return types.NewFree(c.clock)

	default:
		return types.NewFree(c.clock)
	}
}

func sumType(clock *types.Clock, sum *types.Sum) *types.TypeVar {
	children := make([]*types.TypeVar, len(sum.Params))
	copy(children, sum.Params)
	return types.NewCon(clock, sum.Name, children...)
}

func loc(e ast.Expr) string {
	return fmt.Sprintf("%s", e.Location())
}
