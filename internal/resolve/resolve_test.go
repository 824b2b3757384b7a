package resolve

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wake-build/wake/internal/ast"
	"github.com/wake-build/wake/internal/syntax"
	"github.com/wake-build/wake/internal/types"
)

func parseOne(t *testing.T, src string) *ast.DefMap {
	t.Helper()
	lx := syntax.NewLexer("test.wake", src)
	toks := lx.Tokens()
	require.Empty(t, lx.Errors())
	ps := syntax.NewParser("test.wake", toks)
	dm := ps.ParseFile()
	require.Empty(t, ps.Errors())
	return dm
}

func newTestResolver() *Resolver {
	return New(&types.Distinguished{}, map[string]*types.Sum{}, map[string]int{
		"integer_add": 2,
	}, &types.Clock{})
}

// TestValueDefinitionCycle: two mutually
// referential non-function bindings must be reported as a value cycle.
func TestValueDefinitionCycle(t *testing.T) {
	dm := parseOne(t, "def a = b + 1\ndef b = a + 1\n")
	r := newTestResolver()
	r.resolveDefMap(dm, nil)

	errs := r.Errors()
	require.NotEmpty(t, errs, "mutually recursive value bindings must be rejected")
	joined := errs[0].Error()
	assert.Contains(t, joined, "value definition cycle")
	assert.Contains(t, joined, "a at")
	assert.Contains(t, joined, "b at")
}

// TestMutualRecursionAmongFunctionsIsAllowed ensures ordinary mutually
// recursive functions (Lambda-valued) are NOT flagged as a value cycle.
func TestMutualRecursionAmongFunctionsIsAllowed(t *testing.T) {
	dm := parseOne(t, "def isEven n = isOdd n\ndef isOdd n = isEven n\n")
	r := newTestResolver()
	r.resolveDefMap(dm, nil)
	assert.Empty(t, r.Errors())
}

// TestSelfReferentialValueIsACycle covers the boundary case: a val
// referencing only itself must also be rejected, not loop forever.
func TestSelfReferentialValueIsACycle(t *testing.T) {
	dm := parseOne(t, "def a = a\n")
	r := newTestResolver()
	r.resolveDefMap(dm, nil)

	errs := r.Errors()
	require.NotEmpty(t, errs)
	assert.True(t, strings.Contains(errs[0].Error(), "value definition cycle"))
}

func boolResolver() *Resolver {
	boolean := &types.Sum{Name: "Boolean"}
	boolean.Members = []*types.Constructor{
		{Name: "True", Index: 0},
		{Name: "False", Index: 1},
	}
	return New(&types.Distinguished{Boolean: boolean}, map[string]*types.Sum{
		"True":  boolean,
		"False": boolean,
	}, map[string]int{"integer_eq": 2}, &types.Clock{})
}

// TestNonExhaustiveMatch: a match over Boolean covering only True must be
// rejected at resolve time, naming the missing constructor.
func TestNonExhaustiveMatch(t *testing.T) {
	dm := parseOne(t, "def f x = match x\n    True = 1\n")
	r := boolResolver()
	r.resolveDefMap(dm, nil)

	errs := r.Errors()
	require.NotEmpty(t, errs, "a match missing a constructor must be rejected")
	assert.Contains(t, errs[0].Error(), "Non-exhaustive match")
	assert.Contains(t, errs[0].Error(), "False")
}

// TestExhaustiveMatchAccepted: covering every constructor (or ending in a
// wildcard) must produce no diagnostics.
func TestExhaustiveMatchAccepted(t *testing.T) {
	dm := parseOne(t, "def f x = match x\n    True = 1\n    False = 0\n")
	r := boolResolver()
	r.resolveDefMap(dm, nil)
	assert.Empty(t, r.Errors())

	dm2 := parseOne(t, "def g x = match x\n    True = 1\n    y = 0\n")
	r2 := boolResolver()
	r2.resolveDefMap(dm2, nil)
	assert.Empty(t, r2.Errors())
}

// TestUnreachablePattern: an arm shadowed by an earlier catch-all must be
// flagged.
func TestUnreachablePattern(t *testing.T) {
	dm := parseOne(t, "def f x = match x\n    y = 0\n    True = 1\n")
	r := boolResolver()
	r.resolveDefMap(dm, nil)

	errs := r.Errors()
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Error(), "unreachable pattern")
}

// TestLiteralPatternDesugarsToGuard: a literal arm must compile into an
// equality guard, not silently behave as a catch-all.
func TestLiteralPatternDesugarsToGuard(t *testing.T) {
	dm := parseOne(t, "def f x = match x\n    1 = 10\n    y = 0\n")
	r := boolResolver()
	r.resolveDefMap(dm, nil)
	require.Empty(t, r.Errors())

	var found bool
	var walk func(e ast.Expr)
	walk = func(e ast.Expr) {
		switch n := e.(type) {
		case *ast.Prim:
			if n.Name == "integer_eq" {
				found = true
			}
			for _, a := range n.Args {
				walk(a)
			}
		case *ast.App:
			walk(n.Fn)
			walk(n.Val)
		case *ast.Lambda:
			walk(n.Body)
		case *ast.Destruct:
			for _, h := range n.Handlers {
				walk(h)
			}
		case *ast.DefBinding:
			for _, d := range n.Vals {
				walk(d.Body)
			}
			for _, d := range n.Funs {
				walk(d.Body)
			}
			walk(n.Body)
		}
	}
	for _, d := range dm.Defs {
		walk(d.Body)
	}
	assert.True(t, found, "the literal arm must compile to an integer_eq guard")
}

func listOnlyResolver() *Resolver {
	list := &types.Sum{Name: "List"}
	list.Members = []*types.Constructor{
		{Name: "Nil", Index: 0},
		{Name: "Cons", Index: 1},
	}
	return New(&types.Distinguished{List: list}, map[string]*types.Sum{
		"Nil":  list,
		"Cons": list,
	}, map[string]int{}, &types.Clock{})
}

// TestPublishChainsOntoOuterScope: a published name becomes a
// depth-qualified binding whose body appends onto the outer chain, and a
// Subscribe in the same scope resolves to it.
func TestPublishChainsOntoOuterScope(t *testing.T) {
	dm := parseOne(t, "def x = Nil\npublish flags = x\n")
	dm.Body = &ast.Subscribe{Name: "flags"}

	r := listOnlyResolver()
	db := r.resolveDefMap(dm, nil)
	require.Empty(t, r.Errors())

	var pub *ast.Def
	for i := range db.Vals {
		if db.Vals[i].Name == "publish 0 flags" {
			pub = &db.Vals[i]
		}
	}
	require.NotNil(t, pub, "the publish must be renamed to its depth-qualified form")
	p, ok := pub.Body.(*ast.Prim)
	require.True(t, ok, "a publish body must append onto its parent chain")
	assert.Equal(t, "list_cat", p.Name)
	require.Len(t, p.Args, 2)
	_, isNil := p.Args[1].(*ast.Construct)
	assert.True(t, isNil, "with no outer publish the chain must terminate in Nil")

	vr, ok := db.Body.(*ast.VarRef)
	require.True(t, ok, "Subscribe must resolve to the innermost publish binding")
	assert.Equal(t, "publish 0 flags", vr.Name)
}

// TestSubscribeWithoutPublishIsNil: a subscription no scope ever published
// observes the empty list, not an error.
func TestSubscribeWithoutPublishIsNil(t *testing.T) {
	dm := parseOne(t, "def x = Nil\n")
	dm.Body = &ast.Subscribe{Name: "flags"}

	r := listOnlyResolver()
	db := r.resolveDefMap(dm, nil)
	require.Empty(t, r.Errors())

	c, ok := db.Body.(*ast.Construct)
	require.True(t, ok)
	assert.Equal(t, "List", c.Sum.Name)
	assert.Equal(t, 0, c.Cons.Index)
}

// TestRepublishInSameScopeChains: publishing the same name twice in one
// scope links the second onto the first, and Subscribe sees the last.
func TestRepublishInSameScopeChains(t *testing.T) {
	dm := parseOne(t, "def x = Nil\npublish flags = x\npublish flags = x\n")
	dm.Body = &ast.Subscribe{Name: "flags"}

	r := listOnlyResolver()
	db := r.resolveDefMap(dm, nil)
	require.Empty(t, r.Errors())

	names := map[string]bool{}
	for _, d := range db.Vals {
		names[d.Name] = true
	}
	assert.True(t, names["publish 0 flags"], "the last publish holds the canonical chain")
	assert.True(t, names["publish 0 flags #1"], "the earlier publish is renamed out of the way but kept")

	vr, ok := db.Body.(*ast.VarRef)
	require.True(t, ok)
	assert.Equal(t, "publish 0 flags", vr.Name)
}

// TestPublishChainsAcrossFiles: a publish in a later file appends onto an
// earlier file's chain, and the top-level Subscribe sees the later link.
func TestPublishChainsAcrossFiles(t *testing.T) {
	dm1 := parseOne(t, "def a = Nil\npublish flags = a\n")
	dm2 := parseOne(t, "def b = Nil\npublish flags = b\n")

	r := listOnlyResolver()
	top := &ast.Top{
		Files: []ast.FileScope{
			{ID: 0, File: "one.wake", DefMap: dm1},
			{ID: 1, File: "two.wake", DefMap: dm2},
		},
		Body: &ast.Subscribe{Name: "flags"},
	}
	resolved := r.ResolveTop(top)
	require.Empty(t, r.Errors())

	outer, ok := resolved.(*ast.DefBinding)
	require.True(t, ok)
	inner, ok := outer.Body.(*ast.DefBinding)
	require.True(t, ok, "the second file must nest inside the first")

	vr, ok := inner.Body.(*ast.VarRef)
	require.True(t, ok, "Subscribe must resolve to the innermost publish")
	assert.Equal(t, "publish 2 flags", vr.Name)

	var link *ast.Def
	for i := range inner.Vals {
		if inner.Vals[i].Name == "publish 2 flags" {
			link = &inner.Vals[i]
		}
	}
	require.NotNil(t, link)
	p, ok := link.Body.(*ast.Prim)
	require.True(t, ok)
	parent, ok := p.Args[1].(*ast.VarRef)
	require.True(t, ok, "the inner file's chain must append onto the outer file's")
	assert.Equal(t, "publish 1 flags", parent.Name)
}

// TestUserDataDeclarationRegistersConstructors exercises a user `data`
// declaration end to end: a zero-arity and a one-arity constructor must
// both resolve to Construct nodes, the way a prelude constructor (True,
// Cons, ...) does.
func TestUserDataDeclarationRegistersConstructors(t *testing.T) {
	dm := parseOne(t, "data Box a = Empty | Full a\ndef x = Full 1\ndef y = Empty\n")
	require.Len(t, dm.Datas, 1)
	require.Len(t, dm.Datas[0].Ctors, 2)

	r := newTestResolver()
	top := &ast.Top{Files: []ast.FileScope{{ID: 0, File: "test.wake", DefMap: dm}}}
	r.ResolveTop(top)
	require.Empty(t, r.Errors())

	sum, ok := r.dist["Full"]
	require.True(t, ok, "Full must be registered as a constructor of the Box sum")
	assert.Equal(t, "Box", sum.Name)
	full := sum.IndexOf("Full")
	require.NotNil(t, full)
	assert.Len(t, full.Args, 1)

	empty := sum.IndexOf("Empty")
	require.NotNil(t, empty)
	assert.Empty(t, empty.Args)
}

// TestUserDataDeclarationSelfReference covers a recursive field (`Cons a
// (List a)`-shaped): the self-referential argument must type as the sum
// applied to its own parameters, not an unrelated fresh variable.
func TestUserDataDeclarationSelfReference(t *testing.T) {
	dm := parseOne(t, "data Stream a = More a (Stream a)\n")
	r := newTestResolver()
	top := &ast.Top{Files: []ast.FileScope{{ID: 0, File: "test.wake", DefMap: dm}}}
	r.ResolveTop(top)
	require.Empty(t, r.Errors())

	sum := r.dist["More"]
	require.NotNil(t, sum)
	more := sum.IndexOf("More")
	require.Len(t, more.Args, 2)
	assert.Equal(t, "Stream", more.Args[1].Find().Name, "the recursive field must be a Stream type application")
}
