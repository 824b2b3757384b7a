package runtime

import (
	"fmt"

	"github.com/wake-build/wake/internal/heap"
	"github.com/wake-build/wake/internal/job"
	"github.com/wake-build/wake/internal/prim"
	"github.com/wake-build/wake/internal/ssa"
)

// cont is an evaluator continuation, called once a term's value (or
// failure) is known. Suspension points (a non-tail KApp, a job_launch
// that hasn't forked yet) capture one of these instead of returning
// synchronously, so the Go call stack never carries a blocked frame
// waiting on external I/O.
type cont func(rt *Runtime, v heap.Pointer, err error)

// frameRoot is one live Fun activation's GC-traced state: its results
// slots (as they fill in across the body) plus the Scope it closed its
// argument over. Registered on Runtime.frames for the lifetime of the
// call so a GC pass triggered mid-body doesn't lose an in-flight frame
// that isn't reachable from any heap value yet.
type frameRoot struct {
	results []heap.Pointer
	scope   *Scope
	fn      *ssa.Term
}

func (fr *frameRoot) Roots() []*heap.Pointer {
	out := make([]*heap.Pointer, len(fr.results))
	for i := range fr.results {
		out[i] = &fr.results[i]
	}
	if fr.scope != nil {
		out = append(out, fr.scope.Roots()...)
	}
	return out
}

// pendingJob is one suspended job_launch call: its saved arguments (so
// callPrim can be re-invoked once the job finishes) plus the Promise that
// wakes it.
type pendingJob struct {
	job     *job.Job
	args    []heap.Pointer
	promise *Promise
}

func (p *pendingJob) Roots() []*heap.Pointer {
	out := make([]*heap.Pointer, len(p.args))
	for i := range p.args {
		out[i] = &p.args[i]
	}
	return out
}

// ptrRoot adapts a single heap.Pointer field into a heap.Root, for the
// top-level result slot.
type ptrRoot struct{ p *heap.Pointer }

func (r ptrRoot) Roots() []*heap.Pointer { return []*heap.Pointer{r.p} }

// sliceRoot pins an argument vector that has been resolved out of frame
// slots but not yet stored anywhere a collection can see. Without it a
// Collect run by the allocation checkpoint would move the heap and leave
// the local slice holding stale offsets.
type sliceRoot []heap.Pointer

func (s sliceRoot) Roots() []*heap.Pointer {
	out := make([]*heap.Pointer, len(s))
	for i := range s {
		out[i] = &s[i]
	}
	return out
}

// Runtime holds everything one evaluation needs: the heap arena, the
// primitive registry, the live trampoline stack, and the GC roots that
// live outside the heap itself (in-flight frames and suspended jobs).
// The work stack (internal/runtime/work.go) is the re-entry mechanism for
// a continuation woken by job completion.
type Runtime struct {
	Heap  *heap.Arena
	Prims *prim.Registry
	stack workStack

	frames  []*frameRoot
	pending []*pendingJob
	extra   []heap.Root

	finalValue heap.Pointer
	finalErr   error
	finished   bool

	// ExitASAP, once set, makes every further step fail immediately
	// instead of evaluating: a failed job or
	// a ^C sets this instead of unwinding every in-flight Go call frame.
	ExitASAP bool
}

func New(arena *heap.Arena, prims *prim.Registry) *Runtime {
	return &Runtime{Heap: arena, Prims: prims}
}

// Start pushes the initial Work to evaluate g's top-level Fun; call Drain
// to actually run it.
func (rt *Runtime) Start(g *ssa.Graph) {
	rt.stack.push(func(rt *Runtime) {
		rt.pushFrame(&g.Top, nil, func(rt *Runtime, v heap.Pointer, err error) {
			rt.finalValue, rt.finalErr, rt.finished = v, err, true
		})
	})
}

// Drain pops and runs Work until the stack is empty: evaluation finished,
// or every remaining path is blocked on a pending job. One Drain is one
// run of the evaluator; the driver calls Pending/Resume between runs.
func (rt *Runtime) Drain() {
	for {
		w, ok := rt.stack.pop()
		if !ok {
			return
		}
		w(rt)
	}
}

// Done reports whether the top-level Fun has produced its result.
func (rt *Runtime) Done() bool { return rt.finished }

// Result returns the top-level value once Done. Calling it earlier
// returns the zero value.
func (rt *Runtime) Result() (heap.Pointer, error) { return rt.finalValue, rt.finalErr }

// Pending returns every job a suspended continuation is still waiting on,
// for the driver's jobtable.wait() step.
func (rt *Runtime) Pending() []*job.Job {
	out := make([]*job.Job, len(rt.pending))
	for i, p := range rt.pending {
		out[i] = p.job
	}
	return out
}

// Resume fulfills the Promise of every pending job that has reached
// StageFinished, re-queuing its continuation's Work onto the stack, and
// drops it from the pending set. The driver calls this after jobtable.wait()
// reports at least one finished job, then calls Drain again.
func (rt *Runtime) Resume() {
	var still []*pendingJob
	for _, p := range rt.pending {
		if p.job.Stage().Has(job.StageFinished) {
			p.promise.Fulfill(heap.Nil)
		} else {
			still = append(still, p)
		}
	}
	rt.pending = still
}

// Run drives Start/Drain/Pending/Resume to completion in one call, for
// callers (tests, mostly) that don't need the driver's own job-waiting
// step interleaved with anything else. cmd/wake/main.go does not use this:
// its driver loop calls job.WaitAny between runs of the evaluator instead
// of blocking a job's own Wait here.
func (rt *Runtime) Run(g *ssa.Graph) (heap.Pointer, error) {
	rt.Start(g)
	for {
		rt.Drain()
		if rt.Done() {
			return rt.Result()
		}
		pending := rt.Pending()
		if len(pending) == 0 {
			return heap.Nil, fmt.Errorf("runtime: evaluation stalled with no ready work and no pending jobs")
		}
		for _, j := range pending {
			j.Wait()
		}
		rt.Resume()
	}
}

// gcRoots gathers every live root outside the heap itself: every
// in-flight Fun activation, every suspended job_launch's saved arguments,
// and the top-level result slot.
func (rt *Runtime) gcRoots() []heap.Root {
	out := make([]heap.Root, 0, len(rt.frames)+len(rt.pending)+1)
	for _, f := range rt.frames {
		out = append(out, f)
	}
	for _, p := range rt.pending {
		out = append(out, p)
	}
	out = append(out, rt.extra...)
	out = append(out, ptrRoot{&rt.finalValue})
	return out
}

// AddRoot registers a root living outside the runtime itself (the target
// memo tables hold heap values between reads); call before Start.
func (rt *Runtime) AddRoot(r heap.Root) {
	rt.extra = append(rt.extra, r)
}

// CallStack renders the live frame chain, innermost first, from each
// frame's Fun label. The driver passes it to the job primitives, whose
// job rows record it as their stack column at creation.
func (rt *Runtime) CallStack() []string {
	var out []string
	for i := len(rt.frames) - 1; i >= 0; i-- {
		if fr := rt.frames[i]; fr.fn != nil && fr.fn.FunName != "" {
			out = append(out, fr.fn.FunName)
		}
	}
	return out
}

// reserve is the allocation checkpoint: a failed Reserve runs a GC pass
// against every live root plus pinned, the caller's in-flight argument
// vector. Collect rewrites pinned in place, so the caller can keep using
// the slice afterward. Alloc itself never fails, so no retry is needed.
func (rt *Runtime) reserve(n int, pinned []heap.Pointer) {
	if err := rt.Heap.Reserve(n); err != nil {
		roots := rt.gcRoots()
		if len(pinned) > 0 {
			roots = append(roots, sliceRoot(pinned))
		}
		heap.Collect(rt.Heap, roots)
	}
}

func (rt *Runtime) alloc(obj heap.Object) heap.Pointer {
	rt.reserve(1, nil)
	return rt.Heap.Alloc(obj)
}

// primAllocHeadroom is the number of objects reserved before a primitive
// call. A primitive allocates a handful of Literals/Records for its
// result and has no Runtime reference to run checkpoints of its own.
const primAllocHeadroom = 8

func (rt *Runtime) dropFrame(fr *frameRoot) {
	for i := len(rt.frames) - 1; i >= 0; i-- {
		if rt.frames[i] == fr {
			rt.frames = append(rt.frames[:i], rt.frames[i+1:]...)
			return
		}
	}
}

func (rt *Runtime) resolve(scope *Scope, results []heap.Pointer, id ssa.ID) heap.Pointer {
	if id.Depth() == 0 {
		return results[id.Offset()]
	}
	return scope.At(id.Depth()-1, id.Offset())
}

// pushFrame starts evaluating fn's body against scope, registering a
// frameRoot for the call's lifetime, and calls k with its final result.
func (rt *Runtime) pushFrame(fn *ssa.Term, scope *Scope, k cont) {
	if len(fn.FunBody) == 0 {
		k(rt, heap.Nil, nil)
		return
	}
	fr := &frameRoot{results: make([]heap.Pointer, len(fn.FunBody)), scope: scope, fn: fn}
	rt.frames = append(rt.frames, fr)
	rt.runFrame(fr, fn, 0, func(rt *Runtime, v heap.Pointer, err error) {
		rt.dropFrame(fr)
		k(rt, v, err)
	})
}

// runFrame evaluates fn's body from index i onward against fr, calling k
// with the body's final value. A non-tail KApp/KPrim suspends by handing
// its remainder to applyCPS/callPrim as a continuation rather than
// recursing; everything else (literals, closures, constructors, field
// access) steps through a plain loop, since only KApp and KPrim can
// actually suspend. A tail-position KApp reassigns (fn, fr) in place and
// loops instead of recursing, so self-recursive Wake functions don't grow
// the Go stack.
func (rt *Runtime) runFrame(fr *frameRoot, fn *ssa.Term, i int, k cont) {
	for {
		if rt.ExitASAP {
			k(rt, heap.Nil, fmt.Errorf("runtime: evaluation cancelled"))
			return
		}
		t := &fn.FunBody[i]
		last := i == len(fn.FunBody)-1

		switch {
		case last && t.Kind == ssa.KApp:
			fnPtr := rt.resolve(fr.scope, fr.results, t.AppFn)
			argPtr := rt.resolve(fr.scope, fr.results, t.AppArg)
			closure, ok := rt.Heap.Get(fnPtr).(*Closure)
			if !ok {
				k(rt, heap.Nil, fmt.Errorf("runtime: application of a non-function value"))
				return
			}
			if closure.Fun == nil {
				rec, ok := rt.Heap.Get(argPtr).(*heap.Record)
				if !ok || rec.SumName != closure.DesSum {
					k(rt, heap.Nil, fmt.Errorf("runtime: destruct expected a %s value", closure.DesSum))
					return
				}
				if rec.Cons >= len(closure.DesHandlers) {
					k(rt, heap.Nil, fmt.Errorf("runtime: destruct has no handler for constructor %d of %s", rec.Cons, closure.DesSum))
					return
				}
				rt.applyCPS(closure.DesHandlers[rec.Cons], argPtr, k)
				return
			}
			fn = closure.Fun
			fr.fn = fn
			fr.scope = &Scope{Slots: []heap.Pointer{argPtr}, Parent: closure.Outer}
			if len(fn.FunBody) == 0 {
				k(rt, heap.Nil, nil)
				return
			}
			fr.results = make([]heap.Pointer, len(fn.FunBody))
			i = 0
			continue

		case t.Kind == ssa.KApp:
			fnPtr := rt.resolve(fr.scope, fr.results, t.AppFn)
			argPtr := rt.resolve(fr.scope, fr.results, t.AppArg)
			rt.applyCPS(fnPtr, argPtr, func(rt *Runtime, v heap.Pointer, err error) {
				if err != nil {
					k(rt, heap.Nil, err)
					return
				}
				fr.results[i] = v
				rt.runFrame(fr, fn, i+1, k)
			})
			return

		case t.Kind == ssa.KPrim:
			args := make([]heap.Pointer, len(t.PrimArgs))
			for j, a := range t.PrimArgs {
				args[j] = rt.resolve(fr.scope, fr.results, a)
			}
			rt.callPrim(t.PrimName, args, func(rt *Runtime, v heap.Pointer, err error) {
				if err != nil {
					k(rt, heap.Nil, err)
					return
				}
				if last {
					k(rt, v, nil)
					return
				}
				fr.results[i] = v
				rt.runFrame(fr, fn, i+1, k)
			})
			return

		default:
			v, err := rt.evalSimple(t, fr.scope, fr.results)
			if err != nil {
				k(rt, heap.Nil, err)
				return
			}
			if last {
				k(rt, v, nil)
				return
			}
			fr.results[i] = v
			i++
		}
	}
}

// applyCPS invokes a closure on one argument in continuation-passing
// style: the common non-tail case a runFrame KApp branch above hands off
// to, and also the direct entry for a destruct's handler dispatch.
func (rt *Runtime) applyCPS(fnPtr, argPtr heap.Pointer, k cont) {
	closure, ok := rt.Heap.Get(fnPtr).(*Closure)
	if !ok {
		k(rt, heap.Nil, fmt.Errorf("runtime: application of a non-function value"))
		return
	}
	if closure.Fun == nil {
		rec, ok := rt.Heap.Get(argPtr).(*heap.Record)
		if !ok || rec.SumName != closure.DesSum {
			k(rt, heap.Nil, fmt.Errorf("runtime: destruct expected a %s value", closure.DesSum))
			return
		}
		if rec.Cons >= len(closure.DesHandlers) {
			k(rt, heap.Nil, fmt.Errorf("runtime: destruct has no handler for constructor %d of %s", rec.Cons, closure.DesSum))
			return
		}
		rt.applyCPS(closure.DesHandlers[rec.Cons], argPtr, k)
		return
	}
	callScope := &Scope{Slots: []heap.Pointer{argPtr}, Parent: closure.Outer}
	rt.pushFrame(closure.Fun, callScope, k)
}

// callPrim invokes a primitive. A *prim.Suspend return parks the call on
// a Promise instead of blocking; the Work is pushed back onto rt.stack
// once the job finishes, and the re-run finds the job StageFinished and
// takes the normal return path.
func (rt *Runtime) callPrim(name string, args []heap.Pointer, k cont) {
	rt.reserve(primAllocHeadroom, args)
	v, err := rt.Prims.Call(rt.Heap, name, args)
	sus, ok := err.(*prim.Suspend)
	if !ok {
		k(rt, v, err)
		return
	}
	pj := &pendingJob{job: sus.Job, args: args, promise: NewPromise()}
	pj.promise.Await(func(heap.Pointer) {
		rt.stack.push(func(rt *Runtime) { rt.callPrim(name, pj.args, k) })
	})
	rt.pending = append(rt.pending, pj)
}

func (rt *Runtime) evalSimple(t *ssa.Term, scope *Scope, results []heap.Pointer) (heap.Pointer, error) {
	switch t.Kind {
	case ssa.KArg:
		return scope.Slots[0], nil

	case ssa.KLit:
		return rt.alloc(&heap.Literal{Tag: litTag(t.LitKind), Text: t.LitValue}), nil

	case ssa.KFun:
		return rt.alloc(&Closure{Fun: t, Outer: scope}), nil

	case ssa.KCon:
		args := make([]heap.Pointer, len(t.ConArgs))
		for i, a := range t.ConArgs {
			args[i] = rt.resolve(scope, results, a)
		}
		rt.reserve(1, args)
		return rt.Heap.Alloc(&heap.Record{SumName: t.ConSum, Cons: t.ConCons, Args: args}), nil

	case ssa.KGet:
		argPtr := rt.resolve(scope, results, t.GetArg)
		rec, ok := rt.Heap.Get(argPtr).(*heap.Record)
		if !ok || rec.SumName != t.GetSum || rec.Cons != t.GetCons {
			return heap.Nil, fmt.Errorf("runtime: Get expected %s constructor %d, found mismatched value", t.GetSum, t.GetCons)
		}
		if t.GetIndex >= len(rec.Args) {
			return heap.Nil, fmt.Errorf("runtime: Get index %d out of range for %s", t.GetIndex, t.GetSum)
		}
		return rec.Args[t.GetIndex], nil

	case ssa.KDes:
		handlers := make([]heap.Pointer, len(t.DesHandlers))
		for i, h := range t.DesHandlers {
			handlers[i] = rt.resolve(scope, results, h)
		}
		rt.reserve(1, handlers)
		return rt.Heap.Alloc(&Closure{DesHandlers: handlers, DesSum: t.DesSum}), nil

	default:
		return heap.Nil, fmt.Errorf("runtime: unhandled term kind %d", t.Kind)
	}
}

func litTag(kind int) uint8 {
	switch kind {
	case 1:
		return heap.VDouble
	case 2:
		return heap.VString
	case 3:
		return heap.VRegExp
	default:
		return heap.VInteger
	}
}
