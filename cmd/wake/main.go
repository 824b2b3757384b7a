// Command wake is the driver binary: it discovers a workspace's tracked
// .wake files, runs them through lex/parse/resolve/typecheck/lower/optimize,
// evaluates the result against a job scheduler and persistent catalog, and
// reports diagnostics batched by stage.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/wake-build/wake/internal/ast"
	"github.com/wake-build/wake/internal/catalog"
	"github.com/wake-build/wake/internal/heap"
	"github.com/wake-build/wake/internal/job"
	"github.com/wake-build/wake/internal/loc"
	"github.com/wake-build/wake/internal/optimize"
	"github.com/wake-build/wake/internal/prim"
	"github.com/wake-build/wake/internal/resolve"
	"github.com/wake-build/wake/internal/runtime"
	"github.com/wake-build/wake/internal/sources"
	"github.com/wake-build/wake/internal/ssa"
	"github.com/wake-build/wake/internal/syntax"
	"github.com/wake-build/wake/internal/typecheck"
	"github.com/wake-build/wake/internal/types"
	"github.com/wake-build/wake/internal/wakeutil"
)

// heapLimit bounds the evaluator's arena; a build graph that needs more
// than this is almost certainly runaway, not merely large.
const heapLimit = 256 << 20

func main() {
	cfg, jobCfg, initDir, targetArgs, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "wake:", err)
		os.Exit(2)
	}

	log := wakeutil.New(wakeutil.Config{
		Level:    levelFor(cfg),
		Colorize: !cfg.NoTTY,
	})

	if initDir != "" {
		if err := sources.Init(initDir); err != nil {
			log.Error("init failed", wakeutil.Err(err))
			os.Exit(1)
		}
		return
	}

	root, err := os.Getwd()
	if err != nil {
		log.Error("getwd failed", wakeutil.Err(err))
		os.Exit(1)
	}

	if err := run(root, cfg, jobCfg, targetArgs, log); err != nil {
		log.Error("build failed", wakeutil.Err(err))
		os.Exit(1)
	}
}

func levelFor(cfg wakeutil.RuntimeConfig) wakeutil.Level {
	switch {
	case cfg.Quiet:
		return wakeutil.Error
	case cfg.Debug:
		return wakeutil.Debug
	case cfg.Verbose:
		return wakeutil.Info
	default:
		return wakeutil.Warn
	}
}

// program accumulates one FileScope per discovered .wake file, in
// discovery order, the way ast.Top expects them.
type program struct {
	files []ast.FileScope
}

func (p *program) addFile(id int, path string, dm *ast.DefMap) {
	p.files = append(p.files, ast.FileScope{ID: id, File: path, DefMap: dm})
}

func (p *program) build(body ast.Expr) *ast.Top {
	globals := map[string]ast.Expr{}
	for _, f := range p.files {
		for _, d := range f.DefMap.Defs {
			if d.Global {
				globals[d.Name] = d.Body
			}
		}
	}
	return &ast.Top{Files: p.files, Globals: globals, Body: body}
}

func run(root string, cfg wakeutil.RuntimeConfig, jobCfg wakeutil.JobConfig, targetArgs []string, log *wakeutil.Logger) error {
	files, err := sources.Discover(root, cfg.NoWorkspace)
	if err != nil {
		return wakeutil.WrapError(err, "discovering sources")
	}

	var wakeFiles []string
	for _, f := range files {
		if strings.HasSuffix(f, ".wake") {
			wakeFiles = append(wakeFiles, f)
		}
	}
	log.Debug("discovered sources", wakeutil.Int("total", len(files)), wakeutil.Int("wake", len(wakeFiles)))

	prog := &program{}
	var diags []error
	for i, path := range wakeFiles {
		src, rerr := os.ReadFile(path)
		if rerr != nil {
			return wakeutil.WrapError(rerr, fmt.Sprintf("reading %q", path))
		}
		lx := syntax.NewLexer(path, string(src))
		toks := lx.Tokens()
		diags = append(diags, lx.Errors()...)

		ps := syntax.NewParser(path, toks)
		dm := ps.ParseFile()
		diags = append(diags, ps.Errors()...)

		prog.addFile(i, path, dm)
	}
	if len(diags) > 0 {
		return batchError(wakeutil.KindLexParse, diags)
	}
	if cfg.StopAfterParse {
		log.Info("stopping after parse", wakeutil.Int("files", len(wakeFiles)))
		return nil
	}

	// The positional argument names the published channel to evaluate
	// (e.g. `wake build`), matching the default build.wake scaffold's
	// `publish target = ...` and falling back to "target" with none given.
	targetName := "target"
	if len(targetArgs) > 0 {
		targetName = strings.Join(targetArgs, " ")
	}
	body := &ast.Subscribe{Name: targetName}
	top := prog.build(body)

	clock := &types.Clock{}
	dist, ctors := buildPrelude(clock)

	registry := prim.NewRegistry()
	prim.RegisterPrelude(registry)

	targets := prim.NewTargetEnv()
	prim.RegisterTargets(registry, targets)

	pools := job.NewPools()
	pools.Register("default", uint32(jobCfg.Jobs))
	pools.Register("network", uint32(jobCfg.PoolCount))

	sched, err := job.NewScheduler(pools, job.ShimLauncher{}, job.DefaultConfig())
	if err != nil {
		return wakeutil.WrapError(err, "starting job scheduler")
	}

	dbPath := filepath.Join(root, "wake.db")
	cat, err := catalog.Open(dbPath, !cfg.NoWait)
	if err != nil {
		return wakeutil.WrapError(err, "opening catalog")
	}
	defer cat.Close()
	log.Info("opened catalog", wakeutil.String("run_tag", cat.RunTag), wakeutil.Int64("run_id", cat.RunID))

	jobEnv := prim.NewJobEnv(sched, cat, "default")
	jobEnv.Check = cfg.Check
	prim.RegisterJobs(registry, jobEnv)

	res := resolve.New(dist, ctors, registry.Arities(), clock)
	resolved := res.ResolveTop(top)
	if errs := res.Errors(); len(errs) > 0 {
		return batchError(wakeutil.KindResolution, errs)
	}

	checker := typecheck.New(dist)
	checker.Infer(resolved)
	if errs := checker.Errors(); len(errs) > 0 {
		return batchError(wakeutil.KindType, errs)
	}
	if cfg.StopAfterType {
		log.Info("stopping after type check")
		return nil
	}

	graph := ssa.Lower(resolved)
	graph = optimize.Run(graph, optimize.DefaultPipeline())

	arena := heap.NewArena(heapLimit)
	rt := runtime.New(arena, registry)
	rt.AddRoot(targets)
	jobEnv.Stack = rt.CallStack

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGXCPU, syscall.SIGXFSZ)
	defer cancel()
	go func() {
		<-ctx.Done()
		log.Warn("signal received, finishing in-flight jobs then stopping")
		rt.ExitASAP = true
	}()

	result, err := drive(rt, graph, ctx.Done())
	if err != nil {
		return wakeutil.WrapError(err, "evaluation")
	}
	for _, miss := range targets.Unfulfilled() {
		log.Warn("target never fulfilled", wakeutil.String("entry", miss))
	}
	if err := cat.SetCriticalPath(); err != nil {
		log.Warn("critical path update failed", wakeutil.Err(err))
	}
	log.Info("build finished", wakeutil.Any("result", describeResult(arena, result)))
	return nil
}

func batchError(kind wakeutil.Kind, errs []error) error {
	bag := &wakeutil.Bag{}
	for _, e := range errs {
		bag.Add(wakeutil.NewDiagnostic(kind, loc.Location{}, e.Error()))
	}
	return bag
}

// drive alternates the evaluator with the job table's wait step: Drain
// runs until every path is finished or blocked on a job, job.WaitAny
// blocks until at least one of those jobs completes, and Resume wakes the
// waiting continuations before the next Drain.
func drive(rt *runtime.Runtime, graph *ssa.Graph, done <-chan struct{}) (heap.Pointer, error) {
	rt.Start(graph)
	for {
		rt.Drain()
		if rt.Done() {
			return rt.Result()
		}
		pending := rt.Pending()
		if len(pending) == 0 {
			return heap.Nil, fmt.Errorf("runtime: evaluation stalled with no ready work and no pending jobs")
		}
		if job.WaitAny(pending, done) == nil {
			return heap.Nil, fmt.Errorf("build cancelled")
		}
		rt.Resume()
	}
}

func describeResult(h *heap.Arena, p heap.Pointer) string {
	switch v := h.Get(p).(type) {
	case *heap.Literal:
		return v.Text
	case *heap.Record:
		return fmt.Sprintf("%s#%d", v.SumName, v.Cons)
	default:
		return fmt.Sprintf("%v", v)
	}
}
