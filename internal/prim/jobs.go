package prim

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/wake-build/wake/internal/catalog"
	"github.com/wake-build/wake/internal/heap"
	"github.com/wake-build/wake/internal/job"
	"github.com/wake-build/wake/internal/wakehash"
)

// Suspend is the sentinel error job_launch returns while its job is
// still in flight. Fn has no Runtime reference to suspend through, so a
// typed error is how callPrim recognizes "re-invoke me once Job is done"
// rather than a genuine failure.
type Suspend struct{ Job *job.Job }

func (s *Suspend) Error() string {
	return fmt.Sprintf("prim: job %d has not finished", s.Job.ID)
}

// JobEnv is the native state job_create/job_launch/job_output/job_status
// close over: the pool-budgeted scheduler, the persistent catalog, and a
// per-run file hash cache, threaded explicitly rather than reached
// through a package-level global.
type JobEnv struct {
	Scheduler *job.Scheduler
	Catalog   *catalog.Catalog
	Pool      string

	// Check forces a rerun on every cache hit (the reproducibility-audit
	// mode): the hit is still looked up, so use_id advances and the prior
	// row stays comparable, but the job forks again regardless.
	Check bool

	// Stack, when set, snapshots the evaluator's live call chain at
	// job_create time for the job row's stack column. Injected by the
	// driver since this package has no runtime reference of its own.
	Stack func() []string

	mu   sync.Mutex
	jobs map[int64]*job.Job

	hashMu sync.Mutex
	hashes map[string]wakehash.Sum
}

func NewJobEnv(sched *job.Scheduler, cat *catalog.Catalog, pool string) *JobEnv {
	return &JobEnv{
		Scheduler: sched,
		Catalog:   cat,
		Pool:      pool,
		jobs:      map[int64]*job.Job{},
		hashes:    map[string]wakehash.Sum{},
	}
}

func (e *JobEnv) register(j *job.Job) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.jobs[j.ID] = j
}

func (e *JobEnv) lookup(id int64) (*job.Job, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, ok := e.jobs[id]
	return j, ok
}

// hashPath hashes path at most once per process lifetime, an in-memory
// cache in front of AddHash, so a plan that reads the same input file
// from many jobs doesn't rehash it per job_create call.
func (e *JobEnv) hashPath(path string) (wakehash.Sum, error) {
	e.hashMu.Lock()
	if sum, ok := e.hashes[path]; ok {
		e.hashMu.Unlock()
		return sum, nil
	}
	e.hashMu.Unlock()

	sum, err := wakehash.HashPath(path)
	if err != nil {
		return "", err
	}
	e.hashMu.Lock()
	e.hashes[path] = sum
	e.hashMu.Unlock()
	return sum, nil
}

// RegisterJobs installs the job-subsystem primitives into r.
func RegisterJobs(r *Registry, env *JobEnv) {
	r.Register(Entry{Name: "job_create", Arity: 8, Pure: false, Fn: env.create})
	r.Register(Entry{Name: "job_launch", Arity: 1, Pure: false, Fn: env.launch})
	r.Register(Entry{Name: "job_virtual", Arity: 3, Pure: false, Fn: env.virtual})
	r.Register(Entry{Name: "job_output", Arity: 2, Pure: false, Fn: env.output})
	r.Register(Entry{Name: "job_status", Arity: 1, Pure: false, Fn: env.status})
}

func jobHandle(h *heap.Arena, id int64) heap.Pointer {
	idLit := h.Alloc(&heap.Literal{Tag: heap.VInteger, Text: strconv.FormatInt(id, 10)})
	return h.Alloc(&heap.Record{SumName: "Job", Cons: 0, Args: []heap.Pointer{idLit}})
}

func jobIDFromHandle(h *heap.Arena, p heap.Pointer) (int64, error) {
	rec, ok := h.Get(p).(*heap.Record)
	if !ok || rec.SumName != "Job" || len(rec.Args) != 1 {
		return 0, fmt.Errorf("prim: expected a Job value")
	}
	lit, ok := h.Get(rec.Args[0]).(*heap.Literal)
	if !ok {
		return 0, fmt.Errorf("prim: malformed Job handle")
	}
	return strconv.ParseInt(lit.Text, 10, 64)
}

// create implements prim_job_create/prim_job_cache: args are
// [directory, stdin, environment:List<String>, commandline:List<String>,
// label, keep:Boolean, fn_inputs:List<String>, fn_outputs:List<String>].
// fn_inputs/fn_outputs are the caller's declared file dependencies. Each
// declared input is hashed up front and the hash recorded in the catalog,
// so the visible set reflects exactly the inputs this call can vouch for,
// the evidence ReuseJob needs to decide a cache hit.
func (e *JobEnv) create(h *heap.Arena, args []heap.Pointer) (heap.Pointer, error) {
	directory, err := asString(h, args[0])
	if err != nil {
		return heap.Nil, err
	}
	stdin, err := asString(h, args[1])
	if err != nil {
		return heap.Nil, err
	}
	env, err := listToStrings(h, args[2])
	if err != nil {
		return heap.Nil, err
	}
	cmd, err := listToStrings(h, args[3])
	if err != nil {
		return heap.Nil, err
	}
	label, err := asString(h, args[4])
	if err != nil {
		return heap.Nil, err
	}
	keep, err := asBool(h, args[5])
	if err != nil {
		return heap.Nil, err
	}
	fnInputs, err := listToStrings(h, args[6])
	if err != nil {
		return heap.Nil, err
	}
	fnOutputs, err := listToStrings(h, args[7])
	if err != nil {
		return heap.Nil, err
	}

	id := catalog.Identity{
		Directory:   directory,
		Commandline: strings.Join(cmd, "\x1f"),
		Environment: strings.Join(env, "\x1f"),
		Stdin:       stdin,
	}
	sig := catalog.Signature{FnInputs: fnInputs, FnOutputs: fnOutputs, Keep: keep}

	visible := map[string]bool{}
	for _, path := range fnInputs {
		sum, err := e.hashPath(path)
		if err != nil {
			// An input that can't be hashed (missing, unreadable) simply
			// isn't visible; ReuseJob treats any cached job depending on
			// it as a miss, same as a changed hash would.
			continue
		}
		if err := e.Catalog.AddHash(path, sum, 0); err != nil {
			return heap.Nil, fmt.Errorf("prim: job_create: recording hash of %q: %w", path, err)
		}
		visible[path] = true
	}

	row, err := e.Catalog.ReuseJob(id, sig, visible)
	if err != nil {
		return heap.Nil, fmt.Errorf("prim: job_cache: %w", err)
	}
	if row != nil && !e.Check {
		j := job.New(row.JobID, e.Pool, directory, cmd, env, stdin)
		j.Inputs, j.Outputs, j.Visible = fnInputs, fnOutputs, keysOf(visible)
		j.Replayed = true
		j.Stdout = e.replayOutput(row.JobID, catalog.DescriptorStdout)
		j.Stderr = e.replayOutput(row.JobID, catalog.DescriptorStderr)
		j.Advance(job.StageForked)
		j.Advance(job.StageStdout)
		j.Advance(job.StageStderr)
		j.Advance(job.StageMerged)
		j.Advance(job.StageFinished)
		e.register(j)
		return jobHandle(h, j.ID), nil
	}

	stack := ""
	if e.Stack != nil {
		stack = strings.Join(e.Stack(), "\n")
	}
	jobID, err := e.Catalog.CreateJob(id, sig, label, stack, keep)
	if err != nil {
		return heap.Nil, fmt.Errorf("prim: job_create: %w", err)
	}
	j := job.New(jobID, e.Pool, directory, cmd, env, stdin)
	j.Inputs, j.Outputs, j.Visible = fnInputs, fnOutputs, keysOf(visible)
	e.register(j)
	return jobHandle(h, j.ID), nil
}

func keysOf(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// launch implements prim_job_launch: submits the job to the scheduler
// (a cache hit is already StageFinished and skips forking) and returns
// *Suspend until the job completes rather than blocking. Once finished,
// it runs the catalog's finish/conflict bookkeeping and returns a Result:
// `Ok job` on a clean exit, `Fail diagnostic` otherwise.
func (e *JobEnv) launch(h *heap.Arena, args []heap.Pointer) (heap.Pointer, error) {
	id, err := jobIDFromHandle(h, args[0])
	if err != nil {
		return heap.Nil, err
	}
	j, ok := e.lookup(id)
	if !ok {
		return heap.Nil, fmt.Errorf("prim: job_launch: unknown job %d", id)
	}

	if !j.Stage().Has(job.StageForked) && !j.Stage().Has(job.StageFinished) {
		if err := e.Scheduler.Submit(context.Background(), j); err != nil {
			return resultFail(h, err.Error()), nil
		}
	}
	if !j.Stage().Has(job.StageFinished) {
		return heap.Nil, &Suspend{Job: j}
	}

	if j.Replayed {
		// A cache hit already has its files, stats and log rows from the
		// run that produced it; rerunning the finish bookkeeping would
		// duplicate them against a zeroed Usage.
		return resultOK(h, jobHandle(h, j.ID)), nil
	}
	return e.finish(h, j)
}

// virtual completes a job whose work is internal (hashing, synthesized
// results): args are [job, stdout, stderr]. The caller supplies the
// streams directly, the job skips the scheduler entirely, and the usual
// finish bookkeeping runs against a zero-fork Usage.
func (e *JobEnv) virtual(h *heap.Arena, args []heap.Pointer) (heap.Pointer, error) {
	id, err := jobIDFromHandle(h, args[0])
	if err != nil {
		return heap.Nil, err
	}
	j, ok := e.lookup(id)
	if !ok {
		return heap.Nil, fmt.Errorf("prim: job_virtual: unknown job %d", id)
	}
	if j.Stage().Has(job.StageFinished) {
		return heap.Nil, fmt.Errorf("prim: job_virtual: job %d already completed", id)
	}
	stdout, err := asString(h, args[1])
	if err != nil {
		return heap.Nil, err
	}
	stderr, err := asString(h, args[2])
	if err != nil {
		return heap.Nil, err
	}
	j.Virtual([]byte(stdout), []byte(stderr), job.Usage{})
	j.Advance(job.StageFinished)
	return e.finish(h, j)
}

// replayOutput reads a reused job's logged stream back out of the catalog,
// decompressing chunk by chunk. A job with no logged output (or an
// unreadable log) replays as empty rather than failing the hit.
func (e *JobEnv) replayOutput(jobID int64, desc catalog.Descriptor) []byte {
	chunks, err := e.Catalog.ReadOutput(jobID, desc)
	if err != nil {
		return nil
	}
	var out []byte
	for _, chunk := range chunks {
		raw, err := job.DecompressOutput(chunk)
		if err != nil {
			return nil
		}
		out = append(out, raw...)
	}
	return out
}

// saveOutput compresses and logs one finished stream; a failure to log is
// reported but doesn't fail the job, since the process itself succeeded.
func (e *JobEnv) saveOutput(j *job.Job, desc catalog.Descriptor, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	comp, err := job.CompressOutput(data)
	if err != nil {
		return err
	}
	return e.Catalog.SaveOutput(j.ID, desc, comp, j.Usage.Runtime.Seconds())
}

// finish runs prim_job_finish's catalog bookkeeping for a job that has
// just reached StageFinished: records its declared/visible files and
// stats, reconciles prior/overlapping rows, and turns the process exit
// status into the Result job_launch returns.
func (e *JobEnv) finish(h *heap.Arena, j *job.Job) (heap.Pointer, error) {
	stat := catalog.Stat{
		Status:   j.Status,
		Runtime:  j.Usage.Runtime.Seconds(),
		CPUTime:  j.Usage.CPUTime.Seconds(),
		MemBytes: j.Usage.MemBytes,
		IBytes:   j.Usage.IBytes,
		OBytes:   j.Usage.OBytes,
		EndTime:  j.EndTime.Unix(),
	}
	if err := e.Catalog.FinishJob(j.ID, j.Visible, j.Inputs, j.Outputs, stat); err != nil {
		return resultFail(h, err.Error()), nil
	}
	if err := e.saveOutput(j, catalog.DescriptorStdout, j.Stdout); err != nil {
		return resultFail(h, err.Error()), nil
	}
	if err := e.saveOutput(j, catalog.DescriptorStderr, j.Stderr); err != nil {
		return resultFail(h, err.Error()), nil
	}
	if err := e.Catalog.DeletePrior(j.ID); err != nil {
		return resultFail(h, err.Error()), nil
	}
	if err := e.Catalog.DeleteOverlap(j.ID); err != nil {
		return resultFail(h, err.Error()), nil
	}
	if err := e.Catalog.DetectOverlap(j.ID); err != nil {
		return resultFail(h, err.Error()), nil
	}

	if launchErr := j.LaunchErr(); launchErr != nil {
		return resultFail(h, launchErr.Error()), nil
	}
	if j.Status != 0 {
		return resultFail(h, fmt.Sprintf("job %d exited with status %d", j.ID, j.Status)), nil
	}
	return resultOK(h, jobHandle(h, j.ID)), nil
}

func resultOK(h *heap.Arena, value heap.Pointer) heap.Pointer {
	return h.Alloc(&heap.Record{SumName: "Result", Cons: 0, Args: []heap.Pointer{value}})
}

func resultFail(h *heap.Arena, msg string) heap.Pointer {
	lit := h.Alloc(&heap.Literal{Tag: heap.VString, Text: msg})
	return h.Alloc(&heap.Record{SumName: "Result", Cons: 1, Args: []heap.Pointer{lit}})
}

// output implements reading a finished job's captured output: args are
// [job, which] where which is 0 for stdout, 1 for stderr.
func (e *JobEnv) output(h *heap.Arena, args []heap.Pointer) (heap.Pointer, error) {
	id, err := jobIDFromHandle(h, args[0])
	if err != nil {
		return heap.Nil, err
	}
	j, ok := e.lookup(id)
	if !ok {
		return heap.Nil, fmt.Errorf("prim: job_output: unknown job %d", id)
	}
	which, err := asInt(h, args[1])
	if err != nil {
		return heap.Nil, err
	}
	var text string
	if which.Sign() == 0 {
		text = string(j.Stdout)
	} else {
		text = string(j.Stderr)
	}
	return h.Alloc(&heap.Literal{Tag: heap.VString, Text: text}), nil
}

// status implements reading a finished job's process exit code.
func (e *JobEnv) status(h *heap.Arena, args []heap.Pointer) (heap.Pointer, error) {
	id, err := jobIDFromHandle(h, args[0])
	if err != nil {
		return heap.Nil, err
	}
	j, ok := e.lookup(id)
	if !ok {
		return heap.Nil, fmt.Errorf("prim: job_status: unknown job %d", id)
	}
	return h.Alloc(&heap.Literal{Tag: heap.VInteger, Text: strconv.Itoa(j.Status)}), nil
}
