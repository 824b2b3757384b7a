// Package job models the external-process side of a build step: the
// six-stage state machine (FORKED → STDOUT/STDERR → MERGED → FINISHED),
// a pool-budgeted scheduler, and process launch/capture.
package job

import (
	"sync"
	"time"
)

// Stage is one bit of a Job's progress; several may be set at once (e.g.
// STDOUT and STDERR close independently once both pipes EOF, before the
// process itself exits and MERGED/FINISHED follow).
type Stage uint8

const (
	StageForked Stage = 1 << iota
	StageStdout
	StageStderr
	StageMerged
	StageFinished
)

func (s Stage) Has(bit Stage) bool { return s&bit != 0 }

// Job is one external-process invocation plus everything the catalog and
// scheduler need to track it.
type Job struct {
	ID  int64
	Pool string

	Directory   string
	Command     []string
	Environment []string
	Stdin       string

	// Inputs/Outputs/Visible are the caller's declared file dependencies
	// (prim_job_create's FnInputs/FnOutputs, and the subset of Inputs the
	// hash cache could vouch for at creation time), stashed here so
	// prim_job_finish can thread them into catalog.FinishJob once the job
	// completes.
	Inputs  []string
	Outputs []string
	Visible []string

	// Replayed marks a job resurrected from a prior run's catalog row: it
	// never forks, its output is read back from the log table, and none of
	// the finish-time bookkeeping runs again for it.
	Replayed bool

	mu        sync.Mutex
	stage     Stage
	launchErr error

	StartTime time.Time
	EndTime   time.Time
	Status    int // process exit code, valid once StageFinished is set

	Stdout []byte
	Stderr []byte
	Usage  Usage

	// done fires (closed) once StageFinished is reached, for callers
	// awaiting job completion without polling Stage.
	done chan struct{}

	CriticalPath time.Duration // longest dependency chain ending at this job, set by setcrit_path (internal/catalog)
}

// New creates a Job in its initial (unforked) state.
func New(id int64, pool, dir string, command, env []string, stdin string) *Job {
	return &Job{
		ID:          id,
		Pool:        pool,
		Directory:   dir,
		Command:     command,
		Environment: env,
		Stdin:       stdin,
		done:        make(chan struct{}),
	}
}

// Stage returns the job's current stage bitset.
func (j *Job) Stage() Stage {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stage
}

// Advance sets bit and, if bit is StageFinished, records EndTime and
// wakes Wait (the exit status is recorded separately, by SetExit). Advancing a stage that's already set is a no-op (the
// scheduler may observe STDOUT/STDERR EOF in either order and call
// Advance for each exactly once, but a defensive caller path may retry).
func (j *Job) Advance(bit Stage) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.stage.Has(bit) {
		return
	}
	j.stage |= bit
	if bit == StageForked {
		j.StartTime = time.Now()
	}
	if bit == StageFinished {
		j.EndTime = time.Now()
		close(j.done)
	}
}

// SetExit records the process's exit status; callers call this just
// before Advance(StageFinished).
func (j *Job) SetExit(code int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = code
}

// SetLaunchErr records that the job never produced a real exit status
// (the launcher itself failed, e.g. the directory or binary doesn't
// exist), distinct from a clean fork that exited non-zero. Callers still
// Advance the job through to StageFinished so Wait/Done unblock either way.
func (j *Job) SetLaunchErr(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.launchErr = err
}

// LaunchErr returns the launcher failure recorded by SetLaunchErr, if any.
func (j *Job) LaunchErr() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.launchErr
}

// Wait blocks until the job reaches StageFinished.
func (j *Job) Wait() {
	<-j.done
}

// Done returns the channel Wait blocks on, for use in a select alongside
// cancellation.
func (j *Job) Done() <-chan struct{} { return j.done }

// Virtual completes a job whose work is internal (hashing, synthesized
// results) without ever forking a process: FORKED, STDOUT, STDERR and
// MERGED all advance in one step. The caller still advances StageFinished
// and runs the usual catalog bookkeeping.
func (j *Job) Virtual(stdout, stderr []byte, usage Usage) {
	j.mu.Lock()
	j.stage |= StageForked | StageStdout | StageStderr | StageMerged
	j.StartTime = time.Now()
	j.Stdout = stdout
	j.Stderr = stderr
	j.Usage = usage
	j.Status = usage.Status
	j.mu.Unlock()
}
