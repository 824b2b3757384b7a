package job

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wake-build/wake/internal/shim"
)

// ShimLauncher is the concrete Launcher: it runs internal/shim.Run
// in-process (os/exec's portable process model, no raw vfork), capturing
// stdout/stderr through an outputCapture and recording a Usage snapshot
// once the process exits.
type ShimLauncher struct{}

func (ShimLauncher) Launch(j *Job) error {
	j.Advance(StageForked)

	cap := newOutputCapture()
	start := time.Now()
	status, err := shim.Run(j.Directory, j.Stdin, cap.stdout, cap.stderr, j.Command)

	// Both pipes are already fully drained by the time shim.Run returns
	// (exec.Cmd.Run waits for stdout/stderr copying to finish), so STDOUT
	// and STDERR close "simultaneously" from this launcher's point of
	// view; a future launcher that streams incrementally may advance them
	// independently, which is why they remain separate bits.
	j.Advance(StageStdout)
	j.Advance(StageStderr)

	j.Stdout = cap.stdout.Bytes()
	j.Stderr = cap.stderr.Bytes()

	if err != nil {
		return fmt.Errorf("job %d: %w", j.ID, err)
	}

	j.SetExit(status)
	j.Usage = Usage{
		Status:  status,
		Runtime: time.Since(start),
	}
	j.Advance(StageMerged)
	j.Advance(StageFinished)
	return nil
}

// Usage is a plain snapshot struct populated once, just before MERGED.
// ShimLauncher fills only Status and Runtime (wall-clock time); CPUTime,
// MemBytes, IBytes and OBytes are left at zero on every platform.
type Usage struct {
	Status   int
	Runtime  time.Duration
	CPUTime  time.Duration
	MemBytes int64
	IBytes   int64
	OBytes   int64
}

type outputCapture struct {
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newOutputCapture() *outputCapture {
	return &outputCapture{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
}
