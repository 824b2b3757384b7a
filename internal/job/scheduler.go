package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"github.com/yasserelgammal/rate-limiter/limiter"
	"github.com/yasserelgammal/rate-limiter/store"
)

// Launcher starts one Job's external process and drives it through
// StageStdout/StageStderr/StageMerged/StageFinished. ShimLauncher
// (launch.go, built on internal/shim.Run) is the concrete os/exec-backed
// implementation; a test double can substitute anything satisfying this.
type Launcher interface {
	Launch(j *Job) error
}

// Scheduler admits jobs against their pool's capacity, paces admission
// with a token bucket, and opens a circuit breaker around a pool whose
// shim launches fail back to back.
type Scheduler struct {
	pools    *Pools
	launcher Launcher

	limiterStore store.Store
	limiter      *limiter.TokenBucket

	breakers sync.Map // pool name -> *gobreaker.CircuitBreaker

	mu      sync.Mutex
	running map[int64]*Job
}

// Config is the admission pacing knob: a steady
// rate plus a burst allowance, so a sudden fan-out of many independent
// jobs (the common case right after resolving a big plan) isn't throttled
// to the steady-state rate immediately.
type Config struct {
	JobsPerSecond float64
	Burst         int64
}

func DefaultConfig() Config {
	return Config{JobsPerSecond: 64, Burst: 256}
}

func NewScheduler(pools *Pools, launcher Launcher, cfg Config) (*Scheduler, error) {
	st := store.NewMemoryStore(time.Minute)
	tb, err := limiter.NewTokenBucket(limiter.Config{
		Rate:     int64(cfg.JobsPerSecond),
		Duration: time.Second,
		Burst:    cfg.Burst,
	}, st)
	if err != nil {
		return nil, fmt.Errorf("job: constructing admission limiter: %w", err)
	}
	return &Scheduler{
		pools:        pools,
		launcher:     launcher,
		limiterStore: st,
		limiter:      tb,
		running:      map[int64]*Job{},
	}, nil
}

func (s *Scheduler) breaker(poolName string) *gobreaker.CircuitBreaker {
	if b, ok := s.breakers.Load(poolName); ok {
		return b.(*gobreaker.CircuitBreaker)
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "job-pool:" + poolName,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	actual, _ := s.breakers.LoadOrStore(poolName, b)
	return actual.(*gobreaker.CircuitBreaker)
}

// Submit admits a new Job against its pool, paced by the token bucket,
// then hands it to the launcher in the background and returns. Admission
// is the only part of Submit that can make a caller wait. j already
// carries its catalog-assigned ID; Submit only reads it.
func (s *Scheduler) Submit(ctx context.Context, j *Job) error {
	pool, ok := s.pools.Get(j.Pool)
	if !ok {
		return fmt.Errorf("job: unknown pool %q", j.Pool)
	}
	if !WaitAcquire(pool, ctx.Done()) {
		return ctx.Err()
	}

	if !s.limiter.Allow(j.Pool) {
		// Paced out: wait for the next tick rather than failing the
		// build over a scheduling artifact.
		t := time.NewTicker(100 * time.Millisecond)
		defer t.Stop()
		for !s.limiter.Allow(j.Pool) {
			select {
			case <-ctx.Done():
				pool.Release()
				return ctx.Err()
			case <-t.C:
			}
		}
	}

	s.mu.Lock()
	s.running[j.ID] = j
	s.mu.Unlock()

	breaker := s.breaker(j.Pool)
	go func() {
		_, err := breaker.Execute(func() (interface{}, error) {
			return nil, s.launcher.Launch(j)
		})
		if err != nil {
			// The launcher itself failed (broken shim, missing
			// directory, breaker already open) before producing any
			// real exit status; still drive the job to StageFinished
			// so Wait/Done unblock, recording the failure separately
			// from a clean non-zero exit (job.SetExit).
			j.SetLaunchErr(fmt.Errorf("job: launching %v in pool %q: %w", j.Command, j.Pool, err))
			j.SetExit(-1)
			j.Advance(StageForked)
			j.Advance(StageStdout)
			j.Advance(StageStderr)
			j.Advance(StageMerged)
			j.Advance(StageFinished)
		}
		pool.Release()
		s.mu.Lock()
		delete(s.running, j.ID)
		s.mu.Unlock()
	}()
	return nil
}

// Running returns a snapshot of currently in-flight jobs, for status
// reporting.
func (s *Scheduler) Running() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Job, 0, len(s.running))
	for _, j := range s.running {
		out = append(out, j)
	}
	return out
}
