package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolState_AcquireUpToCapacity(t *testing.T) {
	p := newPoolState("cpu", 2)
	require.True(t, p.TryAcquire())
	require.True(t, p.TryAcquire())
	assert.False(t, p.TryAcquire(), "a third acquire must be refused once capacity is exhausted")
	assert.Equal(t, uint32(2), p.InFlight())
}

func TestPoolState_ReleaseFreesASlot(t *testing.T) {
	p := newPoolState("cpu", 1)
	require.True(t, p.TryAcquire())
	require.False(t, p.TryAcquire())

	p.Release()
	assert.True(t, p.TryAcquire())
}

func TestPoolState_CongestionHysteresis(t *testing.T) {
	p := newPoolState("cpu", 10)
	for i := 0; i < 9; i++ {
		require.True(t, p.TryAcquire())
	}
	assert.True(t, p.Congested(), "load above 80%% must mark the pool congested")

	for i := 0; i < 5; i++ {
		p.Release()
	}
	assert.False(t, p.Congested(), "load at or below 50%% must clear congestion")
}

func TestPools_RegisterIsIdempotent(t *testing.T) {
	ps := NewPools()
	a := ps.Register("default", 4)
	b := ps.Register("default", 8)
	assert.Same(t, a, b, "registering an existing pool name must return the same PoolState")
	assert.Equal(t, uint32(4), a.Capacity, "capacity is fixed at first registration")
}

func TestWaitAcquire_UnblocksOnRelease(t *testing.T) {
	p := newPoolState("cpu", 1)
	require.True(t, p.TryAcquire())

	done := make(chan struct{})
	acquired := make(chan bool, 1)
	go func() { acquired <- WaitAcquire(p, done) }()

	time.Sleep(5 * time.Millisecond)
	p.Release()

	select {
	case ok := <-acquired:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("WaitAcquire did not unblock after Release")
	}
}

func TestWaitAcquire_DoneCancels(t *testing.T) {
	p := newPoolState("cpu", 1)
	require.True(t, p.TryAcquire())

	done := make(chan struct{})
	close(done)

	assert.False(t, WaitAcquire(p, done))
}

func TestWaitAny_ReturnsOnlyFinishedJobs(t *testing.T) {
	a := New(1, "cpu", ".", []string{"a"}, nil, "")
	b := New(2, "cpu", ".", []string{"b"}, nil, "")
	b.Advance(StageForked)
	b.Advance(StageStdout)
	b.Advance(StageStderr)
	b.Advance(StageMerged)
	b.Advance(StageFinished)

	done := make(chan struct{})
	ready := WaitAny([]*Job{a, b}, done)
	require.Len(t, ready, 1)
	assert.Same(t, b, ready[0])
}

func TestWaitAny_UnblocksOnceAJobFinishes(t *testing.T) {
	a := New(1, "cpu", ".", []string{"a"}, nil, "")
	done := make(chan struct{})

	got := make(chan []*Job, 1)
	go func() { got <- WaitAny([]*Job{a}, done) }()

	time.Sleep(5 * time.Millisecond)
	a.Advance(StageForked)
	a.Advance(StageStdout)
	a.Advance(StageStderr)
	a.Advance(StageMerged)
	a.Advance(StageFinished)

	select {
	case ready := <-got:
		require.Len(t, ready, 1)
		assert.Same(t, a, ready[0])
	case <-time.After(time.Second):
		t.Fatal("WaitAny did not unblock after the job finished")
	}
}

func TestWaitAny_DoneCancels(t *testing.T) {
	a := New(1, "cpu", ".", []string{"a"}, nil, "")
	done := make(chan struct{})
	close(done)

	assert.Nil(t, WaitAny([]*Job{a}, done))
}
