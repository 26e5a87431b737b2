package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/playtime/internal/domain"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) RunTick(_ context.Context) (domain.TickReport, error) {
	r.calls.Add(1)
	return domain.TickReport{Checked: 1}, r.err
}

func TestScheduler_TicksImmediatelyAndOnInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	runner := &countingRunner{}
	s := NewScheduler(runner, time.Minute, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return runner.calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return runner.calls.Load() == 3 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestScheduler_KeepsRunningAfterErrors(t *testing.T) {
	clock := clockwork.NewFakeClock()
	runner := &countingRunner{err: errors.New("presence down")}
	s := NewScheduler(runner, time.Minute, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	clock.Advance(time.Minute)
	assert.Eventually(t, func() bool { return runner.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_SkipsWhenTickInProgress(t *testing.T) {
	clock := clockwork.NewFakeClock()
	runner := &countingRunner{err: domain.ErrTickInProgress}
	s := NewScheduler(runner, time.Minute, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	clock.Advance(time.Minute)
	assert.Eventually(t, func() bool { return runner.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}
