package monitor_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsgrove/stockwatch/pkg/monitor"
)

// stubEvaluator counts passes and can block until released.
type stubEvaluator struct {
	calls   atomic.Int32
	block   chan struct{}
	started chan struct{}
	panics  bool

	mu   sync.Mutex
	done int
}

func (s *stubEvaluator) EvaluateAll(ctx context.Context) (*monitor.Summary, error) {
	s.calls.Add(1)
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.panics {
		panic("boom")
	}
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	s.done++
	s.mu.Unlock()
	return &monitor.Summary{}, nil
}

func (s *stubEvaluator) completed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func TestScheduler_RunsOnInterval(t *testing.T) {
	eval := &stubEvaluator{}
	sched := monitor.NewScheduler(eval, 10*time.Millisecond, 0, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return eval.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestScheduler_StartupDelay(t *testing.T) {
	eval := &stubEvaluator{}
	sched := monitor.NewScheduler(eval, time.Hour, 100*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), eval.calls.Load())

	assert.Eventually(t, func() bool {
		return eval.calls.Load() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestScheduler_SkipsOverlappingTicks(t *testing.T) {
	eval := &stubEvaluator{block: make(chan struct{}), started: make(chan struct{}, 1)}
	sched := monitor.NewScheduler(eval, 10*time.Millisecond, 0, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	<-eval.started
	// Several intervals elapse while the first pass is stuck.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), eval.calls.Load())

	cancel()
	close(eval.block)
	<-done
	assert.Equal(t, 1, eval.completed())
}

func TestScheduler_DrainsInFlightPassOnCancel(t *testing.T) {
	eval := &stubEvaluator{block: make(chan struct{}), started: make(chan struct{}, 1)}
	sched := monitor.NewScheduler(eval, time.Hour, 0, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	<-eval.started
	cancel()

	// Run must not return while the pass is still in flight.
	select {
	case <-done:
		t.Fatal("scheduler returned before draining the in-flight pass")
	case <-time.After(50 * time.Millisecond):
	}

	close(eval.block)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after the pass finished")
	}
	assert.Equal(t, 1, eval.completed())
}

func TestScheduler_RecoversFromPanic(t *testing.T) {
	eval := &stubEvaluator{panics: true}
	sched := monitor.NewScheduler(eval, 10*time.Millisecond, 0, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return eval.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	// Backoff holds further ticks, and the panic never escapes Run.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), eval.calls.Load())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
