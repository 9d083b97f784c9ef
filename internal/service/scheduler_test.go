package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) Run(context.Context) (*RefreshResult, error) {
	r.calls.Add(1)
	return &RefreshResult{}, r.err
}

func TestScheduler_RunsImmediatelyAndOnTick(t *testing.T) {
	runner := &countingRunner{}
	s := &Scheduler{runner: runner, interval: 20 * time.Millisecond, logger: zerolog.Nop()}

	s.Start()
	deadline := time.Now().Add(2 * time.Second)
	for runner.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	if n := runner.calls.Load(); n < 3 {
		t.Fatalf("runs = %d, want at least 3", n)
	}
	after := runner.calls.Load()
	time.Sleep(60 * time.Millisecond)
	if runner.calls.Load() != after {
		t.Error("scheduler kept running after Stop")
	}
}

func TestScheduler_SurvivesFailedRuns(t *testing.T) {
	runner := &countingRunner{err: ErrRefreshInProgress}
	s := &Scheduler{runner: runner, interval: 10 * time.Millisecond, logger: zerolog.Nop()}

	s.Start()
	deadline := time.Now().Add(2 * time.Second)
	for runner.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	if n := runner.calls.Load(); n < 2 {
		t.Fatalf("runs = %d, want the loop to continue after a skipped run", n)
	}
}

func TestScheduler_Disabled(t *testing.T) {
	runner := &countingRunner{}
	s := &Scheduler{runner: runner, interval: 0, logger: zerolog.Nop()}

	s.Start()
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	if n := runner.calls.Load(); n != 0 {
		t.Errorf("runs = %d, want 0 when disabled", n)
	}
}

type deadlineRunner struct {
	mu        sync.Mutex
	remaining []time.Duration
}

func (r *deadlineRunner) Run(ctx context.Context) (*RefreshResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deadline, ok := ctx.Deadline()
	if !ok {
		r.remaining = append(r.remaining, -1)
		return &RefreshResult{}, nil
	}
	r.remaining = append(r.remaining, time.Until(deadline))
	return &RefreshResult{}, nil
}

func TestScheduler_RunsAreBoundedByLeaseTTL(t *testing.T) {
	runner := &deadlineRunner{}
	cfg := testConfig()
	cfg.RefreshInterval = time.Hour
	cfg.RefreshLeaseTTL = 3 * time.Second
	s := NewScheduler(nil, cfg, zerolog.Nop())
	s.runner = runner

	s.Start()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		runner.mu.Lock()
		n := len(runner.remaining)
		runner.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.remaining) == 0 {
		t.Fatal("scheduler never ran")
	}
	got := runner.remaining[0]
	if got <= 0 || got > cfg.RefreshLeaseTTL {
		t.Errorf("run deadline in %v, want within the %v lease ttl", got, cfg.RefreshLeaseTTL)
	}
}
