package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noopTask(name string, interval time.Duration) Task {
	return Task{
		Name:     name,
		Interval: interval,
		Run:      func(context.Context) error { return nil },
	}
}

// drain consumes results until the channel closes.
func drain(s *Scheduler) {
	go func() {
		for range s.Results() {
		}
	}()
}

// TestScheduler_StopBeforeStart verifies that calling Stop() on a scheduler
// that was never started does not panic and is a safe no-op.
func TestScheduler_StopBeforeStart(t *testing.T) {
	s := NewScheduler([]Task{noopTask("t", time.Second)}, time.Minute, testLogger())
	s.Stop()
}

// TestScheduler_StopTwice verifies that Stop() is idempotent.
func TestScheduler_StopTwice(t *testing.T) {
	s := NewScheduler([]Task{noopTask("t", time.Second)}, time.Minute, testLogger())
	drain(s)
	s.Start(context.Background())

	s.Stop()
	s.Stop()
}

// TestScheduler_StopClosesResults verifies the normal lifecycle.
func TestScheduler_StopClosesResults(t *testing.T) {
	s := NewScheduler([]Task{noopTask("t", time.Second)}, time.Minute, testLogger())
	s.Start(context.Background())

	select {
	case r := <-s.Results():
		if r.Task != "t" || r.Error != nil {
			t.Errorf("first result = %+v, want successful run of t", r)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for immediate run")
	}

	s.Stop()

	select {
	case _, ok := <-s.Results():
		if ok {
			t.Error("expected results channel to be closed after Stop()")
		}
	case <-time.After(time.Second):
		t.Error("timeout waiting for results channel to close")
	}
}

// TestScheduler_ConcurrentStartStop verifies that calling Start() and Stop()
// concurrently does not cause a race condition or panic.
func TestScheduler_ConcurrentStartStop(t *testing.T) {
	for i := 0; i < 100; i++ {
		s := NewScheduler([]Task{noopTask("t", time.Second)}, time.Minute, testLogger())

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Start(context.Background())
		}()
		go func() {
			defer wg.Done()
			s.Stop()
		}()
		wg.Wait()

		s.Stop()
		for range s.Results() {
		}
	}
}

// TestScheduler_StartTwice verifies a second Start does not spawn a second loop.
func TestScheduler_StartTwice(t *testing.T) {
	var runs atomic.Int32
	task := Task{Name: "t", Interval: time.Hour, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}

	s := NewScheduler([]Task{task}, time.Hour, testLogger())
	drain(s)
	s.Start(context.Background())
	s.Start(context.Background())

	time.Sleep(100 * time.Millisecond)
	s.Stop()

	if got := runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1 (immediate run only)", got)
	}
}

// TestScheduler_ContextCancellation verifies that cancelling the parent
// context stops the scheduler gracefully.
func TestScheduler_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler([]Task{noopTask("t", time.Second)}, time.Minute, testLogger())
	drain(s)
	s.Start(ctx)

	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Stop() did not complete after parent context cancellation")
	}
}

// TestScheduler_PanicRecovery verifies that a panicking task is reported as
// an error with a correlation ID and does not affect other tasks.
func TestScheduler_PanicRecovery(t *testing.T) {
	tasks := []Task{
		{Name: "panicking", Interval: time.Hour, Run: func(context.Context) error { panic("boom") }},
		{Name: "healthy", Interval: time.Hour, Run: func(context.Context) error { return nil }},
	}
	s := NewScheduler(tasks, time.Hour, testLogger())
	s.Start(context.Background())

	results := make(map[string]RunResult)
	for i := 0; i < 2; i++ {
		select {
		case r := <-s.Results():
			results[r.Task] = r
		case <-time.After(5 * time.Second):
			t.Fatalf("timeout waiting for result %d", i+1)
		}
	}
	s.Stop()

	err := results["panicking"].Error
	if err == nil || !strings.Contains(err.Error(), "correlation_id") {
		t.Errorf("panicking.Error = %v, want error with correlation_id", err)
	}
	if results["healthy"].Error != nil {
		t.Errorf("healthy.Error = %v, want nil", results["healthy"].Error)
	}
}

// TestScheduler_ReportsTaskErrors verifies task errors flow to results.
func TestScheduler_ReportsTaskErrors(t *testing.T) {
	wantErr := errors.New("device unreachable")
	task := Task{Name: "status", Interval: time.Hour, Run: func(context.Context) error { return wantErr }}

	s := NewScheduler([]Task{task}, time.Hour, testLogger())
	s.Start(context.Background())
	defer s.Stop()

	select {
	case r := <-s.Results():
		if !errors.Is(r.Error, wantErr) {
			t.Errorf("Error = %v, want %v", r.Error, wantErr)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for result")
	}
	drain(s)
}

// TestScheduler_GCDCalculation verifies the base tick interval.
func TestScheduler_GCDCalculation(t *testing.T) {
	tests := []struct {
		name         string
		intervals    []time.Duration
		defaultIntvl time.Duration
		expectedBase time.Duration
	}{
		{"all same interval", []time.Duration{time.Second, time.Second}, time.Second, time.Second},
		{"1s and 5s", []time.Duration{time.Second, 5 * time.Second}, 30 * time.Second, time.Second},
		{"zero uses default", []time.Duration{6 * time.Second, 0}, 9 * time.Second, 3 * time.Second},
		{"all use default", []time.Duration{0, 0}, 15 * time.Second, 15 * time.Second},
		{"floored", []time.Duration{1001 * time.Millisecond, 1000 * time.Millisecond}, time.Second, minTick},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks := make([]Task, len(tt.intervals))
			for i, interval := range tt.intervals {
				tasks[i] = noopTask(fmt.Sprintf("t%d", i), interval)
			}

			s := NewScheduler(tasks, tt.defaultIntvl, testLogger())
			if base := s.calculateBaseInterval(); base != tt.expectedBase {
				t.Errorf("calculateBaseInterval() = %v, want %v", base, tt.expectedBase)
			}
		})
	}
}

// TestScheduler_MixedIntervals verifies tasks run at their own frequencies.
func TestScheduler_MixedIntervals(t *testing.T) {
	tasks := []Task{
		noopTask("fast", 100*time.Millisecond),
		noopTask("slow", 300*time.Millisecond),
	}
	s := NewScheduler(tasks, time.Second, testLogger())
	s.Start(context.Background())

	counts := make(map[string]int)
	timeout := time.After(650 * time.Millisecond)

collecting:
	for {
		select {
		case r, ok := <-s.Results():
			if !ok {
				break collecting
			}
			counts[r.Task]++
		case <-timeout:
			break collecting
		}
	}
	drain(s)
	s.Stop()

	if counts["fast"] < 4 {
		t.Errorf("fast ran %d times, expected at least 4", counts["fast"])
	}
	if counts["slow"] >= counts["fast"] {
		t.Errorf("slow ran %d times, fast ran %d times; slow should run less often", counts["slow"], counts["fast"])
	}
}

// TestScheduler_OverlappingRuns verifies that a slow run does not block the
// next run of the same task.
func TestScheduler_OverlappingRuns(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	release := make(chan struct{})

	task := Task{Name: "slow", Interval: 100 * time.Millisecond, Run: func(ctx context.Context) error {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			cur := maxInFlight.Load()
			if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
				break
			}
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}}

	s := NewScheduler([]Task{task}, time.Second, testLogger())
	drain(s)
	s.Start(context.Background())

	time.Sleep(350 * time.Millisecond)
	close(release)
	s.Stop()

	if maxInFlight.Load() < 2 {
		t.Errorf("max concurrent runs = %d, want >= 2", maxInFlight.Load())
	}
}

// TestScheduler_Cancel verifies a cancelled task stops running while others
// continue, and that its in-flight run sees a cancelled context.
func TestScheduler_Cancel(t *testing.T) {
	var keptRuns, cancelledRuns atomic.Int32
	blocked := make(chan struct{})
	sawCancel := make(chan struct{})

	tasks := []Task{
		{Name: "kept", Interval: 100 * time.Millisecond, Run: func(context.Context) error {
			keptRuns.Add(1)
			return nil
		}},
		{Name: "cancelled", Interval: 100 * time.Millisecond, Run: func(ctx context.Context) error {
			if cancelledRuns.Add(1) == 1 {
				close(blocked)
				<-ctx.Done()
				close(sawCancel)
			}
			return nil
		}},
	}

	s := NewScheduler(tasks, time.Second, testLogger())
	drain(s)
	s.Start(context.Background())

	<-blocked
	if !s.Cancel("cancelled") {
		t.Fatal("Cancel(cancelled) = false, want true")
	}
	if s.Cancel("unknown") {
		t.Error("Cancel(unknown) = true, want false")
	}

	select {
	case <-sawCancel:
	case <-time.After(time.Second):
		t.Fatal("in-flight run did not observe cancellation")
	}

	before := keptRuns.Load()
	time.Sleep(350 * time.Millisecond)
	s.Stop()

	if cancelledRuns.Load() != 1 {
		t.Errorf("cancelled task ran %d times, want 1", cancelledRuns.Load())
	}
	if keptRuns.Load() <= before {
		t.Errorf("kept task stopped running after unrelated Cancel")
	}
}
