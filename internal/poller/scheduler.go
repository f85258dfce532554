package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// minTick floors the scheduler tick to prevent CPU thrashing.
const minTick = 100 * time.Millisecond

// ErrCancelled is reported for runs skipped or aborted by [Scheduler.Cancel].
var ErrCancelled = errors.New("task cancelled")

// Task is a named unit of periodic work.
type Task struct {
	// Name identifies the task in logs and for [Scheduler.Cancel].
	Name string

	// Interval is the time between run starts. If 0, the scheduler's
	// default interval is used.
	Interval time.Duration

	// Run performs one cycle. The context is cancelled when the task or
	// the scheduler is stopped.
	Run func(ctx context.Context) error
}

// RunResult describes one completed run of a task.
type RunResult struct {
	Task      string
	StartedAt time.Time
	Duration  time.Duration
	Error     error
}

// Scheduler manages periodic execution of tasks.
//
// All lifecycle methods (Start, Stop, Cancel) are safe for concurrent use.
type Scheduler struct {
	tasks    []Task
	interval time.Duration // default for tasks without their own interval
	results  chan RunResult
	logger   *slog.Logger
	cancel   context.CancelFunc
	loop     sync.WaitGroup
	runs     sync.WaitGroup

	mu          sync.Mutex
	started     bool
	stopped     bool
	closeOnce   sync.Once
	lastRunAt   map[string]time.Time
	taskCancels map[string]context.CancelFunc
	taskCtxs    map[string]context.Context
	cancelled   map[string]bool
}

// NewScheduler creates a new [Scheduler].
//
// Parameters:
//   - tasks: Tasks to run; names must be unique
//   - interval: Default interval for tasks with Interval == 0
//   - logger: Logger for scheduler events (panic recovery, etc.)
//
// The scheduler must be started with [Scheduler.Start] and stopped with
// [Scheduler.Stop]. Results are available via [Scheduler.Results].
func NewScheduler(tasks []Task, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		tasks:     tasks,
		interval:  interval,
		results:   make(chan RunResult, 2*len(tasks)+1),
		logger:    logger,
		cancelled: make(map[string]bool),
	}
}

// Results returns a receive-only channel that emits [RunResult] values.
//
// The channel is closed when the scheduler stops. Consumers should read
// until it is closed; an unread channel eventually blocks running tasks.
func (s *Scheduler) Results() <-chan RunResult {
	return s.results
}

// intervalFor returns the effective interval of t.
func (s *Scheduler) intervalFor(t Task) time.Duration {
	if t.Interval > 0 {
		return t.Interval
	}
	return s.interval
}

// calculateBaseInterval determines the tick interval for the scheduler.
// Uses the GCD of all task intervals to ensure timely runs.
func (s *Scheduler) calculateBaseInterval() time.Duration {
	if len(s.tasks) == 0 {
		return s.interval
	}

	result := s.intervalFor(s.tasks[0])
	for _, t := range s.tasks[1:] {
		result = gcdDuration(result, s.intervalFor(t))
	}

	if result < minTick {
		result = minTick
	}
	return result
}

// gcdDuration calculates the greatest common divisor of two durations.
func gcdDuration(a, b time.Duration) time.Duration {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Start begins the scheduling loop in a background goroutine.
//
// Start is non-blocking. The scheduler will:
//  1. Run all tasks immediately
//  2. Tick at the GCD of all task intervals
//  3. Launch only the tasks that are due on each tick
//  4. Continue until [Scheduler.Stop] is called or the context is cancelled
//
// Start is idempotent; if Stop was called before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.lastRunAt = make(map[string]time.Time, len(s.tasks))
	s.taskCtxs = make(map[string]context.Context, len(s.tasks))
	s.taskCancels = make(map[string]context.CancelFunc, len(s.tasks))
	for _, t := range s.tasks {
		s.taskCtxs[t.Name], s.taskCancels[t.Name] = context.WithCancel(runCtx)
		if s.cancelled[t.Name] {
			s.taskCancels[t.Name]()
		}
	}
	base := s.calculateBaseInterval()
	s.loop.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.loop.Done()

		s.runDueTasks(runCtx, true)

		ticker := time.NewTicker(base)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.runDueTasks(runCtx, false)
			}
		}
	}()
}

// Cancel stops future runs of the named task and cancels the context of any
// run in flight. It reports whether a task with that name exists.
func (s *Scheduler) Cancel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, t := range s.tasks {
		if t.Name == name {
			found = true
			break
		}
	}
	if !found {
		return false
	}

	s.cancelled[name] = true
	if cancel, ok := s.taskCancels[name]; ok {
		cancel()
	}
	return true
}

// Stop halts the scheduler and waits for all runs to complete.
//
// Stop is idempotent and safe to call before Start. The results channel is
// closed once Stop returns.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	// the loop is the only launcher of runs, so once it has exited no new
	// run can be added while we wait
	s.loop.Wait()
	s.runs.Wait()

	s.closeOnce.Do(func() { close(s.results) })
}

// runDueTasks launches tasks whose interval has elapsed. If immediate is
// true, every task is launched.
//
// lastRunAt is updated when a run STARTS; a slow run does not delay the
// next one.
func (s *Scheduler) runDueTasks(ctx context.Context, immediate bool) {
	now := time.Now()
	due := make([]Task, 0, len(s.tasks))

	s.mu.Lock()
	for _, t := range s.tasks {
		if s.cancelled[t.Name] {
			continue
		}
		last, exists := s.lastRunAt[t.Name]
		if immediate || !exists || now.Sub(last) >= s.intervalFor(t) {
			due = append(due, t)
			s.lastRunAt[t.Name] = now
		}
	}
	taskCtxs := make([]context.Context, len(due))
	for i, t := range due {
		taskCtxs[i] = s.taskCtxs[t.Name]
	}
	s.mu.Unlock()

	for i, t := range due {
		s.runs.Add(1)
		go func(t Task, taskCtx context.Context) {
			defer s.runs.Done()

			result := s.runTask(taskCtx, t)
			select {
			case s.results <- result:
			case <-ctx.Done():
			}
		}(t, taskCtxs[i])
	}
}

// runTask executes one run with panic recovery.
func (s *Scheduler) runTask(ctx context.Context, t Task) RunResult {
	start := time.Now()
	err := s.safeRun(ctx, t)
	if err == nil && ctx.Err() != nil {
		s.mu.Lock()
		if s.cancelled[t.Name] {
			err = ErrCancelled
		}
		s.mu.Unlock()
	}
	return RunResult{
		Task:      t.Name,
		StartedAt: start,
		Duration:  time.Since(start),
		Error:     err,
	}
}

// safeRun calls the task with panic recovery.
// If the task panics, it logs the full stack trace with a correlation ID
// and returns an error containing the ID.
func (s *Scheduler) safeRun(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()

			s.logger.Error("task panic",
				"correlation_id", correlationID,
				"task", t.Name,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)

			err = fmt.Errorf("task panic (correlation_id: %s)", correlationID)
		}
	}()
	return t.Run(ctx)
}
