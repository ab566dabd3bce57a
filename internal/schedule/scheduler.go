package schedule

import (
	"sync"
	"time"

	"github.com/mattmezza/biopatch/internal/clock"
)

// Scheduler is the single logical thread of a dashboard. Commands passed to Do
// and every task callback run under the same mutex, so they never interleave.
//
// After, Every and Task.Cancel must only be called from inside Do or from a
// task callback.
type Scheduler struct {
	mu      sync.Mutex
	clock   clock.Clock
	tasks   map[*Task]struct{}
	onIdle  func()
	idleMux sync.Mutex
}

// Task is the handle of a scheduled callback.
type Task struct {
	s         *Scheduler
	timer     clock.Timer
	period    time.Duration
	fn        func()
	cancelled bool
}

func New(c clock.Clock) *Scheduler {
	return &Scheduler{
		clock: c,
		tasks: make(map[*Task]struct{}),
	}
}

// OnIdle registers a hook that runs after every command or callback, once the
// mutex has been released. Hooks never run concurrently with each other.
func (s *Scheduler) OnIdle(fn func()) {
	s.idleMux.Lock()
	defer s.idleMux.Unlock()
	s.onIdle = fn
}

func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// Do runs fn on the scheduler's thread.
func (s *Scheduler) Do(fn func()) {
	s.mu.Lock()
	fn()
	s.mu.Unlock()
	s.idle()
}

// After runs fn once after d.
func (s *Scheduler) After(d time.Duration, fn func()) *Task {
	return s.schedule(d, 0, fn)
}

// Every runs fn every period until the task is cancelled. The first run
// happens one period from now.
func (s *Scheduler) Every(period time.Duration, fn func()) *Task {
	return s.schedule(period, period, fn)
}

func (s *Scheduler) schedule(d, period time.Duration, fn func()) *Task {
	t := &Task{s: s, period: period, fn: fn}
	s.tasks[t] = struct{}{}
	t.timer = s.clock.AfterFunc(d, t.run)
	return t
}

func (t *Task) run() {
	s := t.s
	s.mu.Lock()
	// A cancelled task may still have its runtime timer fire; it is dropped here.
	if t.cancelled {
		s.mu.Unlock()
		return
	}
	if t.period > 0 {
		t.timer = s.clock.AfterFunc(t.period, t.run)
	} else {
		t.cancelled = true
		delete(s.tasks, t)
	}
	t.fn()
	s.mu.Unlock()
	s.idle()
}

// Cancel stops the task. Once Cancel returns the callback will not run again.
func (t *Task) Cancel() {
	if t == nil || t.cancelled {
		return
	}
	t.cancelled = true
	t.timer.Stop()
	delete(t.s.tasks, t)
}

// Active reports whether the task can still fire.
func (t *Task) Active() bool {
	return t != nil && !t.cancelled
}

// CancelAll cancels every outstanding task.
func (s *Scheduler) CancelAll() {
	for t := range s.tasks {
		t.Cancel()
	}
}

// Pending is the number of tasks that can still fire.
func (s *Scheduler) Pending() int {
	return len(s.tasks)
}

func (s *Scheduler) idle() {
	s.idleMux.Lock()
	defer s.idleMux.Unlock()
	if s.onIdle != nil {
		s.onIdle()
	}
}
