package dashboard

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/mattmezza/biopatch/internal/alerter"
	"github.com/mattmezza/biopatch/internal/clock"
	"github.com/mattmezza/biopatch/internal/condition"
	"github.com/mattmezza/biopatch/internal/issues"
	"github.com/mattmezza/biopatch/internal/schedule"
	"github.com/mattmezza/biopatch/internal/session"
	"github.com/mattmezza/biopatch/internal/state"
)

var ErrNotEntered = errors.New("dashboard not entered")

// EnterOptions describes who is opening the dashboard.
type EnterOptions struct {
	User       string
	NewAccount bool
}

// Listener receives alert events after the scheduler lock has been released.
// Listeners must not block and must not call back into the Dashboard.
type Listener func(alerter.AlertEvent)

// Dashboard is the entry point for host surfaces. It is safe for concurrent
// use: every call is serialized onto the scheduler's thread.
type Dashboard struct {
	sched  *schedule.Scheduler
	opts   session.Options
	logger *zap.Logger

	current *session.Session // owned by the scheduler thread

	queueMu sync.Mutex
	queue   []alerter.AlertEvent

	listenersMu sync.RWMutex
	listeners   map[int]Listener
	nextID      int
}

// New builds a dashboard. opts is the template for every session; the User,
// NewAccount and Emit fields are set per visit.
func New(c clock.Clock, opts session.Options, logger *zap.Logger) *Dashboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Logger == nil {
		opts.Logger = logger
	}
	d := &Dashboard{
		sched:     schedule.New(c),
		opts:      opts,
		logger:    logger,
		listeners: make(map[int]Listener),
	}
	d.sched.OnIdle(d.flush)
	return d
}

// Enter starts a fresh session. An existing session is torn down first, so
// re-entering restarts the scenario from the beginning.
func (d *Dashboard) Enter(enter EnterOptions) {
	d.sched.Do(func() {
		if d.current != nil {
			d.current.Close()
		}
		// Nothing from a previous visit may fire into this one.
		d.sched.CancelAll()

		opts := d.opts
		opts.User = enter.User
		opts.NewAccount = enter.NewAccount
		opts.Emit = d.enqueue
		d.current = session.New(d.sched, opts)
		d.current.Start()

		d.logger.Info("Dashboard entered",
			zap.String("user", enter.User),
			zap.Bool("new_account", enter.NewAccount),
		)
	})
}

// Leave ends the session and cancels every pending timer.
func (d *Dashboard) Leave() {
	d.sched.Do(func() {
		if d.current == nil {
			return
		}
		d.current.Close()
		d.current = nil
		d.sched.CancelAll()
		d.logger.Info("Dashboard left")
	})
}

func (d *Dashboard) Entered() bool {
	var entered bool
	d.sched.Do(func() { entered = d.current != nil })
	return entered
}

// Done reports whether the current session has resolved every scripted alert.
func (d *Dashboard) Done() bool {
	var done bool
	d.sched.Do(func() { done = d.current != nil && d.current.Done() })
	return done
}

func (d *Dashboard) ApproveNow(kind condition.Kind) (bool, error) {
	var ok bool
	err := d.withSession(func(s *session.Session) { ok = s.ApproveNow(kind) })
	return ok, err
}

func (d *Dashboard) RejectNow(kind condition.Kind) (issues.Issue, bool, error) {
	var (
		issue issues.Issue
		ok    bool
	)
	err := d.withSession(func(s *session.Session) { issue, ok = s.RejectNow(kind) })
	return issue, ok, err
}

func (d *Dashboard) ApproveIssue(id string) (bool, error) {
	var ok bool
	err := d.withSession(func(s *session.Session) { ok = s.ApproveIssue(id) })
	return ok, err
}

func (d *Dashboard) RunDiagnostics() error {
	return d.withSession(func(s *session.Session) { s.RunDiagnostics() })
}

func (d *Dashboard) ExportAnonymizedData() error {
	return d.withSession(func(s *session.Session) { s.ExportAnonymizedData() })
}

// Snapshot returns the current session state. Entered is false when no
// session is open.
func (d *Dashboard) Snapshot() state.Snapshot {
	var snap state.Snapshot
	d.sched.Do(func() {
		if d.current == nil {
			snap = state.Snapshot{TakenAt: d.sched.Now()}
			return
		}
		snap = d.current.Snapshot()
	})
	return snap
}

// Subscribe registers fn for alert events and returns a function that removes it.
func (d *Dashboard) Subscribe(fn Listener) func() {
	d.listenersMu.Lock()
	defer d.listenersMu.Unlock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	return func() {
		d.listenersMu.Lock()
		defer d.listenersMu.Unlock()
		delete(d.listeners, id)
	}
}

func (d *Dashboard) withSession(fn func(s *session.Session)) error {
	var err error
	d.sched.Do(func() {
		if d.current == nil {
			err = ErrNotEntered
			return
		}
		fn(d.current)
	})
	return err
}

func (d *Dashboard) enqueue(ev alerter.AlertEvent) {
	d.queueMu.Lock()
	d.queue = append(d.queue, ev)
	d.queueMu.Unlock()
}

func (d *Dashboard) flush() {
	d.queueMu.Lock()
	pending := d.queue
	d.queue = nil
	d.queueMu.Unlock()

	if len(pending) == 0 {
		return
	}

	d.listenersMu.RLock()
	defer d.listenersMu.RUnlock()
	for _, ev := range pending {
		for _, l := range d.listeners {
			l(ev)
		}
	}
}
