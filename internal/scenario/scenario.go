package scenario

import (
	"time"

	"go.uber.org/zap"

	"github.com/mattmezza/biopatch/internal/alerter"
	"github.com/mattmezza/biopatch/internal/condition"
	"github.com/mattmezza/biopatch/internal/schedule"
)

// DefaultInterval separates consecutive degradations, measured from the start.
const DefaultInterval = 15 * time.Second

// Scenario arms the alert timers one after another. The i-th timer is due at
// start + (i+1)*interval regardless of when the previous alert was resolved.
// The next timer is only armed once the previous one resolves, so at most one
// timer is Armed or Active at any moment.
//
// All methods must run on the scheduler's thread.
type Scenario struct {
	sched    *schedule.Scheduler
	timers   []*alerter.Timer
	interval time.Duration
	logger   *zap.Logger

	startedAt time.Time
	next      int
	running   bool
}

func New(sched *schedule.Scheduler, timers []*alerter.Timer, interval time.Duration, logger *zap.Logger) *Scenario {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scenario{
		sched:    sched,
		timers:   timers,
		interval: interval,
		logger:   logger,
	}
	for _, t := range timers {
		prev := t.OnResolved
		t.OnResolved = func(kind condition.Kind, how alerter.Resolution) {
			if prev != nil {
				prev(kind, how)
			}
			s.advance()
		}
	}
	return s
}

// Start arms the first timer.
func (s *Scenario) Start() {
	if s.running {
		return
	}
	s.running = true
	s.startedAt = s.sched.Now()
	s.next = 0
	s.logger.Info("Scenario started",
		zap.Int("conditions", len(s.timers)),
		zap.Duration("interval", s.interval),
	)
	s.armNext()
}

// Stop cancels every pending arm and tick task.
func (s *Scenario) Stop() {
	s.running = false
	for _, t := range s.timers {
		t.Stop()
	}
}

// Done reports whether every timer has been armed and resolved.
func (s *Scenario) Done() bool {
	for _, t := range s.timers {
		if t.State() != alerter.StateResolved {
			return false
		}
	}
	return true
}

// Deadline is when the i-th timer is due to fire.
func (s *Scenario) Deadline(i int) time.Time {
	return s.startedAt.Add(time.Duration(i+1) * s.interval)
}

func (s *Scenario) advance() {
	if !s.running {
		return
	}
	s.armNext()
}

func (s *Scenario) armNext() {
	if s.next >= len(s.timers) {
		s.logger.Info("Scenario complete")
		s.running = false
		return
	}
	i := s.next
	s.next++
	delay := s.Deadline(i).Sub(s.sched.Now())
	if delay < 0 {
		delay = 0
	}
	s.timers[i].Arm(delay)
}
