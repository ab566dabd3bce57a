package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/mattmezza/biopatch/internal/alerter"
	"github.com/mattmezza/biopatch/internal/condition"
	"github.com/mattmezza/biopatch/internal/history"
	"github.com/mattmezza/biopatch/internal/issues"
	"github.com/mattmezza/biopatch/internal/scenario"
	"github.com/mattmezza/biopatch/internal/schedule"
	"github.com/mattmezza/biopatch/internal/state"
	"github.com/mattmezza/biopatch/internal/vitals"
)

const (
	InitializedText = "Patch initialized. Monitoring started."
	AccountText     = "Account created."
	DiagnosticsText = "User requested patch diagnostics."
	ExportText      = "User exported last 24h of anonymized data."
)

// Options configures one dashboard session.
type Options struct {
	Profiles    map[condition.Kind]condition.Profile
	Order       []condition.Kind
	Baseline    vitals.Record
	LogCapacity int

	Unit           time.Duration // one time-unit; the countdown ticks once per unit
	ArmDelayUnits  int
	CountdownUnits int

	User       string
	NewAccount bool

	NewID  func() string
	Emit   func(alerter.AlertEvent)
	Logger *zap.Logger
}

func (o *Options) withDefaults() {
	if o.Profiles == nil {
		o.Profiles = condition.DefaultProfiles()
	}
	if len(o.Order) == 0 {
		o.Order = condition.Order()
	}
	if o.Baseline == (vitals.Record{}) {
		o.Baseline = vitals.Baseline()
	}
	if o.LogCapacity <= 0 {
		o.LogCapacity = history.DefaultCapacity
	}
	if o.Unit <= 0 {
		o.Unit = time.Second
	}
	if o.ArmDelayUnits <= 0 {
		o.ArmDelayUnits = 15
	}
	if o.CountdownUnits <= 0 {
		o.CountdownUnits = alerter.DefaultCountdown
	}
	if o.NewID == nil {
		o.NewID = issues.NewID
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Session is the state of one dashboard visit: vitals, timeline, deferred
// issues and the three alert timers. It is discarded on sign-out.
//
// All methods must run on the scheduler's thread.
type Session struct {
	sched  *schedule.Scheduler
	user   string
	logger *zap.Logger

	vitals *vitals.Store
	log    *history.EventLog
	issues *issues.Queue

	order    []condition.Kind
	timers   map[condition.Kind]*alerter.Timer
	scenario *scenario.Scenario
	closed   bool
}

func New(sched *schedule.Scheduler, opts Options) *Session {
	opts.withDefaults()

	s := &Session{
		sched:  sched,
		user:   opts.User,
		logger: opts.Logger,
		vitals: vitals.NewStore(opts.Baseline),
		log:    history.NewEventLog(opts.LogCapacity),
		issues: issues.NewQueue(),
		order:  opts.Order,
		timers: make(map[condition.Kind]*alerter.Timer, len(opts.Order)),
	}

	env := &alerter.Env{
		Sched:     sched,
		Vitals:    s.vitals,
		Log:       s.log,
		Issues:    s.issues,
		Tick:      opts.Unit,
		Countdown: opts.CountdownUnits,
		NewID:     opts.NewID,
		Emit:      opts.Emit,
		Logger:    opts.Logger,
	}

	sequence := make([]*alerter.Timer, 0, len(opts.Order))
	for _, kind := range opts.Order {
		profile, ok := opts.Profiles[kind]
		if !ok {
			opts.Logger.Warn("No profile for condition, skipping", zap.String("condition", kind.String()))
			continue
		}
		t := alerter.NewTimer(profile, env)
		s.timers[kind] = t
		sequence = append(sequence, t)
	}
	s.scenario = scenario.New(sched, sequence, time.Duration(opts.ArmDelayUnits)*opts.Unit, opts.Logger)

	now := sched.Now()
	s.log.Append(InitializedText, now)
	if opts.NewAccount {
		s.log.Append(AccountText, now)
	}
	return s
}

// Start begins the scripted scenario.
func (s *Session) Start() {
	if s.closed {
		return
	}
	s.scenario.Start()
}

// Close cancels every pending timer. The session is inert afterwards.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.scenario.Stop()
}

func (s *Session) Closed() bool {
	return s.closed
}

// Done reports whether all scripted alerts have been resolved.
func (s *Session) Done() bool {
	return s.scenario.Done()
}

func (s *Session) ApproveNow(kind condition.Kind) bool {
	t, ok := s.timers[kind]
	if !ok || s.closed {
		return false
	}
	return t.ApproveNow()
}

func (s *Session) RejectNow(kind condition.Kind) (issues.Issue, bool) {
	t, ok := s.timers[kind]
	if !ok || s.closed {
		return issues.Issue{}, false
	}
	return t.RejectNow()
}

// ApproveIssue routes a deferred issue to the timer of its condition.
// Unknown ids are ignored.
func (s *Session) ApproveIssue(id string) bool {
	if s.closed {
		return false
	}
	issue, ok := s.issues.Get(id)
	if !ok {
		s.logger.Debug("Ignoring approval of unknown issue", zap.String("issue_id", id))
		return false
	}
	t, ok := s.timers[issue.Kind]
	if !ok {
		return false
	}
	return t.ApproveIssue(id)
}

func (s *Session) RunDiagnostics() {
	s.note(DiagnosticsText)
}

func (s *Session) ExportAnonymizedData() {
	s.note(ExportText)
}

func (s *Session) note(text string) {
	if s.closed {
		return
	}
	s.log.Append(text, s.sched.Now())
}

// Status returns the timer status for kind.
func (s *Session) Status(kind condition.Kind) (alerter.Status, bool) {
	t, ok := s.timers[kind]
	if !ok {
		return alerter.Status{}, false
	}
	return t.Status(), true
}

// Snapshot copies everything the host UI renders.
func (s *Session) Snapshot() state.Snapshot {
	record := s.vitals.Snapshot()
	snap := state.Snapshot{
		Entered: !s.closed,
		User:    s.user,
		TakenAt: s.sched.Now(),
		Record:  record,
		Vitals:  state.VitalsFrom(record),
		Log:     s.log.Entries(),
		Issues:  s.issues.List(),
	}
	for _, kind := range s.order {
		t, ok := s.timers[kind]
		if !ok {
			continue
		}
		st := t.Status()
		p := t.Profile()
		snap.Alerts = append(snap.Alerts, state.AlertView{
			Kind:           kind,
			State:          st.State,
			Remaining:      st.Remaining,
			Resolution:     st.Resolution,
			Banner:         p.Banner,
			CountdownLabel: p.CountdownLabel,
		})
	}
	return snap
}
