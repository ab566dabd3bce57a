package alerter

import (
	"time"

	"go.uber.org/zap"

	"github.com/mattmezza/biopatch/internal/condition"
	"github.com/mattmezza/biopatch/internal/history"
	"github.com/mattmezza/biopatch/internal/issues"
	"github.com/mattmezza/biopatch/internal/schedule"
	"github.com/mattmezza/biopatch/internal/vitals"
)

// DefaultCountdown is how many ticks an Active alert waits for the user.
const DefaultCountdown = 10

// Env is the session state a Timer reads and mutates.
type Env struct {
	Sched     *schedule.Scheduler
	Vitals    *vitals.Store
	Log       *history.EventLog
	Issues    *issues.Queue
	Tick      time.Duration
	Countdown int
	NewID     func() string
	Emit      func(AlertEvent)
	Logger    *zap.Logger
}

// Timer is the alert state machine for one condition kind:
// Dormant -> Armed -> Active -> Resolved. Leaving Active is terminal for
// the current scenario.
//
// All methods must run on the scheduler's thread.
type Timer struct {
	profile condition.Profile
	env     *Env

	state      State
	fireAt     time.Time
	remaining  int
	resolution Resolution

	armTask  *schedule.Task
	tickTask *schedule.Task

	// OnResolved is called after the alert leaves Active, whichever path closed it.
	OnResolved func(kind condition.Kind, how Resolution)
}

func NewTimer(profile condition.Profile, env *Env) *Timer {
	if env.Countdown <= 0 {
		env.Countdown = DefaultCountdown
	}
	if env.Tick <= 0 {
		env.Tick = time.Second
	}
	if env.NewID == nil {
		env.NewID = issues.NewID
	}
	if env.Logger == nil {
		env.Logger = zap.NewNop()
	}
	return &Timer{
		profile: profile,
		env:     env,
		state:   StateDormant,
	}
}

func (t *Timer) Kind() condition.Kind {
	return t.profile.Kind
}

func (t *Timer) Profile() condition.Profile {
	return t.profile
}

func (t *Timer) State() State {
	return t.state
}

// Remaining is the countdown value; only meaningful while Active.
func (t *Timer) Remaining() int {
	if t.state != StateActive {
		return 0
	}
	return t.remaining
}

func (t *Timer) Status() Status {
	return Status{
		Kind:       t.profile.Kind,
		State:      t.state,
		Remaining:  t.Remaining(),
		FireAt:     t.fireAt,
		Resolution: t.resolution,
	}
}

// Arm schedules the degradation to fire after delay. Only a Dormant timer can be armed.
func (t *Timer) Arm(delay time.Duration) bool {
	if t.state != StateDormant {
		return false
	}
	if delay < 0 {
		delay = 0
	}
	t.state = StateArmed
	t.fireAt = t.env.Sched.Now().Add(delay)
	t.armTask = t.env.Sched.After(delay, t.fire)

	t.env.Logger.Debug("Alert armed",
		zap.String("condition", t.profile.Kind.String()),
		zap.Duration("fire_after", delay),
	)
	t.emit(AlertEvent{Type: EventTypeArmed})
	return true
}

func (t *Timer) fire() {
	if t.state != StateArmed {
		return
	}
	t.armTask = nil
	t.state = StateActive
	t.remaining = t.env.Countdown
	t.env.Vitals.Set(t.profile.Field, t.profile.Degraded)
	t.tickTask = t.env.Sched.Every(t.env.Tick, t.tick)

	t.env.Logger.Info("Alert opened",
		zap.String("condition", t.profile.Kind.String()),
		zap.String("field", string(t.profile.Field)),
		zap.Int("value", t.profile.Degraded),
		zap.Int("countdown", t.remaining),
	)
	t.emit(AlertEvent{Type: EventTypeOpened, Remaining: t.remaining, Value: t.profile.Degraded})
}

func (t *Timer) tick() {
	// A manual resolution in the same turn wins over a queued tick.
	if t.state != StateActive {
		return
	}
	t.remaining--
	if t.remaining > 0 {
		t.emit(AlertEvent{Type: EventTypeTick, Remaining: t.remaining, Value: t.env.Vitals.Get(t.profile.Field)})
		return
	}
	t.remaining = 0
	now := t.env.Sched.Now()
	t.resolve(ResolutionAutomatic)
	t.normalize()
	t.env.Log.Append(t.profile.AutomaticText(now.Format(history.TimeOfDayLayout)), now)
	t.finish(ResolutionAutomatic, "")
}

// ApproveNow applies the treatment immediately. It is a no-op unless Active.
func (t *Timer) ApproveNow() bool {
	if t.state != StateActive {
		return false
	}
	t.resolve(ResolutionManual)
	t.normalize()
	t.env.Log.Append(t.profile.ManualText(), t.env.Sched.Now())
	t.finish(ResolutionManual, "")
	return true
}

// RejectNow defers the treatment to the issues list. It is a no-op unless Active.
func (t *Timer) RejectNow() (issues.Issue, bool) {
	if t.state != StateActive {
		return issues.Issue{}, false
	}
	now := t.env.Sched.Now()
	t.resolve(ResolutionRejected)
	issue := issues.Issue{
		ID:        t.env.NewID(),
		Kind:      t.profile.Kind,
		Title:     t.profile.IssueTitle,
		Subtitle:  t.profile.IssueSubtitle,
		CreatedAt: now,
	}
	t.env.Issues.Insert(issue)
	t.env.Log.Append(t.profile.RejectText, now)
	t.finish(ResolutionRejected, issue.ID)
	return issue, true
}

// ApproveIssue applies a deferred treatment. Unknown ids, and ids belonging to
// another condition, are ignored.
func (t *Timer) ApproveIssue(id string) bool {
	issue, ok := t.env.Issues.Get(id)
	if !ok || issue.Kind != t.profile.Kind {
		return false
	}
	t.env.Issues.Remove(id)
	t.normalize()
	t.env.Log.Append(t.profile.IssueText(), t.env.Sched.Now())

	t.env.Logger.Info("Deferred treatment approved",
		zap.String("condition", t.profile.Kind.String()),
		zap.String("issue_id", id),
	)
	t.emit(AlertEvent{Type: EventTypeIssueApproved, Resolution: ResolutionFromIssue, IssueID: id, Value: t.profile.Normal})
	return true
}

// Stop releases any pending arm or tick task without changing state.
func (t *Timer) Stop() {
	t.armTask.Cancel()
	t.armTask = nil
	t.tickTask.Cancel()
	t.tickTask = nil
}

func (t *Timer) resolve(how Resolution) {
	t.state = StateResolved
	t.resolution = how
	t.tickTask.Cancel()
	t.tickTask = nil
}

func (t *Timer) normalize() {
	t.env.Vitals.Set(t.profile.Field, t.profile.Normal)
}

func (t *Timer) finish(how Resolution, issueID string) {
	t.env.Logger.Info("Alert resolved",
		zap.String("condition", t.profile.Kind.String()),
		zap.String("resolution", string(how)),
	)
	t.emit(AlertEvent{
		Type:       EventTypeResolved,
		Resolution: how,
		IssueID:    issueID,
		Value:      t.env.Vitals.Get(t.profile.Field),
	})
	if t.OnResolved != nil {
		t.OnResolved(t.profile.Kind, how)
	}
}

func (t *Timer) emit(ev AlertEvent) {
	if t.env.Emit == nil {
		return
	}
	ev.Kind = t.profile.Kind
	if ev.Timestamp.IsZero() {
		ev.Timestamp = t.env.Sched.Now()
	}
	t.env.Emit(ev)
}
