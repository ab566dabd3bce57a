package alerter

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattmezza/biopatch/internal/clock"
	"github.com/mattmezza/biopatch/internal/condition"
	"github.com/mattmezza/biopatch/internal/history"
	"github.com/mattmezza/biopatch/internal/issues"
	"github.com/mattmezza/biopatch/internal/schedule"
	"github.com/mattmezza/biopatch/internal/vitals"
)

type harness struct {
	clock  *clock.Fake
	sched  *schedule.Scheduler
	env    *Env
	events []AlertEvent
	timers map[condition.Kind]*Timer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	c := clock.NewFake(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	h := &harness{clock: c, sched: schedule.New(c), timers: make(map[condition.Kind]*Timer)}
	seq := 0
	h.env = &Env{
		Sched:     h.sched,
		Vitals:    vitals.NewStore(vitals.Baseline()),
		Log:       history.NewEventLog(history.DefaultCapacity),
		Issues:    issues.NewQueue(),
		Tick:      time.Second,
		Countdown: DefaultCountdown,
		NewID: func() string {
			seq++
			return fmt.Sprintf("issue-%d", seq)
		},
		Emit: func(ev AlertEvent) { h.events = append(h.events, ev) },
	}
	for kind, profile := range condition.DefaultProfiles() {
		h.timers[kind] = NewTimer(profile, h.env)
	}
	return h
}

// activate arms kind with no delay and lets it fire.
func (h *harness) activate(t *testing.T, kind condition.Kind) *Timer {
	t.Helper()
	timer := h.timers[kind]
	h.sched.Do(func() { require.True(t, timer.Arm(0)) })
	h.clock.Advance(0)
	require.Equal(t, StateActive, timer.State())
	return timer
}

func (h *harness) logTexts() []string {
	var out []string
	for _, e := range h.env.Log.Entries() {
		out = append(out, e.Text)
	}
	return out
}

func TestArmThenFireDegradesVitals(t *testing.T) {
	for _, kind := range condition.Order() {
		t.Run(kind.String(), func(t *testing.T) {
			h := newHarness(t)
			timer := h.timers[kind]
			profile := timer.Profile()
			baseline := h.env.Vitals.Get(profile.Field)

			h.sched.Do(func() { assert.True(t, timer.Arm(15*time.Second)) })
			assert.Equal(t, StateArmed, timer.State())
			assert.Equal(t, 0, timer.Remaining())

			h.clock.Advance(14 * time.Second)
			assert.Equal(t, StateArmed, timer.State())
			assert.Equal(t, baseline, h.env.Vitals.Get(profile.Field))

			h.clock.Advance(time.Second)
			assert.Equal(t, StateActive, timer.State())
			assert.Equal(t, profile.Degraded, h.env.Vitals.Get(profile.Field))
			assert.Equal(t, DefaultCountdown, timer.Remaining())
		})
	}
}

func TestArmOnlyFromDormant(t *testing.T) {
	h := newHarness(t)
	timer := h.activate(t, condition.HighGlucose)

	h.sched.Do(func() { assert.False(t, timer.Arm(time.Second)) })
	assert.Equal(t, StateActive, timer.State())
}

func TestCountdownDecreasesThenExpiresOnce(t *testing.T) {
	h := newHarness(t)
	timer := h.activate(t, condition.HighGlucose)

	resolved := 0
	timer.OnResolved = func(condition.Kind, Resolution) { resolved++ }

	for want := DefaultCountdown - 1; want >= 1; want-- {
		h.clock.Advance(time.Second)
		require.Equal(t, StateActive, timer.State())
		require.Equal(t, want, timer.Remaining())
	}

	h.clock.Advance(time.Second)
	assert.Equal(t, StateResolved, timer.State())
	assert.Equal(t, 90, h.env.Vitals.Get(vitals.Glucose))
	assert.Equal(t, 1, resolved)

	h.clock.Advance(time.Minute)
	assert.Equal(t, 1, resolved, "expiry must fire exactly once")
	assert.Equal(t, 0, h.sched.Pending())

	texts := h.logTexts()
	require.Len(t, texts, 1)
	assert.Equal(t, "Insulin injected automatically at 09:00", texts[0])
}

func TestApproveNow(t *testing.T) {
	h := newHarness(t)
	timer := h.activate(t, condition.HighHeartRate)
	h.clock.Advance(3 * time.Second)

	h.sched.Do(func() { assert.True(t, timer.ApproveNow()) })

	assert.Equal(t, StateResolved, timer.State())
	assert.Equal(t, 85, h.env.Vitals.Get(vitals.HeartRate))
	assert.Equal(t, []string{"β-blocker injected manually by user."}, h.logTexts())

	// The tick is gone: no automatic entry ever follows.
	h.clock.Advance(time.Minute)
	assert.Len(t, h.logTexts(), 1)
	assert.Equal(t, 0, h.sched.Pending())
}

func TestApproveNowIsIdempotent(t *testing.T) {
	h := newHarness(t)
	timer := h.activate(t, condition.LowSpO2)

	h.sched.Do(func() { timer.ApproveNow() })
	before := h.env.Vitals.Snapshot()
	entries := h.env.Log.Len()

	h.sched.Do(func() { assert.False(t, timer.ApproveNow()) })
	h.sched.Do(func() {
		_, ok := timer.RejectNow()
		assert.False(t, ok)
	})

	assert.Equal(t, before, h.env.Vitals.Snapshot())
	assert.Equal(t, entries, h.env.Log.Len())
	assert.Equal(t, 0, h.env.Issues.Len())
}

func TestCommandsBeforeActiveAreIgnored(t *testing.T) {
	h := newHarness(t)
	timer := h.timers[condition.HighGlucose]

	h.sched.Do(func() {
		assert.False(t, timer.ApproveNow())
		_, ok := timer.RejectNow()
		assert.False(t, ok)
	})
	assert.Equal(t, StateDormant, timer.State())
	assert.Equal(t, 0, h.env.Log.Len())
}

func TestRejectNowQueuesIssueWithoutTouchingVitals(t *testing.T) {
	h := newHarness(t)
	timer := h.activate(t, condition.HighGlucose)
	before := h.env.Vitals.Snapshot()

	var issue issues.Issue
	h.sched.Do(func() {
		var ok bool
		issue, ok = timer.RejectNow()
		require.True(t, ok)
	})

	assert.Equal(t, before, h.env.Vitals.Snapshot())
	assert.Equal(t, 120, h.env.Vitals.Get(vitals.Glucose))

	list := h.env.Issues.List()
	require.Len(t, list, 1)
	assert.Equal(t, condition.HighGlucose, list[0].Kind)
	assert.Equal(t, "High blood sugar detected", list[0].Title)
	assert.Equal(t, "Patch suggests insulin release.", list[0].Subtitle)
	assert.Equal(t, issue.ID, list[0].ID)
	assert.Equal(t, []string{"User rejected insulin auto-injection. Added to issues list."}, h.logTexts())

	h.clock.Advance(time.Minute)
	assert.Equal(t, 120, h.env.Vitals.Get(vitals.Glucose), "countdown must not expire after rejection")
}

func TestApproveIssue(t *testing.T) {
	h := newHarness(t)
	timer := h.activate(t, condition.HighGlucose)

	var issue issues.Issue
	h.sched.Do(func() { issue, _ = timer.RejectNow() })

	h.sched.Do(func() { assert.True(t, timer.ApproveIssue(issue.ID)) })
	assert.Equal(t, 90, h.env.Vitals.Get(vitals.Glucose))
	assert.Equal(t, 0, h.env.Issues.Len())
	assert.Equal(t, "Insulin injected manually by user (from issues list).", h.logTexts()[0])

	entries := h.env.Log.Len()
	h.sched.Do(func() { assert.False(t, timer.ApproveIssue(issue.ID), "stale id") })
	assert.Equal(t, entries, h.env.Log.Len())
}

func TestApproveIssueIgnoresOtherKinds(t *testing.T) {
	h := newHarness(t)
	glucose := h.activate(t, condition.HighGlucose)

	var issue issues.Issue
	h.sched.Do(func() { issue, _ = glucose.RejectNow() })

	h.sched.Do(func() { assert.False(t, h.timers[condition.LowSpO2].ApproveIssue(issue.ID)) })
	assert.Equal(t, 1, h.env.Issues.Len())
}

func TestManualResolutionBeatsQueuedTick(t *testing.T) {
	h := newHarness(t)
	timer := h.activate(t, condition.HighGlucose)

	// Run the countdown down to its last tick.
	h.clock.Advance(time.Duration(DefaultCountdown-1) * time.Second)
	require.Equal(t, 1, timer.Remaining())

	h.sched.Do(func() { timer.ApproveNow() })
	h.clock.Advance(time.Second)

	for _, text := range h.logTexts() {
		assert.False(t, strings.Contains(text, "automatically"), "tick must not fire after manual resolution")
	}
	assert.Equal(t, ResolutionManual, timer.Status().Resolution)
}

func TestEveryResolutionPathNormalizes(t *testing.T) {
	paths := map[string]func(h *harness, timer *Timer){
		"approve_now": func(h *harness, timer *Timer) {
			h.sched.Do(func() { timer.ApproveNow() })
		},
		"countdown_expiry": func(h *harness, timer *Timer) {
			h.clock.Advance(time.Duration(DefaultCountdown) * time.Second)
		},
		"approve_issue": func(h *harness, timer *Timer) {
			h.sched.Do(func() {
				issue, _ := timer.RejectNow()
				timer.ApproveIssue(issue.ID)
			})
		},
	}

	for _, kind := range condition.Order() {
		for name, resolve := range paths {
			t.Run(kind.String()+"/"+name, func(t *testing.T) {
				h := newHarness(t)
				timer := h.activate(t, kind)
				resolve(h, timer)

				profile := timer.Profile()
				assert.Equal(t, StateResolved, timer.State())
				assert.Equal(t, profile.Normal, h.env.Vitals.Get(profile.Field))
			})
		}
	}
}

func TestStopCancelsPendingTasks(t *testing.T) {
	h := newHarness(t)
	timer := h.timers[condition.HighGlucose]

	h.sched.Do(func() {
		timer.Arm(time.Second)
		timer.Stop()
	})
	h.clock.Advance(time.Minute)

	assert.Equal(t, StateArmed, timer.State())
	assert.Equal(t, 90, h.env.Vitals.Get(vitals.Glucose))
	assert.Equal(t, 0, h.sched.Pending())
}

func TestEventsAreEmitted(t *testing.T) {
	h := newHarness(t)
	timer := h.activate(t, condition.HighGlucose)
	h.clock.Advance(time.Second)
	h.sched.Do(func() { timer.ApproveNow() })

	var types []EventType
	for _, ev := range h.events {
		assert.Equal(t, condition.HighGlucose, ev.Kind)
		types = append(types, ev.Type)
	}
	assert.Equal(t, []EventType{EventTypeArmed, EventTypeOpened, EventTypeTick, EventTypeResolved}, types)
	assert.Equal(t, 9, h.events[2].Remaining)
	assert.Equal(t, ResolutionManual, h.events[3].Resolution)
}
