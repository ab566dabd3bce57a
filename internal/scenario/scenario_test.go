package scenario

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattmezza/biopatch/internal/alerter"
	"github.com/mattmezza/biopatch/internal/clock"
	"github.com/mattmezza/biopatch/internal/condition"
	"github.com/mattmezza/biopatch/internal/history"
	"github.com/mattmezza/biopatch/internal/issues"
	"github.com/mattmezza/biopatch/internal/schedule"
	"github.com/mattmezza/biopatch/internal/vitals"
)

type harness struct {
	clock    *clock.Fake
	sched    *schedule.Scheduler
	timers   []*alerter.Timer
	scenario *Scenario
	resolved []condition.Kind
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	c := clock.NewFake(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	h := &harness{clock: c, sched: schedule.New(c)}
	env := &alerter.Env{
		Sched:  h.sched,
		Vitals: vitals.NewStore(vitals.Baseline()),
		Log:    history.NewEventLog(history.DefaultCapacity),
		Issues: issues.NewQueue(),
		Tick:   time.Second,
		Emit:   func(alerter.AlertEvent) {},
	}
	profiles := condition.DefaultProfiles()
	for _, kind := range condition.Order() {
		timer := alerter.NewTimer(profiles[kind], env)
		timer.OnResolved = func(kind condition.Kind, _ alerter.Resolution) {
			h.resolved = append(h.resolved, kind)
		}
		h.timers = append(h.timers, timer)
	}
	h.scenario = New(h.sched, h.timers, DefaultInterval, nil)
	return h
}

func (h *harness) start() {
	h.sched.Do(h.scenario.Start)
}

func (h *harness) states() []alerter.State {
	var states []alerter.State
	h.sched.Do(func() {
		for _, t := range h.timers {
			states = append(states, t.State())
		}
	})
	return states
}

func TestUnattendedRun(t *testing.T) {
	h := newHarness(t)
	h.start()

	testCases := []struct {
		at     time.Duration
		states []alerter.State
	}{
		{0, []alerter.State{alerter.StateArmed, alerter.StateDormant, alerter.StateDormant}},
		{15 * time.Second, []alerter.State{alerter.StateActive, alerter.StateDormant, alerter.StateDormant}},
		{25 * time.Second, []alerter.State{alerter.StateResolved, alerter.StateArmed, alerter.StateDormant}},
		{30 * time.Second, []alerter.State{alerter.StateResolved, alerter.StateActive, alerter.StateDormant}},
		{40 * time.Second, []alerter.State{alerter.StateResolved, alerter.StateResolved, alerter.StateArmed}},
		{45 * time.Second, []alerter.State{alerter.StateResolved, alerter.StateResolved, alerter.StateActive}},
		{55 * time.Second, []alerter.State{alerter.StateResolved, alerter.StateResolved, alerter.StateResolved}},
	}

	var elapsed time.Duration
	for _, tc := range testCases {
		h.clock.Advance(tc.at - elapsed)
		elapsed = tc.at
		assert.Equal(t, tc.states, h.states(), "at %s", tc.at)
	}

	assert.Equal(t, condition.Order(), h.resolved)
	var done bool
	h.sched.Do(func() { done = h.scenario.Done() })
	assert.True(t, done)
}

func TestEarlyResolutionKeepsScheduleFromStart(t *testing.T) {
	h := newHarness(t)
	h.start()

	h.clock.Advance(16 * time.Second)
	h.sched.Do(func() { require.True(t, h.timers[0].ApproveNow()) })

	// Heart rate stays due at 30s, not 16s + 15s.
	h.clock.Advance(13 * time.Second)
	assert.Equal(t, alerter.StateArmed, h.states()[1])
	h.clock.Advance(time.Second)
	assert.Equal(t, alerter.StateActive, h.states()[1])
}

func TestDeadline(t *testing.T) {
	h := newHarness(t)
	start := h.clock.Now()
	h.start()

	for i, want := range []time.Duration{15 * time.Second, 30 * time.Second, 45 * time.Second} {
		assert.Equal(t, start.Add(want), h.scenario.Deadline(i))
	}
}

func TestStartIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.clock.Advance(5 * time.Second)
	h.start()

	h.clock.Advance(10 * time.Second)
	assert.Equal(t, alerter.StateActive, h.states()[0], "second Start must not reset the schedule")
}

func TestStopCancelsPendingTimers(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.clock.Advance(15 * time.Second)
	h.sched.Do(h.scenario.Stop)

	h.clock.Advance(time.Minute)
	assert.Empty(t, h.resolved)
	assert.Equal(t, 0, h.sched.Pending())
}

func TestDefaultInterval(t *testing.T) {
	s := New(schedule.New(clock.NewFake(time.Now())), nil, 0, nil)
	assert.Equal(t, DefaultInterval, s.interval)
}
