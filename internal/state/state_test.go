package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattmezza/biopatch/internal/alerter"
	"github.com/mattmezza/biopatch/internal/condition"
	"github.com/mattmezza/biopatch/internal/vitals"
)

func TestVitalsFrom(t *testing.T) {
	r := vitals.Baseline()
	r.Glucose = 250
	r.SpO2 = 88

	views := VitalsFrom(r)
	require.Len(t, views, len(vitals.Fields()))

	byField := make(map[vitals.Field]VitalView)
	for _, v := range views {
		byField[v.Field] = v
	}

	testCases := []struct {
		field     vitals.Field
		formatted string
		status    vitals.Status
	}{
		{vitals.SystolicBP, "110 mmHg", vitals.StatusGreen},
		{vitals.HeartRate, "85 bpm", vitals.StatusGreen},
		{vitals.SpO2, "88%", vitals.StatusYellow},
		{vitals.Glucose, "250 mg/dL", vitals.StatusRed},
	}
	for _, tc := range testCases {
		t.Run(string(tc.field), func(t *testing.T) {
			v := byField[tc.field]
			assert.Equal(t, tc.formatted, v.Formatted)
			assert.Equal(t, tc.status, v.Status)
			assert.Equal(t, tc.field.Label(), v.Label)
		})
	}
	assert.Equal(t, vitals.SystolicBP, views[0].Field)
}

func TestSnapshotAlerts(t *testing.T) {
	snap := Snapshot{Alerts: []AlertView{
		{Kind: condition.HighGlucose, State: alerter.StateResolved},
		{Kind: condition.HighHeartRate, State: alerter.StateActive, Remaining: 7},
		{Kind: condition.LowSpO2, State: alerter.StateDormant},
	}}

	active := snap.ActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, condition.HighHeartRate, active[0].Kind)

	a, ok := snap.Alert(condition.LowSpO2)
	assert.True(t, ok)
	assert.Equal(t, alerter.StateDormant, a.State)

	_, ok = Snapshot{}.Alert(condition.HighGlucose)
	assert.False(t, ok)
	assert.Empty(t, Snapshot{}.ActiveAlerts())
}
