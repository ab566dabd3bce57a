package vitals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSetAndSnapshot(t *testing.T) {
	store := NewStore(Baseline())

	assert.Equal(t, 90, store.Get(Glucose))

	snap := store.Snapshot()
	store.Set(Glucose, 120)
	store.Set(HeartRate, 130)

	assert.Equal(t, 120, store.Get(Glucose))
	assert.Equal(t, 130, store.Get(HeartRate))
	assert.Equal(t, 90, snap.Glucose, "snapshot must not alias the live record")
	assert.Equal(t, 110, store.Get(SystolicBP))
}

func TestFieldFormat(t *testing.T) {
	assert.Equal(t, "110 mmHg", SystolicBP.Format(110))
	assert.Equal(t, "85 bpm", HeartRate.Format(85))
	assert.Equal(t, "98%", SpO2.Format(98))
	assert.Equal(t, "90 mg/dL", Glucose.Format(90))
}

func TestParseField(t *testing.T) {
	f, err := ParseField("Heart_Rate")
	require.NoError(t, err)
	assert.Equal(t, HeartRate, f)

	_, err = ParseField("temperature")
	assert.Error(t, err)
}

func TestStatusOf(t *testing.T) {
	testCases := []struct {
		name     string
		field    Field
		value    int
		expected Status
	}{
		{"sbp_normal", SystolicBP, 110, StatusGreen},
		{"sbp_high", SystolicBP, 130, StatusRed},
		{"dbp_high", DiastolicBP, 95, StatusRed},
		{"hr_normal", HeartRate, 85, StatusGreen},
		{"hr_high", HeartRate, 130, StatusRed},
		{"spo2_normal", SpO2, 98, StatusGreen},
		{"spo2_low", SpO2, 92, StatusYellow},
		{"glucose_normal", Glucose, 90, StatusGreen},
		{"glucose_high", Glucose, 120, StatusRed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, StatusOf(tc.field, tc.value))
		})
	}
}
