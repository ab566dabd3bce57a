package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDurationString(t *testing.T) {
	testCases := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{input: "", expected: 0},
		{input: "0", expected: 0},
		{input: "500ms", expected: 500 * time.Millisecond},
		{input: "1s", expected: time.Second},
		{input: "15", expected: 15 * time.Second},
		{input: "5m", expected: 5 * time.Minute},
		{input: " 1H ", expected: time.Hour},
		{input: "1.5s", wantErr: true},
		{input: "-1s", wantErr: true},
		{input: "10d", wantErr: true},
		{input: "soon", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseDurationString(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}
