package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerLevels(t *testing.T) {
	testCases := []struct {
		level    string
		expected zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			log, err := NewLogger(tc.level, "console", "stderr", "")
			require.NoError(t, err)
			assert.True(t, log.Core().Enabled(tc.expected))
			if tc.expected > zapcore.DebugLevel {
				assert.False(t, log.Core().Enabled(tc.expected-1))
			}
		})
	}
}

func TestNewLoggerRejectsUnknownSettings(t *testing.T) {
	_, err := NewLogger("loud", "console", "stderr", "")
	assert.Error(t, err)

	_, err = NewLogger("info", "xml", "stderr", "")
	assert.Error(t, err)
}

func TestNewLoggerWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "biopatch.log")
	log, err := NewLogger("info", "json", path, "biopatch")
	require.NoError(t, err)

	log.Info("Alert opened")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "Alert opened", entry["msg"])
	assert.Equal(t, "biopatch", entry["service_name"])
	assert.Contains(t, entry, "timestamp")
}
