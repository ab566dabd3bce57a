package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var durationRegex = regexp.MustCompile(`^(\d+)(ms|s|m|h)?$`)

// ParseDurationString converts strings like "500ms", "1s", "5m" or "1h" into a
// time.Duration. A bare number is read as seconds.
func ParseDurationString(durationStr string) (time.Duration, error) {
	trimmed := strings.ToLower(strings.TrimSpace(durationStr))
	if trimmed == "" {
		return 0, nil
	}

	matches := durationRegex.FindStringSubmatch(trimmed)
	if len(matches) != 3 {
		return 0, fmt.Errorf("invalid duration string format: %s. Use '500ms', '10s', '5m', '1h'", durationStr)
	}

	value, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration numeric value: %s", matches[1])
	}

	var unit time.Duration
	switch matches[2] {
	case "ms":
		unit = time.Millisecond
	case "", "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	}

	return time.Duration(value) * unit, nil
}
