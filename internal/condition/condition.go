package condition

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattmezza/biopatch/internal/vitals"
)

var ErrUnknownKind = errors.New("unknown condition")

// Kind is one of the simulated physiological anomalies.
type Kind string

const (
	HighGlucose   Kind = "high_glucose"
	HighHeartRate Kind = "high_heart_rate"
	LowSpO2       Kind = "low_spo2"
)

// Order is the sequence in which the scripted scenario degrades the patient.
func Order() []Kind {
	return []Kind{HighGlucose, HighHeartRate, LowSpO2}
}

func (k Kind) String() string {
	return string(k)
}

func ParseKind(s string) (Kind, error) {
	for _, k := range Order() {
		if strings.EqualFold(string(k), strings.TrimSpace(s)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w '%s'", ErrUnknownKind, s)
}

// Profile is everything the alert state machine needs to know about a kind.
type Profile struct {
	Kind     Kind
	Field    vitals.Field
	Degraded int
	Normal   int

	Treatment string // "Insulin"
	Action    string // "injected" or "triggered"

	IssueTitle    string
	IssueSubtitle string
	RejectText    string

	Banner         string
	CountdownLabel string
}

// ManualText is logged when the user approves the treatment from the alert.
func (p Profile) ManualText() string {
	return fmt.Sprintf("%s %s manually by user.", p.Treatment, p.Action)
}

// IssueText is logged when the treatment is approved from the issues list.
func (p Profile) IssueText() string {
	return fmt.Sprintf("%s %s manually by user (from issues list).", p.Treatment, p.Action)
}

// AutomaticText is logged when the countdown runs out.
func (p Profile) AutomaticText(timeOfDay string) string {
	return fmt.Sprintf("%s %s automatically at %s", p.Treatment, p.Action, timeOfDay)
}

// DefaultProfiles returns the reference table keyed by kind.
func DefaultProfiles() map[Kind]Profile {
	return map[Kind]Profile{
		HighGlucose: {
			Kind:           HighGlucose,
			Field:          vitals.Glucose,
			Degraded:       120,
			Normal:         90,
			Treatment:      "Insulin",
			Action:         "injected",
			IssueTitle:     "High blood sugar detected",
			IssueSubtitle:  "Patch suggests insulin release.",
			RejectText:     "User rejected insulin auto-injection. Added to issues list.",
			Banner:         "⚠️ High blood sugar detected.",
			CountdownLabel: "Auto-injection",
		},
		HighHeartRate: {
			Kind:           HighHeartRate,
			Field:          vitals.HeartRate,
			Degraded:       130,
			Normal:         85,
			Treatment:      "β-blocker",
			Action:         "injected",
			IssueTitle:     "High heart rate detected",
			IssueSubtitle:  "Patch suggests β-blocker release.",
			RejectText:     "User rejected β-blocker auto-injection. Added to issues list.",
			Banner:         "⚠️ High heart rate detected.",
			CountdownLabel: "Auto-injection",
		},
		LowSpO2: {
			Kind:           LowSpO2,
			Field:          vitals.SpO2,
			Degraded:       92,
			Normal:         98,
			Treatment:      "Oxygen therapy",
			Action:         "triggered",
			IssueTitle:     "Low SpO₂ detected",
			IssueSubtitle:  "Patch suggests oxygen therapy.",
			RejectText:     "User rejected oxygen therapy. Added to issues list.",
			Banner:         "⚠️ Low oxygen level detected.",
			CountdownLabel: "Auto-therapy",
		},
	}
}
