package alerter

import (
	"time"

	"github.com/mattmezza/biopatch/internal/condition"
)

// State is where a condition's episode currently stands.
type State string

const (
	StateDormant  State = "DORMANT"
	StateArmed    State = "ARMED"
	StateActive   State = "ACTIVE"
	StateResolved State = "RESOLVED"
)

// Resolution records how an Active alert was closed.
type Resolution string

const (
	ResolutionNone      Resolution = ""
	ResolutionManual    Resolution = "MANUAL"
	ResolutionRejected  Resolution = "REJECTED"
	ResolutionAutomatic Resolution = "AUTOMATIC"
	ResolutionFromIssue Resolution = "FROM_ISSUE"
)

type EventType string

const (
	EventTypeArmed         EventType = "ARMED"
	EventTypeOpened        EventType = "OPENED"
	EventTypeTick          EventType = "TICK"
	EventTypeResolved      EventType = "RESOLVED"
	EventTypeIssueApproved EventType = "ISSUE_APPROVED"
)

// AlertEvent is published for every transition a Timer makes.
type AlertEvent struct {
	Kind       condition.Kind
	Type       EventType
	Resolution Resolution
	Remaining  int    // seconds left on the countdown, for OPENED and TICK
	Value      int    // vitals value after the transition
	IssueID    string // set for REJECTED resolutions and ISSUE_APPROVED
	Timestamp  time.Time
}

// Status is a read-only view of a Timer.
type Status struct {
	Kind       condition.Kind
	State      State
	Remaining  int
	FireAt     time.Time
	Resolution Resolution
}
