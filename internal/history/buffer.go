package history

import (
	"time"
)

// DefaultCapacity is how many timeline entries the dashboard keeps.
const DefaultCapacity = 50

// TimeOfDayLayout is the hour:minute form entries are rendered with.
const TimeOfDayLayout = "15:04"

// Entry is one human-readable line of the health timeline.
type Entry struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

func (e Entry) TimeOfDay() string {
	return e.At.Format(TimeOfDayLayout)
}

// EventLog is an append-only timeline, newest first, bounded to a fixed capacity.
// The oldest entry is evicted once the capacity is exceeded.
// It is not safe for concurrent use; the owning session serializes access.
type EventLog struct {
	entries  []Entry // newest first
	capacity int
	total    int
}

func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &EventLog{
		entries:  make([]Entry, 0, capacity),
		capacity: capacity,
	}
}

// Append records text as the newest entry.
func (l *EventLog) Append(text string, at time.Time) Entry {
	entry := Entry{At: at, Text: text}
	l.total++

	if len(l.entries) < l.capacity {
		l.entries = append(l.entries, Entry{})
	}
	// Shift right by one, dropping the oldest when full.
	copy(l.entries[1:], l.entries[:len(l.entries)-1])
	l.entries[0] = entry
	return entry
}

// Entries returns a newest-first copy of the retained entries.
func (l *EventLog) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Latest returns the newest entry, if any.
func (l *EventLog) Latest() (Entry, bool) {
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[0], true
}

func (l *EventLog) Len() int {
	return len(l.entries)
}

// Total counts every append, including evicted entries.
func (l *EventLog) Total() int {
	return l.total
}

func (l *EventLog) Capacity() int {
	return l.capacity
}
