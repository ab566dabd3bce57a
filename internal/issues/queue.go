package issues

import (
	"time"

	"github.com/google/uuid"

	"github.com/mattmezza/biopatch/internal/condition"
)

// Issue is a rejected treatment waiting for manual approval.
type Issue struct {
	ID        string         `json:"id"`
	Kind      condition.Kind `json:"kind"`
	Title     string         `json:"title"`
	Subtitle  string         `json:"subtitle"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewID returns a fresh issue token.
func NewID() string {
	return uuid.NewString()
}

// Queue is the set of deferred issues keyed by id. List keeps insertion
// order for display only.
// It is not safe for concurrent use; the owning session serializes access.
type Queue struct {
	byID  map[string]Issue
	order []string
}

func NewQueue() *Queue {
	return &Queue{byID: make(map[string]Issue)}
}

// Insert adds or replaces an issue.
func (q *Queue) Insert(issue Issue) {
	if _, exists := q.byID[issue.ID]; !exists {
		q.order = append(q.order, issue.ID)
	}
	q.byID[issue.ID] = issue
}

// Remove deletes the issue with id. A missing id is a no-op and reports false.
func (q *Queue) Remove(id string) bool {
	if _, exists := q.byID[id]; !exists {
		return false
	}
	delete(q.byID, id)
	for i, existing := range q.order {
		if existing == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return true
}

func (q *Queue) Get(id string) (Issue, bool) {
	issue, ok := q.byID[id]
	return issue, ok
}

// List returns the queued issues in insertion order.
func (q *Queue) List() []Issue {
	out := make([]Issue, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.byID[id])
	}
	return out
}

func (q *Queue) Len() int {
	return len(q.byID)
}
