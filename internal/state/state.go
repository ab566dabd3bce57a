package state

import (
	"time"

	"github.com/mattmezza/biopatch/internal/alerter"
	"github.com/mattmezza/biopatch/internal/condition"
	"github.com/mattmezza/biopatch/internal/history"
	"github.com/mattmezza/biopatch/internal/issues"
	"github.com/mattmezza/biopatch/internal/vitals"
)

// VitalView is one dashboard tile.
type VitalView struct {
	Field     vitals.Field  `json:"field"`
	Label     string        `json:"label"`
	Value     int           `json:"value"`
	Formatted string        `json:"formatted"`
	Status    vitals.Status `json:"status"`
}

// AlertView is what an alert banner needs.
type AlertView struct {
	Kind           condition.Kind     `json:"kind"`
	State          alerter.State      `json:"state"`
	Remaining      int                `json:"seconds_remaining"`
	Resolution     alerter.Resolution `json:"resolution,omitempty"`
	Banner         string             `json:"banner"`
	CountdownLabel string             `json:"countdown_label"`
}

// Snapshot is a consistent copy of a dashboard session.
type Snapshot struct {
	Entered bool            `json:"entered"`
	User    string          `json:"user,omitempty"`
	TakenAt time.Time       `json:"taken_at"`
	Record  vitals.Record   `json:"record"`
	Vitals  []VitalView     `json:"vitals"`
	Log     []history.Entry `json:"log"`
	Issues  []issues.Issue  `json:"issues"`
	Alerts  []AlertView     `json:"alerts"`
}

// ActiveAlerts returns the alerts whose countdown is running.
func (s Snapshot) ActiveAlerts() []AlertView {
	var active []AlertView
	for _, a := range s.Alerts {
		if a.State == alerter.StateActive {
			active = append(active, a)
		}
	}
	return active
}

// Alert returns the view for kind.
func (s Snapshot) Alert(kind condition.Kind) (AlertView, bool) {
	for _, a := range s.Alerts {
		if a.Kind == kind {
			return a, true
		}
	}
	return AlertView{}, false
}

// VitalsFrom builds the tiles for a record.
func VitalsFrom(r vitals.Record) []VitalView {
	views := make([]VitalView, 0, len(vitals.Fields()))
	for _, f := range vitals.Fields() {
		v := r.Value(f)
		views = append(views, VitalView{
			Field:     f,
			Label:     f.Label(),
			Value:     v,
			Formatted: f.Format(v),
			Status:    vitals.StatusOf(f, v),
		})
	}
	return views
}
