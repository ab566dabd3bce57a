package vitals

import (
	"fmt"
	"strings"
)

// Field identifies one physiological reading on the patch.
type Field string

const (
	SystolicBP  Field = "systolic_bp"
	DiastolicBP Field = "diastolic_bp"
	HeartRate   Field = "heart_rate"
	SpO2        Field = "spo2"
	Glucose     Field = "glucose"
)

// Fields lists every field in display order.
func Fields() []Field {
	return []Field{SystolicBP, DiastolicBP, HeartRate, SpO2, Glucose}
}

// Unit returns the unit the field is reported in.
func (f Field) Unit() string {
	switch f {
	case SystolicBP, DiastolicBP:
		return "mmHg"
	case HeartRate:
		return "bpm"
	case SpO2:
		return "%"
	case Glucose:
		return "mg/dL"
	}
	return ""
}

// Label is the short name shown on the dashboard tiles.
func (f Field) Label() string {
	switch f {
	case SystolicBP:
		return "SBP"
	case DiastolicBP:
		return "DBP"
	case HeartRate:
		return "Heart Rate"
	case SpO2:
		return "SpO₂"
	case Glucose:
		return "Glucose"
	}
	return string(f)
}

// Format renders a value with its unit, e.g. "85 bpm" or "98%".
func (f Field) Format(value int) string {
	if f == SpO2 {
		return fmt.Sprintf("%d%%", value)
	}
	return fmt.Sprintf("%d %s", value, f.Unit())
}

// ParseField accepts the snake_case field names used in config files.
func ParseField(s string) (Field, error) {
	for _, f := range Fields() {
		if strings.EqualFold(string(f), strings.TrimSpace(s)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown vitals field '%s'", s)
}

// Record is the current simulated physiological state.
type Record struct {
	SystolicBP  int `yaml:"systolic_bp" json:"systolic_bp"`
	DiastolicBP int `yaml:"diastolic_bp" json:"diastolic_bp"`
	HeartRate   int `yaml:"heart_rate" json:"heart_rate"`
	SpO2        int `yaml:"spo2" json:"spo2"`
	Glucose     int `yaml:"glucose" json:"glucose"`
}

// Baseline is the record a fresh patch reports when the dashboard opens.
func Baseline() Record {
	return Record{
		SystolicBP:  110,
		DiastolicBP: 70,
		HeartRate:   85,
		SpO2:        98,
		Glucose:     90,
	}
}

// Value returns the reading for f.
func (r Record) Value(f Field) int {
	switch f {
	case SystolicBP:
		return r.SystolicBP
	case DiastolicBP:
		return r.DiastolicBP
	case HeartRate:
		return r.HeartRate
	case SpO2:
		return r.SpO2
	case Glucose:
		return r.Glucose
	}
	return 0
}

func (r *Record) set(f Field, v int) {
	switch f {
	case SystolicBP:
		r.SystolicBP = v
	case DiastolicBP:
		r.DiastolicBP = v
	case HeartRate:
		r.HeartRate = v
	case SpO2:
		r.SpO2 = v
	case Glucose:
		r.Glucose = v
	}
}

// Store holds the live record for one dashboard session.
// It is not safe for concurrent use; the owning session serializes access.
type Store struct {
	record Record
}

func NewStore(baseline Record) *Store {
	return &Store{record: baseline}
}

func (s *Store) Get(f Field) int {
	return s.record.Value(f)
}

// Set overwrites a single field in place.
func (s *Store) Set(f Field, value int) {
	s.record.set(f, value)
}

// Snapshot returns a copy of the current record.
func (s *Store) Snapshot() Record {
	return s.record
}
