package insights

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/mattmezza/biopatch/internal/history"
	"github.com/mattmezza/biopatch/internal/vitals"
)

// Hours is the length of the insight window.
const Hours = 24

// Sample is one synthetic hourly reading.
type Sample struct {
	At          time.Time `json:"at"`
	Hour        string    `json:"hour"`
	SystolicBP  int       `json:"systolic_bp"`
	DiastolicBP int       `json:"diastolic_bp"`
	HeartRate   int       `json:"heart_rate"`
	SpO2        int       `json:"spo2"`
}

// Fields lists the vitals a Sample carries, in chart order.
func Fields() []vitals.Field {
	return []vitals.Field{vitals.SystolicBP, vitals.DiastolicBP, vitals.HeartRate, vitals.SpO2}
}

func (s Sample) Value(f vitals.Field) (int, bool) {
	switch f {
	case vitals.SystolicBP:
		return s.SystolicBP, true
	case vitals.DiastolicBP:
		return s.DiastolicBP, true
	case vitals.HeartRate:
		return s.HeartRate, true
	case vitals.SpO2:
		return s.SpO2, true
	}
	return 0, false
}

// Generator produces the last-24-hours chart. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Last24h returns Hours samples, oldest first, the last one stamped at now.
func (g *Generator) Last24h(now time.Time) []Sample {
	g.mu.Lock()
	defer g.mu.Unlock()

	samples := make([]Sample, Hours)
	for i := range samples {
		at := now.Add(-time.Duration(Hours-1-i) * time.Hour)
		x := float64(i)
		samples[i] = Sample{
			At:          at,
			Hour:        at.Format(history.TimeOfDayLayout),
			SystolicBP:  105 + round(math.Sin(x/3)*6+g.rng.Float64()*4),
			DiastolicBP: 70 + round(math.Cos(x/3)*4+g.rng.Float64()*3),
			HeartRate:   80 + round(math.Cos(x/4)*8+g.rng.Float64()*3),
			SpO2:        96 + round(g.rng.Float64()*2),
		}
	}
	return samples
}

// Summary aggregates one field over a window.
type Summary struct {
	Field vitals.Field `json:"field"`
	Min   int          `json:"min"`
	Max   int          `json:"max"`
	Avg   float64      `json:"avg"`
}

// Summarize returns one Summary per field in Fields order. An empty window
// yields zero summaries.
func Summarize(samples []Sample) []Summary {
	out := make([]Summary, 0, len(Fields()))
	for _, f := range Fields() {
		s := Summary{Field: f}
		total := 0
		for i, sample := range samples {
			v, _ := sample.Value(f)
			if i == 0 || v < s.Min {
				s.Min = v
			}
			if i == 0 || v > s.Max {
				s.Max = v
			}
			total += v
		}
		if len(samples) > 0 {
			s.Avg = float64(total) / float64(len(samples))
		}
		out = append(out, s)
	}
	return out
}

// Series extracts one field from samples.
func Series(samples []Sample, f vitals.Field) []int {
	out := make([]int, 0, len(samples))
	for _, s := range samples {
		v, ok := s.Value(f)
		if !ok {
			return nil
		}
		out = append(out, v)
	}
	return out
}

func round(v float64) int {
	return int(math.Round(v))
}
