package metrics

import (
	"math"

	"github.com/san-kum/jointctl/internal/dynamo"
)

// Settling is the time after which the measured angle stayed within band
// (rad) of the goal. It is +Inf while the joint is outside the band.
type Settling struct {
	band    float64
	settled float64
	inside  bool
	samples int
}

func NewSettling(band float64) *Settling {
	return &Settling{band: band}
}

func (s *Settling) Name() string { return "settling_time" }

func (s *Settling) Observe(sample dynamo.Sample) {
	s.samples++
	if math.Abs(sample.Angle-sample.Goal) > s.band {
		s.inside = false
		return
	}
	if !s.inside {
		s.inside = true
		s.settled = sample.Time
	}
}

func (s *Settling) Value() float64 {
	if s.samples == 0 || !s.inside {
		return math.Inf(1)
	}
	return s.settled
}

func (s *Settling) Reset() {
	s.settled = 0
	s.inside = false
	s.samples = 0
}

// Standard returns the metrics the CLI reports for every run.
func Standard(band float64) []dynamo.Metric {
	return []dynamo.Metric{
		NewControlEffort(),
		NewTrackingError(),
		NewSaturation(),
		NewSettling(band),
	}
}
