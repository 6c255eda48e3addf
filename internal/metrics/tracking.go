package metrics

import (
	"math"

	"github.com/san-kum/jointctl/internal/dynamo"
)

// TrackingError is the RMS distance between the profiled reference and the
// measured position.
type TrackingError struct {
	sumSq   float64
	samples int
}

func NewTrackingError() *TrackingError {
	return &TrackingError{}
}

func (t *TrackingError) Name() string { return "tracking_rms" }

func (t *TrackingError) Observe(s dynamo.Sample) {
	e := s.Reference.Position - s.Measured
	t.sumSq += e * e
	t.samples++
}

func (t *TrackingError) Value() float64 {
	if t.samples == 0 {
		return 0
	}
	return math.Sqrt(t.sumSq / float64(t.samples))
}

func (t *TrackingError) Reset() {
	t.sumSq = 0
	t.samples = 0
}
