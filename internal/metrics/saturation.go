package metrics

import "github.com/san-kum/jointctl/internal/dynamo"

// Saturation is the fraction of ticks whose output was clamped.
type Saturation struct {
	clamped int
	samples int
}

func NewSaturation() *Saturation {
	return &Saturation{}
}

func (s *Saturation) Name() string { return "saturation" }

func (s *Saturation) Observe(sample dynamo.Sample) {
	if sample.Saturated {
		s.clamped++
	}
	s.samples++
}

func (s *Saturation) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.clamped) / float64(s.samples)
}

func (s *Saturation) Reset() {
	s.clamped = 0
	s.samples = 0
}
