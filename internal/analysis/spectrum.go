package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/san-kum/jointctl/internal/dynamo"
)

type Spectrum struct {
	Freqs []float64 // Hz
	Power []float64
}

// PowerSpectrum returns the one-sided power spectrum of data sampled every
// dt seconds. The mean is removed first so DC does not dominate.
func PowerSpectrum(data []float64, dt float64) (*Spectrum, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 samples, got %d", dynamo.ErrParameterBounds, len(data))
	}
	if !(dt > 0) {
		return nil, fmt.Errorf("%w: sample period must be positive, got %f", dynamo.ErrParameterBounds, dt)
	}

	var mean float64
	for _, v := range data {
		mean += v
	}
	mean /= float64(len(data))
	centered := make([]float64, len(data))
	for i, v := range data {
		centered[i] = v - mean
	}

	n := len(centered)
	coeffs := fft.FFTReal(centered)
	half := n/2 + 1
	s := &Spectrum{
		Freqs: make([]float64, half),
		Power: make([]float64, half),
	}
	for k := 0; k < half; k++ {
		s.Freqs[k] = float64(k) / (float64(n) * dt)
		mag := cmplx.Abs(coeffs[k])
		s.Power[k] = mag * mag / float64(n)
	}
	return s, nil
}

// Dominant returns the frequency with the most power above DC, or 0 for a
// flat trace.
func (s *Spectrum) Dominant() float64 {
	best, at := 0.0, 0.0
	for k := 1; k < len(s.Power); k++ {
		if s.Power[k] > best {
			best, at = s.Power[k], s.Freqs[k]
		}
	}
	return at
}

// BandPower sums the power between lo and hi Hz inclusive.
func (s *Spectrum) BandPower(lo, hi float64) float64 {
	var sum float64
	for k, f := range s.Freqs {
		if f >= lo && f <= hi {
			sum += s.Power[k]
		}
	}
	return sum
}

// Chatter is the share of non-DC power above half the Nyquist frequency.
func (s *Spectrum) Chatter() float64 {
	if len(s.Freqs) < 2 {
		return 0
	}
	nyquist := s.Freqs[len(s.Freqs)-1]
	total := s.BandPower(s.Freqs[1], math.Inf(1))
	if total == 0 {
		return 0
	}
	return s.BandPower(nyquist/2, math.Inf(1)) / total
}
