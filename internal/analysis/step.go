package analysis

import (
	"math"

	"github.com/san-kum/jointctl/internal/dynamo"
)

type StepInfo struct {
	RiseTime   float64 // 10% to 90% of the move
	Overshoot  float64 // fraction of the move
	FinalError float64
	PeakTime   float64
}

// StepResponse measures a move from start to goal. Rise time is NaN when
// the trace never reaches 90% of the move.
func StepResponse(times []float64, states []dynamo.JointState, start, goal float64) StepInfo {
	info := StepInfo{RiseTime: math.NaN()}
	span := goal - start
	if len(states) == 0 || len(times) < len(states) || span == 0 {
		return info
	}

	t10, t90 := math.NaN(), math.NaN()
	peak := 0.0
	for i, s := range states {
		progress := (s.Position - start) / span
		if math.IsNaN(t10) && progress >= 0.1 {
			t10 = times[i]
		}
		if math.IsNaN(t90) && progress >= 0.9 {
			t90 = times[i]
		}
		if progress > peak {
			peak = progress
			info.PeakTime = times[i]
		}
	}
	if !math.IsNaN(t10) && !math.IsNaN(t90) {
		info.RiseTime = t90 - t10
	}
	info.Overshoot = math.Max(0, peak-1)
	info.FinalError = goal - states[len(states)-1].Position
	return info
}
