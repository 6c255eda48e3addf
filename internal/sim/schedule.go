package sim

import "sort"

// Step changes the goal to Angle at time At.
type Step struct {
	At    float64 `json:"at" yaml:"at"`
	Angle float64 `json:"angle" yaml:"angle"`
}

type Schedule []Step

// Sorted returns a copy ordered by time.
func (s Schedule) Sorted() Schedule {
	out := append(Schedule(nil), s...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].At < out[j].At })
	return out
}

// Due returns the last step in (prev, now]. The first window, prev == 0,
// is closed at both ends so a step at t=0 fires on the first tick.
func (s Schedule) Due(prev, now float64) (Step, bool) {
	var due Step
	found := false
	for _, st := range s {
		after := st.At > prev || (prev == 0 && st.At == 0)
		if after && st.At <= now {
			due = st
			found = true
		}
	}
	return due, found
}
