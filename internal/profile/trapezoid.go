// Package profile generates velocity- and acceleration-limited reference
// trajectories for a single joint.
//
// A [Trapezoid] is solved from a start state toward a goal state: accelerate
// at the limit, cruise at the velocity limit if it is reached, then
// decelerate into the goal. The control loop re-solves it every tick from
// the previous reference, so goal changes take effect immediately.
package profile

import (
	"math"

	"github.com/san-kum/jointctl/internal/dynamo"
)

type Constraints struct {
	MaxVelocity     float64 `yaml:"max_velocity" json:"max_velocity"`
	MaxAcceleration float64 `yaml:"max_acceleration" json:"max_acceleration"`
}

func (c Constraints) Validate() error {
	if !(c.MaxVelocity > 0) || math.IsInf(c.MaxVelocity, 0) {
		return dynamo.Bounds("constraints.max_velocity", "must be positive and finite, got %f", c.MaxVelocity)
	}
	if !(c.MaxAcceleration > 0) || math.IsInf(c.MaxAcceleration, 0) {
		return dynamo.Bounds("constraints.max_acceleration", "must be positive and finite, got %f", c.MaxAcceleration)
	}
	return nil
}

// Trapezoid is one solved profile. Times are measured from the start state.
type Trapezoid struct {
	c         Constraints
	direction float64
	initial   dynamo.JointState
	goal      dynamo.JointState

	endAccel     float64
	endFullSpeed float64
	endDecel     float64
}

// New solves the profile from initial to goal. A non-zero start or end
// velocity is handled by extending the profile to a virtual rest state and
// truncating it again.
//
// The direction is taken from where the start state comes to rest, so a
// goal inside the stopping distance brakes at the limit, stops past the
// goal and comes back.
func New(c Constraints, goal, initial dynamo.JointState) Trapezoid {
	vmax, amax := c.MaxVelocity, c.MaxAcceleration
	initial.Velocity = math.Max(-vmax, math.Min(vmax, initial.Velocity))
	goal.Velocity = math.Max(-vmax, math.Min(vmax, goal.Velocity))

	p := Trapezoid{c: c, direction: 1}
	if goal.Position < StoppingPoint(c, initial) {
		p.direction = -1
	}
	p.initial = p.direct(initial)
	p.goal = p.direct(goal)

	cutoffBegin := p.initial.Velocity / amax
	cutoffDistBegin := cutoffBegin * cutoffBegin * amax / 2

	cutoffEnd := p.goal.Velocity / amax
	cutoffDistEnd := cutoffEnd * cutoffEnd * amax / 2

	fullTrapezoidDist := math.Max(0, cutoffDistBegin+(p.goal.Position-p.initial.Position)+cutoffDistEnd)
	accelTime := vmax / amax

	fullSpeedDist := fullTrapezoidDist - accelTime*accelTime*amax
	if fullSpeedDist < 0 {
		accelTime = math.Sqrt(fullTrapezoidDist / amax)
		fullSpeedDist = 0
	}

	p.endAccel = accelTime - cutoffBegin
	p.endFullSpeed = p.endAccel + fullSpeedDist/vmax
	p.endDecel = p.endFullSpeed + accelTime - cutoffEnd
	return p
}

// StoppingPoint is where s comes to rest when braking at the acceleration
// limit.
func StoppingPoint(c Constraints, s dynamo.JointState) float64 {
	return s.Position + s.Velocity*math.Abs(s.Velocity)/(2*c.MaxAcceleration)
}

func (p Trapezoid) direct(s dynamo.JointState) dynamo.JointState {
	return dynamo.JointState{Position: s.Position * p.direction, Velocity: s.Velocity * p.direction}
}

// Calculate returns the profiled state t seconds after the start state.
func (p Trapezoid) Calculate(t float64) dynamo.JointState {
	amax, vmax := p.c.MaxAcceleration, p.c.MaxVelocity
	result := p.initial

	switch {
	case t < p.endAccel:
		result.Velocity += t * amax
		result.Position += (p.initial.Velocity + t*amax/2) * t
	case t < p.endFullSpeed:
		result.Velocity = vmax
		result.Position += (p.initial.Velocity+p.endAccel*amax/2)*p.endAccel + vmax*(t-p.endAccel)
	case t <= p.endDecel:
		timeLeft := p.endDecel - t
		result.Velocity = p.goal.Velocity + timeLeft*amax
		result.Position = p.goal.Position - (p.goal.Velocity+timeLeft*amax/2)*timeLeft
	default:
		result = p.goal
	}

	return p.direct(result)
}

// TotalTime is the time at which the profile reaches the goal.
func (p Trapezoid) TotalTime() float64 {
	return math.Max(p.endDecel, 0)
}

func (p Trapezoid) IsFinished(t float64) bool {
	return t >= p.TotalTime()
}

// TimeLeftUntil returns the time from the start until the profile first
// reaches target. Targets beyond the goal return the total time.
func (p Trapezoid) TimeLeftUntil(target float64) float64 {
	target *= p.direction
	total := p.TotalTime()
	if target <= p.initial.Position {
		return 0
	}
	if target >= p.goal.Position {
		return total
	}
	lo, hi := 0.0, total
	for i := 0; i < 64; i++ {
		mid := (lo + hi) / 2
		if p.Calculate(mid).Position*p.direction < target {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi
}

// Profiler advances a reference one fixed step at a time.
type Profiler struct {
	Constraints Constraints
}

func NewProfiler(c Constraints) (*Profiler, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &Profiler{Constraints: c}, nil
}

// Next re-solves the profile from current toward goal and samples it dt later.
func (p *Profiler) Next(dt float64, current, goal dynamo.JointState) dynamo.JointState {
	return New(p.Constraints, goal, current).Calculate(dt)
}
