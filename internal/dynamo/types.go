package dynamo

import (
	"fmt"
	"math"
)

// JointState is a position/velocity pair in radians and radians per second.
type JointState struct {
	Position float64 `json:"position" yaml:"position"`
	Velocity float64 `json:"velocity" yaml:"velocity"`
}

func (j JointState) Vector() State {
	return State{j.Position, j.Velocity}
}

func (j JointState) IsValid() bool {
	return !math.IsNaN(j.Position) && !math.IsInf(j.Position, 0) &&
		!math.IsNaN(j.Velocity) && !math.IsInf(j.Velocity, 0)
}

// Near reports whether both components are within tol of other.
func (j JointState) Near(other JointState, tol float64) bool {
	return math.Abs(j.Position-other.Position) <= tol && math.Abs(j.Velocity-other.Velocity) <= tol
}

func (j JointState) String() string {
	return fmt.Sprintf("(%.4f rad, %.4f rad/s)", j.Position, j.Velocity)
}

// JointStateOf reads the first two components of x.
func JointStateOf(x State) JointState {
	var j JointState
	if len(x) > 0 {
		j.Position = x[0]
	}
	if len(x) > 1 {
		j.Velocity = x[1]
	}
	return j
}

type State []float64

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type Control []float64

// System is a continuous-time dynamical system dX/dt = f(X, u, t).
type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

// Sensor returns the latest absolute position sample in raw units.
// Implementations must not block; a failed or stale read is reported as an error.
type Sensor interface {
	Position() (float64, error)
}

// VelocitySensor is implemented by sensors that also report a derived velocity.
type VelocitySensor interface {
	Velocity() (float64, error)
}

// Actuator accepts a voltage command. Leader/follower motor pairs are
// hidden behind a single Actuator.
type Actuator interface {
	SetVoltage(volts float64)
}

// Sample is what the loop reports to telemetry once per tick.
type Sample struct {
	Tick      uint64     `json:"tick"`
	Time      float64    `json:"time"`
	Goal      float64    `json:"goal"`  // rad
	Angle     float64    `json:"angle"` // rad
	Reference JointState `json:"reference"`
	Estimate  JointState `json:"estimate"`
	Measured  float64    `json:"measured"`
	Voltage   float64    `json:"voltage"`
	Saturated bool       `json:"saturated"`
}

// Telemetry is a best-effort sink. The loop ignores its errors.
type Telemetry interface {
	Report(s Sample) error
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}
