package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/jointctl/internal/dynamo"
	"github.com/san-kum/jointctl/internal/statespace"
	"gonum.org/v1/gonum/mat"
)

// ArmParameters fully determine the plant.
type ArmParameters struct {
	Motor           DCMotor
	GearRatio       float64 // motor turns per joint turn
	MomentOfInertia float64 // kg·m² about the joint
}

func (p ArmParameters) Validate() error {
	if !(p.GearRatio > 0) || math.IsInf(p.GearRatio, 0) {
		return dynamo.Bounds("plant.gear_ratio", "must be positive, got %f", p.GearRatio)
	}
	if !(p.MomentOfInertia > 0) || math.IsInf(p.MomentOfInertia, 0) {
		return dynamo.Bounds("plant.moment_of_inertia", "must be positive, got %f", p.MomentOfInertia)
	}
	return p.Motor.Validate()
}

// Arm is a single jointed arm driven through a gearbox, without gravity.
//
// States: [position, velocity] in rad and rad/s.
// Inputs: [voltage] in volts.
// Outputs: [position] in rad.
type Arm struct {
	params ArmParameters
	a, b   float64 // velocity pole and input gain
}

func NewArm(p ArmParameters) (*Arm, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	m := p.Motor
	g := p.GearRatio
	j := p.MomentOfInertia
	return &Arm{
		params: p,
		a:      -g * g * m.Kt() / (m.Kv() * m.Resistance() * j),
		b:      g * m.Kt() / (m.Resistance() * j),
	}, nil
}

func (a *Arm) Parameters() ArmParameters { return a.params }

func (a *Arm) StateDim() int   { return 2 }
func (a *Arm) ControlDim() int { return 1 }

func (a *Arm) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	voltage := 0.0
	if len(u) > 0 {
		voltage = u[0]
	}
	return dynamo.State{x[1], a.a*x[1] + a.b*voltage}
}

// FreeSpeed is the steady-state joint velocity at the given voltage.
func (a *Arm) FreeSpeed(voltage float64) float64 {
	return -a.b / a.a * voltage
}

// Model returns the continuous plant discretized for dt.
func (a *Arm) Model(dt float64) (*statespace.System, error) {
	sys, err := statespace.New(
		mat.NewDense(2, 2, []float64{0, 1, 0, a.a}),
		mat.NewDense(2, 1, []float64{0, a.b}),
		mat.NewDense(1, 2, []float64{1, 0}),
		mat.NewDense(1, 1, []float64{0}),
		dt,
	)
	if err != nil {
		return nil, fmt.Errorf("arm model: %w", err)
	}
	return sys, nil
}

// GetParams returns the derived plant constants for display.
func (a *Arm) GetParams() map[string]float64 {
	m := a.params.Motor
	return map[string]float64{
		"gear_ratio":        a.params.GearRatio,
		"moment_of_inertia": a.params.MomentOfInertia,
		"motors":            m.count(),
		"resistance":        m.Resistance(),
		"kv":                m.Kv(),
		"kt":                m.Kt(),
		"velocity_pole":     a.a,
		"input_gain":        a.b,
	}
}
