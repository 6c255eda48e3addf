package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/jointctl/internal/dynamo"
)

func rpmToRadPerSec(rpm float64) float64 {
	return rpm * 2 * math.Pi / 60
}

// DCMotor is a brushed/brushless DC motor (or a gang of identical motors
// sharing a shaft) described by its datasheet curve.
type DCMotor struct {
	Name           string
	NominalVoltage float64 // V
	StallTorque    float64 // N·m
	StallCurrent   float64 // A
	FreeCurrent    float64 // A
	FreeSpeed      float64 // rad/s
	Count          int
}

func NewNEO(count int) DCMotor {
	return newMotor("neo", 12, 2.6, 105, 1.8, rpmToRadPerSec(5676), count)
}

func NewNEO550(count int) DCMotor {
	return newMotor("neo550", 12, 0.97, 100, 1.4, rpmToRadPerSec(11000), count)
}

func NewCIM(count int) DCMotor {
	return newMotor("cim", 12, 2.42, 133, 2.7, rpmToRadPerSec(5310), count)
}

func NewFalcon500(count int) DCMotor {
	return newMotor("falcon500", 12, 4.69, 257, 1.5, rpmToRadPerSec(6380), count)
}

// Motors keyed by config name.
var motorCatalog = map[string]func(int) DCMotor{
	"neo":       NewNEO,
	"neo550":    NewNEO550,
	"cim":       NewCIM,
	"falcon500": NewFalcon500,
}

// MotorByName looks up a catalog motor.
func MotorByName(name string, count int) (DCMotor, error) {
	fn, ok := motorCatalog[name]
	if !ok {
		return DCMotor{}, &dynamo.ConfigError{
			Field:   "plant.motor",
			Wrapped: fmt.Errorf("%w: unknown motor %q", dynamo.ErrParameterBounds, name),
		}
	}
	return fn(count), nil
}

func newMotor(name string, voltage, stallTorque, stallCurrent, freeCurrent, freeSpeed float64, count int) DCMotor {
	return DCMotor{
		Name:           name,
		NominalVoltage: voltage,
		StallTorque:    stallTorque,
		StallCurrent:   stallCurrent,
		FreeCurrent:    freeCurrent,
		FreeSpeed:      freeSpeed,
		Count:          count,
	}
}

func (m DCMotor) count() float64 {
	if m.Count < 1 {
		return 1
	}
	return float64(m.Count)
}

// Resistance is the winding resistance of the ganged motors in ohms.
func (m DCMotor) Resistance() float64 {
	return m.NominalVoltage / (m.StallCurrent * m.count())
}

// Kv is the velocity constant in rad/s per volt.
func (m DCMotor) Kv() float64 {
	return m.FreeSpeed / (m.NominalVoltage - m.Resistance()*m.FreeCurrent*m.count())
}

// Kt is the torque constant in N·m per amp.
func (m DCMotor) Kt() float64 {
	return m.StallTorque / m.StallCurrent
}

func (m DCMotor) Validate() error {
	if m.Count < 1 {
		return dynamo.Bounds("plant.motors", "need at least one motor, got %d", m.Count)
	}
	for _, p := range []struct {
		field string
		value float64
	}{
		{"nominal_voltage", m.NominalVoltage},
		{"stall_torque", m.StallTorque},
		{"stall_current", m.StallCurrent},
		{"free_speed", m.FreeSpeed},
	} {
		if !(p.value > 0) || math.IsInf(p.value, 0) {
			return dynamo.Bounds("plant.motor."+p.field, "must be positive, got %f", p.value)
		}
	}
	if m.FreeCurrent < 0 || m.Resistance()*m.FreeCurrent*m.count() >= m.NominalVoltage {
		return dynamo.Bounds("plant.motor.free_current", "implausible free current %f", m.FreeCurrent)
	}
	return nil
}
