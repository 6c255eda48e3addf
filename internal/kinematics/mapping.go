// Package kinematics converts between the sensor's raw position frame and
// the joint's physical angle frame.
package kinematics

import (
	"math"

	"github.com/san-kum/jointctl/internal/dynamo"
)

// Mapping is an affine bijection raw = angle*Scale + Offset.
// A zero Scale is treated as 1.
type Mapping struct {
	Offset float64 `yaml:"offset" json:"offset"`
	Scale  float64 `yaml:"scale" json:"scale"`
}

func Identity() Mapping {
	return Mapping{Scale: 1}
}

func (m Mapping) scale() float64 {
	if m.Scale == 0 {
		return 1
	}
	return m.Scale
}

// ToAngle converts a raw sensor position to a joint angle in radians.
func (m Mapping) ToAngle(raw float64) float64 {
	return (raw - m.Offset) / m.scale()
}

// ToRaw converts a joint angle in radians to a raw sensor position.
func (m Mapping) ToRaw(angle float64) float64 {
	return angle*m.scale() + m.Offset
}

// Velocities have no offset.
func (m Mapping) VelocityToAngle(raw float64) float64 {
	return raw / m.scale()
}

func (m Mapping) VelocityToRaw(angular float64) float64 {
	return angular * m.scale()
}

func (m Mapping) StateToAngle(raw dynamo.JointState) dynamo.JointState {
	return dynamo.JointState{Position: m.ToAngle(raw.Position), Velocity: m.VelocityToAngle(raw.Velocity)}
}

func (m Mapping) StateToRaw(angle dynamo.JointState) dynamo.JointState {
	return dynamo.JointState{Position: m.ToRaw(angle.Position), Velocity: m.VelocityToRaw(angle.Velocity)}
}

func (m Mapping) Validate() error {
	if math.IsNaN(m.Offset) || math.IsInf(m.Offset, 0) {
		return dynamo.Bounds("kinematics.offset", "must be finite, got %f", m.Offset)
	}
	if math.IsNaN(m.Scale) || math.IsInf(m.Scale, 0) {
		return dynamo.Bounds("kinematics.scale", "must be finite, got %f", m.Scale)
	}
	return nil
}
