// Package physics provides the electromechanical model of the joint.
//
// [DCMotor] captures a motor's datasheet curve; [Arm] combines motors, a
// gearbox and the arm's moment of inertia into a single rotational joint.
// The arm exposes both forms used elsewhere:
//
//   - [Arm.Model]: the linear state-space plant for estimation and control
//   - [Arm.Derive]: the continuous dynamics, implementing [dynamo.System], so
//     an integrator can stand in for the physical joint in simulation
//
// # Frames
//
// The model is written in the frame of the joint shaft. When the sensor
// reads in another unit the kinematic mapping scale must be folded into
// the parameters by the caller.
package physics
