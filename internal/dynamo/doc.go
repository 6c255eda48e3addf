// Package dynamo provides the shared vocabulary of the joint controller.
//
// The package defines the types and interfaces every other package speaks:
//
//   - [JointState]: position/velocity pair used for goals, references and estimates
//   - [State] and [Control]: plain vectors for integrating continuous dynamics
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Sensor], [Actuator], [Telemetry]: collaborators at the loop boundary
//
// # Frames
//
// Everything inside the control loop lives in the sensor ("raw") frame.
// Only the loop's public goal/angle methods speak physical joint angles;
// the conversion is owned by the kinematics package.
//
// # Thread Safety
//
// None of these types are synchronized. The loop owns its state and only
// the goal crosses goroutines.
package dynamo
