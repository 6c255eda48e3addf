// Package loop runs the periodic joint controller.
//
// Each Tick reads the sensor, advances the motion profile one period toward
// the goal, corrects the Kalman filter, computes a saturated LQR voltage,
// emits it and predicts the filter forward. All computation happens in the
// raw sensor frame; only SetGoal and KinematicAngle speak physical angles.
//
// Tick must be called from one goroutine. SetGoal, Hold and the query
// methods are safe to call from any goroutine.
package loop
