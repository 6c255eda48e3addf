// Package control provides the feedback laws of the joint controller.
//
//   - [LQR]: discrete linear-quadratic regulator, gain computed from the plant
//   - [Feedforward]: plant-inversion feedforward for a moving reference
//   - [Clamp]: symmetric voltage saturation
//
// # Usage
//
//	lqr, err := control.NewLQR(sys, []float64{posTol, velTol}, []float64{12}, 0.020)
//	u := control.Clamp(lqr.Calculate(xhat, r), 12)
//
// Gain computation failures surface from the constructors; Calculate never fails.
package control
