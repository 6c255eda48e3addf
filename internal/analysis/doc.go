// Package analysis characterizes recorded joint runs.
//
//   - [PowerSpectrum]: one-sided power spectrum of a trace, for spotting
//     controller chatter in the voltage
//   - [StepResponse]: rise time, overshoot and final error of a step move
//   - [NewPhasePortrait]: position against velocity
package analysis
