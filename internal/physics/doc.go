// Package physics provides the plant models driven by the control loop.
//
// [FirstOrderPlant] integrates the scalar linear ODE
//
//	dy/dt = -Decay*y + Gain*u
//
// with fixed-step forward Euler:
//
//	y[k+1] = y[k] + dt*(-Decay*y[k] + Gain*u[k])
//
// Step is unconditional. For Decay*dt > 2 the discrete update diverges even
// though the continuous system is stable; the model reproduces that rather
// than guarding against it.
package physics
