// Package control provides the PID controller that closes the loop.
//
// [PID] computes a control signal from (setpoint, measurement) pairs at a
// fixed timestep. Two optional ranges shape its behavior:
//
//   - output limits model actuator saturation
//   - integral limits bound the accumulator itself (anti-windup)
//
// # Usage
//
//	pid, err := control.NewPID(2.0, 1.0, 0.05, 0.01) // Kp, Ki, Kd, dt
//	pid.SetOutputLimits(dynamo.NewLimits(-2, 2))
//	pid.SetIntegralLimits(dynamo.NewLimits(-1, 1))
//	u := pid.Compute(setpoint, measurement)
//
// The previous error is not seeded from the first measurement, so the first
// Compute after construction or Reset(0, 0) carries a derivative kick of
// Kd*error/dt.
package control
