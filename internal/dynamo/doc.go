// Package dynamo provides the shared primitives of the closed-loop simulator.
//
// The package defines the value types exchanged between the controller, the
// plant and the loop orchestrator:
//
//   - [Limits]: inclusive range used for output saturation and anti-windup
//   - [Sample]: one (time, setpoint, measurement, control) record per tick
//   - [Config]: immutable run configuration with setpoint and disturbance schedules
//   - [Sink]: output boundary receiving samples in tick order
//   - [Observer], [Metric]: per-sample hooks attached to a run
//
// # Example
//
//	pid, _ := control.NewPID(2.0, 1.0, 0.05, 0.01)
//	plant, _ := physics.NewFirstOrderPlant(1.2, 1.0, 0.01, 0)
//	loop, _ := sim.New(pid, plant, dynamo.DefaultConfig())
//	result, _ := loop.Run(nil)
//
// # Thread Safety
//
// Nothing in the core is safe for concurrent use. Parallel runs must each be
// given their own controller and plant; see sim.Ensemble.
package dynamo
