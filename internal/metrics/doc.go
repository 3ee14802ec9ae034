// Package metrics evaluates closed-loop runs.
//
// Streaming metrics implement dynamo.Metric and are attached to a sim.Loop:
// [IAE], [ControlEffort] and [Saturation]. Post-run analyses work on the
// recorded samples: [DisturbanceRecovery] measures the drop and recovery
// time around a measurement disturbance and [AnalyzeStep] reports rise
// time, overshoot and settling of the setpoint step.
package metrics
