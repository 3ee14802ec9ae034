// Package sim orchestrates closed-loop runs.
//
// A [Loop] steps a control.PID and a physics.FirstOrderPlant through
// floor(Duration/Dt)+1 ticks. Each tick derives the setpoint and the
// measurement disturbance from the run configuration, feeds the controller,
// advances the plant with the controller output and emits a dynamo.Sample.
// There is no cancellation path; the tick count is fixed before the run
// starts.
//
// [Ensemble] runs several independent loops in parallel.
package sim
