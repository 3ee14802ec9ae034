package sim

import "github.com/san-kum/pidsim/internal/dynamo"

// Result holds everything a run produced.
type Result struct {
	Name    string
	Samples []dynamo.Sample
	// Outputs[k] is the plant's true output after tick k. It never carries
	// the measurement disturbance.
	Outputs []float64
	Metrics map[string]float64
}

// Final returns the last sample and the plant output after it.
func (r *Result) Final() (dynamo.Sample, float64, bool) {
	if len(r.Samples) == 0 {
		return dynamo.Sample{}, 0, false
	}
	n := len(r.Samples) - 1
	return r.Samples[n], r.Outputs[n], true
}

// Column extracts one field from every sample.
func (r *Result) Column(field func(dynamo.Sample) float64) []float64 {
	out := make([]float64, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = field(s)
	}
	return out
}

func Times(s dynamo.Sample) float64        { return s.Time }
func Setpoints(s dynamo.Sample) float64    { return s.Setpoint }
func Measurements(s dynamo.Sample) float64 { return s.Measurement }
func Controls(s dynamo.Sample) float64     { return s.Control }
