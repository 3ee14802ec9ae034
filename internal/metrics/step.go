package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/pidsim/internal/dynamo"
)

// StepResponse describes the reaction to the setpoint step.
type StepResponse struct {
	StepTime     float64 `json:"step_time"`
	Overshoot    float64 `json:"overshoot"`
	RiseTime     float64 `json:"rise_time"`
	Rose         bool    `json:"rose"`
	SettlingTime float64 `json:"settling_time"`
	Settled      bool    `json:"settled"`
	FinalError   float64 `json:"final_error"`
	MeanAbsError float64 `json:"mean_abs_error"`
}

// AnalyzeStep finds the first setpoint change and measures the response up
// to end (exclusive; pass math.Inf(1) for the whole run). Rise time is 10%
// to 90% of the step; settling uses a relative band around the new
// setpoint.
func AnalyzeStep(samples []dynamo.Sample, band, end float64) (StepResponse, bool) {
	var r StepResponse
	if len(samples) < 2 {
		return r, false
	}

	k0 := -1
	for k := 1; k < len(samples); k++ {
		if samples[k].Setpoint != samples[k-1].Setpoint {
			k0 = k
			break
		}
	}
	if k0 < 0 {
		return r, false
	}

	from, to := samples[k0-1].Setpoint, samples[k0].Setpoint
	step := to - from
	r.StepTime = samples[k0].Time

	window := make([]dynamo.Sample, 0, len(samples)-k0)
	for _, s := range samples[k0:] {
		if s.Time >= end {
			break
		}
		window = append(window, s)
	}
	if len(window) == 0 {
		return r, false
	}

	lo, hi := from+0.1*step, from+0.9*step
	var tLo, tHi float64
	var seenLo, seenHi bool
	peak := 0.0
	absErr := make([]float64, len(window))
	for i, s := range window {
		progress := (s.Measurement - from) / step
		peak = math.Max(peak, progress)
		if !seenLo && reached(s.Measurement, lo, step) {
			tLo, seenLo = s.Time, true
		}
		if !seenHi && reached(s.Measurement, hi, step) {
			tHi, seenHi = s.Time, true
		}
		absErr[i] = math.Abs(s.Setpoint - s.Measurement)
	}
	if seenLo && seenHi {
		r.Rose = true
		r.RiseTime = tHi - tLo
	}
	r.Overshoot = math.Max(0, peak-1)

	tol := band * math.Abs(step)
	settleIdx := len(window)
	for i := len(window) - 1; i >= 0; i-- {
		if math.Abs(window[i].Measurement-to) > tol {
			break
		}
		settleIdx = i
	}
	if settleIdx < len(window) {
		r.Settled = true
		r.SettlingTime = window[settleIdx].Time - r.StepTime
	}

	last := window[len(window)-1]
	r.FinalError = last.Setpoint - last.Measurement
	r.MeanAbsError = stat.Mean(absErr, nil)

	return r, true
}

func reached(y, level, step float64) bool {
	if step > 0 {
		return y >= level
	}
	return y <= level
}
