package metrics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/pidsim/internal/dynamo"
)

// ErrInsufficientSamples is returned when a window around the disturbance
// holds fewer than MinWindowSamples samples.
var ErrInsufficientSamples = errors.New("metrics: not enough samples around the disturbance window")

const MinWindowSamples = 5

type RecoveryOptions struct {
	DisturbanceTime float64
	PreWindow       float64
	PostWindow      float64
	// Band is the relative half-width around the pre-disturbance level.
	Band float64
}

func DefaultRecoveryOptions() RecoveryOptions {
	return RecoveryOptions{
		DisturbanceTime: 3.5,
		PreWindow:       0.5,
		PostWindow:      2.0,
		Band:            0.02,
	}
}

// Recovery summarises how the measured output reacts to a disturbance at
// t0 = DisturbanceTime.
type Recovery struct {
	PreLevel     float64 `json:"pre_level"`
	MinAfter     float64 `json:"min_after"`
	Drop         float64 `json:"drop"`
	Recovered    bool    `json:"recovered"`
	RecoveryTime float64 `json:"recovery_time_s"`
	BandLow      float64 `json:"band_low"`
	BandHigh     float64 `json:"band_high"`
}

func (r Recovery) String() string {
	rt := "n/a"
	if r.Recovered {
		rt = fmt.Sprintf("%.3fs", r.RecoveryTime)
	}
	return fmt.Sprintf("pre=%.4f, min=%.4f, drop=%.4f, recovery=%s", r.PreLevel, r.MinAfter, r.Drop, rt)
}

// DisturbanceRecovery computes
//
//	pre_level  = median(y) in [t0-PreWindow, t0)
//	min_after  = min(y) in [t0, t0+PostWindow]
//	drop       = pre_level - min_after
//	recovery   = first time after t0 from which y stays inside the band
//	             around pre_level until the end of the post window
//
// where y is the recorded measurement.
func DisturbanceRecovery(samples []dynamo.Sample, opts RecoveryOptions) (Recovery, error) {
	t0 := opts.DisturbanceTime

	var pre, postT, postY []float64
	for _, s := range samples {
		switch {
		case s.Time >= t0-opts.PreWindow && s.Time < t0:
			pre = append(pre, s.Measurement)
		case s.Time >= t0 && s.Time <= t0+opts.PostWindow:
			postT = append(postT, s.Time)
			postY = append(postY, s.Measurement)
		}
	}
	if len(pre) < MinWindowSamples || len(postY) < MinWindowSamples {
		return Recovery{}, fmt.Errorf("%w: %d before, %d after t=%.3f",
			ErrInsufficientSamples, len(pre), len(postY), t0)
	}

	r := Recovery{PreLevel: Median(pre)}
	r.MinAfter = floats.Min(postY)
	r.Drop = r.PreLevel - r.MinAfter

	lo, hi := (1-opts.Band)*r.PreLevel, (1+opts.Band)*r.PreLevel
	r.BandLow, r.BandHigh = math.Min(lo, hi), math.Max(lo, hi)

	// index of the first sample after which nothing leaves the band
	first := len(postY)
	for i := len(postY) - 1; i >= 0; i-- {
		if postY[i] < r.BandLow || postY[i] > r.BandHigh {
			break
		}
		first = i
	}
	if first < len(postY) {
		r.Recovered = true
		r.RecoveryTime = postT[first] - t0
	}

	return r, nil
}

// Median returns the middle value, averaging the two middle values of an
// even-length input.
func Median(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(x))
	copy(sorted, x)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return stat.Mean(sorted[n/2-1:n/2+1], nil)
}
