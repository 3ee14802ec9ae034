package dynamo

import (
	"fmt"
	"math"
)

// Limits is an inclusive [Min, Max] range. Optional limits are carried as
// *Limits; a nil pointer disables the clamp.
type Limits struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// NewLimits returns a pointer to the range [lo, hi].
func NewLimits(lo, hi float64) *Limits {
	return &Limits{Min: lo, Max: hi}
}

// Clamp bounds v into the range.
func (l Limits) Clamp(v float64) float64 {
	return math.Max(l.Min, math.Min(v, l.Max))
}

// Contains reports whether v lies inside the range.
func (l Limits) Contains(v float64) bool {
	return v >= l.Min && v <= l.Max
}

// Valid reports whether Min <= Max.
func (l Limits) Valid() bool {
	return l.Min <= l.Max
}

// Sample is the unit of output, one per tick.
type Sample struct {
	Time        float64 `json:"time"`
	Setpoint    float64 `json:"setpoint"`
	Measurement float64 `json:"measurement"`
	Control     float64 `json:"control"`
}

// Fields returns the sample as an ordered 4-tuple.
func (s Sample) Fields() [4]float64 {
	return [4]float64{s.Time, s.Setpoint, s.Measurement, s.Control}
}

// SampleHeader names the sample fields in Fields order.
var SampleHeader = []string{"time", "setpoint", "measurement", "control"}

// SetpointSchedule is a two-level step input. The switch is inclusive of
// SwitchTime.
type SetpointSchedule struct {
	Initial    float64 `yaml:"initial" json:"initial"`
	Stepped    float64 `yaml:"stepped" json:"stepped"`
	SwitchTime float64 `yaml:"switch_time" json:"switch_time"`
}

// At returns the setpoint in force at time t.
func (s SetpointSchedule) At(t float64) float64 {
	if t < s.SwitchTime {
		return s.Initial
	}
	return s.Stepped
}

// DisturbanceSchedule adds Offset to the measurement from OnsetTime on.
type DisturbanceSchedule struct {
	Enabled   bool    `yaml:"enabled" json:"enabled"`
	OnsetTime float64 `yaml:"onset_time" json:"onset_time"`
	Offset    float64 `yaml:"offset" json:"offset"`
}

// At returns the additive measurement offset in force at time t.
func (d DisturbanceSchedule) At(t float64) float64 {
	if d.Enabled && t >= d.OnsetTime {
		return d.Offset
	}
	return 0
}

// Config is the immutable description of one run.
type Config struct {
	Dt          float64             `yaml:"dt" json:"dt"`
	Duration    float64             `yaml:"duration" json:"duration"`
	Setpoint    SetpointSchedule    `yaml:"setpoint" json:"setpoint"`
	Disturbance DisturbanceSchedule `yaml:"disturbance" json:"disturbance"`
}

func DefaultConfig() Config {
	return Config{
		Dt:       0.01,
		Duration: 6.0,
		Setpoint: SetpointSchedule{
			Initial:    0.0,
			Stepped:    1.0,
			SwitchTime: 1.0,
		},
		Disturbance: DisturbanceSchedule{
			Enabled:   true,
			OnsetTime: 3.5,
			Offset:    -0.2,
		},
	}
}

// MaxSteps bounds Duration/Dt so the tick count always fits an int.
const MaxSteps = math.MaxInt32

// Validate checks the values the loop depends on before it starts.
func (c Config) Validate() error {
	if !(c.Dt > 0) || math.IsInf(c.Dt, 1) {
		return InvalidParameter("dt", c.Dt, "finite and > 0")
	}
	if !(c.Duration >= 0) || math.IsInf(c.Duration, 1) {
		return InvalidParameter("duration", c.Duration, "finite and >= 0")
	}
	if c.Duration/c.Dt > MaxSteps {
		return fmt.Errorf("%w: duration/dt = %g exceeds %d ticks", ErrInvalidParameter, c.Duration/c.Dt, MaxSteps)
	}
	return nil
}

// Steps returns floor(Duration/Dt). A run emits Steps()+1 samples.
func (c Config) Steps() int {
	return int(math.Floor(c.Duration / c.Dt))
}

// TimeAt returns the time of tick k.
func (c Config) TimeAt(k int) float64 {
	return float64(k) * c.Dt
}

func (c Config) SetpointAt(t float64) float64 { return c.Setpoint.At(t) }

// DisturbanceAt returns the offset added to the measurement at time t.
func (c Config) DisturbanceAt(t float64) float64 { return c.Disturbance.At(t) }

// Sink receives samples in tick order.
type Sink interface {
	Write(s Sample) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(s Sample) error

func (f SinkFunc) Write(s Sample) error { return f(s) }

// MultiSink writes every sample to each sink in order and stops at the first
// error. Nil sinks are skipped.
func MultiSink(sinks ...Sink) Sink {
	return SinkFunc(func(s Sample) error {
		for _, sink := range sinks {
			if sink == nil {
				continue
			}
			if err := sink.Write(s); err != nil {
				return err
			}
		}
		return nil
	})
}

// Observer is notified of every emitted sample.
type Observer interface {
	OnSample(s Sample)
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}
