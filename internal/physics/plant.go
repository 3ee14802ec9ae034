package physics

import (
	"fmt"

	"github.com/san-kum/pidsim/internal/dynamo"
)

const (
	DefaultDecay = 1.2
	DefaultGain  = 1.0
)

type FirstOrderPlant struct {
	decay float64
	gain  float64
	dt    float64
	y     float64
}

func NewFirstOrderPlant(decay, gain, dt, y0 float64) (*FirstOrderPlant, error) {
	if !(dt > 0) {
		return nil, dynamo.InvalidParameter("dt", dt, "> 0")
	}
	if !(decay >= 0) {
		return nil, dynamo.InvalidParameter("decay", decay, ">= 0")
	}
	return &FirstOrderPlant{
		decay: decay,
		gain:  gain,
		dt:    dt,
		y:     y0,
	}, nil
}

// Derive returns dy/dt for output y under input u.
func (p *FirstOrderPlant) Derive(y, u float64) float64 {
	return -p.decay*y + p.gain*u
}

// Step applies u for one timestep and returns the new output.
func (p *FirstOrderPlant) Step(u float64) float64 {
	p.y += p.dt * p.Derive(p.y, u)
	return p.y
}

func (p *FirstOrderPlant) Output() float64 { return p.y }

func (p *FirstOrderPlant) Reset(y0 float64) { p.y = y0 }

func (p *FirstOrderPlant) SetTimestep(dt float64) error {
	if !(dt > 0) {
		return dynamo.InvalidParameter("dt", dt, "> 0")
	}
	p.dt = dt
	return nil
}

func (p *FirstOrderPlant) Decay() float64    { return p.decay }
func (p *FirstOrderPlant) Gain() float64     { return p.gain }
func (p *FirstOrderPlant) Timestep() float64 { return p.dt }

// StableTimestep reports whether forward Euler contracts for this plant,
// i.e. |1 - Decay*dt| < 1. A zero decay is marginal and reports false.
func (p *FirstOrderPlant) StableTimestep() bool {
	f := 1 - p.decay*p.dt
	return f > -1 && f < 1
}

// GetParams returns the coefficients keyed by the names SetParam accepts.
func (p *FirstOrderPlant) GetParams() map[string]float64 {
	return map[string]float64{
		"Decay": p.decay,
		"Gain":  p.gain,
	}
}

// SetParam adjusts a plant coefficient. A negative decay is rejected and
// leaves the plant unchanged.
func (p *FirstOrderPlant) SetParam(name string, value float64) error {
	switch name {
	case "Decay":
		if !(value >= 0) {
			return dynamo.InvalidParameter("decay", value, ">= 0")
		}
		p.decay = value
	case "Gain":
		p.gain = value
	default:
		return fmt.Errorf("%w: unknown plant parameter %q", dynamo.ErrInvalidParameter, name)
	}
	return nil
}
