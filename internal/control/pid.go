package control

import (
	"fmt"

	"github.com/san-kum/pidsim/internal/dynamo"
)

type PID struct {
	Kp float64
	Ki float64
	Kd float64

	dt       float64
	integral float64
	prevErr  float64

	outputLimits   *dynamo.Limits
	integralLimits *dynamo.Limits
}

func NewPID(kp, ki, kd, dt float64) (*PID, error) {
	if !(dt > 0) {
		return nil, dynamo.InvalidParameter("dt", dt, "> 0")
	}
	return &PID{
		Kp: kp,
		Ki: ki,
		Kd: kd,
		dt: dt,
	}, nil
}

// Compute advances the controller by one timestep and returns the control
// signal. The accumulator is integrated first and clamped second.
func (p *PID) Compute(setpoint, measurement float64) float64 {
	err := setpoint - measurement

	p.integral += err * p.dt
	if p.integralLimits != nil {
		p.integral = p.integralLimits.Clamp(p.integral)
	}

	derivative := (err - p.prevErr) / p.dt
	p.prevErr = err

	u := p.Kp*err + p.Ki*p.integral + p.Kd*derivative
	if p.outputLimits != nil {
		u = p.outputLimits.Clamp(u)
	}
	return u
}

// SetGains replaces the gains without touching accumulated state.
func (p *PID) SetGains(kp, ki, kd float64) {
	p.Kp = kp
	p.Ki = ki
	p.Kd = kd
}

// SetTimestep changes dt for subsequent calls. The accumulator is not
// rescaled.
func (p *PID) SetTimestep(dt float64) error {
	if !(dt > 0) {
		return dynamo.InvalidParameter("dt", dt, "> 0")
	}
	p.dt = dt
	return nil
}

// SetOutputLimits sets the actuator range. nil disables saturation.
func (p *PID) SetOutputLimits(l *dynamo.Limits) {
	p.outputLimits = copyLimits(l)
}

// SetIntegralLimits sets the accumulator range. nil disables anti-windup.
func (p *PID) SetIntegralLimits(l *dynamo.Limits) {
	p.integralLimits = copyLimits(l)
}

// Reset overwrites the accumulator and the previous error.
func (p *PID) Reset(integral, previousError float64) {
	p.integral = integral
	p.prevErr = previousError
}

func (p *PID) Gains() (kp, ki, kd float64) { return p.Kp, p.Ki, p.Kd }
func (p *PID) Timestep() float64           { return p.dt }
func (p *PID) Integral() float64           { return p.integral }
func (p *PID) PreviousError() float64      { return p.prevErr }

func (p *PID) OutputLimits() *dynamo.Limits   { return copyLimits(p.outputLimits) }
func (p *PID) IntegralLimits() *dynamo.Limits { return copyLimits(p.integralLimits) }

// GetParams returns the gains keyed by the names SetParam accepts.
func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"Kp": p.Kp,
		"Ki": p.Ki,
		"Kd": p.Kd,
	}
}

// SetParam adjusts a single gain by name.
func (p *PID) SetParam(name string, value float64) error {
	switch name {
	case "Kp":
		p.Kp = value
	case "Ki":
		p.Ki = value
	case "Kd":
		p.Kd = value
	default:
		return fmt.Errorf("%w: unknown PID parameter %q", dynamo.ErrInvalidParameter, name)
	}
	return nil
}

func copyLimits(l *dynamo.Limits) *dynamo.Limits {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}
