package metrics

import (
	"math"

	"github.com/san-kum/pidsim/internal/dynamo"
)

// IAE is the integral of |setpoint - measurement| over time, using the
// spacing between consecutive samples.
type IAE struct {
	name  string
	sum   float64
	lastT float64
	seen  bool
}

func NewIAE() *IAE {
	return &IAE{name: "iae"}
}

func (m *IAE) Name() string { return m.name }

func (m *IAE) Observe(s dynamo.Sample) {
	if m.seen {
		m.sum += math.Abs(s.Setpoint-s.Measurement) * (s.Time - m.lastT)
	}
	m.lastT = s.Time
	m.seen = true
}

func (m *IAE) Value() float64 { return m.sum }

func (m *IAE) Reset() {
	m.sum = 0
	m.lastT = 0
	m.seen = false
}

// ControlEffort is the mean |u| over the run.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(s dynamo.Sample) {
	c.sum += math.Abs(s.Control)
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// Saturation is the fraction of samples whose control sits on a bound of
// the output range.
type Saturation struct {
	name      string
	limits    dynamo.Limits
	saturated int
	samples   int
}

func NewSaturation(limits dynamo.Limits) *Saturation {
	return &Saturation{
		name:   "saturation",
		limits: limits,
	}
}

func (s *Saturation) Name() string { return s.name }

func (s *Saturation) Observe(sample dynamo.Sample) {
	s.samples++
	if sample.Control <= s.limits.Min || sample.Control >= s.limits.Max {
		s.saturated++
	}
}

func (s *Saturation) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.saturated) / float64(s.samples)
}

func (s *Saturation) Reset() {
	s.saturated = 0
	s.samples = 0
}

// Defaults returns the metrics attached to every stored run. Saturation is
// included only when an output range is configured.
func Defaults(outputLimits *dynamo.Limits) []dynamo.Metric {
	ms := []dynamo.Metric{
		NewIAE(),
		NewControlEffort(),
	}
	if outputLimits != nil {
		ms = append(ms, NewSaturation(*outputLimits))
	}
	return ms
}
