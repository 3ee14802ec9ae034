package sim

import (
	"fmt"

	"github.com/san-kum/pidsim/internal/control"
	"github.com/san-kum/pidsim/internal/dynamo"
	"github.com/san-kum/pidsim/internal/physics"
)

// Loop drives one controller and one plant through a fixed number of ticks.
// It owns both for the duration of the run.
type Loop struct {
	controller *control.PID
	plant      *physics.FirstOrderPlant
	cfg        dynamo.Config
	metrics    []dynamo.Metric
	observers  []dynamo.Observer
}

func New(controller *control.PID, plant *physics.FirstOrderPlant, cfg dynamo.Config) (*Loop, error) {
	if controller == nil || plant == nil {
		return nil, fmt.Errorf("%w: loop needs a controller and a plant", dynamo.ErrInvalidParameter)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Loop{
		controller: controller,
		plant:      plant,
		cfg:        cfg,
		metrics:    make([]dynamo.Metric, 0),
		observers:  make([]dynamo.Observer, 0),
	}, nil
}

func (l *Loop) AddMetric(m dynamo.Metric)     { l.metrics = append(l.metrics, m) }
func (l *Loop) AddObserver(o dynamo.Observer) { l.observers = append(l.observers, o) }

func (l *Loop) Config() dynamo.Config           { return l.cfg }
func (l *Loop) Controller() *control.PID        { return l.controller }
func (l *Loop) Plant() *physics.FirstOrderPlant { return l.plant }
func (l *Loop) Steps() int                      { return l.cfg.Steps() }

// Tick executes tick k and returns its sample. The disturbance only
// corrupts the measurement handed to the controller; the plant is advanced
// with the controller output alone.
func (l *Loop) Tick(k int) dynamo.Sample {
	t := l.cfg.TimeAt(k)
	setpoint := l.cfg.SetpointAt(t)

	measurement := l.plant.Output() + l.cfg.DisturbanceAt(t)

	u := l.controller.Compute(setpoint, measurement)
	l.plant.Step(u)

	s := dynamo.Sample{Time: t, Setpoint: setpoint, Measurement: measurement, Control: u}
	for _, m := range l.metrics {
		m.Observe(s)
	}
	for _, obs := range l.observers {
		obs.OnSample(s)
	}
	return s
}

// Run executes ticks 0..Steps() inclusive, writing each sample to sink
// (which may be nil). A sink failure stops the run.
func (l *Loop) Run(sink dynamo.Sink) (*Result, error) {
	steps := l.cfg.Steps()
	n := steps + 1
	if n < 0 {
		n = 0
	}
	result := &Result{
		Samples: make([]dynamo.Sample, 0, n),
		Outputs: make([]float64, 0, n),
		Metrics: make(map[string]float64),
	}

	for _, m := range l.metrics {
		m.Reset()
	}

	for k := 0; k <= steps; k++ {
		s := l.Tick(k)
		result.Samples = append(result.Samples, s)
		result.Outputs = append(result.Outputs, l.plant.Output())

		if sink != nil {
			if err := sink.Write(s); err != nil {
				return result, &dynamo.SimError{
					Time:    s.Time,
					Step:    k,
					Wrapped: fmt.Errorf("%w: %w", dynamo.ErrSinkWrite, err),
				}
			}
		}
	}

	for _, m := range l.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	return result, nil
}
