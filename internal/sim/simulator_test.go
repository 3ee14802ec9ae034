package sim

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pidsim/internal/control"
	"github.com/san-kum/pidsim/internal/dynamo"
	"github.com/san-kum/pidsim/internal/physics"
)

const dt = 0.01

func scenarioConfig(duration float64, disturbed bool) dynamo.Config {
	return dynamo.Config{
		Dt:       dt,
		Duration: duration,
		Setpoint: dynamo.SetpointSchedule{Initial: 0, Stepped: 1, SwitchTime: 1.0},
		Disturbance: dynamo.DisturbanceSchedule{
			Enabled:   disturbed,
			OnsetTime: 3.5,
			Offset:    -0.2,
		},
	}
}

func buildScenarioLoop(cfg dynamo.Config, integralLimits *dynamo.Limits) (*Loop, error) {
	plant, err := physics.NewFirstOrderPlant(1.2, 1.0, dt, 0)
	if err != nil {
		return nil, err
	}
	pid, err := control.NewPID(2.0, 1.0, 0.05, dt)
	if err != nil {
		return nil, err
	}
	pid.SetOutputLimits(dynamo.NewLimits(-2, 2))
	pid.SetIntegralLimits(integralLimits)

	return New(pid, plant, cfg)
}

func newScenarioLoop(cfg dynamo.Config, integralLimits *dynamo.Limits) *Loop {
	loop, err := buildScenarioLoop(cfg, integralLimits)
	Expect(err).NotTo(HaveOccurred())
	return loop
}

type recordingSink struct {
	samples []dynamo.Sample
	failAt  int
}

func (r *recordingSink) Write(s dynamo.Sample) error {
	if r.failAt > 0 && len(r.samples) == r.failAt {
		return errors.New("disk full")
	}
	r.samples = append(r.samples, s)
	return nil
}

type countingMetric struct {
	count int
}

func (c *countingMetric) Name() string            { return "count" }
func (c *countingMetric) Observe(s dynamo.Sample) { c.count++ }
func (c *countingMetric) Value() float64          { return float64(c.count) }
func (c *countingMetric) Reset()                  { c.count = 0 }

var _ = Describe("Loop", func() {
	Context("construction", func() {
		It("should reject a non-positive timestep", func() {
			cfg := scenarioConfig(1, false)
			cfg.Dt = 0
			plant, _ := physics.NewFirstOrderPlant(1, 1, dt, 0)
			pid, _ := control.NewPID(1, 0, 0, dt)

			_, err := New(pid, plant, cfg)
			Expect(err).To(MatchError(dynamo.ErrInvalidParameter))
		})

		It("should reject a negative duration", func() {
			cfg := scenarioConfig(-1, false)
			plant, _ := physics.NewFirstOrderPlant(1, 1, dt, 0)
			pid, _ := control.NewPID(1, 0, 0, dt)

			_, err := New(pid, plant, cfg)
			Expect(err).To(MatchError(dynamo.ErrInvalidParameter))
		})

		It("should require a controller and a plant", func() {
			_, err := New(nil, nil, scenarioConfig(1, false))
			Expect(err).To(MatchError(dynamo.ErrInvalidParameter))
		})
	})

	Context("tick schedule", func() {
		var result *Result

		BeforeEach(func() {
			var err error
			result, err = newScenarioLoop(scenarioConfig(6.0, false), dynamo.NewLimits(-1, 1)).Run(nil)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should emit floor(duration/dt)+1 samples", func() {
			Expect(result.Samples).To(HaveLen(601))
			Expect(result.Outputs).To(HaveLen(601))
		})

		It("should stamp tick k with k*dt", func() {
			for k, s := range result.Samples {
				Expect(s.Time).To(Equal(float64(k) * dt))
			}
		})

		It("should switch the setpoint at the switch time inclusively", func() {
			Expect(result.Samples[99].Setpoint).To(Equal(0.0))
			Expect(result.Samples[100].Time).To(Equal(1.0))
			Expect(result.Samples[100].Setpoint).To(Equal(1.0))
			Expect(result.Samples[600].Setpoint).To(Equal(1.0))
		})

		It("should feed the controller the plant output from before the tick", func() {
			Expect(result.Samples[0].Measurement).To(Equal(0.0))
			for k := 1; k < len(result.Samples); k++ {
				Expect(result.Samples[k].Measurement).To(Equal(result.Outputs[k-1]))
			}
		})

		It("should keep the control within the output range", func() {
			for _, s := range result.Samples {
				Expect(s.Control).To(BeNumerically(">=", -2))
				Expect(s.Control).To(BeNumerically("<=", 2))
			}
		})

		It("should saturate on the setpoint step", func() {
			Expect(result.Samples[100].Control).To(Equal(2.0))
		})
	})

	Context("step response", func() {
		It("should approach the setpoint within the anti-windup bound after 6s", func() {
			result, err := newScenarioLoop(scenarioConfig(6.0, false), dynamo.NewLimits(-1, 1)).Run(nil)
			Expect(err).NotTo(HaveOccurred())

			_, y, ok := result.Final()
			Expect(ok).To(BeTrue())
			Expect(y).To(BeNumerically("~", 1.0, 0.07))
			Expect(y).To(BeNumerically("<=", 0.9375))
		})

		It("should settle at the steady state allowed by the clamped integral", func() {
			// kp*e + 1 = decay*y with e = 1-y gives y = 3/3.2
			result, err := newScenarioLoop(scenarioConfig(20.0, false), dynamo.NewLimits(-1, 1)).Run(nil)
			Expect(err).NotTo(HaveOccurred())

			_, y, _ := result.Final()
			Expect(y).To(BeNumerically("~", 0.9375, 1e-6))
		})

		It("should settle on the setpoint without integral limits", func() {
			result, err := newScenarioLoop(scenarioConfig(20.0, false), nil).Run(nil)
			Expect(err).NotTo(HaveOccurred())

			_, y, _ := result.Final()
			Expect(y).To(BeNumerically("~", 1.0, 0.05))
		})
	})

	Context("measurement disturbance", func() {
		var clean, disturbed *Result

		BeforeEach(func() {
			var err error
			clean, err = newScenarioLoop(scenarioConfig(6.0, false), dynamo.NewLimits(-1, 1)).Run(nil)
			Expect(err).NotTo(HaveOccurred())
			disturbed, err = newScenarioLoop(scenarioConfig(6.0, true), dynamo.NewLimits(-1, 1)).Run(nil)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should offset the measurement from the true output from the onset on", func() {
			for k := 1; k < len(disturbed.Samples); k++ {
				s := disturbed.Samples[k]
				diff := s.Measurement - disturbed.Outputs[k-1]
				if s.Time >= 3.5 {
					Expect(diff).To(BeNumerically("~", -0.2, 1e-12))
				} else {
					Expect(diff).To(Equal(0.0))
				}
			}
		})

		It("should leave the plant untouched up to the onset", func() {
			Expect(disturbed.Samples[350].Time).To(Equal(3.5))
			for k := 0; k < 350; k++ {
				Expect(disturbed.Outputs[k]).To(Equal(clean.Outputs[k]))
			}
		})

		It("should not make the plant output jump", func() {
			// one Euler step moves y by at most dt*(decay*|y| + gain*|u|)
			for k := 1; k < len(disturbed.Outputs); k++ {
				bound := dt * (1.2*math.Abs(disturbed.Outputs[k-1]) + 2.0)
				Expect(math.Abs(disturbed.Outputs[k] - disturbed.Outputs[k-1])).To(BeNumerically("<=", bound+1e-12))
			}
		})
	})

	Context("sink and hooks", func() {
		It("should write every sample to the sink in tick order", func() {
			sink := &recordingSink{}
			result, err := newScenarioLoop(scenarioConfig(1.0, false), nil).Run(sink)
			Expect(err).NotTo(HaveOccurred())
			Expect(sink.samples).To(Equal(result.Samples))
		})

		It("should stop on a sink failure", func() {
			sink := &recordingSink{failAt: 10}
			result, err := newScenarioLoop(scenarioConfig(1.0, false), nil).Run(sink)

			Expect(err).To(MatchError(dynamo.ErrSinkWrite))
			var simErr *dynamo.SimError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.Step).To(Equal(10))
			Expect(result.Samples).To(HaveLen(11))
			Expect(sink.samples).To(HaveLen(10))
		})

		It("should report attached metrics", func() {
			loop := newScenarioLoop(scenarioConfig(1.0, false), nil)
			loop.AddMetric(&countingMetric{})

			result, err := loop.Run(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Metrics).To(HaveKeyWithValue("count", 101.0))
		})
	})
})

var _ = Describe("Ensemble", func() {
	build := func(limits *dynamo.Limits) func() (*Loop, error) {
		return func() (*Loop, error) {
			return buildScenarioLoop(scenarioConfig(6.0, true), limits)
		}
	}

	It("should match sequential runs and keep job order", func() {
		ens := NewEnsemble(
			Job{Name: "baseline", Build: build(dynamo.NewLimits(-1, 1))},
			Job{Name: "no_antiwindup", Build: build(nil)},
		)
		results, err := ens.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
		Expect(results[0].Name).To(Equal("baseline"))
		Expect(results[1].Name).To(Equal("no_antiwindup"))

		seq, err := newScenarioLoop(scenarioConfig(6.0, true), nil).Run(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(results[1].Samples).To(Equal(seq.Samples))
		Expect(results[0].Samples).NotTo(Equal(results[1].Samples))
	})

	It("should run jobs added one at a time", func() {
		ens := NewEnsemble()
		Expect(ens.Len()).To(Equal(0))

		ens.Add(Job{Name: "first", Build: build(nil)})
		ens.Add(Job{Name: "second", Build: build(dynamo.NewLimits(-1, 1))})
		Expect(ens.Len()).To(Equal(2))

		results, err := ens.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
		Expect(results[0].Name).To(Equal("first"))
		Expect(results[1].Name).To(Equal("second"))
	})

	It("should surface build failures", func() {
		ens := NewEnsemble(Job{Name: "broken", Build: func() (*Loop, error) {
			_, err := control.NewPID(1, 1, 1, -1)
			return nil, err
		}})
		_, err := ens.Run()
		Expect(err).To(MatchError(dynamo.ErrInvalidParameter))
		Expect(err.Error()).To(ContainSubstring("broken"))
	})
})
