package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/pidsim/internal/control"
	"github.com/san-kum/pidsim/internal/dynamo"
	"github.com/san-kum/pidsim/internal/physics"
	"github.com/san-kum/pidsim/internal/sim"
)

const (
	DefaultDt         = 0.01
	DefaultDuration   = 6.0
	DefaultKp         = 2.0
	DefaultKi         = 1.0
	DefaultKd         = 0.05
	DefaultSwitchTime = 1.0
	DefaultOnsetTime  = 3.5
	DefaultOffset     = -0.2
)

// Scenario is the file form of one run: the run configuration plus the
// controller and plant it is built from.
type Scenario struct {
	Name        string                     `yaml:"name,omitempty"`
	Dt          float64                    `yaml:"dt"`
	Duration    float64                    `yaml:"duration"`
	Setpoint    dynamo.SetpointSchedule    `yaml:"setpoint"`
	Disturbance dynamo.DisturbanceSchedule `yaml:"disturbance"`
	Controller  ControllerConfig           `yaml:"controller"`
	Plant       PlantConfig                `yaml:"plant"`
}

// ControllerConfig holds gains and optional limits. A limit key set to null
// disables that clamp; an omitted key keeps the default.
type ControllerConfig struct {
	Kp             float64        `yaml:"kp"`
	Ki             float64        `yaml:"ki"`
	Kd             float64        `yaml:"kd"`
	OutputLimits   *dynamo.Limits `yaml:"output_limits"`
	IntegralLimits *dynamo.Limits `yaml:"integral_limits"`
}

type PlantConfig struct {
	Decay float64 `yaml:"decay"`
	Gain  float64 `yaml:"gain"`
	Y0    float64 `yaml:"y0"`
}

// Suite is a list of scenarios run side by side.
type Suite struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

func DefaultScenario() *Scenario {
	return &Scenario{
		Name:     "baseline",
		Dt:       DefaultDt,
		Duration: DefaultDuration,
		Setpoint: dynamo.SetpointSchedule{
			Initial:    0.0,
			Stepped:    1.0,
			SwitchTime: DefaultSwitchTime,
		},
		Disturbance: dynamo.DisturbanceSchedule{
			Enabled:   true,
			OnsetTime: DefaultOnsetTime,
			Offset:    DefaultOffset,
		},
		Controller: ControllerConfig{
			Kp:             DefaultKp,
			Ki:             DefaultKi,
			Kd:             DefaultKd,
			OutputLimits:   dynamo.NewLimits(-2, 2),
			IntegralLimits: dynamo.NewLimits(-1, 1),
		},
		Plant: PlantConfig{
			Decay: physics.DefaultDecay,
			Gain:  physics.DefaultGain,
		},
	}
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a scenario on top of DefaultScenario, so omitted keys keep
// their defaults. The name is not inherited: a file without one stays
// unnamed.
func Parse(data []byte) (*Scenario, error) {
	sc := DefaultScenario()
	sc.Name = ""
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("config: decoding scenario: %w", err)
	}
	return sc, nil
}

func Save(path string, sc *Scenario) error {
	data, err := yaml.Marshal(sc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadSuite reads a file holding a `scenarios:` list. Each entry starts
// from DefaultScenario; unnamed entries are called scenario_<index>.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Scenarios []yaml.Node `yaml:"scenarios"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: decoding suite: %w", err)
	}

	suite := &Suite{Scenarios: make([]Scenario, 0, len(raw.Scenarios))}
	for i := range raw.Scenarios {
		sc := DefaultScenario()
		sc.Name = ""
		if err := raw.Scenarios[i].Decode(sc); err != nil {
			return nil, fmt.Errorf("config: decoding scenario %d: %w", i, err)
		}
		if sc.Name == "" {
			sc.Name = fmt.Sprintf("scenario_%d", i)
		}
		suite.Scenarios = append(suite.Scenarios, *sc)
	}
	return suite, nil
}

func SaveSuite(path string, suite *Suite) error {
	data, err := yaml.Marshal(suite)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the scenario before anything is built. Limit ordering is
// checked here because the controller itself does not.
func (s *Scenario) Validate() error {
	if err := s.RunConfig().Validate(); err != nil {
		return err
	}
	if !(s.Plant.Decay >= 0) {
		return dynamo.InvalidParameter("plant.decay", s.Plant.Decay, ">= 0")
	}
	if l := s.Controller.OutputLimits; l != nil && !l.Valid() {
		return fmt.Errorf("%w: output_limits min %g > max %g", dynamo.ErrInvalidParameter, l.Min, l.Max)
	}
	if l := s.Controller.IntegralLimits; l != nil && !l.Valid() {
		return fmt.Errorf("%w: integral_limits min %g > max %g", dynamo.ErrInvalidParameter, l.Min, l.Max)
	}
	return nil
}

func (s *Scenario) RunConfig() dynamo.Config {
	return dynamo.Config{
		Dt:          s.Dt,
		Duration:    s.Duration,
		Setpoint:    s.Setpoint,
		Disturbance: s.Disturbance,
	}
}

// Build constructs a fresh controller, plant and loop. Every call returns
// independent instances.
func (s *Scenario) Build() (*sim.Loop, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	plant, err := physics.NewFirstOrderPlant(s.Plant.Decay, s.Plant.Gain, s.Dt, s.Plant.Y0)
	if err != nil {
		return nil, err
	}

	pid, err := control.NewPID(s.Controller.Kp, s.Controller.Ki, s.Controller.Kd, s.Dt)
	if err != nil {
		return nil, err
	}
	pid.SetOutputLimits(s.Controller.OutputLimits)
	pid.SetIntegralLimits(s.Controller.IntegralLimits)

	return sim.New(pid, plant, s.RunConfig())
}

// Clone returns a deep copy.
func (s *Scenario) Clone() *Scenario {
	c := *s
	if l := s.Controller.OutputLimits; l != nil {
		c.Controller.OutputLimits = dynamo.NewLimits(l.Min, l.Max)
	}
	if l := s.Controller.IntegralLimits; l != nil {
		c.Controller.IntegralLimits = dynamo.NewLimits(l.Min, l.Max)
	}
	return &c
}

// Jobs turns the suite into ensemble jobs without sinks.
func (s *Suite) Jobs() []sim.Job {
	jobs := make([]sim.Job, 0, len(s.Scenarios))
	for i := range s.Scenarios {
		sc := s.Scenarios[i].Clone()
		jobs = append(jobs, sim.Job{Name: sc.Name, Build: sc.Build})
	}
	return jobs
}
