package config

import (
	"sort"

	"github.com/san-kum/pidsim/internal/dynamo"
)

// Presets are the configurations shipped with the tool. The
// anti-windup comparison (baseline vs no_antiwindup) and the undisturbed
// single step response are equally valid starting points.
var Presets = map[string]func() *Scenario{
	"baseline": func() *Scenario {
		return DefaultScenario()
	},
	"no_antiwindup": func() *Scenario {
		sc := DefaultScenario()
		sc.Name = "no_antiwindup"
		sc.Controller.IntegralLimits = nil
		return sc
	},
	"single": func() *Scenario {
		sc := DefaultScenario()
		sc.Name = "single"
		sc.Disturbance = dynamo.DisturbanceSchedule{}
		return sc
	},
	"unsaturated": func() *Scenario {
		sc := DefaultScenario()
		sc.Name = "unsaturated"
		sc.Controller.OutputLimits = nil
		sc.Controller.IntegralLimits = nil
		return sc
	},
}

// ComparisonPresets are run together by the compare command when no suite
// file is given.
var ComparisonPresets = []string{"baseline", "no_antiwindup"}

func GetPreset(name string) *Scenario {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	return fn()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultSuite returns the anti-windup comparison.
func DefaultSuite() *Suite {
	suite := &Suite{}
	for _, name := range ComparisonPresets {
		suite.Scenarios = append(suite.Scenarios, *GetPreset(name))
	}
	return suite
}
