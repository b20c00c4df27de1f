package stress

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Scenario is one named shock set from the versioned scenario configuration.
// Shocks map factor name to a fractional return (e.g. -0.40 for a 40% drop).
type Scenario struct {
	ID       string             `mapstructure:"id"`
	Name     string             `mapstructure:"name"`
	Category string             `mapstructure:"category"`
	Severity string             `mapstructure:"severity"`
	Shocks   map[string]float64 `mapstructure:"shocks"`
}

type ScenarioSet struct {
	Version   int        `mapstructure:"version"`
	Scenarios []Scenario `mapstructure:"scenarios"`
}

var validCategories = map[string]bool{
	"market":            true,
	"rates":             true,
	"factor-rotation":   true,
	"volatility":        true,
	"historical-replay": true,
}

var validSeverities = map[string]bool{
	"mild":     true,
	"moderate": true,
	"severe":   true,
	"extreme":  true,
}

// LoadScenarios reads and structurally validates the scenario file. The set
// is loaded once per run; a malformed file fails the load, not individual
// scenario evaluations.
func LoadScenarios(path string) (ScenarioSet, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return ScenarioSet{}, fmt.Errorf("read scenario config: %w", err)
	}
	var set ScenarioSet
	if err := v.Unmarshal(&set); err != nil {
		return ScenarioSet{}, fmt.Errorf("decode scenario config: %w", err)
	}
	if err := Validate(set); err != nil {
		return ScenarioSet{}, err
	}
	return set, nil
}

// Validate checks required keys and value ranges before the set is used.
func Validate(set ScenarioSet) error {
	if len(set.Scenarios) == 0 {
		return fmt.Errorf("scenario config has no scenarios")
	}
	seen := map[string]bool{}
	for i, sc := range set.Scenarios {
		id := strings.TrimSpace(sc.ID)
		if id == "" {
			return fmt.Errorf("scenario %d: missing id", i)
		}
		if seen[id] {
			return fmt.Errorf("scenario %q: duplicate id", id)
		}
		seen[id] = true
		if !validCategories[strings.ToLower(strings.TrimSpace(sc.Category))] {
			return fmt.Errorf("scenario %q: unknown category %q", id, sc.Category)
		}
		if !validSeverities[strings.ToLower(strings.TrimSpace(sc.Severity))] {
			return fmt.Errorf("scenario %q: unknown severity %q", id, sc.Severity)
		}
		if len(sc.Shocks) == 0 {
			return fmt.Errorf("scenario %q: no shocks defined", id)
		}
		for factor, shock := range sc.Shocks {
			if strings.TrimSpace(factor) == "" {
				return fmt.Errorf("scenario %q: empty factor name", id)
			}
			if shock < -1 || shock > 1 {
				return fmt.Errorf("scenario %q: shock %v for %q outside [-1, 1]", id, shock, factor)
			}
		}
	}
	return nil
}
