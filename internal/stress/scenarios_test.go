package stress

import "testing"

func validSet() ScenarioSet {
	return ScenarioSet{
		Version: 1,
		Scenarios: []Scenario{
			{
				ID:       "market-down-20",
				Name:     "Broad market -20%",
				Category: "market",
				Severity: "severe",
				Shocks:   map[string]float64{"Market": -0.20},
			},
		},
	}
}

func TestValidate_OK(t *testing.T) {
	if err := Validate(validSet()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ScenarioSet)
	}{
		{"empty set", func(s *ScenarioSet) { s.Scenarios = nil }},
		{"missing id", func(s *ScenarioSet) { s.Scenarios[0].ID = "  " }},
		{"unknown category", func(s *ScenarioSet) { s.Scenarios[0].Category = "weather" }},
		{"unknown severity", func(s *ScenarioSet) { s.Scenarios[0].Severity = "catastrophic" }},
		{"no shocks", func(s *ScenarioSet) { s.Scenarios[0].Shocks = nil }},
		{"shock out of range", func(s *ScenarioSet) { s.Scenarios[0].Shocks["Market"] = -1.5 }},
		{"empty factor name", func(s *ScenarioSet) { s.Scenarios[0].Shocks[" "] = -0.1 }},
		{"duplicate id", func(s *ScenarioSet) {
			s.Scenarios = append(s.Scenarios, s.Scenarios[0])
		}},
	}
	for _, tc := range cases {
		set := validSet()
		tc.mutate(&set)
		if err := Validate(set); err == nil {
			t.Fatalf("%s: want error", tc.name)
		}
	}
}
