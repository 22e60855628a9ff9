// Package harness runs scripted session scenarios against the timeline
// engine on a fake clock.
//
// A scenario pins an exact trial order, phase durations, and a tick tape,
// then asserts on the resulting marker trace. Golden files capture full
// traces so timing regressions show up as a readable diff.
package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/mindmark/internal/schedule"
)

// Scenario defines one scripted session run.
type Scenario struct {
	// Name uniquely identifies this scenario; it names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schedule is the explicit trial order, entries "focus"/"relaxation".
	Schedule []string `yaml:"schedule"`

	// Phase durations in milliseconds. The separator is fixed (no jitter)
	// so traces stay deterministic.
	InitialFixationMs int `yaml:"initial_fixation_ms"`
	ActiveMs          int `yaml:"active_ms"`
	InterTrialMs      int `yaml:"inter_trial_ms"`

	// TickMs is the simulated frame interval; Ticks is how many frames to
	// run. Tick n observes the fake clock at n*TickMs after session start.
	TickMs int `yaml:"tick_ms"`
	Ticks  int `yaml:"ticks"`

	// AbortAfterTick, when > 0, calls Abort after that tick completes.
	AbortAfterTick int `yaml:"abort_after_tick,omitempty"`

	// Assertions validate the trace and final phase.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates the trace or the final phase.
type Assertion struct {
	// Type is one of:
	//   - "event_order": the full label sequence equals Labels
	//   - "event_count": Label appears exactly Count times
	//   - "final_phase": the run ends in Phase
	Type string `yaml:"type"`

	Labels []string `yaml:"labels,omitempty"`
	Label  string   `yaml:"label,omitempty"`
	Count  int      `yaml:"count,omitempty"`
	Phase  string   `yaml:"phase,omitempty"`
}

// Assertion type constants.
const (
	AssertEventOrder = "event_order"
	AssertEventCount = "event_count"
	AssertFinalPhase = "final_phase"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and coherent.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Schedule) == 0 {
		return fmt.Errorf("schedule is required and must be non-empty")
	}
	for i, entry := range s.Schedule {
		if _, err := schedule.ParseTrialClass(entry); err != nil {
			return fmt.Errorf("schedule[%d]: %w", i, err)
		}
	}
	if s.ActiveMs <= 0 {
		return fmt.Errorf("active_ms must be positive")
	}
	if s.InitialFixationMs < 0 {
		return fmt.Errorf("initial_fixation_ms must be non-negative")
	}
	if s.InterTrialMs < 0 {
		return fmt.Errorf("inter_trial_ms must be non-negative")
	}
	if s.TickMs <= 0 {
		return fmt.Errorf("tick_ms must be positive")
	}
	if s.Ticks <= 0 {
		return fmt.Errorf("ticks must be positive")
	}
	if s.AbortAfterTick < 0 || s.AbortAfterTick > s.Ticks {
		return fmt.Errorf("abort_after_tick must be within the tick tape")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertEventOrder:
		if len(a.Labels) == 0 {
			return fmt.Errorf("assertions[%d]: labels list is required for event_order", index)
		}
	case AssertEventCount:
		if a.Label == "" {
			return fmt.Errorf("assertions[%d]: label is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertFinalPhase:
		if a.Phase == "" {
			return fmt.Errorf("assertions[%d]: phase is required for final_phase", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
