package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted run of one document.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Document is the path of the document YAML. Relative paths are
	// resolved against the scenario file's directory by LoadScenario.
	Document string `yaml:"document"`

	// IDPrefix seeds the run and action id generator. Default "t-".
	IDPrefix string `yaml:"id_prefix,omitempty"`

	// Steps drive the document.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scripted operation.
type Step struct {
	// Do names the operation, one of the Step* constants.
	Do string `yaml:"do"`

	// Handler is the handler name (invoke).
	Handler string `yaml:"handler,omitempty"`

	// Fast runs the handler or commands in fast mode (invoke, execute).
	Fast bool `yaml:"fast,omitempty"`

	// Lane places the handler on a lane instead of the main lane (invoke).
	Lane string `yaml:"lane,omitempty"`

	// MS is the amount of virtual time to advance (advance).
	MS int `yaml:"ms,omitempty"`

	// Commands are inline command descriptions (execute).
	Commands []map[string]any `yaml:"commands,omitempty"`
}

// Step operations.
const (
	StepMount        = "mount"
	StepInvoke       = "invoke"
	StepExecute      = "execute"
	StepAdvance      = "advance"
	StepAdvanceToEnd = "advance_to_end"
	StepReset        = "reset"
	StepTerminate    = "terminate"
)

// Assertion checks the outcome of a run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Events is the expected label order (event_order).
	Events []string `yaml:"events,omitempty"`

	// Event is the label to count (event_count).
	Event string `yaml:"event,omitempty"`

	// Kind is the trace kind to count (trace_count).
	Kind string `yaml:"kind,omitempty"`

	// Lane restricts trace_count, or names the lane for lane_empty.
	Lane string `yaml:"lane,omitempty"`

	// Name is the scope variable (scope_value).
	Name string `yaml:"name,omitempty"`

	// Value is the expected scope value (scope_value).
	Value any `yaml:"value,omitempty"`

	// Count is the expected number (event_count, trace_count).
	Count int `yaml:"count,omitempty"`

	// MS is the expected end time (time).
	MS int `yaml:"ms,omitempty"`
}

// Assertion type constants.
const (
	AssertEventOrder = "event_order"
	AssertEventCount = "event_count"
	AssertTraceCount = "trace_count"
	AssertLaneEmpty  = "lane_empty"
	AssertScopeValue = "scope_value"
	AssertTime       = "time"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Document != "" && !filepath.IsAbs(scenario.Document) {
		scenario.Document = filepath.Join(filepath.Dir(path), scenario.Document)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Document == "" {
		return fmt.Errorf("document is required")
	}
	if _, err := os.Stat(s.Document); os.IsNotExist(err) {
		return fmt.Errorf("document file not found: %s", s.Document)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s *Step) error {
	switch s.Do {
	case StepMount, StepAdvanceToEnd, StepReset, StepTerminate:
	case StepInvoke:
		if s.Handler == "" {
			return fmt.Errorf("steps[%d]: handler is required for invoke", index)
		}
		if s.Fast && s.Lane != "" {
			return fmt.Errorf("steps[%d]: fast and lane are mutually exclusive", index)
		}
	case StepExecute:
		if len(s.Commands) == 0 {
			return fmt.Errorf("steps[%d]: commands are required for execute", index)
		}
	case StepAdvance:
		if s.MS <= 0 {
			return fmt.Errorf("steps[%d]: ms must be positive for advance", index)
		}
	case "":
		return fmt.Errorf("steps[%d]: do is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown step %q", index, s.Do)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEventOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for event_order", index)
		}
	case AssertEventCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertTraceCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertLaneEmpty:
		if a.Lane == "" {
			return fmt.Errorf("assertions[%d]: lane is required for lane_empty", index)
		}
	case AssertScopeValue:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for scope_value", index)
		}
	case AssertTime:
		if a.MS < 0 {
			return fmt.Errorf("assertions[%d]: ms must be non-negative for time", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
