package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tablefsm/internal/steering"
)

// Scenario defines one steering interface run and its expectations.
type Scenario struct {
	// Name uniquely identifies this scenario; it also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// SessionID is the fixed session ID of the recording.
	// If empty, defaults to "test-session-default".
	SessionID string `yaml:"session_id,omitempty"`

	// Config sets up the interface before the first step.
	Config ScenarioConfig `yaml:"config,omitempty"`

	// Guards are the initial guard answers. If nil, every requirement is
	// met and no stop condition is present.
	Guards *GuardSpec `yaml:"guards,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and the trace.
	Assertions []Assertion `yaml:"assertions"`
}

// ScenarioConfig mirrors the interface options.
type ScenarioConfig struct {
	DebugMode     bool   `yaml:"debug_mode"`
	ControlMode   string `yaml:"control_mode,omitempty"`
	GatewayState  uint8  `yaml:"gateway_state,omitempty"`
	MaxChainSteps *int   `yaml:"max_chain_steps,omitempty"`
}

// GuardSpec is a fixed guard answer set.
type GuardSpec struct {
	Activation     bool `yaml:"activation"`
	Working        bool `yaml:"working"`
	StopConditions bool `yaml:"stop_conditions"`
}

// Guards converts g to steering guards.
func (g GuardSpec) Guards() steering.Guards {
	return steering.StaticGuards{
		Activation:     g.Activation,
		Working:        g.Working,
		StopConditions: g.StopConditions,
	}
}

// Step is one operation.
type Step struct {
	// Op is the operation name, see the Op constants.
	Op string `yaml:"op"`

	// Value is the signed setpoint (set_value).
	Value float64 `yaml:"value,omitempty"`

	// Code is the activation code (code).
	Code *uint8 `yaml:"code,omitempty"`

	// GatewayState is the new gateway state (set_gateway_state).
	GatewayState *uint8 `yaml:"gateway_state,omitempty"`

	// Guards are the new guard answers (set_guards).
	Guards *GuardSpec `yaml:"guards,omitempty"`

	// Expect is checked after the step. If nil, the step must not fail.
	Expect *StepExpect `yaml:"expect,omitempty"`
}

// StepExpect is the expected outcome of one step.
type StepExpect struct {
	// State is the expected current state.
	State string `yaml:"state,omitempty"`

	// Deferred expects the step's drain to hit the step budget.
	Deferred bool `yaml:"deferred,omitempty"`

	// Error is a substring of the expected error.
	Error string `yaml:"error,omitempty"`
}

// Step operations.
const (
	OpSendClearance   = "send_clearance"
	OpActivate        = "activate"
	OpStop            = "stop"
	OpSetValue        = "set_value"
	OpCode            = "code"
	OpConfirmSent     = "confirm_sent"
	OpDrain           = "drain"
	OpSetGuards       = "set_guards"
	OpSetGatewayState = "set_gateway_state"
)

// Assertion validates the final state or the trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "final_state": the state after the last step equals State
	// - "trace_order": States were entered in this order
	// - "frame_count": Count frames with FrameID were sent (all frames if
	//   FrameID is nil)
	// - "deferred_count": Count drains were deferred
	Type string `yaml:"type"`

	// State is the expected final state (final_state).
	State string `yaml:"state,omitempty"`

	// States is the expected entry order (trace_order).
	States []string `yaml:"states,omitempty"`

	// FrameID filters frames (frame_count).
	FrameID *uint16 `yaml:"frame_id,omitempty"`

	// Count is the expected number (frame_count, deferred_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState    = "final_state"
	AssertTraceOrder    = "trace_order"
	AssertFrameCount    = "frame_count"
	AssertDeferredCount = "deferred_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
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

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if _, err := steering.ParseControlMode(s.Config.ControlMode); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if s.Config.MaxChainSteps != nil && *s.Config.MaxChainSteps < 0 {
		return fmt.Errorf("config: max_chain_steps must be >= 0")
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

// validateStep checks that a step carries the fields its op needs.
func validateStep(index int, s *Step) error {
	switch s.Op {
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	case OpSendClearance, OpActivate, OpStop, OpSetValue, OpConfirmSent, OpDrain:
	case OpCode:
		if s.Code == nil {
			return fmt.Errorf("steps[%d]: code is required for code", index)
		}
	case OpSetGuards:
		if s.Guards == nil {
			return fmt.Errorf("steps[%d]: guards is required for set_guards", index)
		}
	case OpSetGatewayState:
		if s.GatewayState == nil {
			return fmt.Errorf("steps[%d]: gateway_state is required for set_gateway_state", index)
		}
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, s.Op)
	}

	if s.Expect != nil && s.Expect.State != "" && !isStateName(s.Expect.State) {
		return fmt.Errorf("steps[%d].expect: unknown state %q", index, s.Expect.State)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalState:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for final_state", index)
		}
		if !isStateName(a.State) {
			return fmt.Errorf("assertions[%d]: unknown state %q", index, a.State)
		}
	case AssertTraceOrder:
		if len(a.States) == 0 {
			return fmt.Errorf("assertions[%d]: states list is required for trace_order", index)
		}
		for _, st := range a.States {
			if !isStateName(st) {
				return fmt.Errorf("assertions[%d]: unknown state %q", index, st)
			}
		}
	case AssertFrameCount, AssertDeferredCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func isStateName(name string) bool {
	_, ok := steering.Table().StateByName(name)
	return ok
}
