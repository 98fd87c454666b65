package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// MainScript is the file name an inline scenario script is stored under.
const MainScript = "main.yaml"

// Scenario defines a conductor test scenario.
// A scenario loads one or more scripts into a fresh conductor, drives it
// through a list of steps and asserts on the recorded hook trace.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Script is the inline source of MainScript.
	Script string `yaml:"script,omitempty"`

	// Files holds additional scripts keyed by path.
	Files map[string]string `yaml:"files,omitempty"`

	// Shortcuts maps trigger text to an expansion rule.
	Shortcuts map[string]ShortcutRule `yaml:"shortcuts,omitempty"`

	// Responses decides what each dispatch hook returns, keyed by hook
	// name (label, save_mark, js) or by tag kind. Missing kinds continue.
	Responses map[string]Response `yaml:"responses,omitempty"`

	// MaxSteps bounds dispatches per tick. Zero means unlimited.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// Steps drive the conductor in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// ShortcutRule is a command shortcut as written in a scenario.
type ShortcutRule struct {
	Tag    string         `yaml:"tag"`
	Values map[string]any `yaml:"values,omitempty"`
}

// Response actions.
const (
	ActionContinue = "continue"
	ActionBreak    = "break"
	ActionStop     = "stop"
	ActionSleep    = "sleep"
)

// Response is what a dispatch hook does when it sees a kind.
//
// A bare scalar is shorthand for the action:
//
//	responses:
//	  msg: break
//	  wait: {action: sleep, ticks: 3}
//	  wt: {action: stop, await: trans}
type Response struct {
	// Action is continue, break, stop or sleep. Defaults to continue, or to
	// stop when Await is set.
	Action string `yaml:"action"`

	// Ticks is the sleep duration for the sleep action.
	Ticks int64 `yaml:"ticks,omitempty"`

	// Await registers a one-shot handler for the named event that restarts
	// the conductor when triggered.
	Await string `yaml:"await,omitempty"`
}

// UnmarshalYAML accepts either a scalar action or a mapping.
func (r *Response) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		r.Action = node.Value
		return nil
	}
	type plain Response
	return node.Decode((*plain)(r))
}

// Step is one scenario action. Exactly one field must be set.
type Step struct {
	// Start loads a script, optionally seeks a label and sets Run.
	Start *StartStep `yaml:"start,omitempty"`

	// Resume sets Run without reloading, e.g. after a restore.
	Resume bool `yaml:"resume,omitempty"`

	// Conduct advances the driver this many ticks.
	Conduct int `yaml:"conduct,omitempty"`

	// Trigger posts an event completion, delivered on the next tick.
	Trigger string `yaml:"trigger,omitempty"`

	// Jump calls Conductor.Jump.
	Jump *JumpStep `yaml:"jump,omitempty"`

	// Store captures a snapshot into a save slot.
	Store *SlotStep `yaml:"store,omitempty"`

	// Restore reloads a save slot.
	Restore *SlotStep `yaml:"restore,omitempty"`

	// Pass marks the latest save-mark as read.
	Pass bool `yaml:"pass,omitempty"`

	// ExpectError names the error kind this step must fail with:
	// script_load, label, IN_MACRO, IN_FOR_LOOP, IN_IF, steps_exceeded.
	// Without it any error fails the scenario.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// StartStep loads File (MainScript when empty) and seeks Label if set.
type StartStep struct {
	File  string `yaml:"file,omitempty"`
	Label string `yaml:"label,omitempty"`
}

// JumpStep mirrors Conductor.Jump.
type JumpStep struct {
	File      string `yaml:"file,omitempty"`
	Label     string `yaml:"label"`
	CountPage bool   `yaml:"count_page,omitempty"`
}

// SlotStep names a save slot. Mark overrides the save-mark stored; the
// latest passed save-mark is used otherwise.
type SlotStep struct {
	Slot string `yaml:"slot"`
	Mark string `yaml:"mark,omitempty"`
}

// kind returns the step's name for errors and logs.
func (s Step) kind() string {
	switch {
	case s.Start != nil:
		return "start"
	case s.Resume:
		return "resume"
	case s.Conduct > 0:
		return "conduct"
	case s.Trigger != "":
		return "trigger"
	case s.Jump != nil:
		return "jump"
	case s.Store != nil:
		return "store"
	case s.Restore != nil:
		return "restore"
	case s.Pass:
		return "pass"
	default:
		return ""
	}
}

func (s Step) count() int {
	n := 0
	for _, set := range []bool{s.Start != nil, s.Resume, s.Conduct > 0, s.Trigger != "", s.Jump != nil, s.Store != nil, s.Restore != nil, s.Pass} {
		if set {
			n++
		}
	}
	return n
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": a call with Hook, Name and Args appears
	// - "trace_order": Calls appear in order (formatted as in Call.String without tick)
	// - "trace_count": Hook/Name appears exactly Count times
	// - "final_status": the conductor ends in Status
	// - "passed": File/Mark read state equals Expect
	// - "stable_count": change_stable(Stable) was reported Count times
	Type string `yaml:"type"`

	Hook string         `yaml:"hook,omitempty"`
	Name string         `yaml:"name,omitempty"`
	Args map[string]any `yaml:"args,omitempty"`

	Calls []string `yaml:"calls,omitempty"`

	Count int `yaml:"count,omitempty"`

	Status string `yaml:"status,omitempty"`

	File   string `yaml:"file,omitempty"`
	Mark   string `yaml:"mark,omitempty"`
	Expect *bool  `yaml:"expect,omitempty"`

	Stable *bool `yaml:"stable,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalStatus   = "final_status"
	AssertPassed        = "passed"
	AssertStableCount   = "stable_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
//
// Files entries whose value is empty are read from disk relative to the
// scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	for name, src := range scenario.Files {
		if src != "" {
			continue
		}
		content, err := os.ReadFile(filepath.Join(base, filepath.FromSlash(name)))
		if err != nil {
			return nil, fmt.Errorf("invalid scenario: file %q: %w", name, err)
		}
		scenario.Files[name] = string(content)
	}
	return scenario, nil
}

// ParseScenario decodes scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:".
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

	if s.Script == "" && len(s.Files) == 0 {
		return fmt.Errorf("script or files is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for trigger, rule := range s.Shortcuts {
		if rule.Tag == "" {
			return fmt.Errorf("shortcuts[%q]: tag is required", trigger)
		}
	}

	for kind, resp := range s.Responses {
		switch resp.Action {
		case "", ActionContinue, ActionBreak, ActionStop:
		case ActionSleep:
			if resp.Ticks < 0 {
				return fmt.Errorf("responses[%q]: ticks must be >= 0", kind)
			}
		default:
			return fmt.Errorf("responses[%q]: unknown action %q", kind, resp.Action)
		}
	}

	for i, step := range s.Steps {
		if n := step.count(); n != 1 {
			return fmt.Errorf("steps[%d]: exactly one action is required, got %d", i, n)
		}
		if step.Jump != nil && step.Jump.Label == "" {
			return fmt.Errorf("steps[%d]: jump label is required", i)
		}
		if step.Store != nil && step.Store.Slot == "" {
			return fmt.Errorf("steps[%d]: store slot is required", i)
		}
		if step.Restore != nil && step.Restore.Slot == "" {
			return fmt.Errorf("steps[%d]: restore slot is required", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}

	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Hook == "" {
			return fmt.Errorf("trace_contains requires hook")
		}
	case AssertTraceOrder:
		if len(a.Calls) < 2 {
			return fmt.Errorf("trace_order requires at least two calls")
		}
	case AssertTraceCount:
		if a.Hook == "" {
			return fmt.Errorf("trace_count requires hook")
		}
	case AssertFinalStatus:
		if a.Status == "" {
			return fmt.Errorf("final_status requires status")
		}
	case AssertPassed:
		if a.Mark == "" || a.Expect == nil {
			return fmt.Errorf("passed requires mark and expect")
		}
	case AssertStableCount:
		if a.Stable == nil {
			return fmt.Errorf("stable_count requires stable")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
