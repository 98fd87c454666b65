package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err, "failed to load scenario %s", name)
	return scenario
}

// TestScenarios runs every scenario under testdata/scenarios.
func TestScenarios(t *testing.T) {
	names := []string{
		"basic_dispatch",
		"wait_for_transition",
		"sleep_resume",
		"save_restore",
		"structural_save",
		"jump_errors",
	}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			scenario := loadTestScenario(t, name)
			assert.Equal(t, name, scenario.Name)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "scenario should pass: errors=%v", result.Errors)
			assert.Empty(t, result.Errors)
			assert.NotEmpty(t, result.Trace)
		})
	}
}

// TestScenarios_Golden compares traces against testdata/golden.
func TestScenarios_Golden(t *testing.T) {
	for _, name := range []string{"basic_dispatch", "wait_for_transition", "sleep_resume", "save_restore"} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors=%v", result.Errors)
		})
	}
}

// TestRun_Replay checks that running a scenario twice gives identical traces.
func TestRun_Replay(t *testing.T) {
	scenario := loadTestScenario(t, "save_restore")

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := MarshalTrace(scenario.Name, first)
	require.NoError(t, err)
	b, err := MarshalTrace(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_UnexpectedStepErrorFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "missing_label",
		Description: "jumping to a missing label without expect_error fails",
		Script:      "- label: A\n",
		Steps: []Step{
			{Start: &StartStep{Label: "nope"}},
		},
		Assertions: []Assertion{{Type: AssertTraceCount, Hook: "error", Count: 1}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[0] start")
	assert.Equal(t, "stop", result.Status, "failed start leaves the conductor stopped")
}

func TestRun_ExpectedErrorMissingFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "no_error",
		Description: "expect_error on a step that succeeds fails",
		Script:      "- label: A\n",
		Steps: []Step{
			{Start: &StartStep{}, ExpectError: ErrKindScriptLoad},
		},
		Assertions: []Assertion{{Type: AssertFinalStatus, Status: "run"}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected script_load error, got none")
}

func TestRun_WrongErrorKindFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong_kind",
		Description: "a label error does not satisfy expect_error script_load",
		Script:      "- label: A\n",
		Steps: []Step{
			{Start: &StartStep{Label: "nope"}, ExpectError: ErrKindScriptLoad},
		},
		Assertions: []Assertion{{Type: AssertFinalStatus, Status: "stop"}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "got label")
}

func TestRun_MaxSteps(t *testing.T) {
	scenario := &Scenario{
		Name:        "loop",
		Description: "a jump back to the top without breaking exceeds the step budget",
		Script:      "- label: top\n- msg: {text: hi}\n- msg: {text: again}\n",
		MaxSteps:    2,
		Steps: []Step{
			{Start: &StartStep{}},
			{Conduct: 1, ExpectError: ErrKindStepsExceeded},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Hook: "tag", Name: "msg", Count: 1},
			{Type: AssertFinalStatus, Status: "run"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors=%v", result.Errors)
}

func TestRun_ShortcutValues(t *testing.T) {
	scenario := &Scenario{
		Name:        "shortcut",
		Description: "a ch tag with a shortcut text expands to the rule's directive",
		Script:      "- ch: {text: \"@\"}\n",
		Shortcuts: map[string]ShortcutRule{
			"@": {Tag: "p", Values: map[string]any{"wait": true}},
		},
		Steps: []Step{{Start: &StartStep{}}, {Conduct: 1}},
		Assertions: []Assertion{
			{Type: AssertTraceContains, Hook: "tag", Name: "p", Args: map[string]any{"wait": true}},
			{Type: AssertTraceCount, Hook: "tag", Name: "ch", Count: 0},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors=%v", result.Errors)
}
