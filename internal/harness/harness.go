package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/novella/internal/engine"
	"github.com/roach88/novella/internal/ir"
	"github.com/roach88/novella/internal/logging"
	"github.com/roach88/novella/internal/readunread"
	"github.com/roach88/novella/internal/resource"
	"github.com/roach88/novella/internal/store"
	"github.com/roach88/novella/internal/testutil"
)

// ConductorName is the name of the conductor every scenario runs.
const ConductorName = "main"

// Harness is the scenario execution engine.
// It drives a real conductor on a deterministic tick clock.
type Harness struct {
	store     *store.Store
	driver    *engine.Driver
	conductor *engine.Conductor
	recorder  *testutil.Recorder
	responses map[string]Response
	logger    *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Create fresh in-memory database and read/unread tracker
//  2. Build an in-memory script file system from the scenario
//  3. Execute steps, checking expected errors
//  4. Build the trace from recorded hook calls
//  5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	files := make(map[string]string, len(scenario.Files)+1)
	for name, src := range scenario.Files {
		files[name] = src
	}
	if scenario.Script != "" {
		files[MainScript] = scenario.Script
	}

	shortcuts, err := convertShortcuts(scenario.Shortcuts)
	if err != nil {
		return nil, err
	}

	logger := logging.Discard()
	res := resource.New(testutil.ScriptFS(files),
		resource.WithShortcuts(shortcuts),
		resource.WithLogger(logger),
	)
	tracker := readunread.New(readunread.WithPersister(st))

	h := &Harness{
		store:     st,
		responses: scenario.Responses,
		logger:    logger,
	}
	h.recorder = testutil.NewRecorder(h.hooks())

	opts := []engine.Option{engine.WithLogger(logger)}
	if scenario.MaxSteps > 0 {
		opts = append(opts, engine.WithMaxSteps(scenario.MaxSteps))
	}
	h.conductor = engine.New(ConductorName, res, tracker, h.recorder, opts...)

	h.driver = engine.NewDriver(engine.WithDriverLogger(logger))
	if err := h.driver.Add(h.conductor); err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		h.logger.Debug("scenario step", "scenario", scenario.Name, "index", i, "step", step.kind(), "tick", h.driver.Tick())
		err := h.executeStep(ctx, step)
		if msg := checkStepError(i, step, err); msg != "" {
			result.AddError(msg)
		}
	}

	result.Trace = buildTrace(h.recorder.Calls())
	result.Status = h.conductor.Status().String()
	result.Tick = h.driver.Tick()

	actx := &AssertionContext{
		Ctx:       ctx,
		Store:     st,
		Conductor: h.conductor,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// executeStep runs one step against the conductor.
func (h *Harness) executeStep(ctx context.Context, step Step) error {
	c := h.conductor
	tick := h.driver.Tick()

	switch {
	case step.Start != nil:
		file := step.Start.File
		if file == "" {
			file = MainScript
		}
		var err error
		if step.Start.Label != "" {
			err = c.Jump(ctx, file, step.Start.Label, false)
		} else {
			err = c.LoadScript(ctx, file)
		}
		if err != nil {
			return err
		}
		c.Start()
		return nil

	case step.Resume:
		c.Start()
		return nil

	case step.Conduct > 0:
		for i := 0; i < step.Conduct; i++ {
			if err := h.driver.Step(ctx); err != nil {
				return err
			}
		}
		return nil

	case step.Trigger != "":
		if !h.driver.Post(ConductorName, step.Trigger) {
			return fmt.Errorf("driver closed")
		}
		return nil

	case step.Jump != nil:
		return c.Jump(ctx, step.Jump.File, step.Jump.Label, step.Jump.CountPage)

	case step.Store != nil:
		mark := step.Store.Mark
		if mark == "" {
			mark = c.LatestSaveMarkName()
		}
		snap, err := c.Store(mark, tick)
		if err != nil {
			return err
		}
		_, err = h.store.WriteSaveSlot(ctx, store.SaveSlot{
			Name:      step.Store.Slot,
			Conductor: ConductorName,
			Tick:      tick,
			Snapshot:  snap,
		})
		return err

	case step.Restore != nil:
		slot, err := h.store.ReadSaveSlot(ctx, step.Restore.Slot, ConductorName)
		if err != nil {
			return err
		}
		return c.Restore(ctx, slot.Snapshot, tick)

	case step.Pass:
		return c.PassLatestSaveMark()
	}
	return fmt.Errorf("empty step")
}

// hooks builds the dispatch hooks that apply scenario responses.
func (h *Harness) hooks() engine.HookFuncs {
	return engine.HookFuncs{
		Label: func(_ string, _ int, tick int64) (engine.Control, error) {
			return h.respond(ir.KindLabel, tick), nil
		},
		SaveMark: func(_, _ string, _ int, tick int64) (engine.Control, error) {
			return h.respond(ir.KindSaveMark, tick), nil
		},
		Js: func(_ string, _ bool, _ int, tick int64) (engine.Control, error) {
			return h.respond(ir.KindJs, tick), nil
		},
		Tag: func(tag ir.Tag, _ int, tick int64) (engine.Control, error) {
			return h.respond(tag.Kind(), tick), nil
		},
	}
}

// respond applies the configured response for kind.
func (h *Harness) respond(kind string, tick int64) engine.Control {
	resp, ok := h.responses[kind]
	if !ok {
		return engine.Continue
	}

	c := h.conductor
	action := resp.Action
	if resp.Await != "" {
		c.AddEventHandler(engine.NewEventHandler(resp.Await, func() {
			c.Start()
		}))
		if action == "" {
			action = ActionStop
		}
	}

	switch action {
	case ActionBreak:
		return engine.Break
	case ActionStop:
		return c.Stop()
	case ActionSleep:
		return c.Sleep(tick, resp.Ticks, kind)
	default:
		return engine.Continue
	}
}

// Error kinds accepted by Step.ExpectError besides the save error kinds.
const (
	ErrKindScriptLoad    = "script_load"
	ErrKindLabel         = "label"
	ErrKindStepsExceeded = "steps_exceeded"
	ErrKindSlotNotFound  = "slot_not_found"
)

// errorKind classifies a step error for ExpectError matching.
func errorKind(err error) string {
	if kind, ok := engine.SaveErrorKindOf(err); ok {
		return string(kind)
	}
	switch {
	case engine.IsScriptLoadError(err):
		return ErrKindScriptLoad
	case engine.IsLabelError(err):
		return ErrKindLabel
	case engine.IsStepsExceeded(err):
		return ErrKindStepsExceeded
	case errors.Is(err, store.ErrSlotNotFound):
		return ErrKindSlotNotFound
	default:
		return "error"
	}
}

// checkStepError compares a step's outcome with its ExpectError.
// Returns an empty string when they agree.
func checkStepError(i int, step Step, err error) string {
	switch {
	case err == nil && step.ExpectError == "":
		return ""
	case err == nil:
		return fmt.Sprintf("steps[%d] %s: expected %s error, got none", i, step.kind(), step.ExpectError)
	case step.ExpectError == "":
		return fmt.Sprintf("steps[%d] %s: %v", i, step.kind(), err)
	}
	if got := errorKind(err); got != step.ExpectError {
		return fmt.Sprintf("steps[%d] %s: expected %s error, got %s: %v", i, step.kind(), step.ExpectError, got, err)
	}
	return ""
}

// buildTrace converts recorded calls into numbered trace events.
func buildTrace(calls []testutil.Call) []TraceEvent {
	trace := make([]TraceEvent, 0, len(calls))
	for i, call := range calls {
		ev := TraceEvent{
			Seq:  int64(i + 1),
			Hook: call.Hook,
			Name: call.Name,
		}
		switch call.Hook {
		case testutil.HookChangeStable:
			stable := call.Stable
			ev.Stable = &stable
		case testutil.HookError:
			ev.Error = call.Err.Error()
		default:
			ev.Tick = call.Tick
			ev.Line = call.Line
			if call.Hook == testutil.HookTag && call.Tag.Len() > 0 {
				ev.Args = call.Tag.Object()
			}
		}
		trace = append(trace, ev)
	}
	return trace
}

// convertShortcuts turns scenario shortcut rules into ir rules with payload
// keys sorted.
func convertShortcuts(rules map[string]ShortcutRule) (map[string]ir.Shortcut, error) {
	out := make(map[string]ir.Shortcut, len(rules))
	for trigger, rule := range rules {
		keys := make([]string, 0, len(rule.Values))
		for k := range rule.Values {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sc := ir.Shortcut{Tag: rule.Tag}
		for _, k := range keys {
			v, err := ir.FromGo(rule.Values[k])
			if err != nil {
				return nil, fmt.Errorf("shortcut %q value %q: %w", trigger, k, err)
			}
			sc.Values = append(sc.Values, ir.P(k, v))
		}
		out[trigger] = sc
	}
	return out, nil
}
