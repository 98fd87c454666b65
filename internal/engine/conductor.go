package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/novella/internal/ir"
)

// Status is the execution state of a Conductor. Exactly one holds at a time.
type Status int

const (
	// StatusStop is idle: Conduct is a no-op until Start is called.
	StatusStop Status = iota
	// StatusRun dispatches tags on every Conduct call.
	StatusRun
	// StatusSleep suspends dispatch until the sleep duration has elapsed.
	StatusSleep
)

// String returns the lower-case status name.
func (s Status) String() string {
	switch s {
	case StatusStop:
		return "stop"
	case StatusRun:
		return "run"
	case StatusSleep:
		return "sleep"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ParseStatus converts a status name back to a Status.
func ParseStatus(name string) (Status, error) {
	switch name {
	case "stop":
		return StatusStop, nil
	case "run":
		return StatusRun, nil
	case "sleep":
		return StatusSleep, nil
	default:
		return StatusStop, fmt.Errorf("unknown status %q", name)
	}
}

// Control is the loop-control token returned by hooks.
type Control int

const (
	// Continue keeps dispatching tags in the current Conduct call.
	Continue Control = iota
	// Break ends the current Conduct call after the hook returns.
	Break
)

// String returns "continue" or "break".
func (c Control) String() string {
	if c == Break {
		return "break"
	}
	return "continue"
}

// Hooks is implemented by the embedding application. The conductor calls
// exactly one of the On* dispatch hooks per tag.
//
// A non-nil error from a dispatch hook aborts the Conduct call and is
// returned from Conduct unchanged.
type Hooks interface {
	OnLabel(name string, line int, tick int64) (Control, error)
	OnSaveMark(name, comment string, line int, tick int64) (Control, error)
	OnJs(expr string, print bool, line int, tick int64) (Control, error)
	OnTag(tag ir.Tag, line int, tick int64) (Control, error)
	OnChangeStable(stable bool)
	OnError(err error)
}

const (
	sleepNone     int64 = -1
	tracerName          = "github.com/roach88/novella/internal/engine"
	attrConductor       = "novella.conductor"
	attrScript          = "novella.script"
	attrLabel           = "novella.label"
	attrSaveMark        = "novella.save_mark"
)

// Conductor is the tick-driven script interpreter.
//
// The host calls Conduct(tick) once per tick. Each call either drains every
// runnable tag for that tick or returns early because of Sleep, a hook
// returning Break, Stop, or script exhaustion. Conduct never blocks.
//
// Thread-safety model:
//   - A Conductor is owned by one goroutine (the tick driver)
//   - Hooks run on that goroutine and may call Start, Stop, Sleep, Jump,
//     AddEventHandler and Trigger re-entrantly
//   - Only the ReadUnread tracker is shared with other conductors
type Conductor struct {
	name       string
	resource   Resource
	readUnread ReadUnread
	hooks      Hooks
	handlers   *HandlerRegistry
	logger     *slog.Logger
	tracer     trace.Tracer
	maxSteps   int

	script Cursor

	// pending holds a tag read past the step limit; the next Conduct
	// dispatches it first. Loading or seeking discards it.
	pending    ir.Tag
	hasPending bool

	// latestScriptFilePath is set before loading so load errors can name the file.
	latestScriptFilePath string

	status         Status
	sleepStartTick int64
	sleepTime      int64
	sleepSender    string
	stableBuffer   bool

	latestSaveMarkName string
}

// Option configures a Conductor.
type Option func(*Conductor)

// WithLogger sets the structured logger. Defaults to a discarding logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Conductor) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracer sets the tracer used for load, jump and restore spans.
// Defaults to the global OpenTelemetry provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Conductor) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithMaxSteps limits how many tags a single Conduct call may dispatch.
// Zero (the default) means unlimited.
func WithMaxSteps(n int) Option {
	return func(c *Conductor) {
		c.maxSteps = n
	}
}

// New creates a stopped Conductor holding an empty script.
//
// resource, readUnread and hooks are required. readUnread may be shared with
// other conductors; resource is typically shared too, since it hands every
// caller a fresh cursor.
func New(name string, resource Resource, readUnread ReadUnread, hooks Hooks, opts ...Option) *Conductor {
	c := &Conductor{
		name:           name,
		resource:       resource,
		readUnread:     readUnread,
		hooks:          hooks,
		handlers:       NewHandlerRegistry(),
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:         otel.Tracer(tracerName),
		script:         emptyCursor{},
		status:         StatusStop,
		sleepStartTick: sleepNone,
		sleepTime:      sleepNone,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("conductor", name)
	return c
}

// Name returns the conductor's name.
func (c *Conductor) Name() string { return c.name }

// Script returns the current cursor.
func (c *Conductor) Script() Cursor { return c.script }

// Status returns the current status.
func (c *Conductor) Status() Status { return c.status }

// SleepSender returns who requested the current sleep, or "" when not sleeping.
func (c *Conductor) SleepSender() string { return c.sleepSender }

// LatestSaveMarkName returns the most recently dispatched save-mark name.
func (c *Conductor) LatestSaveMarkName() string { return c.latestSaveMarkName }

// LatestScriptFilePath returns the last file LoadScript was asked for,
// whether or not the load succeeded.
func (c *Conductor) LatestScriptFilePath() string { return c.latestScriptFilePath }

// Handlers returns the conductor's event handler registry.
func (c *Conductor) Handlers() *HandlerRegistry { return c.handlers }

// LoadScript replaces the cursor with a freshly loaded script.
// Cursor-local nesting state is discarded with the old cursor.
//
// A failure is reported to Hooks.OnError and returned as *ScriptLoadError;
// the current cursor is kept.
func (c *Conductor) LoadScript(ctx context.Context, filePath string) error {
	ctx, span := c.tracer.Start(ctx, "conductor.load_script", trace.WithAttributes(
		attribute.String(attrConductor, c.name),
		attribute.String(attrScript, filePath),
	))
	defer span.End()

	c.latestScriptFilePath = filePath
	cursor, err := c.resource.LoadScript(ctx, filePath)
	if err != nil {
		loadErr := &ScriptLoadError{Path: filePath, Err: err}
		span.RecordError(loadErr)
		span.SetStatus(codes.Error, "script load failed")
		c.logger.Error("script load failed", "path", filePath, "error", err)
		c.hooks.OnError(loadErr)
		return loadErr
	}

	c.script = cursor
	c.hasPending = false
	c.logger.Info("script loaded", "path", filePath)
	return nil
}

// Jump moves execution to a file and/or label.
//
//   - countPage: the latest save-mark is passed and cleared before anything
//     else, so jumping away always finalizes the previous read state
//   - filePath non-empty: the script is reloaded, then label (if any) is sought
//   - filePath empty: label is sought in the current script
//
// Load and seek failures are reported to Hooks.OnError and returned.
func (c *Conductor) Jump(ctx context.Context, filePath, label string, countPage bool) error {
	ctx, span := c.tracer.Start(ctx, "conductor.jump", trace.WithAttributes(
		attribute.String(attrConductor, c.name),
		attribute.String(attrScript, filePath),
		attribute.String(attrLabel, label),
	))
	defer span.End()

	if countPage {
		if err := c.PassLatestSaveMark(); err != nil {
			span.RecordError(err)
			return err
		}
		c.latestSaveMarkName = ""
	}

	if filePath != "" {
		if err := c.LoadScript(ctx, filePath); err != nil {
			span.SetStatus(codes.Error, "jump failed")
			return err
		}
	}
	if label != "" {
		if err := c.seek(TargetLabel, label); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "jump failed")
			return err
		}
	}

	c.logger.Info("jump", "path", filePath, "label", label, "count_page", countPage)
	return nil
}

// seek moves the cursor to a label or save-mark, wrapping cursor errors in
// *LabelError and reporting them to Hooks.OnError.
func (c *Conductor) seek(kind TargetKind, name string) error {
	var err error
	if kind == TargetSaveMark {
		err = c.script.GoToSaveMark(name)
	} else {
		err = c.script.GoToLabel(name)
	}
	if err == nil {
		c.hasPending = false
		return nil
	}

	var le *LabelError
	if !errors.As(err, &le) {
		le = &LabelError{Kind: kind, Name: name, FilePath: c.script.FilePath(), Err: err}
	}
	c.logger.Error("seek failed", "kind", string(kind), "name", name, "error", err)
	c.hooks.OnError(le)
	return le
}

// IsPassed reports whether markName was passed in the current script.
func (c *Conductor) IsPassed(markName string) bool {
	return c.readUnread.IsPassed(c.script.FilePath(), markName)
}

// IsPassedLatestSaveMark reports whether the latest save-mark was already
// passed before, i.e. the text since it is "already read".
func (c *Conductor) IsPassedLatestSaveMark() bool {
	return c.IsPassed(c.latestSaveMarkName)
}

// PassSaveMark records markName as passed in the current script.
func (c *Conductor) PassSaveMark(markName string) error {
	if markName == "" {
		return nil
	}
	if err := c.readUnread.Pass(c.script.FilePath(), markName); err != nil {
		return fmt.Errorf("pass save mark %q: %w", markName, err)
	}
	return nil
}

// PassLatestSaveMark records the latest save-mark as passed.
func (c *Conductor) PassLatestSaveMark() error {
	return c.PassSaveMark(c.latestSaveMarkName)
}

// Conduct runs the conductor for one tick.
//
// Execution flow:
//  1. Stop: return immediately
//  2. Sleep: return while tick-start < duration, otherwise Start and fall through
//  3. Report a stability edge
//  4. Dispatch tags until a hook returns Break, the status leaves Run, or
//     the script is exhausted (which forces Stop)
//  5. Report a stability edge
//
// Hook errors abort the call and are returned as-is, skipping step 5.
// Hitting the step limit keeps the unread tag for the next call.
func (c *Conductor) Conduct(tick int64) error {
	if c.status == StatusStop {
		return nil
	}

	if c.status == StatusSleep {
		elapsed := tick - c.sleepStartTick
		if elapsed < c.sleepTime {
			return nil
		}
		c.Start()
	}

	c.notifyStable()

	budget := newStepBudget(c.maxSteps)
	for {
		tag, ok := c.nextTag()
		if !ok {
			c.Stop()
			break
		}
		if budget.check() {
			c.pending, c.hasPending = tag, true
			c.notifyStable()
			return &StepsExceededError{Conductor: c.name, Tick: tick, Steps: budget.Current(), Limit: c.maxSteps}
		}

		ctl, err := c.dispatch(tag, tick)
		if err != nil {
			return err
		}
		if ctl == Break || c.status != StatusRun {
			break
		}
	}

	c.notifyStable()
	return nil
}

func (c *Conductor) nextTag() (ir.Tag, bool) {
	if c.hasPending {
		c.hasPending = false
		return c.pending, true
	}
	return c.script.NextTag()
}

// dispatch routes one tag to exactly one hook.
func (c *Conductor) dispatch(tag ir.Tag, tick int64) (Control, error) {
	switch tag.Kind() {
	case ir.KindLabel:
		return c.hooks.OnLabel(tag.String(ir.KeyBody), tag.Line(), tick)

	case ir.KindSaveMark:
		if err := c.PassLatestSaveMark(); err != nil {
			return Break, err
		}
		c.latestSaveMarkName = tag.String(ir.KeyName)
		return c.hooks.OnSaveMark(c.latestSaveMarkName, tag.String(ir.KeyComment), tag.Line(), tick)

	case ir.KindJs:
		return c.hooks.OnJs(tag.String(ir.KeyBody), tag.Bool(ir.KeyPrint), tag.Line(), tick)

	case ir.KindLineBreak:
		rule, ok := c.resource.CommandShortcut(ir.LineBreakTrigger)
		if !ok {
			return Continue, nil
		}
		expanded := c.script.CallCommandShortcut(tag, rule)
		return c.hooks.OnTag(expanded, expanded.Line(), tick)

	case ir.KindCharacter:
		if rule, ok := c.resource.CommandShortcut(tag.String(ir.KeyText)); ok {
			tag = c.script.CallCommandShortcut(tag, rule)
		}
		return c.hooks.OnTag(tag, tag.Line(), tick)

	default:
		return c.hooks.OnTag(tag, tag.Line(), tick)
	}
}

// notifyStable calls Hooks.OnChangeStable only when stability differs from
// the last value observed.
func (c *Conductor) notifyStable() {
	stable := c.IsStable()
	if stable != c.stableBuffer {
		c.hooks.OnChangeStable(stable)
	}
	c.stableBuffer = stable
}

// Start sets Run and clears the sleep record. Returns Continue so a hook can
// write `return c.Start(), nil`.
func (c *Conductor) Start() Control {
	c.status = StatusRun
	c.resetSleep()
	c.logger.Debug("conductor start")
	return Continue
}

// Stop sets Stop and clears the sleep record. Takes effect after the current
// hook returns. Returns Break.
func (c *Conductor) Stop() Control {
	c.status = StatusStop
	c.resetSleep()
	c.logger.Debug("conductor stop")
	return Break
}

// Sleep suspends dispatch until tick+duration. Negative values are clamped
// to zero. Always returns Break: sleeping takes effect from the next Conduct
// call, never in the middle of the current one.
func (c *Conductor) Sleep(tick, duration int64, sender string) Control {
	c.status = StatusSleep
	c.sleepStartTick = max(tick, 0)
	c.sleepTime = max(duration, 0)
	c.sleepSender = sender
	c.logger.Debug("conductor sleep", "tick", tick, "duration", duration, "sender", sender)
	return Break
}

func (c *Conductor) resetSleep() {
	c.sleepStartTick = sleepNone
	c.sleepTime = sleepNone
	c.sleepSender = ""
}

// IsStable reports quiescence: stopped, with no handler pending under any
// blocking event name.
func (c *Conductor) IsStable() bool {
	return c.status == StatusStop && !c.handlers.anyBlocking()
}

// AddEventHandler registers a pending one-shot handler.
func (c *Conductor) AddEventHandler(h *EventHandler) {
	c.handlers.Add(h)
}

// HasEventHandler reports whether a handler is pending for eventName.
func (c *Conductor) HasEventHandler(eventName string) bool {
	return c.handlers.Has(eventName)
}

// Trigger fires and removes every handler pending for eventName.
// Returns true if any existed.
func (c *Conductor) Trigger(eventName string) bool {
	fired := c.handlers.Trigger(eventName)
	if fired {
		c.logger.Debug("event triggered", "event", eventName)
	}
	return fired
}

// ClearAllEventHandlers drops every pending handler without firing.
func (c *Conductor) ClearAllEventHandlers() {
	c.handlers.ClearAll()
}

// ClearEventHandler drops h without firing it.
func (c *Conductor) ClearEventHandler(h *EventHandler) {
	c.handlers.Clear(h)
}

// ClearEventHandlersByName drops every handler pending for eventName.
func (c *Conductor) ClearEventHandlersByName(eventName string) {
	c.handlers.ClearByName(eventName)
}
