// Package testutil provides deterministic helpers shared by package tests
// and the scenario harness.
package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/novella/internal/engine"
	"github.com/roach88/novella/internal/ir"
)

// Hook names recorded by Recorder.
const (
	HookLabel        = "label"
	HookSaveMark     = "save_mark"
	HookJs           = "js"
	HookTag          = "tag"
	HookChangeStable = "change_stable"
	HookError        = "error"
)

// Call is one recorded hook invocation.
type Call struct {
	Hook string
	// Name is the label or save-mark name, the js body, or the tag kind.
	Name   string
	Line   int
	Tick   int64
	Tag    ir.Tag
	Print  bool
	Stable bool
	Err    error
}

// String formats the call compactly for assertion messages.
func (c Call) String() string {
	switch c.Hook {
	case HookChangeStable:
		return fmt.Sprintf("change_stable(%t)", c.Stable)
	case HookError:
		return fmt.Sprintf("error(%v)", c.Err)
	default:
		return fmt.Sprintf("%s(%s)@%d", c.Hook, c.Name, c.Tick)
	}
}

// Recorder implements engine.Hooks. Every call is recorded, then passed to
// Next (a zero HookFuncs continues every dispatch).
//
// Thread-safety: Calls and Reset are safe for concurrent use with the
// conductor goroutine.
type Recorder struct {
	Next engine.HookFuncs

	mu    sync.Mutex
	calls []Call
}

var _ engine.Hooks = (*Recorder)(nil)

// NewRecorder creates a Recorder delegating to next.
func NewRecorder(next engine.HookFuncs) *Recorder {
	return &Recorder{Next: next}
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

// Calls returns a copy of every recorded call in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Strings returns Call.String for every recorded call.
func (r *Recorder) Strings() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// Count returns how many recorded calls used hook.
func (r *Recorder) Count(hook string) int {
	n := 0
	for _, c := range r.Calls() {
		if c.Hook == hook {
			n++
		}
	}
	return n
}

// Reset forgets every recorded call.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *Recorder) OnLabel(name string, line int, tick int64) (engine.Control, error) {
	r.record(Call{Hook: HookLabel, Name: name, Line: line, Tick: tick})
	return r.Next.OnLabel(name, line, tick)
}

func (r *Recorder) OnSaveMark(name, comment string, line int, tick int64) (engine.Control, error) {
	r.record(Call{Hook: HookSaveMark, Name: name, Line: line, Tick: tick})
	return r.Next.OnSaveMark(name, comment, line, tick)
}

func (r *Recorder) OnJs(expr string, print bool, line int, tick int64) (engine.Control, error) {
	r.record(Call{Hook: HookJs, Name: expr, Line: line, Tick: tick, Print: print})
	return r.Next.OnJs(expr, print, line, tick)
}

func (r *Recorder) OnTag(tag ir.Tag, line int, tick int64) (engine.Control, error) {
	r.record(Call{Hook: HookTag, Name: tag.Kind(), Line: line, Tick: tick, Tag: tag})
	return r.Next.OnTag(tag, line, tick)
}

func (r *Recorder) OnChangeStable(stable bool) {
	r.record(Call{Hook: HookChangeStable, Stable: stable})
	r.Next.OnChangeStable(stable)
}

func (r *Recorder) OnError(err error) {
	r.record(Call{Hook: HookError, Err: err})
	r.Next.OnError(err)
}
