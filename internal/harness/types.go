package harness

import (
	"fmt"

	"github.com/roach88/novella/internal/ir"
)

// TraceEvent is one hook call observed while running a scenario.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Hook string `json:"hook"`

	// Name is the label or save-mark name, the js body, or the tag kind.
	Name string `json:"name,omitempty"`

	// Tick is set for dispatch hooks only.
	Tick int64 `json:"tick,omitempty"`
	Line int   `json:"line,omitempty"`

	// Args is the tag payload for tag events.
	Args ir.Object `json:"args,omitempty"`

	// Stable is set for change_stable events.
	Stable *bool `json:"stable,omitempty"`

	// Error is set for error events.
	Error string `json:"error,omitempty"`
}

// Call formats the event as it is written in trace_order assertions:
// "label(A)", "tag(msg)", "change_stable(true)", "error".
func (e TraceEvent) Call() string {
	switch {
	case e.Stable != nil:
		return fmt.Sprintf("%s(%t)", e.Hook, *e.Stable)
	case e.Error != "":
		return e.Hook
	default:
		return fmt.Sprintf("%s(%s)", e.Hook, e.Name)
	}
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace contains every hook call in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Status is the conductor's final status name.
	Status string `json:"status"`

	// Tick is the driver tick after the last step.
	Tick int64 `json:"tick"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
