package harness

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/novella/internal/engine"
	"github.com/roach88/novella/internal/ir"
	"github.com/roach88/novella/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s", event.Seq, event.Call())
			if event.Tick > 0 {
				fmt.Fprintf(&buf, " @%d", event.Tick)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// matchesEvent reports whether event has the assertion's hook and, when
// given, its name.
func matchesEvent(event TraceEvent, hook, name string) bool {
	if event.Hook != hook {
		return false
	}
	return name == "" || event.Name == name
}

// assertTraceContains checks that some event matches hook, name and args
// (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	expected, err := convertArgs(assertion.Args)
	if err != nil {
		return fmt.Errorf("trace_contains: %w", err)
	}

	for _, event := range trace {
		if matchesEvent(event, assertion.Hook, assertion.Name) && matchArgs(event.Args, expected) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s(%s) with args %v", assertion.Hook, assertion.Name, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that calls appear in the given order.
// Calls don't need to be consecutive; each one is searched for after the
// position of the previous match, so repeated calls are allowed.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for i, want := range assertion.Calls {
		found := false
		for pos < len(trace) {
			event := trace[pos]
			pos++
			if event.Call() == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("calls in order: %v", assertion.Calls),
				Actual:   fmt.Sprintf("%s (call %d) not found after call %d", want, i+1, i),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that hook/name appears exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matchesEvent(event, assertion.Hook, assertion.Name) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s(%s)", assertion.Count, assertion.Hook, assertion.Name),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertStableCount checks how many times change_stable reported a value.
func assertStableCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Stable != nil && *event.Stable == *assertion.Stable {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertStableCount,
			Expected: fmt.Sprintf("%d change_stable(%t) reports", assertion.Count, *assertion.Stable),
			Actual:   fmt.Sprintf("%d reports", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalStatus checks the conductor's status after the last step.
func assertFinalStatus(c *engine.Conductor, assertion Assertion) error {
	want, err := engine.ParseStatus(assertion.Status)
	if err != nil {
		return fmt.Errorf("final_status: %w", err)
	}
	if got := c.Status(); got != want {
		return &AssertionError{
			Type:     AssertFinalStatus,
			Expected: want.String(),
			Actual:   got.String(),
		}
	}
	return nil
}

// assertPassed checks the persisted read state of a save-mark.
func assertPassed(ctx context.Context, st *store.Store, assertion Assertion) error {
	file := assertion.File
	if file == "" {
		file = MainScript
	}

	passed, err := st.IsPassed(ctx, file, assertion.Mark)
	if err != nil {
		return &AssertionError{
			Type:     AssertPassed,
			Expected: fmt.Sprintf("query read state of %s in %s", assertion.Mark, file),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}

	if passed != *assertion.Expect {
		return &AssertionError{
			Type:     AssertPassed,
			Expected: fmt.Sprintf("%s in %s passed=%t", assertion.Mark, file, *assertion.Expect),
			Actual:   fmt.Sprintf("passed=%t", passed),
		}
	}
	return nil
}

// convertArgs converts YAML-decoded assertion args to IR values.
func convertArgs(args map[string]any) (ir.Object, error) {
	out := make(ir.Object, len(args))
	for key, val := range args {
		v, err := ir.FromGo(val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}

// matchArgs checks if actual args contain all expected args (subset match).
// Extra keys in actual are ignored.
func matchArgs(actual, expected ir.Object) bool {
	for key, want := range expected {
		got, exists := actual[key]
		if !exists {
			return false
		}
		if !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx       context.Context
	Store     *store.Store
	Conductor *engine.Conductor
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides the store and conductor for state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertStableCount:
			err = assertStableCount(result.Trace, assertion)
		case AssertFinalStatus:
			if actx == nil || actx.Conductor == nil {
				err = fmt.Errorf("assertion[%d]: final_status requires a conductor", i)
			} else {
				err = assertFinalStatus(actx.Conductor, assertion)
			}
		case AssertPassed:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: passed requires database context", i)
			} else {
				err = assertPassed(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
