package script

import (
	"fmt"

	"github.com/roach88/novella/internal/ir"
)

// Severity grades a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one problem found by Validate.
type Issue struct {
	Severity Severity `json:"severity"`
	Line     int      `json:"line"`
	Message  string   `json:"message"`
}

// String formats the issue as "line N: severity: message".
func (i Issue) String() string {
	return fmt.Sprintf("line %d: %s: %s", i.Line, i.Severity, i.Message)
}

// Validate checks a tag stream for problems the cursor tolerates but a
// script author almost certainly did not intend:
//   - duplicate label or save-mark names (errors; the first one wins)
//   - empty label or save-mark names (errors)
//   - unbalanced macro, for and if blocks (errors)
//   - js directives with an empty body (warnings)
func Validate(tags []ir.Tag) []Issue {
	var issues []Issue

	labels := make(map[string]int)
	marks := make(map[string]int)

	type open struct {
		kind string
		line int
	}
	var stack []open

	closers := map[string]string{
		KindEndMacro: KindMacro,
		KindEndFor:   KindFor,
		KindEndIf:    KindIf,
	}

	for _, t := range tags {
		switch t.Kind() {
		case ir.KindLabel:
			issues = checkName(issues, labels, "label", t.String(ir.KeyBody), t.Line())
		case ir.KindSaveMark:
			issues = checkName(issues, marks, "save mark", t.String(ir.KeyName), t.Line())
		case ir.KindJs:
			if t.String(ir.KeyBody) == "" {
				issues = append(issues, Issue{Severity: SeverityWarning, Line: t.Line(), Message: "js directive has an empty body"})
			}
		case KindMacro, KindFor, KindIf:
			stack = append(stack, open{kind: t.Kind(), line: t.Line()})
		case KindEndMacro, KindEndFor, KindEndIf:
			want := closers[t.Kind()]
			if len(stack) == 0 || stack[len(stack)-1].kind != want {
				issues = append(issues, Issue{Severity: SeverityError, Line: t.Line(), Message: fmt.Sprintf("%s without matching %s", t.Kind(), want)})
				continue
			}
			stack = stack[:len(stack)-1]
		}
	}

	for _, o := range stack {
		issues = append(issues, Issue{Severity: SeverityError, Line: o.line, Message: fmt.Sprintf("%s is never closed", o.kind)})
	}
	return issues
}

func checkName(issues []Issue, seen map[string]int, what, name string, line int) []Issue {
	if name == "" {
		return append(issues, Issue{Severity: SeverityError, Line: line, Message: what + " has an empty name"})
	}
	if first, dup := seen[name]; dup {
		return append(issues, Issue{Severity: SeverityError, Line: line, Message: fmt.Sprintf("duplicate %s %q (first defined on line %d)", what, name, first)})
	}
	seen[name] = line
	return issues
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}
