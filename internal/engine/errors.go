package engine

import (
	"errors"
	"fmt"
)

// errNoScript is the cause reported when seeking before any script is loaded.
var errNoScript = errors.New("no script loaded")

// ScriptLoadError reports that a script file failed to load or parse.
//
// It is delivered to Hooks.OnError and also returned to the caller of
// LoadScript, Jump or Restore. Loading is never retried.
type ScriptLoadError struct {
	// Path is the script file that was requested.
	Path string

	// Err is the underlying loader error.
	Err error
}

// Error implements the error interface.
func (e *ScriptLoadError) Error() string {
	return fmt.Sprintf("load script %q: %v", e.Path, e.Err)
}

// Unwrap returns the underlying loader error.
func (e *ScriptLoadError) Unwrap() error {
	return e.Err
}

// SaveErrorKind identifies which structural construct blocked a save.
type SaveErrorKind string

const (
	// SaveInMacro indicates the cursor is inside a macro body.
	SaveInMacro SaveErrorKind = "IN_MACRO"

	// SaveInForLoop indicates the cursor is inside a for...endfor block.
	SaveInForLoop SaveErrorKind = "IN_FOR_LOOP"

	// SaveInIf indicates the cursor is inside an if...endif block.
	SaveInIf SaveErrorKind = "IN_IF"
)

// StructuralSaveError is returned by Store when the cursor reports a
// non-zero nesting depth. No snapshot is produced.
type StructuralSaveError struct {
	Kind SaveErrorKind

	// FilePath is the script being executed when the save was attempted.
	FilePath string
}

// Error implements the error interface.
func (e *StructuralSaveError) Error() string {
	var where string
	switch e.Kind {
	case SaveInMacro:
		where = "inside a macro"
	case SaveInForLoop:
		where = "inside a for...endfor block"
	case SaveInIf:
		where = "inside an if...endif block"
	default:
		where = "inside a nested block"
	}
	if e.FilePath != "" {
		return fmt.Sprintf("%s: cannot save %s (script=%s)", e.Kind, where, e.FilePath)
	}
	return fmt.Sprintf("%s: cannot save %s", e.Kind, where)
}

// TargetKind distinguishes the two kinds of seek target.
type TargetKind string

const (
	TargetLabel    TargetKind = "label"
	TargetSaveMark TargetKind = "save_mark"
)

// LabelError reports a seek to a label or save-mark the cursor does not contain.
type LabelError struct {
	Kind     TargetKind
	Name     string
	FilePath string
	Err      error
}

// Error implements the error interface.
func (e *LabelError) Error() string {
	return fmt.Sprintf("%s %q not found in %q: %v", e.Kind, e.Name, e.FilePath, e.Err)
}

// Unwrap returns the cursor's error.
func (e *LabelError) Unwrap() error {
	return e.Err
}

// StepsExceededError is returned by Conduct when a single call dispatched
// more tags than the configured per-tick budget (see WithMaxSteps).
// The conductor stays in Run and resumes on the next tick.
type StepsExceededError struct {
	Conductor string
	Tick      int64
	Steps     int
	Limit     int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("conductor %q dispatched %d tags at tick %d (limit %d)", e.Conductor, e.Steps, e.Tick, e.Limit)
}

// IsScriptLoadError returns true if err wraps a ScriptLoadError.
func IsScriptLoadError(err error) bool {
	var le *ScriptLoadError
	return errors.As(err, &le)
}

// IsStructuralSaveError returns true if err wraps a StructuralSaveError.
func IsStructuralSaveError(err error) bool {
	var se *StructuralSaveError
	return errors.As(err, &se)
}

// SaveErrorKindOf returns the kind of a wrapped StructuralSaveError.
func SaveErrorKindOf(err error) (SaveErrorKind, bool) {
	var se *StructuralSaveError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}

// IsLabelError returns true if err wraps a LabelError.
func IsLabelError(err error) bool {
	var le *LabelError
	return errors.As(err, &le)
}

// IsStepsExceeded returns true if err wraps a StepsExceededError.
func IsStepsExceeded(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
