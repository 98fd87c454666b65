package engine

import (
	"context"

	"github.com/roach88/novella/internal/ir"
)

// Cursor is a position in a loaded script: the ordered tag sequence plus its
// label and save-mark indices and the structural nesting it is inside.
//
// A Conductor owns exactly one Cursor. Cursors are never shared between
// conductors; two conductors over the same file each load their own.
type Cursor interface {
	// NextTag returns the tag at the current position and advances.
	// Returns false when the script is exhausted.
	NextTag() (ir.Tag, bool)

	// GoToLabel moves to the label tag with the given name.
	GoToLabel(name string) error

	// GoToSaveMark moves to the save-mark tag with the given name.
	GoToSaveMark(name string) error

	InsideMacro() bool
	InsideForLoop() bool
	InsideIf() bool

	// FilePath identifies the script file; read/unread state is keyed by it.
	FilePath() string

	// CallCommandShortcut expands tag with rule. The result is a new tag.
	CallCommandShortcut(tag ir.Tag, rule ir.Shortcut) ir.Tag
}

// Resource loads scripts and owns the command shortcut table.
type Resource interface {
	LoadScript(ctx context.Context, path string) (Cursor, error)

	// CommandShortcut returns the expansion rule for a trigger text
	// (ir.LineBreakTrigger for line breaks, the "text" of a ch tag otherwise).
	CommandShortcut(trigger string) (ir.Shortcut, bool)
}

// ReadUnread records which save-marks have been passed, per script file.
//
// Implementations must be safe for interleaved use by several conductors.
// An empty mark name is never passed.
type ReadUnread interface {
	IsPassed(filePath, markName string) bool
	Pass(filePath, markName string) error
}

// emptyCursor is the cursor a conductor holds before any script is loaded.
type emptyCursor struct{}

func (emptyCursor) NextTag() (ir.Tag, bool) { return ir.Tag{}, false }

func (emptyCursor) GoToLabel(name string) error {
	return &LabelError{Kind: TargetLabel, Name: name, Err: errNoScript}
}

func (emptyCursor) GoToSaveMark(name string) error {
	return &LabelError{Kind: TargetSaveMark, Name: name, Err: errNoScript}
}

func (emptyCursor) InsideMacro() bool   { return false }
func (emptyCursor) InsideForLoop() bool { return false }
func (emptyCursor) InsideIf() bool      { return false }
func (emptyCursor) FilePath() string    { return "" }

func (emptyCursor) CallCommandShortcut(tag ir.Tag, rule ir.Shortcut) ir.Tag {
	return rule.Expand(tag)
}
