package script

import (
	"fmt"

	"github.com/roach88/novella/internal/ir"
)

// Structural directive kinds tracked for save gating.
const (
	KindMacro    = "macro"
	KindEndMacro = "endmacro"
	KindFor      = "for"
	KindEndFor   = "endfor"
	KindIf       = "if"
	KindEndIf    = "endif"
)

// Script is a cursor over one parsed script file.
//
// The tag slice is shared and never mutated, so any number of Scripts may be
// built over the same parse result. Position and nesting depth are private
// to each Script.
type Script struct {
	path      string
	tags      []ir.Tag
	labels    map[string]int
	saveMarks map[string]int

	pos        int
	macroDepth int
	forDepth   int
	ifDepth    int
}

// New creates a cursor at the start of tags. For duplicate label or
// save-mark names the first occurrence wins; Validate reports duplicates.
func New(path string, tags []ir.Tag) *Script {
	s := &Script{
		path:      path,
		tags:      tags,
		labels:    make(map[string]int),
		saveMarks: make(map[string]int),
	}
	for i, t := range tags {
		switch t.Kind() {
		case ir.KindLabel:
			name := t.String(ir.KeyBody)
			if _, dup := s.labels[name]; !dup {
				s.labels[name] = i
			}
		case ir.KindSaveMark:
			name := t.String(ir.KeyName)
			if _, dup := s.saveMarks[name]; !dup {
				s.saveMarks[name] = i
			}
		}
	}
	return s
}

// NextTag returns the tag at the current position and advances.
// Structural tags update the nesting depth as they are read.
func (s *Script) NextTag() (ir.Tag, bool) {
	if s.pos >= len(s.tags) {
		return ir.Tag{}, false
	}
	tag := s.tags[s.pos]
	s.pos++

	switch tag.Kind() {
	case KindMacro:
		s.macroDepth++
	case KindEndMacro:
		s.macroDepth = max(s.macroDepth-1, 0)
	case KindFor:
		s.forDepth++
	case KindEndFor:
		s.forDepth = max(s.forDepth-1, 0)
	case KindIf:
		s.ifDepth++
	case KindEndIf:
		s.ifDepth = max(s.ifDepth-1, 0)
	}
	return tag, true
}

// GoToLabel positions the cursor at the label tag itself, so the label is
// the next tag read. Nesting depth is reset.
func (s *Script) GoToLabel(name string) error {
	idx, ok := s.labels[name]
	if !ok {
		return fmt.Errorf("%w: %q in %s", ErrLabelNotFound, name, s.path)
	}
	s.seek(idx)
	return nil
}

// GoToSaveMark positions the cursor at the save-mark tag itself.
// Nesting depth is reset.
func (s *Script) GoToSaveMark(name string) error {
	idx, ok := s.saveMarks[name]
	if !ok {
		return fmt.Errorf("%w: %q in %s", ErrSaveMarkNotFound, name, s.path)
	}
	s.seek(idx)
	return nil
}

func (s *Script) seek(idx int) {
	s.pos = idx
	s.macroDepth = 0
	s.forDepth = 0
	s.ifDepth = 0
}

// InsideMacro reports a non-zero macro depth.
func (s *Script) InsideMacro() bool { return s.macroDepth > 0 }

// InsideForLoop reports a non-zero for-loop depth.
func (s *Script) InsideForLoop() bool { return s.forDepth > 0 }

// InsideIf reports a non-zero if-block depth.
func (s *Script) InsideIf() bool { return s.ifDepth > 0 }

// FilePath returns the path the script was loaded from.
func (s *Script) FilePath() string { return s.path }

// Pos returns the index of the next tag to be read.
func (s *Script) Pos() int { return s.pos }

// Len returns the number of tags in the script.
func (s *Script) Len() int { return len(s.tags) }

// Tags returns the script's tags. The slice must not be modified.
func (s *Script) Tags() []ir.Tag { return s.tags }

// CallCommandShortcut expands tag with rule into a new tag.
func (s *Script) CallCommandShortcut(tag ir.Tag, rule ir.Shortcut) ir.Tag {
	return rule.Expand(tag)
}
