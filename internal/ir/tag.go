package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Reserved tag kinds produced by the script loader.
const (
	KindLabel     = "__label__"
	KindSaveMark  = "__save_mark__"
	KindJs        = "__js__"
	KindLineBreak = "__line_break__"

	// KindCharacter is the character-say directive. Its "text" payload is
	// looked up in the command shortcut table before dispatch.
	KindCharacter = "ch"
)

// Reserved payload keys.
const (
	KeyBody    = "__body__"
	KeyName    = "name"
	KeyComment = "comment"
	KeyPrint   = "print"
	KeyText    = "text"
)

// LineBreakTrigger is the shortcut table key consulted for line-break tags.
const LineBreakTrigger = "\n"

// Param is one key/value entry of a tag payload.
type Param struct {
	Key   string
	Value Value
}

// P is a shorthand for Param.
// Example: NewTag("image", 3, P("file", String("bg.png")), P("layer", Int(0)))
func P(key string, value Value) Param {
	return Param{Key: key, Value: value}
}

// Tag is one parsed script directive: a kind, an ordered payload and the
// source line it came from.
//
// Tag is immutable. The payload slice is private and every accessor that
// exposes it returns a copy, so a Tag can be shared by any number of cursors.
type Tag struct {
	kind   string
	params []Param
	line   int
}

// NewTag creates a Tag. Later params with a duplicate key replace the value
// of the earlier one but keep its position.
func NewTag(kind string, line int, params ...Param) Tag {
	ps := make([]Param, 0, len(params))
	for _, p := range params {
		replaced := false
		for i := range ps {
			if ps[i].Key == p.Key {
				ps[i].Value = p.Value
				replaced = true
				break
			}
		}
		if !replaced {
			ps = append(ps, p)
		}
	}
	return Tag{kind: kind, params: ps, line: line}
}

// Kind returns the directive kind (e.g. "__label__", "image").
func (t Tag) Kind() string { return t.kind }

// Line returns the 1-based source line, or 0 when unknown.
func (t Tag) Line() int { return t.line }

// Len returns the number of payload entries.
func (t Tag) Len() int { return len(t.params) }

// Params returns a copy of the ordered payload.
func (t Tag) Params() []Param {
	out := make([]Param, len(t.params))
	copy(out, t.params)
	return out
}

// Keys returns payload keys in declaration order.
func (t Tag) Keys() []string {
	keys := make([]string, len(t.params))
	for i, p := range t.params {
		keys[i] = p.Key
	}
	return keys
}

// Get returns the value stored under key.
func (t Tag) Get(key string) (Value, bool) {
	for _, p := range t.params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return nil, false
}

// Has reports whether key is present in the payload.
func (t Tag) Has(key string) bool {
	_, ok := t.Get(key)
	return ok
}

// String returns the text form of the value under key, or "" when absent.
func (t Tag) String(key string) string {
	v, ok := t.Get(key)
	if !ok {
		return ""
	}
	return Text(v)
}

// Int returns the integer value under key. Floats are truncated and numeric
// strings are parsed; anything else reports false.
func (t Tag) Int(key string) (int64, bool) {
	v, ok := t.Get(key)
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case Int:
		return int64(val), true
	case Float:
		return int64(val), true
	case String:
		n, err := strconv.ParseInt(strings.TrimSpace(string(val)), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Bool returns the truthiness of the value under key; absent keys are false.
func (t Tag) Bool(key string) bool {
	v, ok := t.Get(key)
	if !ok {
		return false
	}
	return Truthy(v)
}

// Object returns the payload as an Object. Ordering is lost.
func (t Tag) Object() Object {
	obj := make(Object, len(t.params))
	for _, p := range t.params {
		obj[p.Key] = p.Value
	}
	return obj
}

// GoString renders the tag in a compact, human readable form for logs and traces.
func (t Tag) GoString() string {
	var b strings.Builder
	b.WriteString(t.kind)
	for _, p := range t.params {
		fmt.Fprintf(&b, " %s=%s", p.Key, Text(p.Value))
	}
	return b.String()
}

// Shortcut is a command shortcut rule: the directive a trigger text expands to.
type Shortcut struct {
	// Tag is the kind of the expanded directive.
	Tag string

	// Values are payload entries added to the expanded directive.
	Values []Param
}

// Expand builds the directive a shortcut produces from its source tag.
// The new tag keeps the source line and takes only the rule's payload.
func (s Shortcut) Expand(source Tag) Tag {
	return NewTag(s.Tag, source.line, s.Values...)
}
