package script

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/roach88/novella/internal/ir"
)

// reservedKinds maps file-level directive names to tag kinds.
var reservedKinds = map[string]string{
	"label":      ir.KindLabel,
	"save_mark":  ir.KindSaveMark,
	"js":         ir.KindJs,
	"line_break": ir.KindLineBreak,
}

// Parse decodes a script file into its tag stream.
//
// Payload order follows the file. Line numbers come from the YAML nodes, so
// errors and hooks can point at the directive's source line.
func Parse(path string, data []byte) ([]ir.Tag, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var doc yaml.Node
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, &ParseError{Path: path, Message: err.Error()}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return nil, nil
	}
	if root.Kind != yaml.SequenceNode {
		return nil, &ParseError{Path: path, Line: root.Line, Message: "script must be a sequence of directives"}
	}

	d := &decoder{path: path, expanding: make(map[*yaml.Node]bool)}
	tags := make([]ir.Tag, 0, len(root.Content))
	for _, item := range root.Content {
		tag, err := d.directive(item)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// maxValueNodes bounds how many YAML nodes one file may expand into
// parameter values, counting every alias expansion.
const maxValueNodes = 100_000

// decoder turns directive nodes into tags. It tracks the aliases being
// expanded so self-referencing anchors and exponential alias fan-out fail
// with a ParseError.
type decoder struct {
	path      string
	expanding map[*yaml.Node]bool
	nodes     int
}

func (d *decoder) errorf(line int, format string, args ...any) error {
	return &ParseError{Path: d.path, Line: line, Message: fmt.Sprintf(format, args...)}
}

func (d *decoder) directive(node *yaml.Node) (ir.Tag, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return ir.NewTag(kindOf(node.Value), node.Line), nil

	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return ir.Tag{}, &ParseError{Path: d.path, Line: node.Line, Message: "directive must be a single-key mapping"}
		}
		key, body := node.Content[0], node.Content[1]
		if key.Kind != yaml.ScalarNode || key.Value == "" {
			return ir.Tag{}, &ParseError{Path: d.path, Line: key.Line, Message: "directive name must be a non-empty string"}
		}
		return d.body(key.Value, key.Line, body)

	default:
		return ir.Tag{}, &ParseError{Path: d.path, Line: node.Line, Message: "directive must be a name or a single-key mapping"}
	}
}

func (d *decoder) body(name string, line int, body *yaml.Node) (ir.Tag, error) {
	kind := kindOf(name)

	switch body.Kind {
	case yaml.ScalarNode:
		if body.Tag == "!!null" {
			return ir.NewTag(kind, line), nil
		}
		switch kind {
		case ir.KindSaveMark:
			return ir.NewTag(kind, line, ir.P(ir.KeyName, ir.String(body.Value))), nil
		default:
			return ir.NewTag(kind, line, ir.P(ir.KeyBody, scalarValue(body))), nil
		}

	case yaml.MappingNode:
		params, err := d.params(body)
		if err != nil {
			return ir.Tag{}, err
		}
		switch kind {
		case ir.KindJs:
			params = renameKey(params, "expr", ir.KeyBody)
		case ir.KindLabel:
			params = renameKey(params, ir.KeyName, ir.KeyBody)
		}
		return ir.NewTag(kind, line, params...), nil

	default:
		return ir.Tag{}, &ParseError{Path: d.path, Line: body.Line, Message: fmt.Sprintf("directive %q: payload must be a scalar or a mapping", name)}
	}
}

func (d *decoder) params(body *yaml.Node) ([]ir.Param, error) {
	params := make([]ir.Param, 0, len(body.Content)/2)
	for i := 0; i+1 < len(body.Content); i += 2 {
		k, v := body.Content[i], body.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return nil, &ParseError{Path: d.path, Line: k.Line, Message: "parameter name must be a string"}
		}
		val, err := d.value(v)
		if err != nil {
			return nil, err
		}
		params = append(params, ir.P(k.Value, val))
	}
	return params, nil
}

func (d *decoder) value(n *yaml.Node) (ir.Value, error) {
	d.nodes++
	if d.nodes > maxValueNodes {
		return nil, d.errorf(n.Line, "parameter values expand to more than %d nodes", maxValueNodes)
	}

	switch n.Kind {
	case yaml.ScalarNode:
		return scalarValue(n), nil
	case yaml.SequenceNode:
		arr := make(ir.Array, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := d.value(c)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case yaml.MappingNode:
		obj := make(ir.Object, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := d.value(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj[n.Content[i].Value] = v
		}
		return obj, nil
	case yaml.AliasNode:
		if n.Alias == nil {
			return nil, d.errorf(n.Line, "unknown alias %q", n.Value)
		}
		if d.expanding[n.Alias] {
			return nil, d.errorf(n.Line, "alias %q refers to itself", n.Value)
		}
		d.expanding[n.Alias] = true
		defer delete(d.expanding, n.Alias)
		return d.value(n.Alias)
	default:
		return nil, d.errorf(n.Line, "unsupported parameter value")
	}
}

// scalarValue converts a resolved YAML scalar to an ir.Value.
func scalarValue(n *yaml.Node) ir.Value {
	switch n.Tag {
	case "!!null":
		return ir.Null{}
	case "!!bool":
		if b, err := strconv.ParseBool(n.Value); err == nil {
			return ir.Bool(b)
		}
	case "!!int":
		if i, err := strconv.ParseInt(n.Value, 0, 64); err == nil {
			return ir.Int(i)
		}
	case "!!float":
		if f, err := strconv.ParseFloat(n.Value, 64); err == nil {
			return ir.Float(f)
		}
	}
	return ir.String(n.Value)
}

func kindOf(name string) string {
	if k, ok := reservedKinds[name]; ok {
		return k
	}
	return name
}

func renameKey(params []ir.Param, from, to string) []ir.Param {
	for i := range params {
		if params[i].Key == from {
			params[i].Key = to
		}
	}
	return params
}
