package eval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/roach88/novella/internal/ir"
)

// starlarkFileOptions allows top-level if/for/while, reassignment of globals
// and set literals, so script snippets read like ordinary statements.
var starlarkFileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

// Starlark evaluates Starlark expressions and statements.
//
// The variable scopes are mutable dicts: f["met"] = True persists across
// calls. Top-level names assigned by a statement also persist, but they
// are frozen after the statement runs, so prefer the scope dicts for state.
type Starlark struct {
	mu      sync.Mutex
	scopes  map[string]*starlark.Dict
	globals starlark.StringDict
}

// NewStarlark creates a Starlark evaluator with empty scopes.
func NewStarlark() *Starlark {
	e := &Starlark{
		scopes:  make(map[string]*starlark.Dict, len(scopes)),
		globals: make(starlark.StringDict),
	}
	for _, s := range scopes {
		e.scopes[s] = starlark.NewDict(0)
	}
	return e
}

// Language returns LangStarlark.
func (e *Starlark) Language() string { return LangStarlark }

// Eval evaluates src as an expression; if it does not parse as one it is
// executed as a file of statements and yields ir.Null.
// Cancelling ctx cancels the running thread.
func (e *Starlark) Eval(ctx context.Context, src string) (ir.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	thread := &starlark.Thread{Name: "eval"}
	stop := context.AfterFunc(ctx, func() { thread.Cancel(context.Cause(ctx).Error()) })
	defer stop()

	env := e.env()

	v, err := starlark.EvalOptions(starlarkFileOptions, thread, "<expr>", src, env)
	if err == nil {
		out, err := starlarkToValue(v, 0)
		if err != nil {
			return nil, &Error{Language: LangStarlark, Source: src, Err: err}
		}
		return out, nil
	}

	var serr syntax.Error
	if !errors.As(err, &serr) {
		return nil, &Error{Language: LangStarlark, Source: src, Err: err}
	}

	globals, err := starlark.ExecFileOptions(starlarkFileOptions, thread, "<stmt>", src, env)
	if err != nil {
		return nil, &Error{Language: LangStarlark, Source: src, Err: err}
	}
	for name, val := range globals {
		e.globals[name] = val
	}
	return ir.Null{}, nil
}

// env merges scopes and persisted globals into one predeclared set.
func (e *Starlark) env() starlark.StringDict {
	env := make(starlark.StringDict, len(e.globals)+len(e.scopes))
	for k, v := range e.globals {
		env[k] = v
	}
	for name, d := range e.scopes {
		env[name] = d
	}
	return env
}

// Set stores v as scope[name].
func (e *Starlark) Set(scope, name string, v ir.Value) error {
	if err := checkScope(scope); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.scopes[scope].SetKey(starlark.String(name), valueToStarlark(v))
}

// Get reads scope[name].
func (e *Starlark) Get(scope, name string) (ir.Value, bool) {
	if checkScope(scope) != nil {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sv, found, err := e.scopes[scope].Get(starlark.String(name))
	if err != nil || !found {
		return nil, false
	}
	v, err := starlarkToValue(sv, 0)
	if err != nil {
		return nil, false
	}
	return v, true
}

func valueToStarlark(v ir.Value) starlark.Value {
	switch x := v.(type) {
	case nil, ir.Null:
		return starlark.None
	case ir.Bool:
		return starlark.Bool(x)
	case ir.Int:
		return starlark.MakeInt64(int64(x))
	case ir.Float:
		return starlark.Float(x)
	case ir.String:
		return starlark.String(x)
	case ir.Array:
		elems := make([]starlark.Value, len(x))
		for i, item := range x {
			elems[i] = valueToStarlark(item)
		}
		return starlark.NewList(elems)
	case ir.Object:
		d := starlark.NewDict(len(x))
		for _, k := range x.SortedKeys() {
			_ = d.SetKey(starlark.String(k), valueToStarlark(x[k]))
		}
		return d
	default:
		return starlark.None
	}
}

func starlarkToValue(v starlark.Value, depth int) (ir.Value, error) {
	if depth >= maxTableDepth {
		return nil, errTableDepth
	}

	switch x := v.(type) {
	case starlark.NoneType:
		return ir.Null{}, nil
	case starlark.Bool:
		return ir.Bool(x), nil
	case starlark.Int:
		n, ok := x.Int64()
		if !ok {
			return nil, fmt.Errorf("integer %s out of range", x.String())
		}
		return ir.Int(n), nil
	case starlark.Float:
		f := float64(x)
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, fmt.Errorf("non-finite float %s", x.String())
		}
		return ir.Float(f), nil
	case starlark.String:
		return ir.String(x), nil
	case starlark.Indexable:
		arr := make(ir.Array, x.Len())
		for i := range x.Len() {
			item, err := starlarkToValue(x.Index(i), depth+1)
			if err != nil {
				return nil, err
			}
			arr[i] = item
		}
		return arr, nil
	case *starlark.Dict:
		obj := make(ir.Object, x.Len())
		for _, kv := range x.Items() {
			key, ok := starlark.AsString(kv[0])
			if !ok {
				key = kv[0].String()
			}
			item, err := starlarkToValue(kv[1], depth+1)
			if err != nil {
				return nil, err
			}
			obj[key] = item
		}
		return obj, nil
	default:
		return ir.String(v.String()), nil
	}
}
