package eval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/Shopify/go-lua"

	"github.com/roach88/novella/internal/ir"
)

// Lua evaluates Lua 5.2 chunks in one persistent state.
type Lua struct {
	mu    sync.Mutex
	state *lua.State
}

// NewLua creates a Lua evaluator with the standard libraries and the
// variable tables installed as globals.
func NewLua() *Lua {
	l := lua.NewState()
	lua.OpenLibraries(l)
	for _, scope := range scopes {
		l.NewTable()
		l.SetGlobal(scope)
	}
	return &Lua{state: l}
}

// Language returns LangLua.
func (e *Lua) Language() string { return LangLua }

// Eval runs src. It is first compiled as "return <src>" so bare expressions
// yield their value, then as a plain chunk.
func (e *Lua) Eval(ctx context.Context, src string) (ir.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	l := e.state
	base := l.Top()
	defer l.SetTop(base)

	if err := lua.LoadString(l, "return "+src); err != nil {
		l.SetTop(base)
		if err := lua.LoadString(l, src); err != nil {
			return nil, &Error{Language: LangLua, Source: src, Err: err}
		}
	}
	if err := l.ProtectedCall(0, 1, 0); err != nil {
		return nil, &Error{Language: LangLua, Source: src, Err: err}
	}

	v, err := luaToValue(l, -1, 0)
	if err != nil {
		return nil, &Error{Language: LangLua, Source: src, Err: err}
	}
	return v, nil
}

// Set stores v as scope[name].
func (e *Lua) Set(scope, name string, v ir.Value) error {
	if err := checkScope(scope); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	l := e.state
	base := l.Top()
	defer l.SetTop(base)

	l.Global(scope)
	pushValue(l, v)
	l.SetField(-2, name)
	return nil
}

// Get reads scope[name]. A nil Lua value reports false.
func (e *Lua) Get(scope, name string) (ir.Value, bool) {
	if checkScope(scope) != nil {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	l := e.state
	base := l.Top()
	defer l.SetTop(base)

	l.Global(scope)
	l.Field(-1, name)
	if l.IsNil(-1) {
		return nil, false
	}
	v, err := luaToValue(l, -1, 0)
	if err != nil {
		return nil, false
	}
	return v, true
}

func pushValue(l *lua.State, v ir.Value) {
	switch x := v.(type) {
	case nil, ir.Null:
		l.PushNil()
	case ir.Bool:
		l.PushBoolean(bool(x))
	case ir.Int:
		l.PushInteger(int(x))
	case ir.Float:
		l.PushNumber(float64(x))
	case ir.String:
		l.PushString(string(x))
	case ir.Array:
		l.CreateTable(len(x), 0)
		for i, item := range x {
			pushValue(l, item)
			l.RawSetInt(-2, i+1)
		}
	case ir.Object:
		l.CreateTable(0, len(x))
		for _, k := range x.SortedKeys() {
			pushValue(l, x[k])
			l.SetField(-2, k)
		}
	default:
		l.PushNil()
	}
}

const maxTableDepth = 32

var errTableDepth = errors.New("table nesting too deep")

// luaToValue converts the value at index without popping it.
func luaToValue(l *lua.State, index, depth int) (ir.Value, error) {
	switch l.TypeOf(index) {
	case lua.TypeNil, lua.TypeNone:
		return ir.Null{}, nil
	case lua.TypeBoolean:
		return ir.Bool(l.ToBoolean(index)), nil
	case lua.TypeNumber:
		n, _ := l.ToNumber(index)
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return ir.Int(int64(n)), nil
		}
		return ir.Float(n), nil
	case lua.TypeString:
		s, _ := l.ToString(index)
		return ir.String(s), nil
	case lua.TypeTable:
		if depth >= maxTableDepth {
			return nil, errTableDepth
		}
		return luaTable(l, l.AbsIndex(index), depth+1)
	default:
		return nil, fmt.Errorf("unsupported lua type %s", lua.TypeNameOf(l, index))
	}
}

// luaTable converts a table to an ir.Array when its keys are exactly 1..n,
// otherwise to an ir.Object with stringified keys.
func luaTable(l *lua.State, index, depth int) (ir.Value, error) {
	ints := make(map[int]ir.Value)
	obj := make(ir.Object)
	allInts := true

	l.PushNil()
	for l.Next(index) {
		val, err := luaToValue(l, -1, depth)
		if err != nil {
			l.Pop(2)
			return nil, err
		}

		switch l.TypeOf(-2) {
		case lua.TypeNumber:
			n, _ := l.ToNumber(-2)
			key := strconv.FormatFloat(n, 'f', -1, 64)
			obj[key] = val
			if n == math.Trunc(n) && n >= 1 {
				ints[int(n)] = val
			} else {
				allInts = false
			}
		case lua.TypeString:
			s, _ := l.ToString(-2)
			obj[s] = val
			allInts = false
		default:
			allInts = false
		}
		l.Pop(1)
	}

	if allInts && len(ints) > 0 {
		keys := make([]int, 0, len(ints))
		for k := range ints {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		if keys[len(keys)-1] == len(keys) {
			arr := make(ir.Array, len(keys))
			for i, k := range keys {
				arr[i] = ints[k]
			}
			return arr, nil
		}
	}
	return obj, nil
}
