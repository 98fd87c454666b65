// Package eval runs the inline expressions embedded in js directives.
//
// Two languages are available, Lua and Starlark. Both expose three
// predeclared variable tables that persist across calls:
//
//	f   game variables, saved with the player's progress
//	sf  system variables, shared by every save
//	tf  temporary variables, never saved
//
// Each evaluator is safe for concurrent use; calls are serialized.
package eval

import (
	"context"
	"fmt"

	"github.com/roach88/novella/internal/ir"
)

// Variable scope names.
const (
	ScopeGame   = "f"
	ScopeSystem = "sf"
	ScopeTemp   = "tf"
)

var scopes = []string{ScopeGame, ScopeSystem, ScopeTemp}

// Language names accepted by New.
const (
	LangLua      = "lua"
	LangStarlark = "starlark"
)

// Evaluator evaluates inline script source.
type Evaluator interface {
	// Eval runs src and returns its value. Expressions yield their value,
	// statements yield ir.Null.
	Eval(ctx context.Context, src string) (ir.Value, error)

	// Set stores v under name in a variable scope.
	Set(scope, name string, v ir.Value) error

	// Get reads a variable from a scope.
	Get(scope, name string) (ir.Value, bool)

	// Language returns LangLua or LangStarlark.
	Language() string
}

// Error reports a failed evaluation.
type Error struct {
	Language string
	Source   string
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s eval %q: %v", e.Language, e.Source, e.Err)
}

// Unwrap returns the interpreter error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an evaluator for lang. An empty lang selects Lua.
func New(lang string) (Evaluator, error) {
	switch lang {
	case "", LangLua:
		return NewLua(), nil
	case LangStarlark:
		return NewStarlark(), nil
	default:
		return nil, fmt.Errorf("unknown evaluator %q (want %q or %q)", lang, LangLua, LangStarlark)
	}
}

func checkScope(scope string) error {
	for _, s := range scopes {
		if s == scope {
			return nil
		}
	}
	return fmt.Errorf("unknown variable scope %q", scope)
}
