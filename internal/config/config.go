// Package config loads the project file novella.cue.
//
// The file is compiled with CUE and unified with an embedded #Config schema,
// so type errors and unknown fields are reported with file positions.
// Environment variables override the file; command-line flags are applied
// by the caller on top of both.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/caarlos0/env/v11"

	"github.com/roach88/novella/internal/ir"
)

// FileName is the project file looked up in the working directory.
const FileName = "novella.cue"

//go:embed schema.cue
var schemaSource []byte

// Config is the resolved project configuration.
type Config struct {
	// Scripts is the directory scripts are loaded from.
	Scripts string `json:"scripts"`

	// Start is the script file the main conductor begins with.
	Start string `json:"start,omitempty"`

	// Label is the label to jump to in Start. Empty starts at the top.
	Label string `json:"label,omitempty"`

	// Database is the SQLite file for read/unread state and save slots.
	// Empty keeps everything in memory.
	Database string `json:"database,omitempty" env:"NOVELLA_DATABASE"`

	// Evaluator selects the js tag language: "lua" or "starlark".
	Evaluator string `json:"evaluator" env:"NOVELLA_EVALUATOR"`

	LogFile  string `json:"log_file,omitempty" env:"NOVELLA_LOG_FILE"`
	Journal  bool   `json:"journal" env:"NOVELLA_JOURNAL"`
	MaxSteps int    `json:"max_steps" env:"NOVELLA_MAX_STEPS"`

	// Shortcuts maps trigger text to the directive it expands to.
	Shortcuts map[string]ir.Shortcut `json:"-"`

	Otel Otel `json:"-"`
}

// Otel holds tracing settings. They only come from the environment.
type Otel struct {
	Endpoint string `env:"NOVELLA_OTEL_ENDPOINT"`
	Enabled  string `env:"NOVELLA_OTEL_ENABLED"`
}

// Error reports an invalid project file.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsConfigError returns true if err wraps a config Error.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// Default returns the configuration used when no project file exists.
func Default() *Config {
	return &Config{
		Scripts:   ".",
		Evaluator: "lua",
		Shortcuts: map[string]ir.Shortcut{},
	}
}

// Load reads path, applies environment overrides and returns the result.
// A missing file is not an error when optional is true; defaults are used.
func Load(path string, optional bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			return cfg, applyEnv(cfg)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(path, data)
	if err != nil {
		return nil, err
	}
	return cfg, applyEnv(cfg)
}

// Parse compiles data as a project file named filename.
// Environment overrides are not applied.
func Parse(filename string, data []byte) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	file := ctx.CompileBytes(data, cue.Filename(filename))
	if err := file.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	value := def.Unify(file)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	cfg := Default()
	if err := value.Decode(cfg); err != nil {
		return nil, formatCUEError(err)
	}

	shortcuts, err := decodeShortcuts(value.LookupPath(cue.ParsePath("shortcuts")))
	if err != nil {
		return nil, err
	}
	cfg.Shortcuts = shortcuts
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	switch cfg.Evaluator {
	case "lua", "starlark":
	default:
		return &Error{Field: "evaluator", Message: fmt.Sprintf("unknown evaluator %q (want lua or starlark)", cfg.Evaluator)}
	}
	return nil
}

// decodeShortcuts converts the shortcuts struct into rules. Payload keys of
// each rule are sorted so expansion is deterministic.
func decodeShortcuts(v cue.Value) (map[string]ir.Shortcut, error) {
	out := map[string]ir.Shortcut{}
	if !v.Exists() {
		return out, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		trigger := iter.Selector().Unquoted()
		ruleVal := iter.Value()

		tag, err := ruleVal.LookupPath(cue.ParsePath("tag")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}

		rule := ir.Shortcut{Tag: tag}
		valuesVal := ruleVal.LookupPath(cue.ParsePath("values"))
		if valuesVal.Exists() {
			params, err := decodeParams(valuesVal)
			if err != nil {
				return nil, err
			}
			rule.Values = params
		}
		out[trigger] = rule
	}
	return out, nil
}

func decodeParams(v cue.Value) ([]ir.Param, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var params []ir.Param
	for iter.Next() {
		val, err := toValue(iter.Value())
		if err != nil {
			return nil, err
		}
		params = append(params, ir.P(iter.Selector().Unquoted(), val))
	}
	sort.Slice(params, func(i, j int) bool { return params[i].Key < params[j].Key })
	return params, nil
}

func toValue(v cue.Value) (ir.Value, error) {
	switch v.Kind() {
	case cue.NullKind:
		return ir.Null{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Int(n), nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Float(f), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.String(s), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.Array{}
		for iter.Next() {
			elem, err := toValue(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.Object{}
		for iter.Next() {
			elem, err := toValue(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Selector().Unquoted()] = elem
		}
		return obj, nil
	default:
		return nil, &Error{Field: "shortcuts", Message: fmt.Sprintf("unsupported value kind %s", v.Kind()), Pos: v.Pos()}
	}
}

// formatCUEError keeps the first CUE error with its position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	positions := cueerrors.Positions(first)
	if len(positions) > 0 {
		return &Error{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return &Error{Field: "cue", Message: first.Error()}
}
