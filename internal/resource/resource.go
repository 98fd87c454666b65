// Package resource loads scripts from a file system and owns the tables
// shared by every conductor of a game: parsed tags, command shortcuts and
// the expression evaluator.
package resource

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sync"

	"github.com/roach88/novella/internal/engine"
	"github.com/roach88/novella/internal/eval"
	"github.com/roach88/novella/internal/ir"
	"github.com/roach88/novella/internal/script"
)

// Resource implements engine.Resource over an fs.FS.
//
// Parsed tag streams are cached by path; each LoadScript call returns a
// fresh cursor over the cached tags, so conductors never share position.
//
// Thread-safety: all methods are safe for concurrent use.
type Resource struct {
	fsys      fs.FS
	evaluator eval.Evaluator
	logger    *slog.Logger

	mu        sync.RWMutex
	cache     map[string][]ir.Tag
	shortcuts map[string]ir.Shortcut
}

// Option configures a Resource.
type Option func(*Resource)

// WithEvaluator sets the evaluator used by Eval. Defaults to Lua.
func WithEvaluator(e eval.Evaluator) Option {
	return func(r *Resource) {
		if e != nil {
			r.evaluator = e
		}
	}
}

// WithShortcuts installs the initial command shortcut table.
func WithShortcuts(shortcuts map[string]ir.Shortcut) Option {
	return func(r *Resource) {
		for trigger, rule := range shortcuts {
			r.shortcuts[trigger] = rule
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resource) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Resource reading scripts from fsys.
func New(fsys fs.FS, opts ...Option) *Resource {
	r := &Resource{
		fsys:      fsys,
		logger:    slog.Default(),
		cache:     make(map[string][]ir.Tag),
		shortcuts: make(map[string]ir.Shortcut),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.evaluator == nil {
		r.evaluator = eval.NewLua()
	}
	return r
}

// LoadScript parses the script at p (slash-separated, relative to the FS
// root) and returns a new cursor at its start. The cursor's FilePath is the
// cleaned path, so "./a.yaml" and "a.yaml" name the same file.
func (r *Resource) LoadScript(ctx context.Context, p string) (engine.Cursor, error) {
	tags, err := r.Tags(ctx, p)
	if err != nil {
		return nil, err
	}
	return script.New(path.Clean(p), tags), nil
}

// Tags returns the parsed tag stream for p, reading and caching it on first use.
func (r *Resource) Tags(ctx context.Context, p string) ([]ir.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := path.Clean(p)
	if !fs.ValidPath(clean) {
		return nil, fmt.Errorf("invalid script path %q", p)
	}

	r.mu.RLock()
	tags, ok := r.cache[clean]
	r.mu.RUnlock()
	if ok {
		return tags, nil
	}

	data, err := fs.ReadFile(r.fsys, clean)
	if err != nil {
		return nil, err
	}
	tags, err = script.Parse(clean, data)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[clean] = tags
	r.mu.Unlock()

	r.logger.Debug("script parsed", "path", clean, "tags", len(tags))
	return tags, nil
}

// Invalidate drops the cached tags for p, or every cached script when p is
// empty. The next load re-reads the file.
func (r *Resource) Invalidate(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p == "" {
		r.cache = make(map[string][]ir.Tag)
		return
	}
	delete(r.cache, path.Clean(p))
}

// CommandShortcut returns the rule registered for trigger.
func (r *Resource) CommandShortcut(trigger string) (ir.Shortcut, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.shortcuts[trigger]
	return rule, ok
}

// SetCommandShortcut registers or replaces the rule for trigger.
func (r *Resource) SetCommandShortcut(trigger string, rule ir.Shortcut) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shortcuts[trigger] = rule
}

// RemoveCommandShortcut deletes the rule for trigger.
func (r *Resource) RemoveCommandShortcut(trigger string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.shortcuts, trigger)
}

// Eval runs an inline expression with the resource's evaluator.
func (r *Resource) Eval(ctx context.Context, src string) (ir.Value, error) {
	return r.evaluator.Eval(ctx, src)
}

// Evaluator returns the evaluator used by Eval.
func (r *Resource) Evaluator() eval.Evaluator {
	return r.evaluator
}
