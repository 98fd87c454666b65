// Package readunread tracks which save-marks have been passed, keyed by
// script file path and shared by every conductor.
package readunread

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/novella/internal/store"
)

// Persister durably records passed marks. *store.Store implements it.
// PassMark must be idempotent: concurrent Pass calls for the same mark may
// both reach it.
type Persister interface {
	PassMark(ctx context.Context, filePath, markName string) error
}

// Source lists previously persisted marks. *store.Store implements it.
type Source interface {
	PassedMarks(ctx context.Context, filePath string) ([]store.PassedMark, error)
}

type markKey struct {
	filePath string
	markName string
}

// Tracker is the in-memory read/unread set with optional write-through.
//
// Thread-safety: all methods are safe for concurrent use. Conductors running
// on different goroutines may share one Tracker.
type Tracker struct {
	mu        sync.RWMutex
	passed    map[markKey]struct{}
	persister Persister
	ctx       context.Context
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithPersister writes every newly passed mark through to p.
func WithPersister(p Persister) Option {
	return func(t *Tracker) {
		t.persister = p
	}
}

// WithContext sets the context write-through calls run under. Cancelling
// it fails later passes instead of blocking on the persister.
func WithContext(ctx context.Context) Option {
	return func(t *Tracker) {
		t.ctx = ctx
	}
}

// New creates an empty tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{passed: make(map[markKey]struct{}), ctx: context.Background()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IsPassed reports whether markName was passed in filePath.
// An empty markName is never passed.
func (t *Tracker) IsPassed(filePath, markName string) bool {
	if markName == "" {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.passed[markKey{filePath, markName}]
	return ok
}

// Pass records markName as passed in filePath. Idempotent; an empty
// markName is ignored. A persister is only called while the mark is not yet
// passed, and without holding the tracker lock, so a slow write does not
// block IsPassed. If it fails the mark stays unpassed and the error is
// returned.
func (t *Tracker) Pass(filePath, markName string) error {
	if markName == "" || t.IsPassed(filePath, markName) {
		return nil
	}
	if t.persister != nil {
		if err := t.persister.PassMark(t.ctx, filePath, markName); err != nil {
			return fmt.Errorf("persist passed mark %s#%s: %w", filePath, markName, err)
		}
	}

	t.mu.Lock()
	t.passed[markKey{filePath, markName}] = struct{}{}
	t.mu.Unlock()
	return nil
}

// Load merges every mark listed by src into the tracker without writing
// them back.
func (t *Tracker) Load(ctx context.Context, src Source) error {
	marks, err := src.PassedMarks(ctx, "")
	if err != nil {
		return fmt.Errorf("load passed marks: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range marks {
		t.passed[markKey{m.FilePath, m.MarkName}] = struct{}{}
	}
	return nil
}

// Len returns the number of passed marks across all files.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.passed)
}
