package readunread

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/novella/internal/store"
)

func TestTracker_PassAndQuery(t *testing.T) {
	tr := New()

	assert.False(t, tr.IsPassed("a.yaml", "m1"))
	require.NoError(t, tr.Pass("a.yaml", "m1"))
	assert.True(t, tr.IsPassed("a.yaml", "m1"))
	assert.False(t, tr.IsPassed("b.yaml", "m1"), "state is keyed by file")

	require.NoError(t, tr.Pass("a.yaml", "m1"))
	assert.Equal(t, 1, tr.Len(), "pass is idempotent")
}

func TestTracker_EmptyMarkName(t *testing.T) {
	tr := New()
	require.NoError(t, tr.Pass("a.yaml", ""))
	assert.False(t, tr.IsPassed("a.yaml", ""))
	assert.Equal(t, 0, tr.Len())
}

type fakePersister struct {
	calls []string
	err   error
}

func (f *fakePersister) PassMark(_ context.Context, filePath, markName string) error {
	f.calls = append(f.calls, filePath+"#"+markName)
	return f.err
}

func TestTracker_WriteThroughOnce(t *testing.T) {
	p := &fakePersister{}
	tr := New(WithPersister(p))

	require.NoError(t, tr.Pass("a.yaml", "m1"))
	require.NoError(t, tr.Pass("a.yaml", "m1"))
	require.NoError(t, tr.Pass("a.yaml", ""))

	assert.Equal(t, []string{"a.yaml#m1"}, p.calls)
}

func TestTracker_PersistFailureLeavesUnpassed(t *testing.T) {
	p := &fakePersister{err: errors.New("disk full")}
	tr := New(WithPersister(p))

	err := tr.Pass("a.yaml", "m1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.False(t, tr.IsPassed("a.yaml", "m1"))
}

// blockingPersister holds the write for mark until release is closed or
// the context ends. Other marks are written at once.
type blockingPersister struct {
	mark    string
	entered chan struct{}
	release chan struct{}
}

func newBlockingPersister(mark string) *blockingPersister {
	return &blockingPersister{mark: mark, entered: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingPersister) PassMark(ctx context.Context, _, markName string) error {
	if markName != b.mark {
		return nil
	}
	close(b.entered)
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestTracker_SlowPersistDoesNotBlockReaders(t *testing.T) {
	p := newBlockingPersister("m1")
	tr := New(WithPersister(p))
	require.NoError(t, tr.Pass("a.yaml", "m0"))

	done := make(chan error, 1)
	go func() { done <- tr.Pass("a.yaml", "m1") }()
	<-p.entered

	read := make(chan bool, 1)
	go func() { read <- tr.IsPassed("a.yaml", "m0") }()
	select {
	case ok := <-read:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("IsPassed blocked behind a pending write")
	}
	assert.False(t, tr.IsPassed("a.yaml", "m1"), "not passed until the write succeeds")

	close(p.release)
	require.NoError(t, <-done)
	assert.True(t, tr.IsPassed("a.yaml", "m1"))
}

func TestTracker_CancelledContextFailsPass(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := New(WithPersister(newBlockingPersister("m1")), WithContext(ctx))
	cancel()

	err := tr.Pass("a.yaml", "m1")
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, tr.IsPassed("a.yaml", "m1"))
}

func TestTracker_LoadFromStore(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(filepath.Join(t.TempDir(), "marks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	writer := New(WithPersister(s))
	require.NoError(t, writer.Pass("a.yaml", "m1"))
	require.NoError(t, writer.Pass("b.yaml", "m2"))

	reader := New()
	require.NoError(t, reader.Load(ctx, s))
	assert.True(t, reader.IsPassed("a.yaml", "m1"))
	assert.True(t, reader.IsPassed("b.yaml", "m2"))
	assert.Equal(t, 2, reader.Len())
}

func TestTracker_ConcurrentPass(t *testing.T) {
	tr := New()
	const workers = 8
	const marks = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < marks; i++ {
				_ = tr.Pass("shared.yaml", fmt.Sprintf("m%d", i))
				_ = tr.IsPassed("shared.yaml", fmt.Sprintf("m%d", i))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, marks, tr.Len())
}
