package engine

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerQueue_FIFO(t *testing.T) {
	q := newTriggerQueue()

	for _, ev := range []string{"a", "b", "c"} {
		require.True(t, q.Enqueue(Trigger{Conductor: "main", Event: ev}))
	}

	got := q.Drain()
	require.Len(t, got, 3)
	for i, want := range []string{"a", "b", "c"} {
		assert.Equal(t, want, got[i].Event)
	}
}

func TestTriggerQueue_Drain(t *testing.T) {
	q := newTriggerQueue()
	assert.Nil(t, q.Drain())

	q.Enqueue(Trigger{Event: "a"})
	q.Enqueue(Trigger{Event: "b"})

	got := q.Drain()
	assert.Equal(t, []Trigger{{Event: "a"}, {Event: "b"}}, got)
	assert.Equal(t, 0, q.Len())
}

func TestTriggerQueue_Close(t *testing.T) {
	q := newTriggerQueue()
	q.Enqueue(Trigger{Event: "before-close"})
	assert.False(t, q.Closed())

	q.Close()
	q.Close()

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(Trigger{Event: "after-close"}), "enqueue after close should return false")
	assert.Equal(t, []Trigger{{Event: "before-close"}}, q.Drain(), "queued triggers survive close")
}

func TestTriggerQueue_Len(t *testing.T) {
	q := newTriggerQueue()

	assert.Equal(t, 0, q.Len())
	q.Enqueue(Trigger{Event: "1"})
	q.Enqueue(Trigger{Event: "2"})
	assert.Equal(t, 2, q.Len())

	q.Drain()
	assert.Equal(t, 0, q.Len())
}

func TestTriggerQueue_ThreadSafe(t *testing.T) {
	q := newTriggerQueue()

	const producers = 10
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(Trigger{Conductor: fmt.Sprintf("c%d", id), Event: fmt.Sprintf("e%d", i)})
			}
		}(p)
	}
	wg.Wait()

	assert.Len(t, q.Drain(), producers*perProducer)
}
