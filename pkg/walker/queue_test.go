package walker

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue()
	require.True(t, q.Push(Unit{Prefix: "a/"}, Unit{Prefix: "b/"}))
	require.True(t, q.Push(Unit{Prefix: "a/", Cursor: "t1"}))
	assert.Equal(t, 3, q.Len())

	var got []Unit
	for {
		u, ok := q.TryPop()
		if !ok {
			break
		}
		got = append(got, u)
	}
	assert.Equal(t, []Unit{{Prefix: "a/"}, {Prefix: "b/"}, {Prefix: "a/", Cursor: "t1"}}, got)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_EmptyPop(t *testing.T) {
	q := NewQueue()
	u, ok := q.TryPop()
	assert.False(t, ok)
	assert.Equal(t, Unit{}, u)
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue()
	q.Push(Unit{Prefix: "kept/"})
	q.Close()

	assert.False(t, q.Push(Unit{Prefix: "dropped/"}))
	assert.Equal(t, 1, q.Len())

	u, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, "kept/", u.Prefix)
}

func TestQueue_CompactionKeepsOrder(t *testing.T) {
	q := NewQueue()
	next := 0
	popped := 0

	// Interleave pushes and pops so the head passes the compaction threshold
	// several times with items still pending.
	for round := 0; round < 10; round++ {
		for i := 0; i < 300; i++ {
			q.Push(Unit{Prefix: fmt.Sprintf("p%05d/", next)})
			next++
		}
		for i := 0; i < 250; i++ {
			u, ok := q.TryPop()
			require.True(t, ok)
			require.Equal(t, fmt.Sprintf("p%05d/", popped), u.Prefix)
			popped++
		}
	}
	assert.Equal(t, next-popped, q.Len())

	for {
		u, ok := q.TryPop()
		if !ok {
			break
		}
		require.Equal(t, fmt.Sprintf("p%05d/", popped), u.Prefix)
		popped++
	}
	assert.Equal(t, next, popped)
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := NewQueue()

	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(Unit{Prefix: fmt.Sprintf("%d/%d/", p, i)})
			}
		}(p)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for {
		u, ok := q.TryPop()
		if !ok {
			break
		}
		assert.False(t, seen[u.Prefix], "duplicate %s", u.Prefix)
		seen[u.Prefix] = true
	}
	assert.Len(t, seen, producers*perProducer)
}

func TestUnit_IsContinuation(t *testing.T) {
	assert.False(t, Unit{Prefix: "a/"}.IsContinuation())
	assert.True(t, Unit{Prefix: "a/", Cursor: "x"}.IsContinuation())
}
