package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingQueueFIFO(t *testing.T) {
	q := NewRingQueue[int](3)
	assert.True(t, q.IsEmpty())
	assert.Equal(t, 3, q.Cap())

	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Enqueue(i))
	}
	assert.True(t, q.IsFull())
	assert.ErrorIs(t, q.Enqueue(4), ErrQueueFull)

	head, err := q.Peek()
	require.NoError(t, err)
	assert.Equal(t, 1, head)

	v, err := q.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// Wrap the write index.
	require.NoError(t, q.Enqueue(4))
	got := []int{}
	for !q.IsEmpty() {
		v, err := q.Dequeue()
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []int{2, 3, 4}, got)

	_, err = q.Dequeue()
	assert.ErrorIs(t, err, ErrQueueEmpty)
	_, err = q.Peek()
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestRingQueueAt(t *testing.T) {
	q := NewRingQueue[string](2)
	require.NoError(t, q.Enqueue("a"))
	require.NoError(t, q.Enqueue("b"))
	_, _ = q.Dequeue()
	require.NoError(t, q.Enqueue("c"))

	v, ok := q.At(0)
	assert.True(t, ok)
	assert.Equal(t, "b", v)
	v, ok = q.At(1)
	assert.True(t, ok)
	assert.Equal(t, "c", v)
	_, ok = q.At(2)
	assert.False(t, ok)
	assert.Equal(t, 2, q.Len())
}
