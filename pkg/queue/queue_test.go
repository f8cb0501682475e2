package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := New(4)

	for i := byte(0); i < 4; i++ {
		require.NoError(t, q.EnqueueTail(&Message{Data: []byte{i}}))
	}
	assert.True(t, q.IsFull())
	assert.ErrorIs(t, q.EnqueueTail(&Message{}), ErrFull)

	for i := byte(0); i < 4; i++ {
		m, ok := q.DequeueHead()
		require.True(t, ok)
		assert.Equal(t, i, m.Data[0], "dispatch order is first-come-first-served")
	}
	_, ok := q.DequeueHead()
	assert.False(t, ok)
}

func TestQueueInterleavedOrder(t *testing.T) {
	// Two producers (e.g. two relay chains) interleaving into one queue
	// keep their global arrival order.
	q := New(8)
	require.NoError(t, q.EnqueueTail(&Message{Data: []byte{'a'}}))
	require.NoError(t, q.EnqueueTail(&Message{Data: []byte{'b'}}))
	require.NoError(t, q.EnqueueTail(&Message{Data: []byte{'a'}}))

	got := ""
	for {
		m, ok := q.DequeueHead()
		if !ok {
			break
		}
		got += string(m.Data)
	}
	assert.Equal(t, "aba", got)
}

func TestSetSelect(t *testing.T) {
	s := NewSet(2)
	assert.Same(t, s.Network, s.Select(LayerNetwork, false))
	assert.Same(t, s.NetworkPriority, s.Select(LayerNetwork, true))
	assert.Same(t, s.Transport, s.Select(LayerTransport, false))
	assert.Same(t, s.TransportPriority, s.Select(LayerTransport, true))
}
