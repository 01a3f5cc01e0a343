package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int]()
	defer q.Close()

	for i := 0; i < 100; i++ {
		require.True(t, q.Push(i))
	}
	for i := 0; i < 100; i++ {
		select {
		case v := <-q.Out():
			assert.Equal(t, i, v)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for element %d", i)
		}
	}
}

func TestQueuePushNeverBlocks(t *testing.T) {
	q := NewQueue[int]()
	defer q.Close()

	// No consumer; ten thousand pushes must complete anyway.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			q.Push(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pushes blocked without a consumer")
	}
}

func TestQueueCloseDrains(t *testing.T) {
	q := NewQueue[string]()
	require.True(t, q.Push("a"))
	require.True(t, q.Push("b"))
	q.Close()

	var got []string
	for v := range q.Out() {
		got = append(got, v)
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestQueuePushAfterClose(t *testing.T) {
	q := NewQueue[int]()
	q.Close()
	assert.False(t, q.Push(1))

	// Close again is a no-op.
	q.Close()

	_, ok := <-q.Out()
	assert.False(t, ok)
}
