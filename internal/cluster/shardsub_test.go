package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShardSubForwardsMessages(t *testing.T) {
	srv := miniredis.RunT(t)
	client, err := NewClient(context.Background(), []string{srv.Addr()})
	require.NoError(t, err)
	defer client.Close()

	s := &ShardSub{
		pubsub: client.SSubscribe(context.Background()),
		out:    make(chan Delivery, 32),
		quit:   make(chan struct{}),
	}
	src := make(chan *redis.Message, 1)
	go s.forward(src)

	src <- &redis.Message{Channel: "7", Payload: "payload"}
	select {
	case d := <-s.Deliveries():
		assert.Equal(t, "7", d.Channel)
		assert.Equal(t, []byte("payload"), d.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("message was not forwarded")
	}

	close(src)
	select {
	case _, ok := <-s.Deliveries():
		assert.False(t, ok, "deliveries close when the source closes")
	case <-time.After(2 * time.Second):
		t.Fatal("deliveries did not close")
	}
}

func TestShardSubCloseReleasesParkedForward(t *testing.T) {
	srv := miniredis.RunT(t)
	client, err := NewClient(context.Background(), []string{srv.Addr()})
	require.NoError(t, err)
	defer client.Close()

	s := &ShardSub{
		pubsub: client.SSubscribe(context.Background()),
		out:    make(chan Delivery, 32),
		quit:   make(chan struct{}),
	}
	src := make(chan *redis.Message)
	done := make(chan struct{})
	go func() {
		s.forward(src)
		close(done)
	}()

	// Fill the delivery buffer with no consumer; the 33rd message
	// parks the pump mid-send.
	for i := 0; i < 33; i++ {
		select {
		case src <- &redis.Message{Channel: "7", Payload: "backlog"}:
		case <-time.After(2 * time.Second):
			t.Fatal("pump stopped accepting before the buffer filled")
		}
	}

	require.NoError(t, s.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("close left the forward pump parked")
	}

	require.NoError(t, s.Close(), "close is idempotent")
}
