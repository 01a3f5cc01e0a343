package cluster

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Delivery is one sharded pub/sub message received on a subscriber
// connection.
type Delivery struct {
	Channel string
	Payload []byte
}

// ShardSub wraps an exclusive sharded pub/sub connection whose
// subscription set changes one room at a time. It is never shared
// across connections.
type ShardSub struct {
	pubsub *redis.PubSub
	out    chan Delivery
	quit   chan struct{}
	once   sync.Once
}

// NewShardSub opens a dedicated pub/sub connection with an empty
// subscription set. Subscription confirmations are consumed by the
// client library; only sharded messages reach Deliveries.
func NewShardSub(client redis.UniversalClient) *ShardSub {
	s := &ShardSub{
		pubsub: client.SSubscribe(context.Background()),
		out:    make(chan Delivery, 32),
		quit:   make(chan struct{}),
	}
	go s.forward(s.pubsub.Channel())
	return s
}

// forward pumps pushed messages to the consumer. Sends race against
// quit so a Close with no remaining consumer still releases the
// goroutine.
func (s *ShardSub) forward(src <-chan *redis.Message) {
	defer close(s.out)
	for msg := range src {
		select {
		case s.out <- Delivery{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
		case <-s.quit:
			return
		}
	}
}

func (s *ShardSub) Subscribe(ctx context.Context, channel string) error {
	return s.pubsub.SSubscribe(ctx, channel)
}

func (s *ShardSub) Unsubscribe(ctx context.Context, channel string) error {
	return s.pubsub.SUnsubscribe(ctx, channel)
}

func (s *ShardSub) Deliveries() <-chan Delivery {
	return s.out
}

// Close tears down the pub/sub connection and unblocks the forward
// pump. Idempotent.
func (s *ShardSub) Close() error {
	s.once.Do(func() { close(s.quit) })
	return s.pubsub.Close()
}
