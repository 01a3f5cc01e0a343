package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukepan/talkwire/internal/cluster"
	"github.com/dukepan/talkwire/internal/metrics"
	"github.com/dukepan/talkwire/internal/protocol"
	"github.com/dukepan/talkwire/internal/utils"
)

// Subscriber owns the connection's exclusive pub/sub connection. One
// goroutine serves both the control loop (room changes) and the
// delivery loop (pushed messages), so subscribe and deliver never race.
// The subscription itself is the delivery filter; payloads are not
// filtered by room here.
type Subscriber struct {
	log     *utils.Logger
	sub     ShardSub
	out     *Queue[[]byte]
	changes *Queue[RoomChange]
	current string
}

func NewSubscriber(log *utils.Logger, sub ShardSub, out *Queue[[]byte], changes *Queue[RoomChange]) *Subscriber {
	return &Subscriber{
		log:     log,
		sub:     sub,
		out:     out,
		changes: changes,
	}
}

// Run drives both loops until the context is cancelled, the room change
// queue closes, or the pub/sub connection fails. Subscription errors
// are fatal to the connection.
func (s *Subscriber) Run(ctx context.Context) error {
	defer s.sub.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chg, ok := <-s.changes.Out():
			if !ok {
				return nil
			}
			if err := s.apply(ctx, chg); err != nil {
				return err
			}
		case d, ok := <-s.sub.Deliveries():
			if !ok {
				return errors.New("pub/sub connection closed")
			}
			s.deliver(ctx, d)
		}
	}
}

// apply moves the single subscription: unsubscribe the old channel
// first, subscribe the new one, then acknowledge. A request for the
// current room acknowledges immediately.
func (s *Subscriber) apply(ctx context.Context, chg RoomChange) error {
	channel := cluster.Channel(chg.Room)
	if channel == s.current {
		chg.Ack <- nil
		return nil
	}
	if s.current != "" {
		if err := s.sub.Unsubscribe(ctx, s.current); err != nil {
			chg.Ack <- err
			return fmt.Errorf("sunsubscribe %s: %w", s.current, err)
		}
		s.log.Info(ctx, "unsubscribed from room channel %s", s.current)
	}
	if err := s.sub.Subscribe(ctx, channel); err != nil {
		chg.Ack <- err
		return fmt.Errorf("ssubscribe %s: %w", channel, err)
	}
	s.current = channel
	metrics.SubscriptionChanges.Inc()
	s.log.Info(ctx, "subscribed to room channel %s", channel)
	chg.Ack <- nil
	return nil
}

// deliver forwards a pushed payload to the writer. The payload is
// decoded once for validation; undecodable payloads are dropped.
func (s *Subscriber) deliver(ctx context.Context, d cluster.Delivery) {
	if _, err := protocol.Decode(d.Payload); err != nil {
		metrics.DecodeFailures.Inc()
		s.log.Error(ctx, "dropping undecodable payload from channel %s: %v", d.Channel, err)
		return
	}
	s.out.Push(d.Payload)
	metrics.DeliveredFrames.Inc()
}
