package cluster

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/dukepan/talkwire/internal/protocol"
)

var (
	publishLatency metric.Float64Histogram
)

// Publisher is the process-wide façade over the shared cluster command
// connection. The mutex is held only for the duration of one publish.
type Publisher struct {
	mu     sync.Mutex
	client redis.UniversalClient
}

func NewPublisher(client redis.UniversalClient) *Publisher {
	meter := otel.Meter("cluster")
	if hist, err := meter.Float64Histogram("redis.spublish.latency", metric.WithUnit("ms")); err == nil {
		publishLatency = hist
	}
	return &Publisher{client: client}
}

// Publish encodes the event and issues a sharded publish on the room's
// channel.
func (p *Publisher) Publish(ctx context.Context, room int32, ev *protocol.Event) error {
	payload, err := protocol.Encode(ev)
	if err != nil {
		return err
	}

	channel := Channel(room)
	start := time.Now()
	ctx, span := otel.Tracer("cluster").Start(ctx, "redis.spublish")
	span.SetAttributes(attribute.String("redis.channel", channel))
	defer func() {
		if publishLatency != nil {
			publishLatency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attribute.String("redis.command", "spublish")))
		}
		span.End()
	}()

	p.mu.Lock()
	err = p.client.SPublish(ctx, channel, payload).Err()
	p.mu.Unlock()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Redis sharded publish failed")
	}
	return err
}
