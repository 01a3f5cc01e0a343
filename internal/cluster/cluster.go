package cluster

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// NewClient connects to the Redis Cluster given a node list. RESP3 is
// required so the server can push sharded messages to subscribers.
func NewClient(ctx context.Context, nodes []string) (redis.UniversalClient, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    nodes,
		Protocol: 3,
	})

	ctx, span := otel.Tracer("cluster").Start(ctx, "redis.ping")
	defer span.End()
	if err := client.Ping(ctx).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to ping Redis cluster")
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis cluster: %w", err)
	}
	span.SetStatus(codes.Ok, "Redis cluster connected successfully")

	return client, nil
}

// Channel names the sharded pub/sub channel for a room: the decimal
// representation of the room id.
func Channel(room int32) string {
	return strconv.FormatInt(int64(room), 10)
}
