package relay

import (
	"context"

	"github.com/google/uuid"

	"github.com/dukepan/talkwire/internal/cluster"
	"github.com/dukepan/talkwire/internal/models"
	"github.com/dukepan/talkwire/internal/protocol"
)

// Bus publishes encoded events onto a room's sharded channel.
type Bus interface {
	Publish(ctx context.Context, room int32, ev *protocol.Event) error
}

// ShardSub is the exclusive pub/sub connection a Subscriber drives.
type ShardSub interface {
	Subscribe(ctx context.Context, channel string) error
	Unsubscribe(ctx context.Context, channel string) error
	Deliveries() <-chan cluster.Delivery
	Close() error
}

// EventStore is the durable store surface the protocol engine needs.
type EventStore interface {
	InsertUser(ctx context.Context, room int32, user uuid.UUID) error
	DeleteUser(ctx context.Context, user uuid.UUID) (int64, error)
	RoomOfUser(ctx context.Context, user uuid.UUID) (int32, bool, error)
	InsertEvent(ctx context.Context, rec models.PersistedEvent) error
	History(ctx context.Context, room int32, limit int64, fetchBefore uint64) ([]models.PersistedEvent, error)
}
