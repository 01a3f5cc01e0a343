package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukepan/talkwire/internal/metrics"
	"github.com/dukepan/talkwire/internal/models"
	"github.com/dukepan/talkwire/internal/protocol"
	"github.com/dukepan/talkwire/internal/utils"
)

// RoomChange asks the Subscriber to move the connection's single
// subscription to Room. Ack receives nil once the subscription is in
// force, or the error that made it impossible.
type RoomChange struct {
	Room int32
	Ack  chan error
}

// Engine is the per-connection protocol state machine. It runs inline
// with the read loop, so every transition is synchronous with frame
// arrival. A publish for a room is issued only after the Subscriber has
// acknowledged the subscription to that room.
type Engine struct {
	log     *utils.Logger
	bus     Bus
	store   EventStore
	out     *Queue[[]byte]
	changes *Queue[RoomChange]

	user    uuid.UUID
	hasUser bool
}

func NewEngine(log *utils.Logger, bus Bus, store EventStore, out *Queue[[]byte], changes *Queue[RoomChange]) *Engine {
	return &Engine{
		log:     log,
		bus:     bus,
		store:   store,
		out:     out,
		changes: changes,
	}
}

// JoinedUser reports the identity whose users row is still held by this
// connection, if any. The handler deletes it on disconnect.
func (e *Engine) JoinedUser() (uuid.UUID, bool) {
	return e.user, e.hasUser
}

// Handle runs one transition. A non-nil error is fatal to the
// connection.
func (e *Engine) Handle(ctx context.Context, ev *protocol.Event) error {
	if ev.Type.ServerToClient() {
		e.log.Info(ctx, "ignoring server-to-client %s event from peer", ev.Type)
		return nil
	}

	switch ev.Type {
	case protocol.TypeJoinRoom:
		return e.handleJoin(ctx, ev)
	case protocol.TypeLeaveRoom:
		e.handleLeave(ctx, ev)
	case protocol.TypeChangeName:
		e.handleChangeName(ctx, ev)
	case protocol.TypePostMessage:
		e.handlePost(ctx, ev)
	case protocol.TypeFetch:
		e.handleFetch(ctx, ev)
	}
	return nil
}

// handleJoin moves the subscription, then announces and records the
// join. The subscription ack strictly precedes the publish so the
// connection's own UserJoined arrives on the new room, never a stale
// one.
func (e *Engine) handleJoin(ctx context.Context, ev *protocol.Event) error {
	ack := make(chan error, 1)
	if !e.changes.Push(RoomChange{Room: ev.Room, Ack: ack}) {
		return errors.New("room change queue closed")
	}
	select {
	case err := <-ack:
		if err != nil {
			return fmt.Errorf("subscribe to room %d: %w", ev.Room, err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	e.user, e.hasUser = ev.User, true

	e.publish(ctx, ev.Room, protocol.NewUserJoined(ev.User, ev.Username, ev.Room, ev.Ts))
	e.persist(ctx, models.PersistedEvent{
		Room:     ev.Room,
		User:     ev.User,
		Username: ev.Username,
		Ts:       int64(ev.Ts),
		Kind:     int16(protocol.KindUserJoined),
	})
	if err := e.store.InsertUser(ctx, ev.Room, ev.User); err != nil {
		e.log.Error(ctx, "insert user row for %s: %v", ev.User, err)
	}
	return nil
}

// handleLeave announces and records the leave. The subscription stays
// where it is; the next join replaces it atomically.
func (e *Engine) handleLeave(ctx context.Context, ev *protocol.Event) {
	e.publish(ctx, ev.Room, protocol.NewUserLeft(ev.User, ev.Username, ev.Room, ev.Ts))
	e.persist(ctx, models.PersistedEvent{
		Room:     ev.Room,
		User:     ev.User,
		Username: ev.Username,
		Ts:       int64(ev.Ts),
		Kind:     int16(protocol.KindUserLeft),
	})
	if _, err := e.store.DeleteUser(ctx, ev.User); err != nil {
		e.log.Error(ctx, "delete user row for %s: %v", ev.User, err)
	}
	e.hasUser = false
}

// handleChangeName resolves the user's room from the store; a rename
// for an unknown user is dropped.
func (e *Engine) handleChangeName(ctx context.Context, ev *protocol.Event) {
	room, found, err := e.store.RoomOfUser(ctx, ev.User)
	if err != nil {
		e.log.Error(ctx, "resolve room for %s: %v", ev.User, err)
		return
	}
	if !found {
		e.log.Info(ctx, "dropping rename for unknown user %s", ev.User)
		return
	}
	e.publish(ctx, room, protocol.NewUsernameChanged(ev.User, ev.Username, ev.OldUsername, ev.Ts))
	e.persist(ctx, models.PersistedEvent{
		Room:     room,
		User:     ev.User,
		Username: ev.Username,
		Text:     ev.OldUsername,
		Ts:       int64(ev.Ts),
		Kind:     int16(protocol.KindUsernameChanged),
	})
}

func (e *Engine) handlePost(ctx context.Context, ev *protocol.Event) {
	msg := ev.Message
	if msg == nil {
		e.log.Error(ctx, "post without message body dropped")
		return
	}
	e.publish(ctx, msg.Room, ev)
	e.persist(ctx, models.PersistedEvent{
		Room:     msg.Room,
		User:     msg.User,
		Username: msg.Username,
		Text:     msg.Text,
		Ts:       int64(msg.Ts),
		Kind:     int16(protocol.KindPostMessage),
	})
}

// handleFetch replies point-to-point on the outbound queue; history is
// never broadcast.
func (e *Engine) handleFetch(ctx context.Context, ev *protocol.Event) {
	recs, err := e.store.History(ctx, ev.Room, ev.Limit, ev.FetchBefore)
	if err != nil {
		e.log.Error(ctx, "history fetch for room %d: %v", ev.Room, err)
		e.send(ctx, protocol.NewError(protocol.CodeFetchFailed, "history fetch failed"))
		return
	}
	events := make([]protocol.Event, 0, len(recs))
	for _, rec := range recs {
		if h := protocol.FromPersisted(rec); h != nil {
			events = append(events, *h)
		}
	}
	e.send(ctx, protocol.NewHistory(events))
}

// publish fans the event out on the room channel. Failure is non-fatal:
// it is logged and reported back to the originating peer.
func (e *Engine) publish(ctx context.Context, room int32, ev *protocol.Event) {
	if err := e.bus.Publish(ctx, room, ev); err != nil {
		metrics.PublishTotal.WithLabelValues("error").Inc()
		e.log.Error(ctx, "publish %s to room %d: %v", ev.Type, room, err)
		e.send(ctx, protocol.NewError(protocol.CodePublishFailed, "publish failed"))
		return
	}
	metrics.PublishTotal.WithLabelValues("ok").Inc()
	e.log.Info(ctx, "published %s to room %d", ev.Type, room)
}

// persist appends the durable row. Failure is logged and the event is
// still broadcast; there is no retry.
func (e *Engine) persist(ctx context.Context, rec models.PersistedEvent) {
	if err := e.store.InsertEvent(ctx, rec); err != nil {
		metrics.PersistTotal.WithLabelValues("error").Inc()
		e.log.Error(ctx, "persist kind %d event for room %d: %v", rec.Kind, rec.Room, err)
		return
	}
	metrics.PersistTotal.WithLabelValues("ok").Inc()
	e.log.Info(ctx, "persisted kind %d event for room %d", rec.Kind, rec.Room)
}

// send encodes a direct reply onto the outbound queue.
func (e *Engine) send(ctx context.Context, ev *protocol.Event) {
	frame, err := protocol.Encode(ev)
	if err != nil {
		e.log.Error(ctx, "encode %s reply: %v", ev.Type, err)
		return
	}
	e.out.Push(frame)
}
