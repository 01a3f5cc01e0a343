package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dukepan/talkwire/internal/metrics"
	"github.com/dukepan/talkwire/internal/protocol"
	"github.com/dukepan/talkwire/internal/utils"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second
)

// Handler runs one accepted WebSocket connection. It owns the three
// goroutine lifetimes around the read loop: the Subscriber, the writer,
// and the outbound queue pump. Teardown runs in a fixed order so no
// goroutine is left behind and at most one users row cleanup fires.
type Handler struct {
	log          *utils.Logger
	conn         *websocket.Conn
	bus          Bus
	store        EventStore
	newSub       func() ShardSub
	writeTimeout time.Duration
	closeOnce    sync.Once
}

func NewHandler(log *utils.Logger, conn *websocket.Conn, bus Bus, store EventStore, newSub func() ShardSub) *Handler {
	return &Handler{
		log:          log,
		conn:         conn,
		bus:          bus,
		store:        store,
		newSub:       newSub,
		writeTimeout: writeWait,
	}
}

// closePeer closes the WebSocket exactly once. Both the read loop and
// the goroutines reach for it on failure.
func (h *Handler) closePeer() {
	h.closeOnce.Do(func() {
		_ = h.conn.Close()
	})
}

// Run serves the connection until the peer disconnects or a fatal
// protocol error occurs, then tears everything down.
func (h *Handler) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := NewQueue[[]byte]()
	changes := NewQueue[RoomChange]()
	engine := NewEngine(h.log, h.bus, h.store, out, changes)
	subscriber := NewSubscriber(h.log, h.newSub(), out, changes)

	var subDone sync.WaitGroup
	subDone.Add(1)
	go func() {
		defer subDone.Done()
		if err := subscriber.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			h.log.Error(ctx, "subscriber stopped: %v", err)
			h.closePeer()
			cancel()
		}
	}()

	var writeDone sync.WaitGroup
	writeDone.Add(1)
	go func() {
		defer writeDone.Done()
		h.writeLoop(ctx, out)
	}()

	h.readLoop(ctx, engine)

	// Teardown order: stop feeding the subscriber, cancel so a pending
	// join ack unblocks, wait for the subscriber, then flush and stop
	// the writer before closing the socket.
	changes.Close()
	cancel()
	subDone.Wait()
	out.Close()
	writeDone.Wait()
	for range out.Out() {
	}
	h.closePeer()

	if user, ok := engine.JoinedUser(); ok {
		if _, err := h.store.DeleteUser(context.Background(), user); err != nil {
			h.log.Error(ctx, "disconnect cleanup for %s: %v", user, err)
		} else {
			h.log.Info(ctx, "removed presence row for %s on disconnect", user)
		}
	}
}

// readLoop decodes inbound binary frames and feeds the engine. Frames
// that are not binary or do not decode are dropped; the connection
// stays up.
func (h *Handler) readLoop(ctx context.Context, engine *Engine) {
	for {
		msgType, frame, err := h.conn.ReadMessage()
		if err != nil {
			h.log.Info(ctx, "read loop ending: %v", err)
			return
		}
		if msgType != websocket.BinaryMessage {
			h.log.Info(ctx, "ignoring non-binary frame of type %d", msgType)
			continue
		}
		ev, err := protocol.Decode(frame)
		if err != nil {
			metrics.DecodeFailures.Inc()
			h.log.Error(ctx, "dropping undecodable frame: %v", err)
			continue
		}
		if err := engine.Handle(ctx, ev); err != nil {
			h.log.Error(ctx, "closing connection: %v", err)
			return
		}
	}
}

// writeLoop is the only writer on the socket. It drains the outbound
// queue until the queue closes or a write fails. The per-write deadline
// bounds how long a stalled peer can hold up teardown.
func (h *Handler) writeLoop(ctx context.Context, out *Queue[[]byte]) {
	for frame := range out.Out() {
		h.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := h.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			h.log.Error(ctx, "write failed, closing connection: %v", err)
			h.closePeer()
			return
		}
	}
}
