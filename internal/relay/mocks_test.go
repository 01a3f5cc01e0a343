package relay

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dukepan/talkwire/internal/cluster"
	"github.com/dukepan/talkwire/internal/models"
	"github.com/dukepan/talkwire/internal/protocol"
)

// trace records the externally visible side effects of a scenario in
// the order they happened, across the fake cluster and the fake store.
type trace struct {
	mu  sync.Mutex
	ops []string
}

func (t *trace) record(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ops = append(t.ops, fmt.Sprintf(format, args...))
}

func (t *trace) snapshot() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.ops...)
}

// fakeCluster routes sharded publishes to whichever fake subscriber
// connections currently hold the channel.
type fakeCluster struct {
	mu          sync.Mutex
	trace       *trace
	subs        map[string]map[*fakeShardSub]bool
	failPublish bool
}

func newFakeCluster(tr *trace) *fakeCluster {
	return &fakeCluster{
		trace: tr,
		subs:  make(map[string]map[*fakeShardSub]bool),
	}
}

func (c *fakeCluster) Publish(ctx context.Context, room int32, ev *protocol.Event) error {
	channel := cluster.Channel(room)
	if c.failPublish {
		c.trace.record("SPUBLISH %s %s FAILED", channel, ev.Type)
		return errors.New("cluster unavailable")
	}
	payload, err := protocol.Encode(ev)
	if err != nil {
		return err
	}
	c.trace.record("SPUBLISH %s %s", channel, ev.Type)

	c.mu.Lock()
	targets := make([]*fakeShardSub, 0, len(c.subs[channel]))
	for s := range c.subs[channel] {
		targets = append(targets, s)
	}
	c.mu.Unlock()
	for _, s := range targets {
		s.out <- cluster.Delivery{Channel: channel, Payload: payload}
	}
	return nil
}

func (c *fakeCluster) newShardSub() *fakeShardSub {
	return &fakeShardSub{
		cluster: c,
		out:     make(chan cluster.Delivery, 64),
	}
}

// fakeShardSub is one exclusive pub/sub connection against the fake
// cluster.
type fakeShardSub struct {
	cluster       *fakeCluster
	out           chan cluster.Delivery
	closeOnce     sync.Once
	failSubscribe bool
}

func (s *fakeShardSub) Subscribe(ctx context.Context, channel string) error {
	if s.failSubscribe {
		s.cluster.trace.record("SSUBSCRIBE %s FAILED", channel)
		return errors.New("cluster unavailable")
	}
	s.cluster.trace.record("SSUBSCRIBE %s", channel)
	s.cluster.mu.Lock()
	defer s.cluster.mu.Unlock()
	if s.cluster.subs[channel] == nil {
		s.cluster.subs[channel] = make(map[*fakeShardSub]bool)
	}
	s.cluster.subs[channel][s] = true
	return nil
}

func (s *fakeShardSub) Unsubscribe(ctx context.Context, channel string) error {
	s.cluster.trace.record("SUNSUBSCRIBE %s", channel)
	s.cluster.mu.Lock()
	defer s.cluster.mu.Unlock()
	delete(s.cluster.subs[channel], s)
	return nil
}

func (s *fakeShardSub) Deliveries() <-chan cluster.Delivery {
	return s.out
}

func (s *fakeShardSub) Close() error {
	s.cluster.mu.Lock()
	for _, members := range s.cluster.subs {
		delete(members, s)
	}
	s.cluster.mu.Unlock()
	s.closeOnce.Do(func() { close(s.out) })
	return nil
}

// inject delivers a raw payload as if the cluster pushed it.
func (s *fakeShardSub) inject(channel string, payload []byte) {
	s.out <- cluster.Delivery{Channel: channel, Payload: payload}
}

// fakeStore is an in-memory EventStore with the same ordering semantics
// as the Postgres queries.
type fakeStore struct {
	mu          sync.Mutex
	trace       *trace
	users       []models.UserRow
	events      []models.PersistedEvent
	nextUserID  int64
	nextEventID int64
	failHistory bool
	failInsert  bool
}

func newFakeStore(tr *trace) *fakeStore {
	return &fakeStore{trace: tr}
}

func (f *fakeStore) InsertUser(ctx context.Context, room int32, user uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextUserID++
	f.users = append(f.users, models.UserRow{ID: f.nextUserID, Room: room, User: user})
	f.trace.record("INSERT users room=%d", room)
	return nil
}

func (f *fakeStore) DeleteUser(ctx context.Context, user uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []models.UserRow
	var deleted int64
	for _, row := range f.users {
		if row.User == user {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	f.users = kept
	f.trace.record("DELETE users n=%d", deleted)
	return deleted, nil
}

func (f *fakeStore) RoomOfUser(ctx context.Context, user uuid.UUID) (int32, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.users) - 1; i >= 0; i-- {
		if f.users[i].User == user {
			return f.users[i].Room, true, nil
		}
	}
	return 0, false, nil
}

func (f *fakeStore) InsertEvent(ctx context.Context, rec models.PersistedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert {
		f.trace.record("INSERT events FAILED")
		return errors.New("database unavailable")
	}
	f.nextEventID++
	rec.ID = f.nextEventID
	f.events = append(f.events, rec)
	f.trace.record("INSERT events kind=%d room=%d", rec.Kind, rec.Room)
	return nil
}

func (f *fakeStore) History(ctx context.Context, room int32, limit int64, fetchBefore uint64) ([]models.PersistedEvent, error) {
	if f.failHistory {
		return nil, errors.New("database unavailable")
	}
	if limit <= 0 {
		return []models.PersistedEvent{}, nil
	}
	cutoff := int64(1<<63 - 1)
	if fetchBefore > 0 && fetchBefore < 1<<63-1 {
		cutoff = int64(fetchBefore)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Newest first, ts then insertion order descending, capped at limit.
	var desc []models.PersistedEvent
	for i := len(f.events) - 1; i >= 0; i-- {
		rec := f.events[i]
		if rec.Room != room || rec.Ts >= cutoff {
			continue
		}
		desc = append(desc, rec)
	}
	// Stable so equal timestamps keep insertion-descending order.
	sort.SliceStable(desc, func(i, j int) bool { return desc[i].Ts > desc[j].Ts })
	if int64(len(desc)) > limit {
		desc = desc[:limit]
	}

	// Re-sort ascending for the reply.
	asc := make([]models.PersistedEvent, len(desc))
	for i, rec := range desc {
		asc[len(desc)-1-i] = rec
	}
	return asc, nil
}
