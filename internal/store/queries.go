package store

import (
	"context"
	"errors"
	"math"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dukepan/talkwire/internal/models"
)

// InsertUser records which room a connected user occupies.
func (s *Store) InsertUser(ctx context.Context, room int32, user uuid.UUID) error {
	ctx, done := s.instrument(ctx, "store.insert_user")
	s.mu.Lock()
	_, err := s.conn.Exec(ctx,
		`INSERT INTO users (room, "user") VALUES ($1, $2)`,
		room, user,
	)
	s.mu.Unlock()
	done(err)
	return err
}

// DeleteUser removes every row for the identity and reports how many
// were deleted.
func (s *Store) DeleteUser(ctx context.Context, user uuid.UUID) (int64, error) {
	ctx, done := s.instrument(ctx, "store.delete_user")
	s.mu.Lock()
	tag, err := s.conn.Exec(ctx,
		`DELETE FROM users WHERE "user" = $1`,
		user,
	)
	s.mu.Unlock()
	done(err)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RoomOfUser resolves the room of the most recent users row for the
// identity. The second return is false when no row exists.
func (s *Store) RoomOfUser(ctx context.Context, user uuid.UUID) (int32, bool, error) {
	ctx, done := s.instrument(ctx, "store.room_of_user")
	s.mu.Lock()
	var room int32
	err := s.conn.QueryRow(ctx,
		`SELECT room FROM users WHERE "user" = $1 ORDER BY id DESC LIMIT 1`,
		user,
	).Scan(&room)
	s.mu.Unlock()
	if errors.Is(err, pgx.ErrNoRows) {
		done(nil)
		return 0, false, nil
	}
	done(err)
	if err != nil {
		return 0, false, err
	}
	return room, true, nil
}

// InsertEvent appends one row to the durable per-room stream.
func (s *Store) InsertEvent(ctx context.Context, rec models.PersistedEvent) error {
	ctx, done := s.instrument(ctx, "store.insert_event")
	s.mu.Lock()
	_, err := s.conn.Exec(ctx,
		`INSERT INTO events (ts, text, username, room, "user", kind_tag) VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.Ts, rec.Text, rec.Username, rec.Room, rec.User, rec.Kind,
	)
	s.mu.Unlock()
	done(err)
	return err
}

// History returns the limit most recent events for the room strictly
// older than fetchBefore, in ascending chronological order. Timestamp
// collisions break by insertion order. A fetchBefore of zero (or past
// the int64 range) means no cutoff.
func (s *Store) History(ctx context.Context, room int32, limit int64, fetchBefore uint64) ([]models.PersistedEvent, error) {
	if limit <= 0 {
		return []models.PersistedEvent{}, nil
	}

	cutoff := int64(math.MaxInt64)
	if fetchBefore > 0 && fetchBefore < math.MaxInt64 {
		cutoff = int64(fetchBefore)
	}

	ctx, done := s.instrument(ctx, "store.history")
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.Query(ctx,
		`SELECT id, ts, text, username, room, "user", kind_tag
		 FROM events
		 WHERE room = $1 AND ts < $2
		 ORDER BY ts DESC, id DESC
		 LIMIT $3`,
		room, cutoff, limit,
	)
	if err != nil {
		done(err)
		return nil, err
	}
	defer rows.Close()

	var events []models.PersistedEvent
	for rows.Next() {
		var rec models.PersistedEvent
		if err := rows.Scan(&rec.ID, &rec.Ts, &rec.Text, &rec.Username, &rec.Room, &rec.User, &rec.Kind); err != nil {
			done(err)
			return nil, err
		}
		events = append(events, rec)
	}
	if err := rows.Err(); err != nil {
		done(err)
		return nil, err
	}

	// Descending query plus a reverse yields ascending ts with the
	// insertion-order tie-break intact.
	slices.Reverse(events)
	done(nil)
	return events, nil
}
