package models

import (
	"github.com/google/uuid"
)

// PersistedEvent is a row of the events table, the durable per-room
// stream. Kind is the small-integer variant tag; Text carries the
// message body for posts and the previous username for renames.
type PersistedEvent struct {
	ID       int64
	Room     int32
	User     uuid.UUID
	Username string
	Text     string
	Ts       int64
	Kind     int16
}

// UserRow is a row of the users table. It tracks which room a connected
// user currently occupies and is short-lived: inserted on join, deleted
// on leave or disconnect.
type UserRow struct {
	ID   int64
	Room int32
	User uuid.UUID
}
