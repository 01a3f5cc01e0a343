package protocol

import (
	"github.com/google/uuid"

	"github.com/dukepan/talkwire/internal/models"
)

// Type tags each Event variant. The numeric ordering is part of the
// wire protocol and must match the client's.
type Type int8

const (
	TypeJoinRoom Type = iota
	TypeLeaveRoom
	TypeChangeName
	TypeFetch
	TypePostMessage
	TypeUserJoined
	TypeUserLeft
	TypeUsernameChanged
	TypeHistory
	TypeError
	TypeLocalError
)

func (t Type) String() string {
	switch t {
	case TypeJoinRoom:
		return "join_room"
	case TypeLeaveRoom:
		return "leave_room"
	case TypeChangeName:
		return "change_name"
	case TypeFetch:
		return "fetch"
	case TypePostMessage:
		return "post_message"
	case TypeUserJoined:
		return "user_joined"
	case TypeUserLeft:
		return "user_left"
	case TypeUsernameChanged:
		return "username_changed"
	case TypeHistory:
		return "history"
	case TypeError:
		return "error"
	case TypeLocalError:
		return "local_error"
	default:
		return "unknown"
	}
}

// ServerToClient reports whether the variant only ever flows from the
// server to a client. Such events arriving on the inbound path are
// logged and ignored.
func (t Type) ServerToClient() bool {
	return t >= TypeUserJoined
}

// Kind is the small-integer tag stored in the events table kind_tag
// column.
type Kind int16

const (
	KindUserJoined      Kind = 0
	KindUserLeft        Kind = 1
	KindUsernameChanged Kind = 2
	KindError           Kind = 3
	KindPostMessage     Kind = 4
)

// Error codes carried in Error events, one per failure class surfaced
// to a client.
const (
	CodePublishFailed int32 = 1
	CodePersistFailed int32 = 2
	CodeFetchFailed   int32 = 3
)

// ChatMessage is the body of a PostMessage event. The 250-character
// limit on Text is enforced client-side.
type ChatMessage struct {
	User     uuid.UUID `msgpack:"user"`
	Username string    `msgpack:"username"`
	Text     string    `msgpack:"text"`
	Room     int32     `msgpack:"room"`
	Ts       uint64    `msgpack:"ts"`
}

// Event is the tagged union shared by both directions of the wire
// protocol. Type selects the variant; only the fields belonging to the
// variant are meaningful.
type Event struct {
	Type        Type         `msgpack:"type"`
	Room        int32        `msgpack:"room"`
	User        uuid.UUID    `msgpack:"user"`
	Username    string       `msgpack:"username"`
	OldUsername string       `msgpack:"old_username"`
	Ts          uint64       `msgpack:"ts"`
	Limit       int64        `msgpack:"limit"`
	FetchBefore uint64       `msgpack:"fetch_before"`
	Message     *ChatMessage `msgpack:"message"`
	History     []Event      `msgpack:"history"`
	Code        int32        `msgpack:"code"`
	Reason      string       `msgpack:"reason"`
}

// PersistKind maps the variant to its events-table tag. The second
// return is false for variants that never reach the durable store.
func (e *Event) PersistKind() (Kind, bool) {
	switch e.Type {
	case TypeUserJoined:
		return KindUserJoined, true
	case TypeUserLeft:
		return KindUserLeft, true
	case TypeUsernameChanged:
		return KindUsernameChanged, true
	case TypeError:
		return KindError, true
	case TypePostMessage:
		return KindPostMessage, true
	default:
		return 0, false
	}
}

func NewUserJoined(user uuid.UUID, username string, room int32, ts uint64) *Event {
	return &Event{Type: TypeUserJoined, User: user, Username: username, Room: room, Ts: ts}
}

func NewUserLeft(user uuid.UUID, username string, room int32, ts uint64) *Event {
	return &Event{Type: TypeUserLeft, User: user, Username: username, Room: room, Ts: ts}
}

func NewUsernameChanged(user uuid.UUID, newName, oldName string, ts uint64) *Event {
	return &Event{Type: TypeUsernameChanged, User: user, Username: newName, OldUsername: oldName, Ts: ts}
}

func NewHistory(events []Event) *Event {
	return &Event{Type: TypeHistory, History: events}
}

func NewError(code int32, reason string) *Event {
	return &Event{Type: TypeError, Code: code, Reason: reason}
}

// FromPersisted reconstructs the server-to-client event a stored row
// was written from. Rows with an unknown kind yield nil.
func FromPersisted(rec models.PersistedEvent) *Event {
	switch Kind(rec.Kind) {
	case KindUserJoined:
		return NewUserJoined(rec.User, rec.Username, rec.Room, uint64(rec.Ts))
	case KindUserLeft:
		return NewUserLeft(rec.User, rec.Username, rec.Room, uint64(rec.Ts))
	case KindUsernameChanged:
		return NewUsernameChanged(rec.User, rec.Username, rec.Text, uint64(rec.Ts))
	case KindPostMessage:
		return &Event{Type: TypePostMessage, Message: &ChatMessage{
			User:     rec.User,
			Username: rec.Username,
			Text:     rec.Text,
			Room:     rec.Room,
			Ts:       uint64(rec.Ts),
		}}
	case KindError:
		return NewError(0, rec.Text)
	default:
		return nil
	}
}
