package protocol

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/dukepan/talkwire/internal/models"
)

func modelEvent(user uuid.UUID, room int32, username, text string, ts int64, kind int16) models.PersistedEvent {
	return models.PersistedEvent{
		Room:     room,
		User:     user,
		Username: username,
		Text:     text,
		Ts:       ts,
		Kind:     kind,
	}
}

func TestPersistKind(t *testing.T) {
	cases := []struct {
		typ  Type
		kind Kind
		ok   bool
	}{
		{TypeUserJoined, KindUserJoined, true},
		{TypeUserLeft, KindUserLeft, true},
		{TypeUsernameChanged, KindUsernameChanged, true},
		{TypeError, KindError, true},
		{TypePostMessage, KindPostMessage, true},
		{TypeJoinRoom, 0, false},
		{TypeFetch, 0, false},
		{TypeHistory, 0, false},
		{TypeLocalError, 0, false},
	}
	for _, tc := range cases {
		ev := Event{Type: tc.typ}
		kind, ok := ev.PersistKind()
		assert.Equal(t, tc.ok, ok, tc.typ.String())
		if tc.ok {
			assert.Equal(t, tc.kind, kind, tc.typ.String())
		}
	}
}
