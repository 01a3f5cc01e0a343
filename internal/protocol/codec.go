package protocol

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode serializes an event into the canonical field-named binary
// form carried inside one WebSocket binary frame.
func Encode(ev *Event) ([]byte, error) {
	data, err := msgpack.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	return data, nil
}

// Decode parses one frame back into an Event. Frames that are not a
// msgpack map or carry an out-of-range tag are rejected.
func Decode(frame []byte) (*Event, error) {
	var ev Event
	if err := msgpack.Unmarshal(frame, &ev); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if ev.Type < TypeJoinRoom || ev.Type > TypeLocalError {
		return nil, fmt.Errorf("decode frame: unknown event tag %d", ev.Type)
	}
	return &ev, nil
}
