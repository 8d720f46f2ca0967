package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Client to server events.
const (
	EventJoin         = "join"
	EventSendMessage  = "sendMessage"
	EventSendLocation = "sendLocation"
)

// Server to client events.
const (
	EventMessage         = "message"
	EventLocationMessage = "locationMessage"
	EventRoomData        = "roomData"
	EventAck             = "ack"
)

// Envelope is a frame received from a client. Ack is echoed back in the
// acknowledgment so the client can match it to its request.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Ack     *uint64         `json:"ack,omitempty"`
}

// Frame is a frame sent to a client.
type Frame struct {
	Event   string  `json:"event"`
	Payload any     `json:"payload,omitempty"`
	Ack     *uint64 `json:"ack,omitempty"`
}

// JoinRequest is the payload of a join event.
type JoinRequest struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

// SendMessageRequest is the payload of a sendMessage event.
type SendMessageRequest struct {
	Message string `json:"message"`
}

// SendLocationRequest is the payload of a sendLocation event. Pointers tell a
// missing coordinate apart from zero.
type SendLocationRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// RoomData is the roster of a room.
type RoomData struct {
	Room  string   `json:"room"`
	Users []string `json:"users"`
}

// AckError is the payload of a failed acknowledgment.
type AckError struct {
	Error string `json:"error"`
	Kind  Kind   `json:"kind"`
}

// Decode parses a raw client frame.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if env.Event == "" {
		return env, fmt.Errorf("%w: missing event name", ErrInvalidPayload)
	}
	return env, nil
}

// NewAck builds the acknowledgment for a request. A nil err acknowledges
// success and carries no payload.
func NewAck(ack *uint64, err error) Frame {
	frame := Frame{Event: EventAck, Ack: ack}
	if err != nil {
		frame.Payload = AckError{Error: err.Error(), Kind: KindOf(err)}
	}
	return frame
}

func decodePayload(raw json.RawMessage, v any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return json.Unmarshal(raw, v)
}
