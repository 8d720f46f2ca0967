package chat_test

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/messages"
	"github.com/Tyrowin/roomchat/internal/users"
)

var fixed = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

// delivery is one payload as received by one connection.
type delivery struct {
	event   string
	payload any
}

// recordingTransport resolves room broadcasts against its own subscriptions
// and keeps, per connection, everything that connection would have received.
type recordingTransport struct {
	rooms   map[string][]string
	inbox   map[string][]delivery
	emits   int
	roomOps int
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{
		rooms: make(map[string][]string),
		inbox: make(map[string][]delivery),
	}
}

func (t *recordingTransport) Subscribe(connID, room string) {
	t.rooms[room] = append(t.rooms[room], connID)
}

func (t *recordingTransport) Emit(connID, event string, payload any) {
	t.emits++
	t.inbox[connID] = append(t.inbox[connID], delivery{event, payload})
}

func (t *recordingTransport) BroadcastRoom(room, exceptID, event string, payload any) {
	t.roomOps++
	for _, id := range t.rooms[room] {
		if id == exceptID {
			continue
		}
		t.inbox[id] = append(t.inbox[id], delivery{event, payload})
	}
}

// leave mimics the hub dropping a closed connection from its rooms.
func (t *recordingTransport) leave(connID string) {
	for room, ids := range t.rooms {
		kept := ids[:0]
		for _, id := range ids {
			if id != connID {
				kept = append(kept, id)
			}
		}
		t.rooms[room] = kept
	}
}

func (t *recordingTransport) drain() {
	t.inbox = make(map[string][]delivery)
	t.emits = 0
	t.roomOps = 0
}

func (t *recordingTransport) total() int {
	n := 0
	for _, d := range t.inbox {
		n += len(d)
	}
	return n
}

type fixture struct {
	registry  *users.Registry
	transport *recordingTransport
	handler   *chat.Handler
}

func newFixture(filter chat.ProfanityFilter) *fixture {
	registry := users.NewRegistry()
	transport := newRecordingTransport()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	formatter := messages.NewFormatter(func() time.Time { return fixed })
	return &fixture{
		registry:  registry,
		transport: transport,
		handler:   chat.NewHandler(registry, formatter, transport, filter, logger),
	}
}

func (f *fixture) join(t *testing.T, id, username, room string) {
	t.Helper()
	require.NoError(t, f.handler.Join(id, chat.JoinRequest{Username: username, Room: room}))
}

func (f *fixture) disconnect(id string) {
	f.transport.leave(id)
	f.handler.Disconnect(id)
}

func adminMessage(text string) messages.Message {
	return messages.Message{Username: messages.AdminName, Text: text, CreatedAt: fixed.UnixMilli()}
}

// TestJoinScenario follows Bob into the lobby and a second Bob being turned away.
func TestJoinScenario(t *testing.T) {
	f := newFixture(nil)

	require.NoError(t, f.handler.Join("1", chat.JoinRequest{Username: "Bob", Room: "lobby"}))
	assert.Equal(t, []delivery{
		{chat.EventMessage, adminMessage("Welcome!")},
		{chat.EventRoomData, chat.RoomData{Room: "lobby", Users: []string{"Bob"}}},
	}, f.transport.inbox["1"])

	f.transport.drain()
	err := f.handler.Join("2", chat.JoinRequest{Username: "Bob", Room: "lobby"})
	require.ErrorIs(t, err, users.ErrUsernameInUse)
	assert.Equal(t, "Username is in use", err.Error())
	assert.Zero(t, f.transport.total())
	assert.Zero(t, f.transport.emits)
	assert.Equal(t, []string{"1"}, f.transport.rooms["lobby"], "failed join must not subscribe")
}

func TestJoinNotifiesExistingMembers(t *testing.T) {
	f := newFixture(nil)
	f.join(t, "1", "Alice", "Lobby")
	f.transport.drain()

	f.join(t, "2", "Bob", "lobby")

	roster := chat.RoomData{Room: "lobby", Users: []string{"Alice", "Bob"}}
	assert.Equal(t, []delivery{
		{chat.EventMessage, adminMessage("Bob has joined!")},
		{chat.EventRoomData, roster},
	}, f.transport.inbox["1"])
	assert.Equal(t, []delivery{
		{chat.EventMessage, adminMessage("Welcome!")},
		{chat.EventRoomData, roster},
	}, f.transport.inbox["2"])
}

func TestJoinValidation(t *testing.T) {
	f := newFixture(nil)

	err := f.handler.Join("1", chat.JoinRequest{Username: "  ", Room: "lobby"})
	require.ErrorIs(t, err, users.ErrMissingFields)
	assert.Equal(t, chat.KindValidation, chat.KindOf(err))
	assert.Zero(t, f.transport.total())
	assert.Empty(t, f.transport.rooms)
}

func TestSecondJoinIsRejected(t *testing.T) {
	f := newFixture(nil)
	f.join(t, "1", "Alice", "lobby")
	f.transport.drain()

	err := f.handler.Join("1", chat.JoinRequest{Username: "Alice", Room: "kitchen"})
	require.ErrorIs(t, err, users.ErrAlreadyJoined)
	assert.Equal(t, chat.KindConflict, chat.KindOf(err))
	assert.Zero(t, f.transport.total())
	assert.NotContains(t, f.transport.rooms, "kitchen")
}

func TestSendMessageReachesWholeRoomOnly(t *testing.T) {
	f := newFixture(nil)
	f.join(t, "1", "Alice", "lobby")
	f.join(t, "2", "Bob", "lobby")
	f.join(t, "3", "Carol", "kitchen")
	f.transport.drain()

	require.NoError(t, f.handler.SendMessage("1", chat.SendMessageRequest{Message: "hi all"}))

	want := []delivery{{chat.EventMessage, messages.Message{Username: "Alice", Text: "hi all", CreatedAt: fixed.UnixMilli()}}}
	assert.Equal(t, want, f.transport.inbox["1"])
	assert.Equal(t, want, f.transport.inbox["2"])
	assert.Empty(t, f.transport.inbox["3"])
}

func TestSendMessageProfanity(t *testing.T) {
	filter := chat.FilterFunc(func(text string) bool {
		return strings.Contains(strings.ToLower(text), "darn")
	})
	f := newFixture(filter)
	f.join(t, "1", "Alice", "lobby")
	f.join(t, "2", "Bob", "lobby")
	f.transport.drain()

	err := f.handler.SendMessage("1", chat.SendMessageRequest{Message: "well DARN it"})
	require.ErrorIs(t, err, chat.ErrProfanity)
	assert.Equal(t, "Profanity is not allowed!", err.Error())
	assert.Equal(t, chat.KindProfanity, chat.KindOf(err))
	assert.Zero(t, f.transport.total())
}

func TestSendMessageBeforeJoin(t *testing.T) {
	f := newFixture(nil)

	err := f.handler.SendMessage("ghost", chat.SendMessageRequest{Message: "hello?"})
	require.ErrorIs(t, err, chat.ErrNotJoined)
	assert.Equal(t, chat.KindNotJoined, chat.KindOf(err))

	err = f.handler.SendLocation("ghost", chat.SendLocationRequest{Lat: ptr(1), Lng: ptr(2)})
	require.ErrorIs(t, err, chat.ErrNotJoined)
	assert.Zero(t, f.transport.total())
}

func TestSendEmptyMessage(t *testing.T) {
	f := newFixture(nil)
	f.join(t, "1", "Alice", "lobby")
	f.transport.drain()

	err := f.handler.SendMessage("1", chat.SendMessageRequest{Message: "   "})
	require.ErrorIs(t, err, chat.ErrEmptyMessage)
	assert.Zero(t, f.transport.total())
}

func ptr(v float64) *float64 { return &v }

func TestSendLocation(t *testing.T) {
	f := newFixture(nil)
	f.join(t, "1", "Alice", "lobby")
	f.join(t, "2", "Bob", "lobby")
	f.transport.drain()

	require.NoError(t, f.handler.SendLocation("1", chat.SendLocationRequest{Lat: ptr(40.7), Lng: ptr(-74.0)}))

	want := []delivery{{chat.EventLocationMessage, messages.LocationMessage{
		Username:  "Alice",
		URL:       "https://google.com/maps?q=40.7,-74",
		CreatedAt: fixed.UnixMilli(),
	}}}
	assert.Equal(t, want, f.transport.inbox["1"])
	assert.Equal(t, want, f.transport.inbox["2"])
}

func TestSendLocationValidation(t *testing.T) {
	tests := []struct {
		name string
		req  chat.SendLocationRequest
	}{
		{"missing both", chat.SendLocationRequest{}},
		{"missing lng", chat.SendLocationRequest{Lat: ptr(1)}},
		{"missing lat", chat.SendLocationRequest{Lng: ptr(1)}},
		{"lat out of range", chat.SendLocationRequest{Lat: ptr(91), Lng: ptr(0)}},
		{"lng out of range", chat.SendLocationRequest{Lat: ptr(0), Lng: ptr(-180.5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(nil)
			f.join(t, "1", "Alice", "lobby")
			f.transport.drain()

			err := f.handler.SendLocation("1", tt.req)
			require.ErrorIs(t, err, chat.ErrInvalidLocation)
			assert.Equal(t, chat.KindValidation, chat.KindOf(err))
			assert.Zero(t, f.transport.total())
		})
	}
}

func TestDisconnectAfterJoin(t *testing.T) {
	f := newFixture(nil)
	f.join(t, "1", "Alice", "lobby")
	f.join(t, "2", "Bob", "lobby")
	f.transport.drain()

	f.disconnect("2")

	assert.Equal(t, []delivery{
		{chat.EventMessage, adminMessage("Bob has left!")},
		{chat.EventRoomData, chat.RoomData{Room: "lobby", Users: []string{"Alice"}}},
	}, f.transport.inbox["1"])
	assert.Empty(t, f.transport.inbox["2"])
	assert.Equal(t, 2, f.transport.roomOps)

	_, ok := f.registry.GetUser("2")
	assert.False(t, ok)
}

func TestDisconnectWithoutJoin(t *testing.T) {
	f := newFixture(nil)
	f.join(t, "1", "Alice", "lobby")
	f.transport.drain()

	f.disconnect("never-joined")
	assert.Zero(t, f.transport.total())
	assert.Zero(t, f.transport.roomOps)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	f := newFixture(nil)
	f.join(t, "1", "Alice", "lobby")
	f.join(t, "2", "Bob", "lobby")

	f.disconnect("2")
	f.transport.drain()
	f.disconnect("2")
	assert.Zero(t, f.transport.total())
}

func TestLastMemberLeaving(t *testing.T) {
	f := newFixture(nil)
	f.join(t, "1", "Alice", "lobby")
	f.transport.drain()

	f.disconnect("1")
	assert.Zero(t, f.transport.total())
	assert.Empty(t, f.registry.UsersInRoom("lobby"))
}

func TestDefaultProfanityFilter(t *testing.T) {
	filter := chat.NewProfanityFilter()
	assert.True(t, filter.IsProfane("what the fuck"))
	assert.False(t, filter.IsProfane("good morning everyone"))
}
