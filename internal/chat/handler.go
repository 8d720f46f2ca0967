// Package chat implements the per-connection event lifecycle of the relay:
// joining a room, sending text and location messages, and leaving.
//
// The Handler never touches sockets. It talks to a Transport that knows how to
// reach one connection or every connection subscribed to a room, which keeps
// the routing rules testable without a network.
package chat

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/Tyrowin/roomchat/internal/messages"
	"github.com/Tyrowin/roomchat/internal/users"
)

// Transport delivers events to connections. Room arguments are room keys as
// returned by users.RoomKey.
type Transport interface {
	// Subscribe adds the connection to the room's broadcast group.
	Subscribe(connID, room string)
	// Emit delivers an event to a single connection.
	Emit(connID, event string, payload any)
	// BroadcastRoom delivers an event to every subscriber of room except
	// exceptID. An empty exceptID reaches the whole room.
	BroadcastRoom(room, exceptID, event string, payload any)
}

// Handler coordinates the user registry, the message formatter and the
// transport for every connection.
type Handler struct {
	registry  *users.Registry
	formatter *messages.Formatter
	transport Transport
	filter    ProfanityFilter
	logger    *slog.Logger

	// membership serializes registry changes with the roster broadcast that
	// follows them, so the last roomData a member receives is current.
	membership sync.Mutex
}

// NewHandler wires a Handler. A nil filter accepts every message.
func NewHandler(registry *users.Registry, formatter *messages.Formatter, transport Transport, filter ProfanityFilter, logger *slog.Logger) *Handler {
	if filter == nil {
		filter = FilterFunc(func(string) bool { return false })
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry:  registry,
		formatter: formatter,
		transport: transport,
		filter:    filter,
		logger:    logger.With(slog.String("component", "chat_handler")),
	}
}

// HandleEvent dispatches a decoded client frame to the matching handler.
func (h *Handler) HandleEvent(connID string, env Envelope) error {
	switch env.Event {
	case EventJoin:
		var req JoinRequest
		if err := decodePayload(env.Payload, &req); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return h.Join(connID, req)

	case EventSendMessage:
		var req SendMessageRequest
		if err := decodePayload(env.Payload, &req); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return h.SendMessage(connID, req)

	case EventSendLocation:
		var req SendLocationRequest
		if err := decodePayload(env.Payload, &req); err != nil {
			return ErrInvalidLocation
		}
		return h.SendLocation(connID, req)

	default:
		h.logger.Warn("Received unknown event", slog.String("event", env.Event), slog.String("connID", connID))
		return fmt.Errorf("%w %q", ErrUnknownEvent, env.Event)
	}
}

// Join adds the connection to a room and announces it.
func (h *Handler) Join(connID string, req JoinRequest) error {
	h.membership.Lock()
	defer h.membership.Unlock()

	user, err := h.registry.AddUser(connID, req.Username, req.Room)
	if err != nil {
		h.logger.Debug("Join rejected", slog.String("connID", connID), slog.Any("error", err))
		return err
	}

	room := users.RoomKey(user.Room)
	h.transport.Subscribe(connID, room)

	h.transport.Emit(connID, EventMessage,
		h.formatter.GenerateMessage(messages.AdminName, "Welcome!"))
	h.transport.BroadcastRoom(room, connID, EventMessage,
		h.formatter.GenerateMessage(messages.AdminName, user.Username+" has joined!"))
	h.transport.BroadcastRoom(room, "", EventRoomData, h.roomData(user.Room))

	h.logger.Info("User joined", slog.String("connID", connID), slog.String("username", user.Username), slog.String("room", user.Room))
	return nil
}

// SendMessage relays text to every member of the sender's room, the sender included.
func (h *Handler) SendMessage(connID string, req SendMessageRequest) error {
	user, ok := h.registry.GetUser(connID)
	if !ok {
		return ErrNotJoined
	}
	if strings.TrimSpace(req.Message) == "" {
		return ErrEmptyMessage
	}
	if h.filter.IsProfane(req.Message) {
		return ErrProfanity
	}

	h.transport.BroadcastRoom(users.RoomKey(user.Room), "", EventMessage,
		h.formatter.GenerateMessage(user.Username, req.Message))
	return nil
}

// SendLocation relays a map link for the given coordinates to the sender's room.
func (h *Handler) SendLocation(connID string, req SendLocationRequest) error {
	user, ok := h.registry.GetUser(connID)
	if !ok {
		return ErrNotJoined
	}
	if !validCoordinate(req.Lat, 90) || !validCoordinate(req.Lng, 180) {
		return ErrInvalidLocation
	}

	url := messages.LocationURL(*req.Lat, *req.Lng)
	h.transport.BroadcastRoom(users.RoomKey(user.Room), "", EventLocationMessage,
		h.formatter.GenerateLocationMessage(user.Username, url))
	return nil
}

// Disconnect removes the connection and notifies its room. It is a no-op for
// connections that never joined and safe to call more than once.
func (h *Handler) Disconnect(connID string) {
	h.membership.Lock()
	defer h.membership.Unlock()

	user, ok := h.registry.RemoveUser(connID)
	if !ok {
		return
	}

	room := users.RoomKey(user.Room)
	h.transport.BroadcastRoom(room, connID, EventMessage,
		h.formatter.GenerateMessage(messages.AdminName, user.Username+" has left!"))
	h.transport.BroadcastRoom(room, connID, EventRoomData, h.roomData(user.Room))

	h.logger.Info("User left", slog.String("connID", connID), slog.String("username", user.Username), slog.String("room", user.Room))
}

func (h *Handler) roomData(room string) RoomData {
	members := h.registry.UsersInRoom(room)
	names := make([]string, 0, len(members))
	for _, u := range members {
		names = append(names, u.Username)
	}
	return RoomData{Room: room, Users: names}
}

func validCoordinate(v *float64, limit float64) bool {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return false
	}
	return math.Abs(*v) <= limit
}
