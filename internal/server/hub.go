package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/config"
)

// Hub owns every live WebSocket client and the room subscriptions used for
// broadcasting. Registration and unregistration are serialized through Run;
// delivery methods may be called from any goroutine.
type Hub struct {
	clients    map[string]*Client
	rooms      map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	events     EventHandler
	cfg        config.Config
	logger     *slog.Logger
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	running    atomic.Bool
}

var _ chat.Transport = (*Hub)(nil)

// NewHub creates a Hub. SetEventHandler must be called before Run.
func NewHub(cfg config.Config, logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		cfg:        config.Sanitize(cfg),
		logger:     logger.With(slog.String("component", "hub")),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// SetEventHandler sets the consumer of client events and disconnects.
func (h *Hub) SetEventHandler(events EventHandler) {
	h.events = events
}

// Register hands a new client to the hub, which then starts its pumps. The
// connection is closed instead when the hub is shutting down.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		client.closeConnection()
	}
}

func (h *Hub) unregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// ClientCount returns the number of attached clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Run starts the hub's main event loop, handling client registration and
// unregistration. It returns once Shutdown is called.
func (h *Hub) Run() {
	h.running.Store(true)
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.logger.Warn("Received nil client registration; skipping")
				continue
			}
			if h.ctx.Err() != nil {
				client.closeConnection()
				continue
			}
			h.addClient(client)
			h.startPumps(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()

	client.logger.Info("Client registered", slog.Int("clients", clientCount))
}

func (h *Hub) startPumps(client *Client) {
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// removeClient detaches the client, closes its send channel if eviction has
// not done so already, and reports the disconnect exactly once.
func (h *Hub) removeClient(client *Client) {
	h.mutex.Lock()
	attached := h.detachLocked(client)
	clientCount := len(h.clients)
	h.mutex.Unlock()

	if attached {
		close(client.send)
		client.logger.Info("Client unregistered", slog.Int("clients", clientCount))
	}

	client.disconnectOnce.Do(func() {
		if h.events != nil {
			h.events.Disconnect(client.id)
		}
	})
}

// detachLocked removes client from the client map and every room. It reports
// whether the client was still attached. Callers hold h.mutex.
func (h *Hub) detachLocked(client *Client) bool {
	if current, ok := h.clients[client.id]; !ok || current != client {
		return false
	}
	delete(h.clients, client.id)
	client.closed = true

	for room := range client.rooms {
		members := h.rooms[room]
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	client.rooms = nil
	return true
}

// Subscribe adds the connection to a room's broadcast group.
func (h *Hub) Subscribe(connID, room string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	client, ok := h.clients[connID]
	if !ok {
		h.logger.Debug("Subscribe for unknown connection", slog.String("connID", connID), slog.String("room", room))
		return
	}

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[client] = struct{}{}
	if client.rooms == nil {
		client.rooms = make(map[string]struct{})
	}
	client.rooms[room] = struct{}{}
}

// Emit delivers an event to one connection.
func (h *Hub) Emit(connID, event string, payload any) {
	message, ok := h.encode(chat.Frame{Event: event, Payload: payload})
	if !ok {
		return
	}

	h.mutex.RLock()
	client, exists := h.clients[connID]
	h.mutex.RUnlock()
	if !exists {
		return
	}

	if !h.safeSend(client, message) {
		h.removeFailedClients([]*Client{client})
	}
}

// BroadcastRoom delivers an event to every subscriber of room except exceptID.
// A recipient whose buffer is full is evicted; the others still get the event.
func (h *Hub) BroadcastRoom(room, exceptID, event string, payload any) {
	message, ok := h.encode(chat.Frame{Event: event, Payload: payload})
	if !ok {
		return
	}

	clients := h.getRoomSnapshot(room)
	h.logger.Debug("Broadcasting to room", slog.String("room", room), slog.String("event", event), slog.Int("clients", len(clients)))

	var clientsToRemove []*Client
	for _, client := range clients {
		if exceptID != "" && client.id == exceptID {
			continue
		}
		if !h.safeSend(client, message) {
			clientsToRemove = append(clientsToRemove, client)
		}
	}
	h.removeFailedClients(clientsToRemove)
}

func (h *Hub) encode(frame chat.Frame) ([]byte, bool) {
	message, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("Failed to encode frame", slog.String("event", frame.Event), slog.Any("error", err))
		return nil, false
	}
	return message, true
}

// getRoomSnapshot returns a thread-safe snapshot of the room's subscribers.
func (h *Hub) getRoomSnapshot(room string) []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	members := h.rooms[room]
	clients := make([]*Client, 0, len(members))
	for client := range members {
		clients = append(clients, client)
	}
	return clients
}

// safeSend queues message without blocking. It reports false only when the
// client is attached but its buffer is full.
func (h *Hub) safeSend(client *Client, message []byte) bool {
	// Hold the lock during the send so the channel cannot be closed underneath us.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if current, exists := h.clients[client.id]; !exists || current != client || client.closed {
		return true
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// removeFailedClients evicts slow clients. Closing the send channel makes the
// write pump close the socket, which ends the read pump and unregisters the
// client through the normal path.
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if h.detachLocked(client) {
			channelsToClose = append(channelsToClose, client.send)
			client.logger.Warn("Client removed due to full send buffer")
		}
	}
	h.mutex.Unlock()

	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownClients closes every client connection; the pumps then exit on their own.
func (h *Hub) shutdownClients() {
	h.logger.Info("Shutting down all client connections...")

	h.mutex.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.RUnlock()

	for _, client := range clients {
		client.closeConnection()
	}

	h.logger.Info("Closed client connections", slog.Int("count", len(clients)))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or context.DeadlineExceeded when the timeout is reached first. A hub whose Run
// loop never started has no clients and returns immediately.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("Initiating hub shutdown...")

	h.cancel()
	if !h.running.Load() {
		h.logger.Info("Hub was not running; nothing to shut down")
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.done:
	case <-timer.C:
		h.logger.Warn("Hub shutdown timeout reached before the run loop exited")
		return context.DeadlineExceeded
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("Hub shutdown completed successfully")
		return nil
	case <-timer.C:
		h.logger.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
