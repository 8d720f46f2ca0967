// Package users keeps the in-memory roster of joined connections and enforces
// per-room username uniqueness.
package users

import (
	"errors"
	"strings"
	"sync"
)

var (
	// ErrMissingFields is returned when the username or room is blank after trimming.
	ErrMissingFields = errors.New("Username and room are required!")
	// ErrUsernameInUse is returned when the username is already taken in the room.
	ErrUsernameInUse = errors.New("Username is in use")
	// ErrAlreadyJoined is returned when the connection already belongs to a room.
	ErrAlreadyJoined = errors.New("You have already joined a room")
)

// User is a joined connection. Username and Room keep the trimmed display form
// supplied at join time.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Room     string `json:"room"`
}

// RoomSummary describes an active room.
type RoomSummary struct {
	Room  string `json:"room"`
	Users int    `json:"users"`
}

type entry struct {
	user    User
	roomKey string
	nameKey string
}

// Registry maps connection ids to users. All methods are safe for concurrent
// use; each one runs under a single registry-wide lock.
type Registry struct {
	mu    sync.RWMutex
	order []*entry
	byID  map[string]*entry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[string]*entry),
	}
}

// RoomKey returns the identity used to compare room names.
func RoomKey(room string) string {
	return normalize(room)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// AddUser joins the connection id to room under username.
func (r *Registry) AddUser(id, username, room string) (User, error) {
	username = strings.TrimSpace(username)
	room = strings.TrimSpace(room)
	if username == "" || room == "" {
		return User{}, ErrMissingFields
	}

	e := &entry{
		user:    User{ID: id, Username: username, Room: room},
		roomKey: normalize(room),
		nameKey: normalize(username),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[id]; exists {
		return User{}, ErrAlreadyJoined
	}

	for _, other := range r.order {
		if other.roomKey == e.roomKey && other.nameKey == e.nameKey {
			return User{}, ErrUsernameInUse
		}
	}

	r.order = append(r.order, e)
	r.byID[id] = e
	return e.user, nil
}

// RemoveUser deletes the user for id and returns it. The boolean is false when
// id never joined or was already removed.
func (r *Registry) RemoveUser(id string) (User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return User{}, false
	}
	delete(r.byID, id)

	for i, candidate := range r.order {
		if candidate == e {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return e.user, true
}

// GetUser looks up the user for id.
func (r *Registry) GetUser(id string) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[id]
	if !ok {
		return User{}, false
	}
	return e.user, true
}

// UsersInRoom returns the members of room in join order. The result is never nil.
func (r *Registry) UsersInRoom(room string) []User {
	key := normalize(room)

	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]User, 0)
	for _, e := range r.order {
		if e.roomKey == key {
			members = append(members, e.user)
		}
	}
	return members
}

// Rooms lists the active rooms ordered by their oldest remaining member. The
// display name is taken from that member.
func (r *Registry) Rooms() []RoomSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	index := make(map[string]int)
	rooms := make([]RoomSummary, 0)
	for _, e := range r.order {
		if i, ok := index[e.roomKey]; ok {
			rooms[i].Users++
			continue
		}
		index[e.roomKey] = len(rooms)
		rooms = append(rooms, RoomSummary{Room: e.user.Room, Users: 1})
	}
	return rooms
}

// Count returns the number of joined users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
