package room

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Registry holds every room for the lifetime of the process.
//
// The room map is guarded by mu. Membership, names and messages of a
// room are guarded by that room's own lock, so callers working on
// different rooms only share the brief map lookup.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*entry
	log   *slog.Logger
	now   func() time.Time
}

type entry struct {
	mu           sync.RWMutex
	id           string
	name         string
	createdAt    time.Time
	participants []string
	names        map[string]*string
	messages     []Message
	deleted      bool
}

// NewRegistry creates an empty registry. A nil logger discards logs.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		rooms: make(map[string]*entry),
		log:   log,
		now:   time.Now,
	}
}

// CreateRoom registers a new room under a fresh identifier. The name
// must be non-empty; trimming and other input rules belong to the caller.
func (r *Registry) CreateRoom(name string) (Room, error) {
	if name == "" {
		return Room{}, fmt.Errorf("room name is required: %w", ErrValidation)
	}

	e := &entry{
		id:        uuid.NewString(),
		name:      name,
		createdAt: r.now(),
		names:     make(map[string]*string),
		messages:  []Message{},
	}

	created := e.snapshot()

	r.mu.Lock()
	r.rooms[e.id] = e
	r.mu.Unlock()

	r.log.Info("Room created", "roomID", e.id, "name", name)
	return created, nil
}

// GetRoom returns a snapshot of the room, or false if it does not exist.
func (r *Registry) GetRoom(id string) (Room, bool) {
	e, ok := r.lookup(id)
	if !ok {
		return Room{}, false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.deleted {
		return Room{}, false
	}
	return e.snapshot(), true
}

// ListRooms returns a snapshot of every room. Order is unspecified.
func (r *Registry) ListRooms() []Room {
	rooms := make([]Room, 0, r.Len())
	for _, e := range r.entries() {
		e.mu.RLock()
		if !e.deleted {
			rooms = append(rooms, e.snapshot())
		}
		e.mu.RUnlock()
	}
	return rooms
}

// Len returns the number of rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// DeleteRoom removes the room and reports whether it existed. Nobody is
// notified here.
func (r *Registry) DeleteRoom(id string) bool {
	_, ok := r.Remove(id)
	return ok
}

// Remove deletes the room like DeleteRoom and also returns the room as it
// stood at the moment of deletion, so callers can tell its last members.
func (r *Registry) Remove(id string) (Room, bool) {
	r.mu.Lock()
	e, ok := r.rooms[id]
	if ok {
		delete(r.rooms, id)
	}
	r.mu.Unlock()

	if !ok {
		return Room{}, false
	}

	// Writers that loaded the entry before it left the map see the mark
	// and back off.
	e.mu.Lock()
	e.deleted = true
	last := e.snapshot()
	e.mu.Unlock()

	r.log.Info("Room deleted", "roomID", id, "participants", len(last.Participants))
	return last, true
}

// JoinRoom adds the connection to the room and stores its display name,
// overwriting any previous one. Joining again does not duplicate the
// participant. It returns the room as it stands after the join, or false
// if the room does not exist.
func (r *Registry) JoinRoom(roomID, connectionID string, name *string) (Room, bool) {
	return r.mutate(roomID, func(e *entry) bool {
		if _, member := e.names[connectionID]; !member {
			e.participants = append(e.participants, connectionID)
			r.log.Debug("Participant joined", "roomID", roomID, "connectionID", connectionID)
		}
		e.names[connectionID] = cloneName(name)
		return true
	})
}

// LeaveRoom removes the connection from the room. Leaving a room the
// connection is not part of is a no-op that still reports true; false
// means the room does not exist.
func (r *Registry) LeaveRoom(roomID, connectionID string) (Room, bool) {
	snap, _, ok := r.RemoveParticipant(roomID, connectionID)
	return snap, ok
}

// RemoveParticipant is LeaveRoom that also reports whether the connection
// was a participant, and so whether membership changed.
func (r *Registry) RemoveParticipant(roomID, connectionID string) (snap Room, removed, ok bool) {
	snap, ok = r.mutate(roomID, func(e *entry) bool {
		if _, member := e.names[connectionID]; member {
			delete(e.names, connectionID)
			e.participants = lo.Without(e.participants, connectionID)
			removed = true
			r.log.Debug("Participant left", "roomID", roomID, "connectionID", connectionID)
		}
		return true
	})
	return snap, removed, ok
}

// UpdateParticipantName overwrites the display name of a current
// participant. A nil name makes the participant anonymous. It returns
// false if the room is missing or the connection is not a participant.
func (r *Registry) UpdateParticipantName(roomID, connectionID string, name *string) (Room, bool) {
	return r.mutate(roomID, func(e *entry) bool {
		if _, member := e.names[connectionID]; !member {
			return false
		}
		e.names[connectionID] = cloneName(name)
		return true
	})
}

// AddMessage appends a message to the room's log. The body is stored as
// given.
func (r *Registry) AddMessage(roomID, connectionID, body string) (Message, bool) {
	msg, _, ok := r.PostMessage(roomID, connectionID, body)
	return msg, ok
}

// PostMessage is AddMessage that also returns the room as it stood right
// after the append. Its participants are exactly the members the message
// is new to: anyone joining later finds it in the log instead.
func (r *Registry) PostMessage(roomID, connectionID, body string) (Message, Room, bool) {
	var msg Message
	snap, ok := r.mutate(roomID, func(e *entry) bool {
		msg = Message{
			ID:                 newMessageID(),
			RoomID:             roomID,
			SenderConnectionID: connectionID,
			Body:               body,
			Timestamp:          r.now(),
		}
		e.messages = append(e.messages, msg)
		return true
	})
	if !ok {
		return Message{}, Room{}, false
	}
	return msg, snap, true
}

// ParticipantsWithNames returns the room's participants in join order.
func (r *Registry) ParticipantsWithNames(roomID string) ([]Participant, bool) {
	room, ok := r.GetRoom(roomID)
	if !ok {
		return nil, false
	}
	return room.Participants, true
}

// Messages returns the room's full message log in arrival order.
func (r *Registry) Messages(roomID string) ([]Message, bool) {
	room, ok := r.GetRoom(roomID)
	if !ok {
		return nil, false
	}
	return room.Messages, true
}

// RecentMessages returns the last n messages of the room in arrival
// order, or all of them if the log is shorter.
func (r *Registry) RecentMessages(roomID string, n int) ([]Message, bool) {
	msgs, ok := r.Messages(roomID)
	if !ok {
		return nil, false
	}
	return Tail(msgs, n), true
}

// RoomsOf returns the IDs of every room the connection currently
// participates in.
func (r *Registry) RoomsOf(connectionID string) []string {
	var ids []string
	for _, e := range r.entries() {
		e.mu.RLock()
		_, member := e.names[connectionID]
		if member && !e.deleted {
			ids = append(ids, e.id)
		}
		e.mu.RUnlock()
	}
	return ids
}

// Tail returns the last n messages of msgs, keeping their order.
func Tail(msgs []Message, n int) []Message {
	if n < 0 {
		n = 0
	}
	if n > len(msgs) {
		n = len(msgs)
	}
	return msgs[len(msgs)-n:]
}

func (r *Registry) lookup(id string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rooms[id]
	return e, ok
}

func (r *Registry) entries() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.rooms)
}

// mutate runs fn under the room's write lock and returns the resulting
// snapshot. fn returning false leaves the room untouched and reports
// false.
func (r *Registry) mutate(roomID string, fn func(e *entry) bool) (Room, bool) {
	e, ok := r.lookup(roomID)
	if !ok {
		return Room{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return Room{}, false
	}
	if !fn(e) {
		return Room{}, false
	}
	return e.snapshot(), true
}

// snapshot must be called with e.mu held.
func (e *entry) snapshot() Room {
	participants := make([]Participant, len(e.participants))
	for i, id := range e.participants {
		participants[i] = Participant{ConnectionID: id, Name: cloneName(e.names[id])}
	}

	// The log is append-only and messages are immutable, so the capped
	// slice can be shared with readers.
	n := len(e.messages)
	return Room{
		ID:           e.id,
		Name:         e.name,
		Participants: participants,
		Messages:     e.messages[:n:n],
		CreatedAt:    e.createdAt,
	}
}

func cloneName(name *string) *string {
	if name == nil {
		return nil
	}
	return lo.ToPtr(*name)
}

func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
