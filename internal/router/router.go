// Package router turns inbound client events into registry changes and
// computes the notifications each change produces, with their recipients
// resolved.
package router

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/Tyrowin/gochat-rooms/internal/room"
)

// Rooms is the registry surface the router relies on.
type Rooms interface {
	CreateRoom(name string) (room.Room, error)
	GetRoom(id string) (room.Room, bool)
	Remove(id string) (room.Room, bool)
	JoinRoom(roomID, connectionID string, name *string) (room.Room, bool)
	RemoveParticipant(roomID, connectionID string) (snap room.Room, removed, ok bool)
	PostMessage(roomID, connectionID, body string) (room.Message, room.Room, bool)
	UpdateParticipantName(roomID, connectionID string, name *string) (room.Room, bool)
	RoomsOf(connectionID string) []string
}

// Error messages sent back to the requesting connection.
const (
	msgRoomNotFound   = "Room not found"
	msgSendFailed     = "Could not send the message"
	msgNotParticipant = "You are not a participant of this room"
	msgInvalidPayload = "Invalid payload"
	msgUnknownEvent   = "Unknown event"
)

// Router applies client events to the registry. It holds no state of its
// own and is safe for concurrent use.
type Router struct {
	rooms    Rooms
	observer Observer
	validate *validator.Validate
	log      *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithObserver reports state changes to o.
func WithObserver(o Observer) Option {
	return func(r *Router) {
		if o != nil {
			r.observer = o
		}
	}
}

// New creates a Router on top of rooms.
func New(rooms Rooms, log *slog.Logger, opts ...Option) *Router {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	r := &Router{
		rooms:    rooms,
		observer: nopObserver{},
		validate: validator.New(),
		log:      log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dispatch decodes data according to event and handles it on behalf of
// connectionID.
func (r *Router) Dispatch(connectionID, event string, data json.RawMessage) []Outbound {
	switch event {
	case EventJoinRoom:
		return decodeAndHandle(r, connectionID, event, data, r.Join)
	case EventLeaveRoom:
		return decodeAndHandle(r, connectionID, event, data, r.Leave)
	case EventSendMessage:
		return decodeAndHandle(r, connectionID, event, data, r.SendMessage)
	case EventUpdateName:
		return decodeAndHandle(r, connectionID, event, data, r.UpdateName)
	case EventGetRoomInfo:
		return decodeAndHandle(r, connectionID, event, data, r.RoomInfo)
	default:
		r.log.Warn("Unknown event", "connectionID", connectionID, "event", event)
		return Reject(connectionID, fmt.Sprintf("%s: %q", msgUnknownEvent, event))
	}
}

func decodeAndHandle[T any](r *Router, connectionID, event string, data json.RawMessage, handle func(string, T) []Outbound) []Outbound {
	var req T
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			r.log.Warn("Malformed payload", "connectionID", connectionID, "event", event, "error", err)
			return Reject(connectionID, fmt.Sprintf("%s for %s", msgInvalidPayload, event))
		}
	}
	return handle(connectionID, req)
}

// Connect greets a new connection with its identifier.
func (r *Router) Connect(connectionID string) []Outbound {
	r.observer.ClientConnected(connectionID)
	return []Outbound{toActor(connectionID, "", EventConnected, ConnectedPayload{ClientID: connectionID})}
}

// Join adds the connection to a room. The joiner gets the room snapshot
// with its recent messages, the other members get a join notice.
func (r *Router) Join(connectionID string, req JoinRequest) []Outbound {
	if out, ok := r.check(connectionID, EventJoinRoom, req); !ok {
		return out
	}

	snap, ok := r.rooms.JoinRoom(req.RoomID, connectionID, req.Name)
	if !ok {
		r.log.Warn("Join on unknown room", "connectionID", connectionID, "roomID", req.RoomID)
		return Reject(connectionID, msgRoomNotFound)
	}
	r.observer.ParticipantJoined(snap.ID, connectionID)
	r.log.Info("Client joined room", "connectionID", connectionID, "roomID", snap.ID, "participants", len(snap.Participants))

	out := []Outbound{toActor(connectionID, snap.ID, EventJoinedRoom, JoinedRoomPayload{
		RoomID:         snap.ID,
		RoomName:       snap.Name,
		Participants:   snap.Participants,
		RecentMessages: room.Tail(snap.Messages, RecentMessageLimit),
	})}
	return appendIfAny(out, toOthers(snap, connectionID, EventUserJoined, UserJoinedPayload{
		ClientID:         connectionID,
		RoomID:           snap.ID,
		RoomName:         snap.Name,
		ParticipantName:  req.Name,
		ParticipantCount: len(snap.Participants),
	}))
}

// Leave removes the connection from a room. Leaving an unknown room
// produces nothing.
func (r *Router) Leave(connectionID string, req LeaveRequest) []Outbound {
	if out, ok := r.check(connectionID, EventLeaveRoom, req); !ok {
		return out
	}

	snap, removed, ok := r.rooms.RemoveParticipant(req.RoomID, connectionID)
	if !ok {
		r.log.Debug("Leave on unknown room", "connectionID", connectionID, "roomID", req.RoomID)
		return nil
	}
	if removed {
		r.observer.ParticipantLeft(snap.ID, connectionID)
	}
	r.log.Info("Client left room", "connectionID", connectionID, "roomID", snap.ID, "wasMember", removed)

	out := []Outbound{toActor(connectionID, snap.ID, EventLeftRoom, LeftRoomPayload{RoomID: snap.ID})}
	return appendIfAny(out, userLeft(snap, connectionID))
}

// SendMessage appends a message to the room and sends it to the members
// present at the append.
func (r *Router) SendMessage(connectionID string, req SendMessageRequest) []Outbound {
	if out, ok := r.check(connectionID, EventSendMessage, req); !ok {
		return out
	}

	msg, snap, ok := r.rooms.PostMessage(req.RoomID, connectionID, req.Message)
	if !ok {
		r.log.Warn("Message to unknown room", "connectionID", connectionID, "roomID", req.RoomID)
		return Reject(connectionID, msgSendFailed)
	}
	r.observer.MessageSent(msg)
	r.log.Debug("Message sent", "connectionID", connectionID, "roomID", msg.RoomID, "messageID", msg.ID)

	return appendIfAny(nil, Outbound{
		Scope:  ScopeAll,
		Event:  EventNewMessage,
		RoomID: msg.RoomID,
		Payload: NewMessagePayload{
			ID:        msg.ID,
			ClientID:  msg.SenderConnectionID,
			Message:   msg.Body,
			Timestamp: msg.Timestamp,
			RoomID:    msg.RoomID,
		},
		Recipients: snap.ParticipantIDs(),
	})
}

// UpdateName changes the display name of a current participant and
// tells every member.
func (r *Router) UpdateName(connectionID string, req UpdateNameRequest) []Outbound {
	if out, ok := r.check(connectionID, EventUpdateName, req); !ok {
		return out
	}

	snap, ok := r.rooms.UpdateParticipantName(req.RoomID, connectionID, req.Name)
	if !ok {
		if _, exists := r.rooms.GetRoom(req.RoomID); !exists {
			return Reject(connectionID, msgRoomNotFound)
		}
		r.log.Warn("Name update from non-participant", "connectionID", connectionID, "roomID", req.RoomID)
		return Reject(connectionID, msgNotParticipant)
	}

	return []Outbound{{
		Scope:  ScopeAll,
		Event:  EventNameUpdated,
		RoomID: snap.ID,
		Payload: NameUpdatedPayload{
			RoomID:       snap.ID,
			ClientID:     connectionID,
			Name:         req.Name,
			Participants: snap.Participants,
		},
		Recipients: snap.ParticipantIDs(),
	}}
}

// RoomInfo answers the requesting connection with a summary of the room.
func (r *Router) RoomInfo(connectionID string, req RoomInfoRequest) []Outbound {
	if out, ok := r.check(connectionID, EventGetRoomInfo, req); !ok {
		return out
	}

	snap, ok := r.rooms.GetRoom(req.RoomID)
	if !ok {
		return Reject(connectionID, msgRoomNotFound)
	}

	return []Outbound{toActor(connectionID, snap.ID, EventRoomInfo, RoomInfoPayload{
		ID:               snap.ID,
		Name:             snap.Name,
		ParticipantCount: len(snap.Participants),
		Participants:     snap.Participants,
		MessageCount:     len(snap.Messages),
		CreatedAt:        snap.CreatedAt,
	})}
}

// Disconnect removes the connection from every room it is in and tells
// the remaining members of each. Rooms deleted or left meanwhile are
// skipped.
func (r *Router) Disconnect(connectionID string) []Outbound {
	var out []Outbound
	for _, roomID := range r.rooms.RoomsOf(connectionID) {
		snap, removed, ok := r.rooms.RemoveParticipant(roomID, connectionID)
		if !ok || !removed {
			continue
		}
		r.observer.ParticipantLeft(roomID, connectionID)
		out = appendIfAny(out, userLeft(snap, connectionID))
	}
	r.observer.ClientDisconnected(connectionID)
	r.log.Info("Client disconnected", "connectionID", connectionID, "notifications", len(out))
	return out
}

// CreateRoom trims and validates name before creating the room.
func (r *Router) CreateRoom(name string) (room.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return room.Room{}, fmt.Errorf("room name is required: %w", room.ErrValidation)
	}
	created, err := r.rooms.CreateRoom(name)
	if err != nil {
		return room.Room{}, err
	}
	r.observer.RoomCreated(created)
	return created, nil
}

// DeleteRoom deletes the room and returns the notice for the members it
// had at that moment. It reports false if the room did not exist.
func (r *Router) DeleteRoom(id string) ([]Outbound, bool) {
	last, ok := r.rooms.Remove(id)
	if !ok {
		return nil, false
	}
	r.observer.RoomDeleted(last)

	return appendIfAny(nil, Outbound{
		Scope:      ScopeAll,
		Event:      EventRoomDeleted,
		RoomID:     last.ID,
		Payload:    RoomDeletedPayload{RoomID: last.ID, RoomName: last.Name},
		Recipients: last.ParticipantIDs(),
	}), true
}

// check validates req and turns a failure into an error for the actor.
func (r *Router) check(connectionID, event string, req any) ([]Outbound, bool) {
	if err := r.validate.Struct(req); err != nil {
		r.log.Warn("Rejected payload", "connectionID", connectionID, "event", event, "error", err)
		return Reject(connectionID, fmt.Sprintf("%s for %s: roomId is required", msgInvalidPayload, event)), false
	}
	return nil, true
}

func userLeft(snap room.Room, connectionID string) Outbound {
	return toOthers(snap, connectionID, EventUserLeft, UserLeftPayload{
		ClientID:         connectionID,
		RoomID:           snap.ID,
		RoomName:         snap.Name,
		ParticipantCount: len(snap.Participants),
	})
}

func toActor(connectionID, roomID, event string, payload any) Outbound {
	return Outbound{
		Scope:      ScopeActor,
		Event:      event,
		RoomID:     roomID,
		Payload:    payload,
		Recipients: []string{connectionID},
	}
}

func toOthers(snap room.Room, connectionID, event string, payload any) Outbound {
	return Outbound{
		Scope:      ScopeOthers,
		Event:      event,
		RoomID:     snap.ID,
		Payload:    payload,
		Recipients: lo.Without(snap.ParticipantIDs(), connectionID),
	}
}

// Reject builds the error event sent back to the requesting connection.
func Reject(connectionID, message string) []Outbound {
	return []Outbound{toActor(connectionID, "", EventError, ErrorPayload{Message: message})}
}

// appendIfAny drops notifications nobody would receive.
func appendIfAny(out []Outbound, o Outbound) []Outbound {
	if len(o.Recipients) == 0 {
		return out
	}
	return append(out, o)
}
