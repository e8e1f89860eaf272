package router

import (
	"time"

	"github.com/Tyrowin/gochat-rooms/internal/room"
)

// Inbound event names.
const (
	EventJoinRoom    = "joinRoom"
	EventLeaveRoom   = "leaveRoom"
	EventSendMessage = "sendMessage"
	EventUpdateName  = "updateName"
	EventGetRoomInfo = "getRoomInfo"
)

// Outbound event names.
const (
	EventConnected   = "connected"
	EventJoinedRoom  = "joinedRoom"
	EventUserJoined  = "userJoined"
	EventLeftRoom    = "leftRoom"
	EventUserLeft    = "userLeft"
	EventNewMessage  = "newMessage"
	EventNameUpdated = "nameUpdated"
	EventRoomInfo    = "roomInfo"
	EventRoomDeleted = "roomDeleted"
	EventError       = "error"
)

// RecentMessageLimit is the number of messages replayed to a joining
// connection.
const RecentMessageLimit = 10

// JoinRequest is the payload of joinRoom.
type JoinRequest struct {
	RoomID string  `json:"roomId" validate:"required"`
	Name   *string `json:"name"`
}

// LeaveRequest is the payload of leaveRoom.
type LeaveRequest struct {
	RoomID string `json:"roomId" validate:"required"`
}

// SendMessageRequest is the payload of sendMessage.
type SendMessageRequest struct {
	RoomID  string `json:"roomId" validate:"required"`
	Message string `json:"message"`
}

// UpdateNameRequest is the payload of updateName.
type UpdateNameRequest struct {
	RoomID string  `json:"roomId" validate:"required"`
	Name   *string `json:"name"`
}

// RoomInfoRequest is the payload of getRoomInfo.
type RoomInfoRequest struct {
	RoomID string `json:"roomId" validate:"required"`
}

// ConnectedPayload greets a new connection with its identifier.
type ConnectedPayload struct {
	ClientID string `json:"clientId"`
}

// JoinedRoomPayload confirms a join to the joining connection.
type JoinedRoomPayload struct {
	RoomID         string             `json:"roomId"`
	RoomName       string             `json:"roomName"`
	Participants   []room.Participant `json:"participants"`
	RecentMessages []room.Message     `json:"recentMessages"`
}

// UserJoinedPayload tells the other members that someone joined.
type UserJoinedPayload struct {
	ClientID         string  `json:"clientId"`
	RoomID           string  `json:"roomId"`
	RoomName         string  `json:"roomName"`
	ParticipantName  *string `json:"participantName"`
	ParticipantCount int     `json:"participantCount"`
}

// LeftRoomPayload confirms a leave to the leaving connection.
type LeftRoomPayload struct {
	RoomID string `json:"roomId"`
}

// UserLeftPayload tells the remaining members that someone left.
type UserLeftPayload struct {
	ClientID         string `json:"clientId"`
	RoomID           string `json:"roomId"`
	RoomName         string `json:"roomName"`
	ParticipantCount int    `json:"participantCount"`
}

// NewMessagePayload carries a message to every member of the room.
type NewMessagePayload struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"clientId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	RoomID    string    `json:"roomId"`
}

// NameUpdatedPayload announces a participant's new display name.
type NameUpdatedPayload struct {
	RoomID       string             `json:"roomId"`
	ClientID     string             `json:"clientId"`
	Name         *string            `json:"name"`
	Participants []room.Participant `json:"participants"`
}

// RoomInfoPayload answers getRoomInfo.
type RoomInfoPayload struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	ParticipantCount int                `json:"participantCount"`
	Participants     []room.Participant `json:"participants"`
	MessageCount     int                `json:"messageCount"`
	CreatedAt        time.Time          `json:"createdAt"`
}

// RoomDeletedPayload tells former members that their room is gone.
type RoomDeletedPayload struct {
	RoomID   string `json:"roomId"`
	RoomName string `json:"roomName"`
}

// ErrorPayload is sent to the requesting connection only.
type ErrorPayload struct {
	Message string `json:"message"`
}
