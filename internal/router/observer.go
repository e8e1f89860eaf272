package router

//go:generate mockgen -source=observer.go -destination=mocks/mock_observer.go -package=mocks

import "github.com/Tyrowin/gochat-rooms/internal/room"

// Observer is told about every successful state change the router
// makes. Implementations must be safe for concurrent use and must not
// block.
type Observer interface {
	ClientConnected(connectionID string)
	ClientDisconnected(connectionID string)
	RoomCreated(r room.Room)
	RoomDeleted(r room.Room)
	ParticipantJoined(roomID, connectionID string)
	ParticipantLeft(roomID, connectionID string)
	MessageSent(msg room.Message)
}

type nopObserver struct{}

func (nopObserver) ClientConnected(string)           {}
func (nopObserver) ClientDisconnected(string)        {}
func (nopObserver) RoomCreated(room.Room)            {}
func (nopObserver) RoomDeleted(room.Room)            {}
func (nopObserver) ParticipantJoined(string, string) {}
func (nopObserver) ParticipantLeft(string, string)   {}
func (nopObserver) MessageSent(room.Message)         {}
