package room

import (
	"time"

	"github.com/samber/lo"
)

// Participant is a connection currently joined to a room. A nil Name
// means the participant is anonymous.
type Participant struct {
	ConnectionID string  `json:"connectionId"`
	Name         *string `json:"name"`
}

// Message is a single entry of a room's message log.
type Message struct {
	ID                 string    `json:"id"`
	RoomID             string    `json:"roomId"`
	SenderConnectionID string    `json:"clientId"`
	Body               string    `json:"message"`
	Timestamp          time.Time `json:"timestamp"`
}

// Room is a point-in-time snapshot of a room.
type Room struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Participants []Participant `json:"participants"`
	Messages     []Message     `json:"messages"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// ParticipantIDs returns the connection IDs of the snapshot's
// participants in join order.
func (r Room) ParticipantIDs() []string {
	return lo.Map(r.Participants, func(p Participant, _ int) string {
		return p.ConnectionID
	})
}

// HasParticipant reports whether connectionID is in the snapshot.
func (r Room) HasParticipant(connectionID string) bool {
	return lo.ContainsBy(r.Participants, func(p Participant) bool {
		return p.ConnectionID == connectionID
	})
}
