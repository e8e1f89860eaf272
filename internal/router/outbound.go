package router

// Scope says which connections an outbound event is meant for.
type Scope int

const (
	// ScopeActor targets the connection that sent the inbound event.
	ScopeActor Scope = iota
	// ScopeOthers targets every current member of the room except the actor.
	ScopeOthers
	// ScopeAll targets every current member of the room, actor included.
	ScopeAll
)

func (s Scope) String() string {
	switch s {
	case ScopeActor:
		return "actor"
	case ScopeOthers:
		return "others"
	case ScopeAll:
		return "all"
	default:
		return "unknown"
	}
}

// Outbound is a notification the transport must deliver. Recipients is
// already resolved against the room membership at the time of the
// change, so delivery needs no further registry access.
type Outbound struct {
	Scope      Scope
	Event      string
	RoomID     string
	Payload    any
	Recipients []string
}
