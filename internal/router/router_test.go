package router_test

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Tyrowin/gochat-rooms/internal/room"
	"github.com/Tyrowin/gochat-rooms/internal/router"
	"github.com/Tyrowin/gochat-rooms/internal/router/mocks"
)

// newRouter returns a router backed by a real registry and an observer
// mock that accepts any call.
func newRouter(t *testing.T) (*router.Router, *room.Registry) {
	t.Helper()
	ctrl := gomock.NewController(t)
	observer := mocks.NewMockObserver(ctrl)
	observer.EXPECT().ClientConnected(gomock.Any()).AnyTimes()
	observer.EXPECT().ClientDisconnected(gomock.Any()).AnyTimes()
	observer.EXPECT().RoomCreated(gomock.Any()).AnyTimes()
	observer.EXPECT().RoomDeleted(gomock.Any()).AnyTimes()
	observer.EXPECT().ParticipantJoined(gomock.Any(), gomock.Any()).AnyTimes()
	observer.EXPECT().ParticipantLeft(gomock.Any(), gomock.Any()).AnyTimes()
	observer.EXPECT().MessageSent(gomock.Any()).AnyTimes()

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	reg := room.NewRegistry(log)
	return router.New(reg, log, router.WithObserver(observer)), reg
}

func mustCreate(t *testing.T, rt *router.Router, name string) room.Room {
	t.Helper()
	created, err := rt.CreateRoom(name)
	require.NoError(t, err)
	return created
}

func byEvent(out []router.Outbound, event string) []router.Outbound {
	return lo.Filter(out, func(o router.Outbound, _ int) bool { return o.Event == event })
}

func single(t *testing.T, out []router.Outbound, event string) router.Outbound {
	t.Helper()
	matches := byEvent(out, event)
	require.Len(t, matches, 1, "expected exactly one %s", event)
	return matches[0]
}

// requireRejected checks the design rule for rejections: a single error
// addressed to the actor only.
func requireRejected(t *testing.T, out []router.Outbound, actor string) router.ErrorPayload {
	t.Helper()
	require.Len(t, out, 1)
	require.Equal(t, router.EventError, out[0].Event)
	require.Equal(t, router.ScopeActor, out[0].Scope)
	require.Equal(t, []string{actor}, out[0].Recipients)
	payload, ok := out[0].Payload.(router.ErrorPayload)
	require.True(t, ok)
	return payload
}

func TestRouter_Connect(t *testing.T) {
	rt, _ := newRouter(t)

	out := rt.Connect("c1")

	o := single(t, out, router.EventConnected)
	require.Equal(t, []string{"c1"}, o.Recipients)
	require.Equal(t, router.ConnectedPayload{ClientID: "c1"}, o.Payload)
}

func TestRouter_Join(t *testing.T) {
	req := require.New(t)
	rt, _ := newRouter(t)
	lobby := mustCreate(t, rt, "Lobby")

	// Given c1 is alone in the room
	out := rt.Join("c1", router.JoinRequest{RoomID: lobby.ID, Name: lo.ToPtr("Alice")})
	req.Len(out, 1, "nobody else to notify")
	joined := single(t, out, router.EventJoinedRoom)
	req.Equal(router.ScopeActor, joined.Scope)
	req.Equal([]string{"c1"}, joined.Recipients)

	// When c2 joins
	out = rt.Join("c2", router.JoinRequest{RoomID: lobby.ID})

	// Then c2 gets the snapshot and c1 the notice
	joined = single(t, out, router.EventJoinedRoom)
	req.Equal([]string{"c2"}, joined.Recipients)
	payload := joined.Payload.(router.JoinedRoomPayload)
	req.Equal(lobby.ID, payload.RoomID)
	req.Equal("Lobby", payload.RoomName)
	req.Equal([]room.Participant{
		{ConnectionID: "c1", Name: lo.ToPtr("Alice")},
		{ConnectionID: "c2"},
	}, payload.Participants)
	req.Empty(payload.RecentMessages)

	notice := single(t, out, router.EventUserJoined)
	req.Equal(router.ScopeOthers, notice.Scope)
	req.Equal([]string{"c1"}, notice.Recipients)
	req.Equal(router.UserJoinedPayload{
		ClientID:         "c2",
		RoomID:           lobby.ID,
		RoomName:         "Lobby",
		ParticipantCount: 2,
	}, notice.Payload)
}

func TestRouter_JoinReplaysLastTenMessages(t *testing.T) {
	req := require.New(t)
	rt, reg := newRouter(t)
	lobby := mustCreate(t, rt, "Lobby")

	for i := range 15 {
		_, _ = reg.AddMessage(lobby.ID, "c0", string(rune('a'+i)))
	}

	out := rt.Join("c1", router.JoinRequest{RoomID: lobby.ID})

	payload := single(t, out, router.EventJoinedRoom).Payload.(router.JoinedRoomPayload)
	req.Len(payload.RecentMessages, router.RecentMessageLimit)
	bodies := lo.Map(payload.RecentMessages, func(m room.Message, _ int) string { return m.Body })
	req.Equal([]string{"f", "g", "h", "i", "j", "k", "l", "m", "n", "o"}, bodies)
}

func TestRouter_RejoinRenames(t *testing.T) {
	req := require.New(t)
	rt, reg := newRouter(t)
	lobby := mustCreate(t, rt, "Lobby")

	rt.Join("c1", router.JoinRequest{RoomID: lobby.ID, Name: lo.ToPtr("Alice")})
	rt.Join("c1", router.JoinRequest{RoomID: lobby.ID, Name: lo.ToPtr("Alicia")})

	participants, ok := reg.ParticipantsWithNames(lobby.ID)
	req.True(ok)
	req.Equal([]room.Participant{{ConnectionID: "c1", Name: lo.ToPtr("Alicia")}}, participants)
}

func TestRouter_JoinUnknownRoom(t *testing.T) {
	rt, reg := newRouter(t)

	out := rt.Join("c1", router.JoinRequest{RoomID: "missing"})

	payload := requireRejected(t, out, "c1")
	require.Equal(t, "Room not found", payload.Message)
	require.Empty(t, reg.RoomsOf("c1"))
}

func TestRouter_Leave(t *testing.T) {
	req := require.New(t)
	rt, reg := newRouter(t)
	lobby := mustCreate(t, rt, "Lobby")
	rt.Join("c1", router.JoinRequest{RoomID: lobby.ID})
	rt.Join("c2", router.JoinRequest{RoomID: lobby.ID})
	rt.Join("c3", router.JoinRequest{RoomID: lobby.ID})

	out := rt.Leave("c1", router.LeaveRequest{RoomID: lobby.ID})

	left := single(t, out, router.EventLeftRoom)
	req.Equal([]string{"c1"}, left.Recipients)
	req.Equal(router.LeftRoomPayload{RoomID: lobby.ID}, left.Payload)

	notice := single(t, out, router.EventUserLeft)
	req.Equal(router.ScopeOthers, notice.Scope)
	req.Equal([]string{"c2", "c3"}, notice.Recipients)
	req.Equal(router.UserLeftPayload{
		ClientID:         "c1",
		RoomID:           lobby.ID,
		RoomName:         "Lobby",
		ParticipantCount: 2,
	}, notice.Payload)

	// Leaving twice is not an error
	out = rt.Leave("c1", router.LeaveRequest{RoomID: lobby.ID})
	req.Len(byEvent(out, router.EventLeftRoom), 1)
	req.Empty(byEvent(out, router.EventError))

	snap, _ := reg.GetRoom(lobby.ID)
	req.Equal([]string{"c2", "c3"}, snap.ParticipantIDs())
}

func TestRouter_LeaveUnknownRoom(t *testing.T) {
	rt, _ := newRouter(t)

	require.Empty(t, rt.Leave("c1", router.LeaveRequest{RoomID: "missing"}))
}

func TestRouter_SendMessage(t *testing.T) {
	req := require.New(t)
	rt, reg := newRouter(t)
	lobby := mustCreate(t, rt, "Lobby")
	rt.Join("c1", router.JoinRequest{RoomID: lobby.ID, Name: lo.ToPtr("Alice")})
	rt.Join("c2", router.JoinRequest{RoomID: lobby.ID})

	out := rt.SendMessage("c1", router.SendMessageRequest{RoomID: lobby.ID, Message: "hi"})

	o := single(t, out, router.EventNewMessage)
	req.Len(out, 1)
	req.Equal(router.ScopeAll, o.Scope)
	req.Equal([]string{"c1", "c2"}, o.Recipients)

	payload := o.Payload.(router.NewMessagePayload)
	req.NotEmpty(payload.ID)
	req.Equal("c1", payload.ClientID)
	req.Equal("hi", payload.Message)
	req.Equal(lobby.ID, payload.RoomID)
	req.False(payload.Timestamp.IsZero())

	msgs, _ := reg.Messages(lobby.ID)
	req.Len(msgs, 1)
	req.Equal(payload.ID, msgs[0].ID)
}

func TestRouter_SendMessageUnknownRoom(t *testing.T) {
	rt, _ := newRouter(t)

	out := rt.SendMessage("c1", router.SendMessageRequest{RoomID: "missing", Message: "hi"})

	payload := requireRejected(t, out, "c1")
	require.Equal(t, "Could not send the message", payload.Message)
}

// joinAfterPost runs onPost right after every message append, before the
// router builds its notifications.
type joinAfterPost struct {
	*room.Registry
	onPost func()
}

func (j *joinAfterPost) PostMessage(roomID, connectionID, body string) (room.Message, room.Room, bool) {
	msg, snap, ok := j.Registry.PostMessage(roomID, connectionID, body)
	if j.onPost != nil {
		j.onPost()
	}
	return msg, snap, ok
}

func TestRouter_SendMessageRacingJoin(t *testing.T) {
	req := require.New(t)
	rooms := &joinAfterPost{Registry: room.NewRegistry(nil)}
	rt := router.New(rooms, nil)
	lobby := mustCreate(t, rt, "Lobby")
	rt.Join("a", router.JoinRequest{RoomID: lobby.ID})

	// Given a join lands between the append and the fan-out
	var joined []router.Outbound
	rooms.onPost = func() {
		joined = rt.Join("late", router.JoinRequest{RoomID: lobby.ID})
	}

	// When a member sends a message
	sent := rt.SendMessage("a", router.SendMessageRequest{RoomID: lobby.ID, Message: "hi"})

	// Then the late joiner sees it once, in its join replay
	msg := single(t, sent, router.EventNewMessage)
	req.Equal([]string{"a"}, msg.Recipients)
	msgID := msg.Payload.(router.NewMessagePayload).ID

	replay := single(t, joined, router.EventJoinedRoom).Payload.(router.JoinedRoomPayload)
	req.Len(replay.RecentMessages, 1)
	req.Equal(msgID, replay.RecentMessages[0].ID)

	seen := 0
	for _, o := range append(joined, sent...) {
		if !lo.Contains(o.Recipients, "late") {
			continue
		}
		switch p := o.Payload.(type) {
		case router.NewMessagePayload:
			if p.ID == msgID {
				seen++
			}
		case router.JoinedRoomPayload:
			seen += len(lo.Filter(p.RecentMessages, func(m room.Message, _ int) bool { return m.ID == msgID }))
		}
	}
	req.Equal(1, seen)
}

func TestRouter_UpdateName(t *testing.T) {
	req := require.New(t)
	rt, reg := newRouter(t)
	lobby := mustCreate(t, rt, "Lobby")
	rt.Join("c1", router.JoinRequest{RoomID: lobby.ID, Name: lo.ToPtr("Alice")})
	rt.Join("c2", router.JoinRequest{RoomID: lobby.ID})

	out := rt.UpdateName("c1", router.UpdateNameRequest{RoomID: lobby.ID, Name: lo.ToPtr("Bob")})

	o := single(t, out, router.EventNameUpdated)
	req.Equal(router.ScopeAll, o.Scope)
	req.Equal([]string{"c1", "c2"}, o.Recipients)
	payload := o.Payload.(router.NameUpdatedPayload)
	req.Equal("Bob", lo.FromPtr(payload.Name))
	req.Equal("c1", payload.ClientID)

	// Clearing back to anonymous
	rt.UpdateName("c1", router.UpdateNameRequest{RoomID: lobby.ID})
	participants, _ := reg.ParticipantsWithNames(lobby.ID)
	req.Nil(participants[0].Name)
}

func TestRouter_UpdateNameRejected(t *testing.T) {
	rt, reg := newRouter(t)
	lobby := mustCreate(t, rt, "Lobby")
	rt.Join("c1", router.JoinRequest{RoomID: lobby.ID, Name: lo.ToPtr("Alice")})

	tests := []struct {
		name    string
		roomID  string
		message string
	}{
		{name: "not a participant", roomID: lobby.ID, message: "You are not a participant of this room"},
		{name: "unknown room", roomID: "missing", message: "Room not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := rt.UpdateName("stranger", router.UpdateNameRequest{RoomID: tt.roomID, Name: lo.ToPtr("Eve")})
			payload := requireRejected(t, out, "stranger")
			require.Equal(t, tt.message, payload.Message)
		})
	}

	participants, _ := reg.ParticipantsWithNames(lobby.ID)
	require.Equal(t, []room.Participant{{ConnectionID: "c1", Name: lo.ToPtr("Alice")}}, participants)
}

func TestRouter_RoomInfo(t *testing.T) {
	req := require.New(t)
	rt, reg := newRouter(t)
	lobby := mustCreate(t, rt, "Lobby")
	rt.Join("c1", router.JoinRequest{RoomID: lobby.ID, Name: lo.ToPtr("Alice")})
	rt.Join("c2", router.JoinRequest{RoomID: lobby.ID})
	_, _ = reg.AddMessage(lobby.ID, "c1", "one")
	_, _ = reg.AddMessage(lobby.ID, "c2", "two")

	out := rt.RoomInfo("c3", router.RoomInfoRequest{RoomID: lobby.ID})

	o := single(t, out, router.EventRoomInfo)
	req.Len(out, 1)
	req.Equal([]string{"c3"}, o.Recipients)
	req.Equal(router.RoomInfoPayload{
		ID:               lobby.ID,
		Name:             "Lobby",
		ParticipantCount: 2,
		Participants: []room.Participant{
			{ConnectionID: "c1", Name: lo.ToPtr("Alice")},
			{ConnectionID: "c2"},
		},
		MessageCount: 2,
		CreatedAt:    lobby.CreatedAt,
	}, o.Payload)

	requireRejected(t, rt.RoomInfo("c3", router.RoomInfoRequest{RoomID: "missing"}), "c3")
}

// TestRouter_DisconnectSweep covers a connection that is in two rooms:
// it leaves both, and every remaining member gets exactly one notice
// for the room they share with it.
func TestRouter_DisconnectSweep(t *testing.T) {
	req := require.New(t)
	rt, reg := newRouter(t)
	a := mustCreate(t, rt, "A")
	b := mustCreate(t, rt, "B")
	_ = mustCreate(t, rt, "C")

	rt.Join("c", router.JoinRequest{RoomID: a.ID})
	rt.Join("c", router.JoinRequest{RoomID: b.ID})
	rt.Join("a1", router.JoinRequest{RoomID: a.ID})
	rt.Join("a2", router.JoinRequest{RoomID: a.ID})
	rt.Join("b1", router.JoinRequest{RoomID: b.ID})

	out := rt.Disconnect("c")

	snapA, _ := reg.GetRoom(a.ID)
	snapB, _ := reg.GetRoom(b.ID)
	req.False(snapA.HasParticipant("c"))
	req.False(snapB.HasParticipant("c"))

	req.Len(out, 2)
	received := make(map[string][]string)
	for _, o := range out {
		req.Equal(router.EventUserLeft, o.Event)
		for _, id := range o.Recipients {
			received[id] = append(received[id], o.RoomID)
		}
	}
	req.Equal(map[string][]string{
		"a1": {a.ID},
		"a2": {a.ID},
		"b1": {b.ID},
	}, received)

	req.Empty(rt.Disconnect("c"))
}

func TestRouter_DeleteRoom(t *testing.T) {
	req := require.New(t)
	rt, reg := newRouter(t)
	lobby := mustCreate(t, rt, "Lobby")
	rt.Join("c1", router.JoinRequest{RoomID: lobby.ID})
	rt.Join("c2", router.JoinRequest{RoomID: lobby.ID})

	out, ok := rt.DeleteRoom(lobby.ID)
	req.True(ok)
	o := single(t, out, router.EventRoomDeleted)
	req.Equal([]string{"c1", "c2"}, o.Recipients)
	req.Equal(router.RoomDeletedPayload{RoomID: lobby.ID, RoomName: "Lobby"}, o.Payload)
	req.Empty(reg.ListRooms())

	out, ok = rt.DeleteRoom(lobby.ID)
	req.False(ok)
	req.Empty(out)

	// A sweep after deletion finds nothing to clean up
	req.Empty(rt.Disconnect("c1"))
}

func TestRouter_CreateRoom(t *testing.T) {
	rt, _ := newRouter(t)

	created, err := rt.CreateRoom("  Lobby  ")
	require.NoError(t, err)
	require.Equal(t, "Lobby", created.Name)

	for _, name := range []string{"", "   ", "\t\n"} {
		_, err := rt.CreateRoom(name)
		require.ErrorIs(t, err, room.ErrValidation)
	}
}

func TestRouter_Dispatch(t *testing.T) {
	rt, _ := newRouter(t)
	lobby := mustCreate(t, rt, "Lobby")

	tests := []struct {
		name      string
		event     string
		data      string
		wantEvent string
	}{
		{name: "join", event: router.EventJoinRoom, data: `{"roomId":"` + lobby.ID + `","name":"Alice"}`, wantEvent: router.EventJoinedRoom},
		{name: "send", event: router.EventSendMessage, data: `{"roomId":"` + lobby.ID + `","message":"hi"}`, wantEvent: router.EventNewMessage},
		{name: "rename", event: router.EventUpdateName, data: `{"roomId":"` + lobby.ID + `","name":null}`, wantEvent: router.EventNameUpdated},
		{name: "info", event: router.EventGetRoomInfo, data: `{"roomId":"` + lobby.ID + `"}`, wantEvent: router.EventRoomInfo},
		{name: "leave", event: router.EventLeaveRoom, data: `{"roomId":"` + lobby.ID + `"}`, wantEvent: router.EventLeftRoom},
		{name: "unknown event", event: "shout", data: `{}`, wantEvent: router.EventError},
		{name: "malformed payload", event: router.EventJoinRoom, data: `{"roomId":`, wantEvent: router.EventError},
		{name: "missing room id", event: router.EventSendMessage, data: `{"message":"hi"}`, wantEvent: router.EventError},
		{name: "no payload", event: router.EventGetRoomInfo, data: ``, wantEvent: router.EventError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := rt.Dispatch("c1", tt.event, json.RawMessage(tt.data))
			require.NotEmpty(t, out)
			require.Equal(t, tt.wantEvent, out[0].Event)
			if tt.wantEvent == router.EventError {
				requireRejected(t, out, "c1")
			}
		})
	}
}

// TestRouter_ObserverCalls checks which state changes reach the observer.
func TestRouter_ObserverCalls(t *testing.T) {
	ctrl := gomock.NewController(t)
	observer := mocks.NewMockObserver(ctrl)
	reg := room.NewRegistry(nil)
	rt := router.New(reg, nil, router.WithObserver(observer))

	observer.EXPECT().RoomCreated(gomock.Any()).Times(1)
	lobby := mustCreate(t, rt, "Lobby")

	gomock.InOrder(
		observer.EXPECT().ClientConnected("c1"),
		observer.EXPECT().ParticipantJoined(lobby.ID, "c1"),
		observer.EXPECT().MessageSent(gomock.Any()).Do(func(msg room.Message) {
			require.Equal(t, "hi", msg.Body)
		}),
		observer.EXPECT().ParticipantLeft(lobby.ID, "c1"),
		observer.EXPECT().ClientDisconnected("c1"),
		observer.EXPECT().RoomDeleted(gomock.Any()),
	)

	rt.Connect("c1")
	rt.Join("c1", router.JoinRequest{RoomID: lobby.ID})
	rt.SendMessage("c1", router.SendMessageRequest{RoomID: lobby.ID, Message: "hi"})
	rt.Disconnect("c1")
	rt.DeleteRoom(lobby.ID)

	// Rejections never reach the observer
	rt.Join("c2", router.JoinRequest{RoomID: "missing"})
	rt.SendMessage("c2", router.SendMessageRequest{RoomID: "missing"})
}

func TestRouter_ObserverSeesOnlyRealLeaves(t *testing.T) {
	ctrl := gomock.NewController(t)
	observer := mocks.NewMockObserver(ctrl)
	rt := router.New(room.NewRegistry(nil), nil, router.WithObserver(observer))

	observer.EXPECT().RoomCreated(gomock.Any())
	lobby := mustCreate(t, rt, "Lobby")

	observer.EXPECT().ParticipantJoined(lobby.ID, "c1")
	observer.EXPECT().ParticipantLeft(lobby.ID, "c1").Times(1)
	observer.EXPECT().ClientDisconnected("c1")

	rt.Join("c1", router.JoinRequest{RoomID: lobby.ID})
	first := rt.Leave("c1", router.LeaveRequest{RoomID: lobby.ID})
	again := rt.Leave("c1", router.LeaveRequest{RoomID: lobby.ID})
	never := rt.Leave("c2", router.LeaveRequest{RoomID: lobby.ID})
	rt.Disconnect("c1")

	// Every leave is still confirmed to its actor
	single(t, first, router.EventLeftRoom)
	single(t, again, router.EventLeftRoom)
	single(t, never, router.EventLeftRoom)
}
