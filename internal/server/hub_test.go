package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gochat-rooms/internal/room"
	"github.com/Tyrowin/gochat-rooms/internal/router"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	return NewHub(router.New(room.NewRegistry(nil), nil), nil)
}

// attach registers a client without starting its pumps, so the test can
// read its send channel directly.
func attach(h *Hub, c *Client) {
	h.mutex.Lock()
	h.clients[c.id] = c
	h.mutex.Unlock()
}

func toClient(c *Client, event string, payload any) router.Outbound {
	return router.Outbound{
		Scope:      router.ScopeActor,
		Event:      event,
		Payload:    payload,
		Recipients: []string{c.id},
	}
}

func TestHub_DeliverEncodesEnvelope(t *testing.T) {
	req := require.New(t)
	hub := newTestHub(t)
	client := NewClient(nil, hub, "test")
	attach(hub, client)

	hub.Deliver([]router.Outbound{toClient(client, router.EventError, router.ErrorPayload{Message: "nope"})})

	var env Envelope
	req.NoError(json.Unmarshal(<-client.send, &env))
	req.Equal(router.EventError, env.Event)
	req.JSONEq(`{"message":"nope"}`, string(env.Data))
}

func TestHub_DeliverSkipsUnknownRecipients(t *testing.T) {
	hub := newTestHub(t)
	client := NewClient(nil, hub, "test")
	attach(hub, client)

	hub.Deliver([]router.Outbound{{
		Scope:      router.ScopeAll,
		Event:      router.EventNewMessage,
		Payload:    router.NewMessagePayload{Message: "hi"},
		Recipients: []string{"gone", client.id, "also-gone"},
	}})

	require.Len(t, client.send, 1)
	require.Equal(t, 1, hub.ClientCount())
}

func TestHub_FullBufferDropsClient(t *testing.T) {
	req := require.New(t)
	SetConfig(&Config{SendBufferSize: 1})
	t.Cleanup(func() { SetConfig(nil) })

	hub := newTestHub(t)
	slow := NewClient(nil, hub, "slow")
	fast := NewClient(nil, hub, "fast")
	attach(hub, slow)
	attach(hub, fast)

	// Given the slow client's buffer is already full
	hub.Deliver([]router.Outbound{toClient(slow, router.EventRoomInfo, router.RoomInfoPayload{Name: "first"})})

	// When an event goes to both
	hub.Deliver([]router.Outbound{{
		Scope:      router.ScopeAll,
		Event:      router.EventNewMessage,
		Payload:    router.NewMessagePayload{Message: "hi"},
		Recipients: []string{slow.id, fast.id},
	}})

	// Then only the slow one is dropped, with its channel closed after the
	// queued event
	req.Equal(1, hub.ClientCount())
	_, ok := hub.lookup(slow.id)
	req.False(ok)
	req.True(slow.closed)

	_, ok = <-slow.send
	req.True(ok)
	_, ok = <-slow.send
	req.False(ok)

	req.Len(fast.send, 1)
}

func TestHub_DeliverEncodingFailureSkipsEvent(t *testing.T) {
	hub := newTestHub(t)
	client := NewClient(nil, hub, "test")
	attach(hub, client)

	hub.Deliver([]router.Outbound{
		toClient(client, "broken", make(chan int)),
		toClient(client, router.EventLeftRoom, router.LeftRoomPayload{RoomID: "r1"}),
	})

	var env Envelope
	require.NoError(t, json.Unmarshal(<-client.send, &env))
	require.Equal(t, router.EventLeftRoom, env.Event)
	require.Empty(t, client.send)
}

func TestHub_ShutdownWithoutClients(t *testing.T) {
	hub := newTestHub(t)
	go hub.Run()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, hub.Shutdown(ctx))

	// Registration after shutdown is refused instead of blocking
	require.False(t, hub.Register(NewClient(nil, hub, "late")))
}

func TestHub_NilRegistrationIsIgnored(t *testing.T) {
	hub := newTestHub(t)
	go hub.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
	})

	require.True(t, hub.Register(nil))
	require.Zero(t, hub.ClientCount())
}
