// Package server coordinates client registration, event delivery, and
// connection cleanup for the chat rooms WebSocket system via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/samber/lo"

	"github.com/Tyrowin/gochat-rooms/internal/router"
)

// EventRouter is what the transport needs from the router.
type EventRouter interface {
	Connect(connectionID string) []router.Outbound
	Disconnect(connectionID string) []router.Outbound
	Dispatch(connectionID, event string, data json.RawMessage) []router.Outbound
}

// Hub manages all WebSocket client connections and delivers router
// notifications to them. Registration and unregistration run on the Run
// goroutine; deliveries may come from any goroutine.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	router     EventRouter
	log        *slog.Logger
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub that routes client events through rt. The returned
// Hub is ready once Run is started.
func NewHub(rt EventRouter, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		router:     rt,
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Register hands the client to the hub. It reports false if the hub is
// shutting down.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) unregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) lookup(connectionID string) (*Client, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	client, ok := h.clients[connectionID]
	return client, ok
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("Recovered from panic in safeSend", "panic", r)
		}
	}()

	// Hold the lock during the entire send so the channel cannot be closed
	// underneath us.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	registered, exists := h.clients[client.id]
	if !exists || registered != client || client.closed {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// Run starts the hub's main event loop, handling client registration and
// unregistration. It returns once Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("Received nil client registration; skipping")
				continue
			}
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()
	h.log.Info("Client registered", "connectionID", client.id, "addr", client.addr, "clients", clientCount)

	// Queued before the read pump starts so the greeting is always first.
	h.Deliver(h.router.Connect(client.id))

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

// handleUnregister runs once per client, when its read pump exits. The
// client may already be gone from the map if a delivery dropped it.
func (h *Hub) handleUnregister(client *Client) {
	h.mutex.Lock()
	registered, ok := h.clients[client.id]
	if ok && registered == client {
		delete(h.clients, client.id)
		client.closed = true
		clientCount := len(h.clients)
		h.mutex.Unlock()
		// Close the channel after releasing the lock
		close(client.send)
		h.log.Info("Client unregistered", "connectionID", client.id, "addr", client.addr, "clients", clientCount)
	} else {
		h.mutex.Unlock()
	}

	h.Deliver(h.router.Disconnect(client.id))
}

// Deliver encodes each notification once and queues it for every
// recipient that is still connected. Recipients whose send buffer is full
// are dropped.
func (h *Hub) Deliver(out []router.Outbound) {
	var failed []*Client

	for _, o := range out {
		payload, err := encodeEnvelope(o.Event, o.Payload)
		if err != nil {
			h.log.Error("Failed to encode event", "event", o.Event, "roomID", o.RoomID, "error", err)
			continue
		}

		h.log.Debug("Delivering event", "event", o.Event, "scope", o.Scope.String(), "roomID", o.RoomID, "recipients", len(o.Recipients))
		for _, connectionID := range o.Recipients {
			client, ok := h.lookup(connectionID)
			if !ok {
				continue
			}
			if !h.safeSend(client, payload) {
				failed = append(failed, client)
			}
		}
	}

	h.removeFailedClients(lo.Uniq(failed))
}

// removeFailedClients removes clients that failed to receive messages and
// closes their channels. Closing the channel ends the write pump, which
// closes the connection and so ends the read pump and triggers the
// disconnect sweep.
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if registered, exists := h.clients[client.id]; exists && registered == client {
			delete(h.clients, client.id)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			h.log.Warn("Client removed due to full send buffer", "connectionID", client.id, "addr", client.addr)
		}
	}
	h.mutex.Unlock()

	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownClients closes all active client connections.
func (h *Hub) shutdownClients() {
	h.log.Info("Shutting down all client connections")

	h.mutex.Lock()
	clients := lo.Values(h.clients)
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn == nil {
			continue
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			h.log.Warn("Error closing client connection", "connectionID", client.id, "addr", client.addr, "error", err)
		}
	}

	h.log.Info("Closed client connections", "count", len(clients))
}

// Shutdown stops the hub and waits for all client goroutines to finish,
// or for ctx to end.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.log.Info("Initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("Hub shutdown completed")
		return nil
	case <-ctx.Done():
		h.log.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return ctx.Err()
	}
}
