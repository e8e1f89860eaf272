// Package server exposes HTTP handlers, including WebSocket upgrades, the
// room REST API, health and metrics, and the built-in test page.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gochat-rooms/internal/metrics"
	"github.com/Tyrowin/gochat-rooms/internal/room"
	"github.com/Tyrowin/gochat-rooms/internal/router"
)

const msgRoomNotFound = "Room not found"

// RoomReader is the read side of the registry used by the REST API.
type RoomReader interface {
	ListRooms() []room.Room
	GetRoom(id string) (room.Room, bool)
	ParticipantsWithNames(roomID string) ([]room.Participant, bool)
}

// CreateRoomRequest is the body of POST /api/v1/rooms.
type CreateRoomRequest struct {
	Name string `json:"name" validate:"required"`
}

// DeleteRoomResponse is the body of a successful DELETE.
type DeleteRoomResponse struct {
	Message string `json:"message"`
}

// RoomMessagesResponse is the body of GET /api/v1/rooms/{id}/messages.
type RoomMessagesResponse struct {
	RoomID        string         `json:"roomId"`
	RoomName      string         `json:"roomName"`
	Messages      []room.Message `json:"messages"`
	TotalMessages int            `json:"totalMessages"`
}

// RoomParticipantsResponse is the body of GET /api/v1/rooms/{id}/participants.
type RoomParticipantsResponse struct {
	RoomID           string             `json:"roomId"`
	RoomName         string             `json:"roomName"`
	Participants     []room.Participant `json:"participants"`
	ParticipantCount int                `json:"participantCount"`
}

// Handlers holds everything the HTTP surface needs.
type Handlers struct {
	hub      *Hub
	rooms    RoomReader
	router   *router.Router
	metrics  *metrics.Collector
	validate *validator.Validate
	upgrader websocket.Upgrader
	maxBody  int64
	log      *slog.Logger
}

// NewHandlers wires the HTTP handlers to the hub, registry, router and
// metrics collector. cfg supplies the origin allow-list and the request
// size limit.
func NewHandlers(cfg Config, hub *Hub, rooms RoomReader, rt *router.Router, collector *metrics.Collector, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	cfg = withDefaults(cfg)
	return &Handlers{
		hub:      hub,
		rooms:    rooms,
		router:   rt,
		metrics:  collector,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     newOriginPolicy(cfg.AllowedOrigins).checker(log),
		},
		maxBody: cfg.MaxMessageSize,
		log:     log,
	}
}

// WebSocket upgrades the connection, creates a Client and hands it to the
// hub, which starts its pumps and greets it.
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, h.hub, r.RemoteAddr)
	if !h.hub.Register(client) {
		h.log.Warn("Hub is shutting down, refusing connection", "addr", r.RemoteAddr)
		_ = conn.Close()
	}
}

// Health reports liveness and uptime.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.metrics.Health())
}

// Metrics reports counters, room state and process statistics.
func (h *Handlers) Metrics(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.metrics.Snapshot())
}

// CreateRoom creates a room from {"name": "..."}.
func (h *Handlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	body := http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Room name is required")
		return
	}

	created, err := h.router.CreateRoom(req.Name)
	if err != nil {
		h.log.Warn("Failed to create room", "error", err)
		h.writeFailure(w, err, "Room name is required")
		return
	}

	h.writeJSON(w, http.StatusCreated, created)
}

// ListRooms returns every room.
func (h *Handlers) ListRooms(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.rooms.ListRooms())
}

// GetRoom returns a single room.
func (h *Handlers) GetRoom(w http.ResponseWriter, r *http.Request) {
	found, ok := h.findRoom(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, found)
}

// DeleteRoom deletes a room and tells its members it is gone.
func (h *Handlers) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	out, ok := h.router.DeleteRoom(r.PathValue("id"))
	if !ok {
		h.writeFailure(w, room.ErrNotFound, msgRoomNotFound)
		return
	}
	h.hub.Deliver(out)
	h.writeJSON(w, http.StatusOK, DeleteRoomResponse{Message: "Room deleted successfully"})
}

// RoomMessages returns the full message log of a room.
func (h *Handlers) RoomMessages(w http.ResponseWriter, r *http.Request) {
	found, ok := h.findRoom(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, RoomMessagesResponse{
		RoomID:        found.ID,
		RoomName:      found.Name,
		Messages:      found.Messages,
		TotalMessages: len(found.Messages),
	})
}

// RoomParticipants returns the participants of a room with their names.
func (h *Handlers) RoomParticipants(w http.ResponseWriter, r *http.Request) {
	found, ok := h.findRoom(w, r)
	if !ok {
		return
	}
	participants, ok := h.rooms.ParticipantsWithNames(found.ID)
	if !ok {
		h.writeFailure(w, room.ErrNotFound, msgRoomNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, RoomParticipantsResponse{
		RoomID:           found.ID,
		RoomName:         found.Name,
		Participants:     participants,
		ParticipantCount: len(participants),
	})
}

func (h *Handlers) findRoom(w http.ResponseWriter, r *http.Request) (room.Room, bool) {
	found, ok := h.rooms.GetRoom(r.PathValue("id"))
	if !ok {
		h.writeFailure(w, room.ErrNotFound, msgRoomNotFound)
		return room.Room{}, false
	}
	return found, true
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn("Error writing JSON response", "error", err)
	}
}

// writeFailure answers with the status matching err. message is used for
// client errors; anything unexpected gets a generic body.
func (h *Handlers) writeFailure(w http.ResponseWriter, err error, message string) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	h.writeError(w, status, message)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, room.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, room.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, room.ErrPermissionDenied):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, ErrorResponse{StatusCode: status, Message: message})
}

// TestPage serves an HTML page for trying the room events from a browser.
func (h *Handlers) TestPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		h.log.Warn("Error writing HTML response", "error", err)
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>GoChat Rooms Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] {
            width: 220px;
            padding: 5px;
            margin-right: 10px;
        }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .row { margin: 8px 0; }
        .status {
            margin: 10px 0;
            padding: 5px;
            border-radius: 3px;
        }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>GoChat Rooms Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div class="row">
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>
    <div class="row">
        <input type="text" id="roomName" placeholder="New room name...">
        <button onclick="createRoom()">Create room</button>
        <button onclick="listRooms()">List rooms</button>
    </div>
    <div class="row">
        <input type="text" id="roomId" placeholder="Room ID...">
        <input type="text" id="displayName" placeholder="Display name (optional)">
        <button onclick="joinRoom()">Join</button>
        <button onclick="leaveRoom()">Leave</button>
        <button onclick="roomInfo()">Info</button>
        <button onclick="updateName()">Rename</button>
    </div>
    <div class="row">
        <input type="text" id="messageInput" placeholder="Type a message...">
        <button onclick="sendMessage()">Send</button>
    </div>

    <div id="messages"></div>

    <script>
        let ws = null;
        const messagesDiv = document.getElementById('messages');
        const statusDiv = document.getElementById('status');
        const connectButton = document.getElementById('connectButton');

        function field(id) {
            return document.getElementById(id).value.trim();
        }

        function addLine(text, color) {
            const line = document.createElement('div');
            line.style.margin = '5px 0';
            line.style.color = color || 'gray';
            line.textContent = text;
            messagesDiv.appendChild(line);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = function() { updateStatus(true); };
            ws.onmessage = function(event) {
                event.data.split('\n').forEach(function(frame) {
                    const env = JSON.parse(frame);
                    if (env.event === 'connected') {
                        addLine('Connected as ' + env.data.clientId);
                    } else if (env.event === 'newMessage') {
                        addLine(env.data.clientId + ': ' + env.data.message, 'green');
                    } else if (env.event === 'error') {
                        addLine('Error: ' + env.data.message, 'red');
                    } else {
                        addLine(env.event + ' ' + JSON.stringify(env.data), 'blue');
                    }
                });
            };
            ws.onclose = function() {
                addLine('Connection closed');
                updateStatus(false);
                ws = null;
            };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function emit(event, data) {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({ event: event, data: data }));
            } else {
                addLine('Not connected', 'red');
            }
        }

        function createRoom() {
            fetch('/api/v1/rooms', {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: JSON.stringify({ name: field('roomName') })
            }).then(function(r) { return r.json(); }).then(function(room) {
                if (room.id) {
                    document.getElementById('roomId').value = room.id;
                    addLine('Created room ' + room.name + ' (' + room.id + ')');
                } else {
                    addLine('Error: ' + room.message, 'red');
                }
            });
        }

        function listRooms() {
            fetch('/api/v1/rooms').then(function(r) { return r.json(); }).then(function(rooms) {
                rooms.forEach(function(room) {
                    addLine(room.name + ' (' + room.id + ') ' + room.participants.length + ' participants');
                });
            });
        }

        function displayName() {
            const name = field('displayName');
            return name === '' ? null : name;
        }

        function joinRoom() { emit('joinRoom', { roomId: field('roomId'), name: displayName() }); }
        function leaveRoom() { emit('leaveRoom', { roomId: field('roomId') }); }
        function roomInfo() { emit('getRoomInfo', { roomId: field('roomId') }); }
        function updateName() { emit('updateName', { roomId: field('roomId'), name: displayName() }); }

        function sendMessage() {
            const input = document.getElementById('messageInput');
            emit('sendMessage', { roomId: field('roomId'), message: input.value });
            input.value = '';
        }

        document.getElementById('messageInput').addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
