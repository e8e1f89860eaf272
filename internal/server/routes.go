// Package server wires HTTP handlers into a ServeMux for the chat rooms
// application via routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application routes.
func SetupRoutes(h *Handlers) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /metrics", h.Metrics)
	mux.HandleFunc("GET /ws", h.WebSocket)
	mux.HandleFunc("GET /test", h.TestPage)

	mux.HandleFunc("POST /api/v1/rooms", h.CreateRoom)
	mux.HandleFunc("GET /api/v1/rooms", h.ListRooms)
	mux.HandleFunc("GET /api/v1/rooms/{id}", h.GetRoom)
	mux.HandleFunc("DELETE /api/v1/rooms/{id}", h.DeleteRoom)
	mux.HandleFunc("GET /api/v1/rooms/{id}/messages", h.RoomMessages)
	mux.HandleFunc("GET /api/v1/rooms/{id}/participants", h.RoomParticipants)
	return mux
}
