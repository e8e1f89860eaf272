// Package server implements the HTTP and WebSocket surface of the chat rooms
// service.
//
// The implementation is organized into specialized files for configuration,
// origin checks, hub management, clients, routing, and HTTP handlers. Room
// state and event semantics live in the room and router packages; this
// package only moves bytes between sockets and the router.
package server
