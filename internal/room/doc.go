// Package room owns the in-memory room registry: room lifecycle,
// membership with optional display names, and each room's append-only
// message log.
//
// A Registry guards its room map with one lock and every room with its
// own lock, so mutations on different rooms never wait for each other.
// Values handed out by the registry are snapshots and are safe to read
// after the call returns.
package room
