// Package server implements the HTTP and WebSocket surface of RoomChat.
//
// The implementation is organized into specialized files for configuration, hub
// management, clients, routing, and HTTP handlers. The chat semantics live in
// the chat package; this package only moves frames between sockets and the
// chat core.
package server
