// Package server defines shared types and utility helpers that are reused
// across client, hub and handler logic.
package server

import (
	"net/http"
	"strings"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// Stores groups the durable collaborators of the chat core. Rooms and
// Profiles may be nil.
type Stores struct {
	Messages chat.MessageStore
	Rooms    chat.RoomStore
	Profiles chat.ProfileStore
}

// credentialFrom extracts the bearer credential of a request, from the
// Authorization header or, for browsers that cannot set headers on a
// WebSocket handshake, the token query parameter.
func credentialFrom(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
