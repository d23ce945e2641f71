// Package server exposes HTTP handlers, including WebSocket upgrades, room
// and profile endpoints, health checks, and the built-in test page.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/identity"
)

// WebSocketHandler authenticates the request and upgrades it to a chat
// connection. The credential is checked before the upgrade, so a rejected
// request never becomes a connection and leaves nothing in presence.
func (a *App) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	who, err := a.controller.Authenticate(r.Context(), credentialFrom(r))
	if err != nil {
		a.log.Warn("WebSocket authentication failed", "addr", r.RemoteAddr, "error", err)
		http.Error(w, "Authentication failed", http.StatusUnauthorized)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, a.hub, r.RemoteAddr, who, a.cfg)

	// The hub launches the pump goroutines.
	select {
	case a.hub.register <- client:
	case <-a.hub.ctx.Done():
		_ = conn.Close()
	}
}

// RoomsHandler lists the room directory, oldest first.
func (a *App) RoomsHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.controller.Rooms())
}

// ProfileHandler returns the profile shown for a username.
func (a *App) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	profile := a.controller.Profiles().Lookup(r.Context(), username)
	writeJSON(w, http.StatusOK, profile)
}

// UpdateProfileHandler lets an identity edit its own profile. The change is
// stored and then pushed to every connection.
func (a *App) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	who, err := a.controller.Authenticate(r.Context(), credentialFrom(r))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}
	if who.Username != username {
		writeError(w, http.StatusForbidden, "Cannot edit another user's profile")
		return
	}

	var req identity.ProfileRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.cfg.MaxMessageSize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	profile := req.Profile()

	if a.profiles != nil {
		ctx, cancel := context.WithTimeout(r.Context(), a.cfg.StoreTimeout)
		err := a.profiles.SaveProfile(ctx, username, profile)
		cancel()
		if err != nil {
			a.log.Error("saving profile failed", "username", username, "error", err)
			writeError(w, http.StatusServiceUnavailable, chat.PublicError(fmt.Errorf("%w: %v", chat.ErrStoreUnavailable, err)))
			return
		}
	}

	if err := a.feed.Publish(r.Context(), username, profile); err != nil {
		a.log.Warn("profile update not published", "username", username, "error", err)
	}
	writeJSON(w, http.StatusOK, profile)
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "RoomChat server is running!")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, chat.ErrorPayload{Error: msg})
}
