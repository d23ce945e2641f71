// Package server wires HTTP handlers into a chi router for the RoomChat
// application via routing helpers.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Tyrowin/roomchat/internal/metrics"
)

// SetupRoutes configures the router with every application route: health
// check, WebSocket endpoint, room and profile endpoints, metrics and the
// test page.
func (a *App) SetupRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", HealthHandler)
	r.HandleFunc("/ws", a.WebSocketHandler)
	r.Get("/test", a.TestPageHandler)
	r.Get("/rooms", a.RoomsHandler)
	r.Route("/profiles/{username}", func(r chi.Router) {
		r.Get("/", a.ProfileHandler)
		r.Put("/", a.UpdateProfileHandler)
	})
	r.Handle("/metrics", metrics.Handler(a.gatherer))
	return r
}
