package chat

import (
	"log/slog"
)

// Router delivers events to the connections tracked by a Registry. Delivery
// is fire-and-forget: a connection that cannot take a frame is skipped.
type Router struct {
	registry *Registry
	sender   Sender
	log      *slog.Logger
}

// NewRouter creates a router sending through sender.
func NewRouter(log *slog.Logger, registry *Registry, sender Sender) *Router {
	return &Router{registry: registry, sender: sender, log: log}
}

// ToRoom sends event to every connection currently in roomID and returns how
// many connections accepted it. An empty room is not an error.
func (r *Router) ToRoom(roomID, event string, payload interface{}) int {
	targets := r.registry.ConnectionsIn(roomID)
	if len(targets) == 0 {
		return 0
	}
	return r.deliver(targets, event, payload)
}

// ToAll sends event to every live connection.
func (r *Router) ToAll(event string, payload interface{}) int {
	return r.deliver(r.registry.Connections(), event, payload)
}

// ToConnection sends event to a single connection.
func (r *Router) ToConnection(connectionID, event string, payload interface{}) bool {
	return r.deliver([]string{connectionID}, event, payload) == 1
}

// Reply answers a request carrying ack on a single connection.
func (r *Router) Reply(connectionID, event string, ack int64, payload interface{}) bool {
	frame, err := encode(event, payload, &ack)
	if err != nil {
		r.log.Error("encode reply", "event", event, "error", err)
		return false
	}
	return r.sender.Send(connectionID, frame)
}

func (r *Router) deliver(targets []string, event string, payload interface{}) int {
	frame, err := Encode(event, payload)
	if err != nil {
		r.log.Error("encode event", "event", event, "error", err)
		return 0
	}

	delivered := 0
	for _, id := range targets {
		if r.sender.Send(id, frame) {
			delivered++
			continue
		}
		r.log.Debug("frame dropped", "event", event, "connection", id)
	}
	return delivered
}
