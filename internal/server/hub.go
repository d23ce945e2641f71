// Package server coordinates client registration, frame delivery, and
// connection cleanup for the chat WebSocket system via the Hub type.
package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// Lifecycle is the part of the chat core the hub drives for each connection.
type Lifecycle interface {
	Connect(ctx context.Context, connectionID string, identity chat.Identity) error
	HandleFrame(ctx context.Context, connectionID string, frame []byte) error
	Disconnect(ctx context.Context, connectionID string)
}

// Hub owns the live WebSocket clients, keyed by connection id. It launches
// the pumps of registered clients and delivers encoded frames to them; it
// implements chat.Sender.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	lifecycle  Lifecycle
	log        *slog.Logger
}

var _ chat.Sender = (*Hub)(nil)

// NewHub creates and initializes a new Hub instance with all necessary channels
// and client map. SetLifecycle must be called before Run.
func NewHub(log *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		log:        log,
	}
}

// SetLifecycle sets the core the hub reports connection events to.
func (h *Hub) SetLifecycle(l Lifecycle) {
	h.lifecycle = l
}

// GetRegisterChan returns the channel used for registering new clients to the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients from the hub.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// ClientCount returns the number of clients currently held by the hub.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Send queues payload on the client with the given connection id. A client
// whose buffer is full is dropped, which closes its connection.
func (h *Hub) Send(connectionID string, payload []byte) bool {
	h.mutex.RLock()
	client, exists := h.clients[connectionID]
	h.mutex.RUnlock()
	if !exists {
		return false
	}

	if h.safeSend(client, payload) {
		return true
	}
	h.removeFailedClients([]*Client{client})
	return false
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("recovered from panic in safeSend", "panic", r)
		}
	}()

	// Hold the lock during the entire send so the channel cannot be closed underneath.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, exists := h.clients[client.id]; !exists || client.closed {
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
// unregistration. This method should be called in a separate goroutine
// as it runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client.id] = client
			clientCount := len(h.clients)
			h.mutex.Unlock()
			h.log.Info("client registered", "addr", client.addr, "connection", client.id,
				"username", client.identity.Username, "clients", clientCount)

			if client.conn == nil {
				continue
			}
			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.mutex.Lock()
			if current, ok := h.clients[client.id]; ok && current == client {
				delete(h.clients, client.id)
				client.closed = true
				clientCount := len(h.clients)
				h.mutex.Unlock()
				// Close the channel after releasing the lock
				close(client.send)
				h.log.Info("client unregistered", "addr", client.addr, "connection", client.id, "clients", clientCount)
			} else {
				h.mutex.Unlock()
			}
		}
	}
}

// removeFailedClients removes clients that failed to receive messages and closes their channels
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if current, exists := h.clients[client.id]; exists && current == client {
			delete(h.clients, client.id)
			client.closed = true
			channelsToClose = append(channelsToClose, client.send)
			h.log.Warn("client removed due to full send buffer", "addr", client.addr, "connection", client.id)
		}
	}
	h.mutex.Unlock()

	// Close channels after releasing the lock
	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownClients gracefully closes all active client connections
func (h *Hub) shutdownClients() {
	h.log.Info("shutting down all client connections")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.log.Warn("error closing client connection", "addr", client.addr, "error", err)
			}
		}
	}

	h.log.Info("closed client connections", "count", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
