package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/identity"
	"github.com/Tyrowin/roomchat/internal/metrics"
)

// App wires the hub, the chat core and the HTTP surface together.
type App struct {
	cfg        Config
	log        *slog.Logger
	hub        *Hub
	controller *chat.Controller
	profiles   chat.ProfileStore
	feed       *identity.Feed
	gatherer   prometheus.Gatherer
	upgrader   websocket.Upgrader
	cancel     context.CancelFunc
}

// New builds an App. reg receives the chat metrics and is served on /metrics.
func New(cfg Config, log *slog.Logger, verifier chat.IdentityVerifier, stores Stores, reg *prometheus.Registry) *App {
	cfg = sanitize(cfg)
	hub := NewHub(log)

	controller := chat.NewController(chat.Deps{
		Log:      log,
		Verifier: verifier,
		Messages: stores.Messages,
		Rooms:    stores.Rooms,
		Profiles: stores.Profiles,
		Sender:   hub,
		Metrics:  metrics.NewCollector(reg),
	}, chat.Options{
		HistoryLimit:     cfg.HistoryLimit,
		StoreTimeout:     cfg.StoreTimeout,
		PersistQueueSize: cfg.PersistQueue,
		TimestampLayout:  cfg.TimestampLayout,
		PruneInterval:    cfg.PruneInterval,
	})
	hub.SetLifecycle(controller)

	origins := newOriginPolicy(cfg.AllowedOrigins, log)
	return &App{
		cfg:        cfg,
		log:        log,
		hub:        hub,
		controller: controller,
		profiles:   stores.Profiles,
		feed:       identity.NewFeed(64),
		gatherer:   reg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
	}
}

// Hub returns the connection hub.
func (a *App) Hub() *Hub { return a.hub }

// Controller returns the chat core.
func (a *App) Controller() *chat.Controller { return a.controller }

// Start loads the room directory and starts the hub and background workers.
func (a *App) Start(ctx context.Context) error {
	if err := a.controller.Bootstrap(ctx); err != nil {
		return err
	}

	ctx, a.cancel = context.WithCancel(ctx)
	go a.hub.Run()
	go a.controller.Run(ctx)
	go a.controller.WatchProfiles(ctx, a.feed.Updates())
	a.log.Info("hub started and ready to manage WebSocket connections")
	return nil
}

// Shutdown closes every connection, stops background workers and drains
// pending store writes.
func (a *App) Shutdown(timeout time.Duration) error {
	hubErr := a.hub.Shutdown(timeout)
	if a.cancel != nil {
		a.cancel()
	}
	return errors.Join(hubErr, a.controller.Close(timeout))
}

// Handler returns the HTTP handler serving every route.
func (a *App) Handler() http.Handler {
	return a.SetupRoutes()
}
