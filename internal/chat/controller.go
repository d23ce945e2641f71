package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const (
	// DefaultStoreTimeout bounds every call into a store.
	DefaultStoreTimeout = 3 * time.Second
	// DefaultTimestampLayout renders message timestamps for clients.
	DefaultTimestampLayout = "2006-01-02 15:04:05"
)

// Options tunes the controller.
type Options struct {
	HistoryLimit     int
	StoreTimeout     time.Duration
	PersistQueueSize int
	TimestampLayout  string
	// Location is the zone timestamps are rendered in. Defaults to time.Local.
	Location      *time.Location
	PruneInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = DefaultHistoryLimit
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = DefaultStoreTimeout
	}
	if o.TimestampLayout == "" {
		o.TimestampLayout = DefaultTimestampLayout
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

// Deps are the collaborators of the controller. Rooms and Profiles may be
// nil; the directory and profile cache then live in memory only.
type Deps struct {
	Log      *slog.Logger
	Verifier IdentityVerifier
	Messages MessageStore
	Rooms    RoomStore
	Profiles ProfileStore
	Sender   Sender
	Metrics  Metrics
}

// ProfileUpdate is pushed by the profile-editing subsystem.
type ProfileUpdate struct {
	Username string
	Profile  Profile
}

// Controller drives the per-connection lifecycle: authenticate, register,
// join and leave rooms, send messages, create rooms, disconnect.
type Controller struct {
	log       *slog.Logger
	verifier  IdentityVerifier
	messages  MessageStore
	profStore ProfileStore
	metrics   Metrics
	opts      Options
	validate  *validator.Validate
	now       func() time.Time

	profiles  *ProfileCache
	registry  *Registry
	directory *Directory
	history   *HistoryFetcher
	router    *Router
	persister *Persister
}

// NewController wires the core components together.
func NewController(deps Deps, opts Options) *Controller {
	opts = opts.withDefaults()
	if deps.Metrics == nil {
		deps.Metrics = NopMetrics{}
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}

	profiles := NewProfileCache(deps.Log, deps.Profiles, opts.StoreTimeout)
	registry := NewRegistry(profiles)

	return &Controller{
		log:       deps.Log,
		verifier:  deps.Verifier,
		messages:  deps.Messages,
		profStore: deps.Profiles,
		metrics:   deps.Metrics,
		opts:      opts,
		validate:  validator.New(),
		now:       time.Now,
		profiles:  profiles,
		registry:  registry,
		directory: NewDirectory(deps.Rooms, opts.StoreTimeout),
		history:   NewHistoryFetcher(deps.Messages, profiles, opts.StoreTimeout),
		router:    NewRouter(deps.Log, registry, deps.Sender),
		persister: NewPersister(deps.Log, deps.Metrics, opts.PersistQueueSize, opts.StoreTimeout),
	}
}

// Registry exposes the presence registry.
func (c *Controller) Registry() *Registry { return c.registry }

// Profiles exposes the profile cache.
func (c *Controller) Profiles() *ProfileCache { return c.profiles }

// Bootstrap loads the room directory and makes sure the default room exists.
func (c *Controller) Bootstrap(ctx context.Context) error {
	if err := c.directory.Load(ctx); err != nil {
		return err
	}
	room, err := c.directory.EnsureDefault(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap default room: %w", err)
	}
	c.log.Info("room directory ready", "rooms", len(c.directory.List()), "default", room.ID)
	return nil
}

// Rooms lists the room directory, oldest first.
func (c *Controller) Rooms() []Room { return c.directory.List() }

// Room returns one room of the directory.
func (c *Controller) Room(roomID string) (Room, error) { return c.directory.Get(roomID) }

// Authenticate verifies credential. It never touches the registry, so a
// failed authentication leaves no trace in presence.
func (c *Controller) Authenticate(ctx context.Context, credential string) (Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		c.metrics.AuthenticationFailed()
		return Identity{}, ErrMissingCredential
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.StoreTimeout)
	defer cancel()

	identity, err := c.verifier.Authenticate(ctx, credential)
	if err != nil {
		c.metrics.AuthenticationFailed()
		if IsAuthenticationFailure(err) {
			return Identity{}, err
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return identity, nil
}

// Connect registers an authenticated connection and sends it the room list.
// The credential's profile is only used for users without a known profile;
// edits made since the credential was issued are kept.
func (c *Controller) Connect(ctx context.Context, connectionID string, identity Identity) error {
	if err := c.registry.Register(connectionID, identity.Username); err != nil {
		c.log.Error("presence invariant violated", "connection", connectionID, "error", err)
		return err
	}
	profile, adopted := c.profiles.Resolve(ctx, identity.Username, identity.Profile)
	c.metrics.ConnectionOpened()

	if adopted && c.profStore != nil {
		username := identity.Username
		c.persister.Submit("save profile", func(ctx context.Context) error {
			return c.profStore.SaveProfile(ctx, username, profile)
		})
	}

	c.router.ToConnection(connectionID, EventRoomList, c.directory.List())
	c.log.Info("connection registered", "connection", connectionID, "username", identity.Username,
		"connections", c.registry.Len())
	return nil
}

// JoinRoom moves the connection into roomID. The previous room, if any, is
// left first and told about it. The joiner privately receives the room's
// recent history, then the new room learns about the join.
func (c *Controller) JoinRoom(ctx context.Context, connectionID, roomID string) error {
	if !c.directory.Exists(roomID) {
		return fmt.Errorf("join %q: %w", roomID, ErrUnknownRoom)
	}
	conn, ok := c.registry.Lookup(connectionID)
	if !ok {
		return fmt.Errorf("join %q: %w", roomID, ErrUnknownConnection)
	}

	if conn.Room != "" && conn.Room != roomID {
		if err := c.leave(connectionID); err != nil {
			return err
		}
	}

	previous, err := c.registry.SetRoom(connectionID, roomID)
	if err != nil {
		return err
	}

	entries, err := c.history.Recent(ctx, roomID, c.opts.HistoryLimit)
	if err != nil {
		c.log.Warn("history unavailable, sending empty history", "room", roomID, "error", err)
		c.metrics.HistoryFailed()
		entries = nil
	}
	lines := lo.Map(entries, func(e HistoryEntry, _ int) ChatLine {
		return ChatLine{
			Username:    e.Username,
			DisplayName: e.DisplayName,
			AvatarColor: e.AvatarColor,
			Message:     e.Body,
			Timestamp:   c.formatTime(e.Timestamp),
		}
	})
	c.router.ToConnection(connectionID, EventMessageHistory, lines)

	if previous == roomID {
		return nil
	}
	c.metrics.RoomJoined()
	c.router.ToRoom(roomID, EventUserJoinedRoom, MembershipChange{
		Username: conn.Username,
		RoomID:   roomID,
		Members:  c.registry.MembersOf(roomID),
	})
	c.log.Debug("joined room", "connection", connectionID, "username", conn.Username, "room", roomID)
	return nil
}

// LeaveRoom takes the connection out of its room. Leaving while not in a
// room does nothing.
func (c *Controller) LeaveRoom(_ context.Context, connectionID string) error {
	return c.leave(connectionID)
}

func (c *Controller) leave(connectionID string) error {
	conn, ok := c.registry.Lookup(connectionID)
	if !ok {
		return fmt.Errorf("leave: %w", ErrUnknownConnection)
	}
	previous, err := c.registry.SetRoom(connectionID, "")
	if err != nil {
		return err
	}
	if previous != "" {
		c.announceLeave(conn.Username, previous)
	}
	return nil
}

func (c *Controller) announceLeave(username, roomID string) {
	c.router.ToRoom(roomID, EventUserLeftRoom, MembershipChange{
		Username: username,
		RoomID:   roomID,
		Members:  c.registry.MembersOf(roomID),
	})
}

// SendMessage broadcasts body to the sender's room and hands the write to
// the persister. Sending outside a room is silently ignored. The broadcast
// does not wait for the write, so a crash in between loses the message.
func (c *Controller) SendMessage(_ context.Context, connectionID, body string) {
	conn, ok := c.registry.Lookup(connectionID)
	if !ok {
		c.log.Error("message from unknown connection dropped", "connection", connectionID)
		return
	}
	if conn.Room == "" || strings.TrimSpace(body) == "" {
		return
	}

	msg := Message{
		ID:        uuid.NewString(),
		RoomID:    conn.Room,
		Username:  conn.Username,
		Body:      body,
		Timestamp: c.now().UTC(),
	}
	c.persister.Submit("append message", func(ctx context.Context) error {
		return c.messages.Append(ctx, msg)
	})

	profile, ok := c.profiles.Get(conn.Username)
	if !ok {
		profile = DefaultProfile(conn.Username)
	}
	c.router.ToRoom(conn.Room, EventChatMessage, ChatLine{
		Username:    conn.Username,
		DisplayName: profile.DisplayName,
		AvatarColor: profile.AvatarColor,
		Message:     msg.Body,
		Timestamp:   c.formatTime(msg.Timestamp),
	})
	c.metrics.MessageBroadcast()
}

// CreateRoom adds a room on behalf of the connection and announces it to
// every connection. Failures are returned to the requester only.
func (c *Controller) CreateRoom(ctx context.Context, connectionID string, req CreateRoomRequest) (Room, error) {
	conn, ok := c.registry.Lookup(connectionID)
	if !ok {
		return Room{}, fmt.Errorf("create room: %w", ErrUnknownConnection)
	}
	if err := c.validate.Struct(req); err != nil {
		if strings.TrimSpace(req.Name) == "" {
			return Room{}, ErrInvalidRoomName
		}
		return Room{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	room, err := c.directory.Create(ctx, req.Name, req.Description, conn.Username)
	if err != nil {
		return Room{}, err
	}
	c.metrics.RoomCreated()
	c.router.ToAll(EventRoomCreated, room)
	c.log.Info("room created", "room", room.ID, "name", room.Name, "by", conn.Username)
	return room, nil
}

// Disconnect removes the connection and tells its room, if any.
func (c *Controller) Disconnect(_ context.Context, connectionID string) {
	conn, err := c.registry.Unregister(connectionID)
	if err != nil {
		c.log.Error("presence invariant violated", "connection", connectionID, "error", err)
		return
	}
	c.metrics.ConnectionClosed()
	if conn.Room != "" {
		c.announceLeave(conn.Username, conn.Room)
	}
	c.log.Info("connection unregistered", "connection", connectionID, "username", conn.Username,
		"connections", c.registry.Len())
}

// ProfileUpdated refreshes the cached profile and tells every connection.
func (c *Controller) ProfileUpdated(username string, profile Profile) {
	profile = c.profiles.Put(username, profile)
	c.router.ToAll(EventUserProfileUpdated, ProfileChange{
		Username:    username,
		DisplayName: profile.DisplayName,
		AvatarColor: profile.AvatarColor,
		Status:      profile.Status,
	})
}

// WatchProfiles applies updates until the channel closes or ctx ends.
func (c *Controller) WatchProfiles(ctx context.Context, updates <-chan ProfileUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			c.ProfileUpdated(u.Username, u.Profile)
		}
	}
}

// Run performs background maintenance until ctx ends: cached profiles of
// identities without live connections are pruned every PruneInterval.
func (c *Controller) Run(ctx context.Context) {
	if c.opts.PruneInterval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(c.opts.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.PruneProfiles(); n > 0 {
				c.log.Debug("pruned cached profiles", "count", n)
			}
		}
	}
}

// PruneProfiles drops cached profiles of identities with no live connection.
func (c *Controller) PruneProfiles() int {
	return c.profiles.Prune(func(username string) bool {
		return c.registry.CountFor(username) > 0
	})
}

// Close drains pending store writes.
func (c *Controller) Close(timeout time.Duration) error {
	return c.persister.Close(timeout)
}

func (c *Controller) formatTime(t time.Time) string {
	return t.In(c.opts.Location).Format(c.opts.TimestampLayout)
}
