package chat_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/store"
)

// RecordingSender keeps every frame sent to each connection.
type RecordingSender struct {
	mu     sync.Mutex
	frames map[string][][]byte
	// refuse lists connections whose sends fail.
	refuse map[string]bool
}

func NewRecordingSender() *RecordingSender {
	return &RecordingSender{frames: make(map[string][][]byte), refuse: make(map[string]bool)}
}

func (s *RecordingSender) Send(connectionID string, payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refuse[connectionID] {
		return false
	}
	s.frames[connectionID] = append(s.frames[connectionID], payload)
	return true
}

func (s *RecordingSender) Refuse(connectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refuse[connectionID] = true
}

// Events decodes the envelopes received by connectionID, oldest first.
func (s *RecordingSender) Events(t *testing.T, connectionID string) []chat.Envelope {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	envelopes := make([]chat.Envelope, 0, len(s.frames[connectionID]))
	for _, frame := range s.frames[connectionID] {
		var env chat.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		envelopes = append(envelopes, env)
	}
	return envelopes
}

// Named returns the envelopes of one event type received by connectionID.
func (s *RecordingSender) Named(t *testing.T, connectionID, event string) []chat.Envelope {
	t.Helper()
	var named []chat.Envelope
	for _, env := range s.Events(t, connectionID) {
		if env.Event == event {
			named = append(named, env)
		}
	}
	return named
}

// Reset forgets every frame recorded so far.
func (s *RecordingSender) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = make(map[string][][]byte)
}

func decode[T any](t *testing.T, env chat.Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

type fixture struct {
	ctrl   *chat.Controller
	sender *RecordingSender
	store  *store.MemoryStore
	// general is the id of the default room.
	general string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemoryStore()
	sender := NewRecordingSender()
	ctrl := chat.NewController(chat.Deps{
		Log:      slog.New(slog.DiscardHandler),
		Messages: mem,
		Rooms:    mem,
		Profiles: mem,
		Sender:   sender,
	}, chat.Options{Location: time.UTC})
	t.Cleanup(func() { _ = ctrl.Close(time.Second) })

	require.NoError(t, ctrl.Bootstrap(context.Background()))
	rooms := ctrl.Rooms()
	require.Len(t, rooms, 1)
	return &fixture{ctrl: ctrl, sender: sender, store: mem, general: rooms[0].ID}
}

func (f *fixture) connect(t *testing.T, connectionID, username string) {
	t.Helper()
	require.NoError(t, f.ctrl.Connect(context.Background(), connectionID, chat.Identity{
		Username: username,
		Profile:  chat.Profile{DisplayName: username + " display", AvatarColor: "#112233", Status: chat.StatusOnline},
	}))
}

func usernames(members []chat.Member) []string {
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Username)
	}
	return names
}
