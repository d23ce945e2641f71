package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// MemoryStore is a process-local implementation of every store port. It
// backs development runs without a data directory and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string][]chat.Message
	rooms    []chat.Room
	names    map[string]struct{}
	profiles map[string]chat.Profile
}

var (
	_ chat.MessageStore = (*MemoryStore)(nil)
	_ chat.RoomStore    = (*MemoryStore)(nil)
	_ chat.ProfileStore = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string][]chat.Message),
		names:    make(map[string]struct{}),
		profiles: make(map[string]chat.Profile),
	}
}

func (s *MemoryStore) Append(ctx context.Context, message chat.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Writes may arrive out of order; keep the log sorted by time like the
	// badger keys.
	log := s.messages[message.RoomID]
	i := sort.Search(len(log), func(i int) bool {
		return log[i].Timestamp.After(message.Timestamp)
	})
	s.messages[message.RoomID] = slices.Insert(log, i, message)
	return nil
}

// Recent returns up to limit messages of roomID, newest first.
func (s *MemoryStore) Recent(ctx context.Context, roomID string, limit int) ([]chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.messages[roomID]
	if limit <= 0 || limit > len(log) {
		limit = len(log)
	}
	out := make([]chat.Message, 0, limit)
	for i := len(log) - 1; i >= len(log)-limit; i-- {
		out = append(out, log[i])
	}
	return out, nil
}

func (s *MemoryStore) InsertIfAbsent(ctx context.Context, room chat.Room) (chat.Room, error) {
	if err := ctx.Err(); err != nil {
		return chat.Room{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.names[room.Name]; taken {
		return chat.Room{}, chat.ErrDuplicateRoomName
	}
	s.names[room.Name] = struct{}{}
	s.rooms = append(s.rooms, room)
	return room, nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]chat.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]chat.Room(nil), s.rooms...), nil
}

func (s *MemoryStore) SaveProfile(ctx context.Context, username string, profile chat.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[username] = profile
	return nil
}

func (s *MemoryStore) LoadProfile(ctx context.Context, username string) (chat.Profile, error) {
	if err := ctx.Err(); err != nil {
		return chat.Profile{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[username]
	if !ok {
		return chat.Profile{}, chat.ErrProfileNotFound
	}
	return p, nil
}

// Messages returns the full append-ordered log of roomID.
func (s *MemoryStore) Messages(roomID string) []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]chat.Message(nil), s.messages[roomID]...)
}
