package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// DefaultRoomName is the room created on first startup.
const DefaultRoomName = "General"

// SystemCreator is recorded as creator of rooms the server creates itself.
const SystemCreator = "system"

// Directory is the set of known rooms. Names are unique, compared exactly
// after trimming surrounding whitespace.
type Directory struct {
	mu      sync.RWMutex
	byID    map[string]Room
	byName  map[string]string
	order   []string
	// pending holds names whose store insert is in flight.
	pending map[string]struct{}
	store   RoomStore
	timeout time.Duration
	now     func() time.Time
}

// NewDirectory creates an empty directory backed by store, which may be nil
// for a purely in-memory directory.
func NewDirectory(store RoomStore, timeout time.Duration) *Directory {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &Directory{
		byID:    make(map[string]Room),
		byName:  make(map[string]string),
		pending: make(map[string]struct{}),
		store:   store,
		timeout: timeout,
		now:     time.Now,
	}
}

// Load replaces the in-memory directory with the rooms held by the store.
func (d *Directory) Load(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	rooms, err := d.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load rooms: %w: %v", ErrStoreUnavailable, err)
	}
	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})

	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID = make(map[string]Room, len(rooms))
	d.byName = make(map[string]string, len(rooms))
	d.order = d.order[:0]
	for _, room := range rooms {
		d.add(room)
	}
	return nil
}

// EnsureDefault creates the General room unless it already exists. It is
// safe to call on every startup.
func (d *Directory) EnsureDefault(ctx context.Context) (Room, error) {
	room, err := d.Create(ctx, DefaultRoomName, "General discussion", SystemCreator)
	if errors.Is(err, ErrDuplicateRoomName) {
		d.mu.RLock()
		defer d.mu.RUnlock()
		return d.byID[d.byName[DefaultRoomName]], nil
	}
	return room, err
}

// Create adds a room. A name is reserved under the directory lock before
// the store's insert-if-absent runs, so of several concurrent creations with
// the same name exactly one succeeds. The store call itself runs unlocked and
// never delays readers of the directory.
func (d *Directory) Create(ctx context.Context, name, description, creator string) (Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Room{}, ErrInvalidRoomName
	}

	if err := d.reserve(name); err != nil {
		return Room{}, err
	}
	defer d.release(name)

	room := Room{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedBy:   creator,
		CreatedAt:   d.now().UTC(),
	}

	if d.store != nil {
		sctx, cancel := context.WithTimeout(ctx, d.timeout)
		stored, err := d.store.InsertIfAbsent(sctx, room)
		cancel()
		switch {
		case errors.Is(err, ErrDuplicateRoomName):
			return Room{}, fmt.Errorf("create %q: %w", name, ErrDuplicateRoomName)
		case err != nil:
			return Room{}, fmt.Errorf("create %q: %w: %v", name, ErrStoreUnavailable, err)
		}
		room = stored
	}

	d.mu.Lock()
	d.add(room)
	d.mu.Unlock()
	return room, nil
}

func (d *Directory) reserve(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.byName[name]; exists {
		return fmt.Errorf("create %q: %w", name, ErrDuplicateRoomName)
	}
	if _, busy := d.pending[name]; busy {
		return fmt.Errorf("create %q: %w", name, ErrDuplicateRoomName)
	}
	d.pending[name] = struct{}{}
	return nil
}

func (d *Directory) release(name string) {
	d.mu.Lock()
	delete(d.pending, name)
	d.mu.Unlock()
}

func (d *Directory) add(room Room) {
	d.byID[room.ID] = room
	d.byName[room.Name] = room.ID
	// Inserts can finish out of order; keep order by creation time.
	i := sort.Search(len(d.order), func(i int) bool {
		return d.byID[d.order[i]].CreatedAt.After(room.CreatedAt)
	})
	d.order = slices.Insert(d.order, i, room.ID)
}

// Get returns the room with the given id.
func (d *Directory) Get(roomID string) (Room, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	room, ok := d.byID[roomID]
	if !ok {
		return Room{}, fmt.Errorf("room %q: %w", roomID, ErrUnknownRoom)
	}
	return room, nil
}

// Exists reports whether roomID names a known room.
func (d *Directory) Exists(roomID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.byID[roomID]
	return ok
}

// List returns all rooms, oldest first.
func (d *Directory) List() []Room {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return lo.Map(d.order, func(id string, _ int) Room { return d.byID[id] })
}
