package chat

import (
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"
)

type presence struct {
	conn Connection
	// seq orders room entries so membership lists are stable.
	seq uint64
}

// Registry maps live connections to their identity and current room. It is
// the single source of truth for who is online and where. All mutations
// happen under one lock so membership snapshots never observe a half-applied
// change.
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]*presence
	rooms    map[string]map[string]struct{}
	sessions map[string]int
	seq      uint64
	profiles *ProfileCache
}

// NewRegistry creates an empty registry enriching member lists from profiles.
func NewRegistry(profiles *ProfileCache) *Registry {
	return &Registry{
		conns:    make(map[string]*presence),
		rooms:    make(map[string]map[string]struct{}),
		sessions: make(map[string]int),
		profiles: profiles,
	}
}

// Register adds a connection with no room.
func (r *Registry) Register(connectionID, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[connectionID]; exists {
		return fmt.Errorf("register %s: %w", connectionID, ErrDuplicateConnection)
	}
	r.conns[connectionID] = &presence{conn: Connection{ID: connectionID, Username: username}}
	r.sessions[username]++
	return nil
}

// SetRoom moves the connection into roomID, or out of any room when roomID is
// empty, and returns the room it was in before.
func (r *Registry) SetRoom(connectionID, roomID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.conns[connectionID]
	if !ok {
		return "", fmt.Errorf("set room of %s: %w", connectionID, ErrUnknownConnection)
	}

	previous := p.conn.Room
	if previous == roomID {
		return previous, nil
	}
	r.removeFromRoom(connectionID, previous)

	p.conn.Room = roomID
	if roomID != "" {
		r.seq++
		p.seq = r.seq
		members, ok := r.rooms[roomID]
		if !ok {
			members = make(map[string]struct{})
			r.rooms[roomID] = members
		}
		members[connectionID] = struct{}{}
	}
	return previous, nil
}

// Unregister removes the connection and returns its final state. Removing a
// connection that is not registered fails with ErrUnknownConnection and
// leaves the registry untouched.
func (r *Registry) Unregister(connectionID string) (Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.conns[connectionID]
	if !ok {
		return Connection{}, fmt.Errorf("unregister %s: %w", connectionID, ErrUnknownConnection)
	}
	r.removeFromRoom(connectionID, p.conn.Room)
	delete(r.conns, connectionID)

	username := p.conn.Username
	if r.sessions[username] <= 1 {
		delete(r.sessions, username)
	} else {
		r.sessions[username]--
	}
	return p.conn, nil
}

func (r *Registry) removeFromRoom(connectionID, roomID string) {
	if roomID == "" {
		return
	}
	members := r.rooms[roomID]
	delete(members, connectionID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

// Lookup returns the current state of a connection.
func (r *Registry) Lookup(connectionID string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.conns[connectionID]
	if !ok {
		return Connection{}, false
	}
	return p.conn, true
}

// ConnectionsIn returns the ids of every connection currently in roomID.
func (r *Registry) ConnectionsIn(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.rooms[roomID])
}

// Connections returns the ids of every live connection.
func (r *Registry) Connections() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.conns)
}

// CountFor returns how many live connections belong to username.
func (r *Registry) CountFor(username string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[username]
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// MembersOf returns the identities present in roomID, one entry per
// username even when several of its connections are in the room, ordered by
// when each identity first entered.
func (r *Registry) MembersOf(roomID string) []Member {
	r.mu.RLock()
	first := make(map[string]uint64)
	for id := range r.rooms[roomID] {
		p := r.conns[id]
		if seq, seen := first[p.conn.Username]; !seen || p.seq < seq {
			first[p.conn.Username] = p.seq
		}
	}
	r.mu.RUnlock()

	usernames := lo.Keys(first)
	sort.Slice(usernames, func(i, j int) bool {
		return first[usernames[i]] < first[usernames[j]]
	})

	return lo.Map(usernames, func(username string, _ int) Member {
		profile, ok := r.profiles.Get(username)
		if !ok {
			profile = DefaultProfile(username)
		}
		return Member{
			Username:    username,
			DisplayName: profile.DisplayName,
			AvatarColor: profile.AvatarColor,
			Status:      profile.Status,
		}
	})
}
