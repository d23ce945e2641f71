package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ProfileCache holds the last known profile per username. Entries are keyed
// by identity, not by connection, and survive disconnects.
type ProfileCache struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	store    ProfileStore
	timeout  time.Duration
	group    singleflight.Group
	log      *slog.Logger
}

// NewProfileCache creates a cache. store may be nil, in which case cache
// misses fall back to the default profile.
func NewProfileCache(log *slog.Logger, store ProfileStore, timeout time.Duration) *ProfileCache {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &ProfileCache{
		profiles: make(map[string]Profile),
		store:    store,
		timeout:  timeout,
		log:      log,
	}
}

// Put records profile as the current snapshot for username.
func (c *ProfileCache) Put(username string, profile Profile) Profile {
	profile = profile.normalize(username)
	c.mu.Lock()
	c.profiles[username] = profile
	c.mu.Unlock()
	return profile
}

// Get returns the cached profile for username, if any.
func (c *ProfileCache) Get(username string) (Profile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.profiles[username]
	return p, ok
}

// Lookup returns the cached profile, loading it from the profile store on a
// miss. Concurrent misses for the same username share one store call. A
// username the store does not know, or a failing store, yields the default
// profile; the result of a failed load is not cached.
func (c *ProfileCache) Lookup(ctx context.Context, username string) Profile {
	if p, ok := c.Get(username); ok {
		return p
	}
	if c.store == nil {
		return DefaultProfile(username)
	}

	p, err := c.load(ctx, username)
	if err != nil {
		if !errors.Is(err, ErrProfileNotFound) {
			c.log.Warn("profile lookup failed", "username", username, "error", err)
		}
		return DefaultProfile(username)
	}
	return p
}

// Resolve returns the profile a connecting identity is shown with. A cached
// or stored profile always wins over fallback, which usually comes from the
// credential. adopted is true only when fallback became the profile of a
// user nobody knew yet, so the caller should persist it.
func (c *ProfileCache) Resolve(ctx context.Context, username string, fallback Profile) (profile Profile, adopted bool) {
	if p, ok := c.Get(username); ok {
		return p, false
	}
	if c.store != nil {
		p, err := c.load(ctx, username)
		if err == nil {
			return p, false
		}
		if !errors.Is(err, ErrProfileNotFound) {
			c.log.Warn("profile load failed, using credential profile", "username", username, "error", err)
			p, _ := c.putIfAbsent(username, fallback)
			return p, false
		}
	}
	return c.putIfAbsent(username, fallback)
}

func (c *ProfileCache) load(ctx context.Context, username string) (Profile, error) {
	v, err, _ := c.group.Do(username, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		p, err := c.store.LoadProfile(ctx, username)
		if err != nil {
			return nil, err
		}
		// An update that landed during the load is newer than the store.
		p, _ = c.putIfAbsent(username, p)
		return p, nil
	})
	if err != nil {
		return Profile{}, err
	}
	return v.(Profile), nil
}

func (c *ProfileCache) putIfAbsent(username string, profile Profile) (Profile, bool) {
	profile = profile.normalize(username)
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.profiles[username]; ok {
		return existing, false
	}
	c.profiles[username] = profile
	return profile, true
}

// Prune drops cached profiles of usernames for which live reports false and
// returns how many entries were removed.
func (c *ProfileCache) Prune(live func(username string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for username := range c.profiles {
		if !live(username) {
			delete(c.profiles, username)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached profiles.
func (c *ProfileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.profiles)
}
