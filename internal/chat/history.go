package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
)

// DefaultHistoryLimit is how many messages a join replays.
const DefaultHistoryLimit = 50

// HistoryFetcher reads recent room messages back from the message store.
type HistoryFetcher struct {
	store    MessageStore
	profiles *ProfileCache
	timeout  time.Duration
}

// NewHistoryFetcher creates a fetcher over store.
func NewHistoryFetcher(store MessageStore, profiles *ProfileCache, timeout time.Duration) *HistoryFetcher {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &HistoryFetcher{store: store, profiles: profiles, timeout: timeout}
}

// Recent returns up to limit of the newest messages of roomID, oldest first.
// Authors are decorated with their profile as it is now, not as it was when
// the message was sent. The store read and every profile load share one
// deadline.
func (h *HistoryFetcher) Recent(ctx context.Context, roomID string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	sctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	messages, err := h.store.Recent(sctx, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("history of %s: %w: %v", roomID, ErrStoreUnavailable, err)
	}
	if len(messages) > limit {
		messages = messages[:limit]
	}
	lo.Reverse(messages)

	seen := make(map[string]Profile)
	return lo.Map(messages, func(m Message, _ int) HistoryEntry {
		profile, ok := seen[m.Username]
		if !ok {
			profile = h.profiles.Lookup(sctx, m.Username)
			seen[m.Username] = profile
		}
		return HistoryEntry{
			Message:     m,
			DisplayName: profile.DisplayName,
			AvatarColor: profile.AvatarColor,
		}
	}), nil
}
