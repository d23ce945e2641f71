package chat_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/chat/mocks"
)

func TestProfileCache(t *testing.T) {
	ctx := context.Background()
	discard := slog.New(slog.DiscardHandler)

	t.Run("should fill missing fields on put", func(t *testing.T) {
		req := require.New(t)
		cache := chat.NewProfileCache(discard, nil, 0)

		stored := cache.Put("alice", chat.Profile{Status: "sleeping"})

		req.Equal(chat.DefaultProfile("alice"), stored)
		got, ok := cache.Get("alice")
		req.True(ok)
		req.Equal(stored, got)
	})

	t.Run("should load a miss once for concurrent callers", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		profiles := mocks.NewMockProfileStore(ctrl)
		release := make(chan struct{})
		profiles.EXPECT().LoadProfile(gomock.Any(), "alice").
			DoAndReturn(func(context.Context, string) (chat.Profile, error) {
				<-release
				return chat.Profile{DisplayName: "Alice", AvatarColor: "#abcdef", Status: chat.StatusAway}, nil
			}).
			Times(1)
		cache := chat.NewProfileCache(discard, profiles, time.Second)

		var wg sync.WaitGroup
		results := make([]chat.Profile, 8)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = cache.Lookup(ctx, "alice")
			}(i)
		}
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		for _, p := range results {
			req.Equal("Alice", p.DisplayName)
		}
		req.Equal(1, cache.Len())
	})

	t.Run("should fall back to the default profile without caching it", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		profiles := mocks.NewMockProfileStore(ctrl)
		profiles.EXPECT().LoadProfile(gomock.Any(), "bob").Return(chat.Profile{}, chat.ErrProfileNotFound)
		profiles.EXPECT().LoadProfile(gomock.Any(), "carol").Return(chat.Profile{}, errors.New("io error"))
		cache := chat.NewProfileCache(discard, profiles, time.Second)

		req.Equal(chat.DefaultProfile("bob"), cache.Lookup(ctx, "bob"))
		req.Equal(chat.DefaultProfile("carol"), cache.Lookup(ctx, "carol"))
		req.Equal(0, cache.Len())
	})

	t.Run("should prune only identities that are gone", func(t *testing.T) {
		req := require.New(t)
		cache := chat.NewProfileCache(discard, nil, 0)
		cache.Put("alice", chat.Profile{})
		cache.Put("bob", chat.Profile{})

		removed := cache.Prune(func(username string) bool { return username == "alice" })

		req.Equal(1, removed)
		_, ok := cache.Get("alice")
		req.True(ok)
		_, ok = cache.Get("bob")
		req.False(ok)
	})
}

func TestProfileCache_Resolve(t *testing.T) {
	ctx := context.Background()
	discard := slog.New(slog.DiscardHandler)
	credential := chat.Profile{DisplayName: "From Token", AvatarColor: "#111111", Status: chat.StatusOnline}

	t.Run("should keep a cached profile", func(t *testing.T) {
		req := require.New(t)
		cache := chat.NewProfileCache(discard, nil, 0)
		edited := cache.Put("alice", chat.Profile{DisplayName: "Edited", AvatarColor: "#222222"})

		got, adopted := cache.Resolve(ctx, "alice", credential)

		req.False(adopted)
		req.Equal(edited, got)
	})

	t.Run("should prefer the stored profile", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		profiles := mocks.NewMockProfileStore(ctrl)
		stored := chat.Profile{DisplayName: "Stored", AvatarColor: "#333333", Status: chat.StatusAway}
		profiles.EXPECT().LoadProfile(gomock.Any(), "alice").Return(stored, nil)
		cache := chat.NewProfileCache(discard, profiles, time.Second)

		got, adopted := cache.Resolve(ctx, "alice", credential)

		req.False(adopted)
		req.Equal(stored, got)
	})

	t.Run("should adopt the credential profile of an unknown user", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		profiles := mocks.NewMockProfileStore(ctrl)
		profiles.EXPECT().LoadProfile(gomock.Any(), "alice").Return(chat.Profile{}, chat.ErrProfileNotFound)
		cache := chat.NewProfileCache(discard, profiles, time.Second)

		got, adopted := cache.Resolve(ctx, "alice", credential)

		req.True(adopted)
		req.Equal(credential, got)
		cached, ok := cache.Get("alice")
		req.True(ok)
		req.Equal(credential, cached)
	})

	t.Run("should not adopt when the store fails", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		profiles := mocks.NewMockProfileStore(ctrl)
		profiles.EXPECT().LoadProfile(gomock.Any(), "alice").Return(chat.Profile{}, errors.New("io error"))
		cache := chat.NewProfileCache(discard, profiles, time.Second)

		got, adopted := cache.Resolve(ctx, "alice", credential)

		req.False(adopted)
		req.Equal(credential, got)
	})
}
