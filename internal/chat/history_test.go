package chat_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/chat/mocks"
	"github.com/Tyrowin/roomchat/internal/store"
)

func appendMessages(t *testing.T, mem *store.MemoryStore, roomID string, n int) {
	t.Helper()
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		require.NoError(t, mem.Append(context.Background(), chat.Message{
			ID:        fmt.Sprintf("m%d", i),
			RoomID:    roomID,
			Username:  "alice",
			Body:      fmt.Sprintf("message %d", i),
			Timestamp: at.Add(time.Duration(i) * time.Second),
		}))
	}
}

func TestHistoryFetcher_Recent(t *testing.T) {
	ctx := context.Background()
	discard := slog.New(slog.DiscardHandler)

	t.Run("should return the newest messages oldest first", func(t *testing.T) {
		req := require.New(t)
		mem := store.NewMemoryStore()
		appendMessages(t, mem, "general", 60)
		appendMessages(t, mem, "dev", 3)
		fetcher := chat.NewHistoryFetcher(mem, chat.NewProfileCache(discard, nil, 0), time.Second)

		entries, err := fetcher.Recent(ctx, "general", 50)

		req.NoError(err)
		req.Len(entries, 50)
		req.Equal("message 10", entries[0].Body)
		req.Equal("message 59", entries[49].Body)
		for i := 1; i < len(entries); i++ {
			req.True(entries[i-1].Timestamp.Before(entries[i].Timestamp))
			req.Equal("general", entries[i].RoomID)
		}
	})

	t.Run("should return everything below the limit", func(t *testing.T) {
		req := require.New(t)
		mem := store.NewMemoryStore()
		appendMessages(t, mem, "general", 3)
		fetcher := chat.NewHistoryFetcher(mem, chat.NewProfileCache(discard, nil, 0), time.Second)

		entries, err := fetcher.Recent(ctx, "general", 50)

		req.NoError(err)
		req.Len(entries, 3)
		req.Equal("message 0", entries[0].Body)
	})

	t.Run("should be empty for a room without messages", func(t *testing.T) {
		fetcher := chat.NewHistoryFetcher(store.NewMemoryStore(), chat.NewProfileCache(discard, nil, 0), time.Second)
		entries, err := fetcher.Recent(ctx, "quiet", 50)
		require.NoError(t, err)
		require.Empty(t, entries)
	})

	t.Run("should decorate with the profile as it is now", func(t *testing.T) {
		req := require.New(t)
		mem := store.NewMemoryStore()
		appendMessages(t, mem, "general", 2)
		profiles := chat.NewProfileCache(discard, nil, 0)
		profiles.Put("alice", chat.Profile{DisplayName: "Old Alice", AvatarColor: "#000000"})
		fetcher := chat.NewHistoryFetcher(mem, profiles, time.Second)

		profiles.Put("alice", chat.Profile{DisplayName: "New Alice", AvatarColor: "#ffffff"})
		entries, err := fetcher.Recent(ctx, "general", 50)

		req.NoError(err)
		for _, e := range entries {
			req.Equal("New Alice", e.DisplayName)
			req.Equal("#ffffff", e.AvatarColor)
		}
	})

	t.Run("should fall back to the default profile for unknown authors", func(t *testing.T) {
		req := require.New(t)
		mem := store.NewMemoryStore()
		appendMessages(t, mem, "general", 1)
		fetcher := chat.NewHistoryFetcher(mem, chat.NewProfileCache(discard, mem, time.Second), time.Second)

		entries, err := fetcher.Recent(ctx, "general", 50)

		req.NoError(err)
		req.Equal("alice", entries[0].DisplayName)
		req.Equal(chat.DefaultAvatarColor, entries[0].AvatarColor)
	})

	t.Run("should report an unavailable store", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		messages := mocks.NewMockMessageStore(ctrl)
		messages.EXPECT().Recent(gomock.Any(), "general", 50).Return(nil, errors.New("timeout"))
		fetcher := chat.NewHistoryFetcher(messages, chat.NewProfileCache(discard, nil, 0), time.Second)

		entries, err := fetcher.Recent(ctx, "general", 50)

		req.ErrorIs(err, chat.ErrStoreUnavailable)
		req.Nil(entries)
	})

	t.Run("should give up on a store that does not answer in time", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		messages := mocks.NewMockMessageStore(ctrl)
		messages.EXPECT().Recent(gomock.Any(), "general", 50).DoAndReturn(
			func(ctx context.Context, _ string, _ int) ([]chat.Message, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			})
		fetcher := chat.NewHistoryFetcher(messages, chat.NewProfileCache(discard, nil, 0), 50*time.Millisecond)

		start := time.Now()
		entries, err := fetcher.Recent(ctx, "general", 50)

		req.ErrorIs(err, chat.ErrStoreUnavailable)
		req.Nil(entries)
		req.Less(time.Since(start), time.Second)
	})

	t.Run("should bound all profile loads by one deadline", func(t *testing.T) {
		req := require.New(t)
		mem := store.NewMemoryStore()
		at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		for i := 0; i < 5; i++ {
			req.NoError(mem.Append(ctx, chat.Message{
				ID:        fmt.Sprintf("m%d", i),
				RoomID:    "general",
				Username:  fmt.Sprintf("user%d", i),
				Body:      "hello",
				Timestamp: at.Add(time.Duration(i) * time.Second),
			}))
		}
		ctrl := gomock.NewController(t)
		profiles := mocks.NewMockProfileStore(ctrl)
		profiles.EXPECT().LoadProfile(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, _ string) (chat.Profile, error) {
				<-ctx.Done()
				return chat.Profile{}, ctx.Err()
			}).AnyTimes()
		fetcher := chat.NewHistoryFetcher(mem, chat.NewProfileCache(discard, profiles, time.Second), 100*time.Millisecond)

		start := time.Now()
		entries, err := fetcher.Recent(ctx, "general", 50)

		req.NoError(err)
		req.Len(entries, 5)
		req.Less(time.Since(start), 400*time.Millisecond)
		req.Equal("user4", entries[4].DisplayName)
	})

	t.Run("should trim a store returning more than asked", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		messages := mocks.NewMockMessageStore(ctrl)
		messages.EXPECT().Recent(gomock.Any(), "general", 2).Return([]chat.Message{
			{ID: "3", Body: "third"}, {ID: "2", Body: "second"}, {ID: "1", Body: "first"},
		}, nil)
		fetcher := chat.NewHistoryFetcher(messages, chat.NewProfileCache(discard, nil, 0), time.Second)

		entries, err := fetcher.Recent(ctx, "general", 2)

		req.NoError(err)
		req.Len(entries, 2)
		req.Equal("second", entries[0].Body)
		req.Equal("third", entries[1].Body)
	})
}
