package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/chat"
)

func openTestBadger(t *testing.T) *BadgerStore {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	s := NewBadgerStore(db, slog.New(slog.DiscardHandler))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Badger_Recent_Returns_Newest_First_Per_Room(t *testing.T) {
	req := require.New(t)
	s := openTestBadger(t)
	ctx := context.Background()
	at := time.Now().UTC()

	for i := 0; i < 5; i++ {
		req.NoError(s.Append(ctx, chat.Message{
			ID: fmt.Sprintf("g%d", i), RoomID: "general", Username: "alice",
			Body: fmt.Sprintf("general %d", i), Timestamp: at.Add(time.Duration(i) * time.Minute),
		}))
		req.NoError(s.Append(ctx, chat.Message{
			ID: fmt.Sprintf("d%d", i), RoomID: "dev", Username: "bob",
			Body: fmt.Sprintf("dev %d", i), Timestamp: at.Add(time.Duration(i) * time.Minute),
		}))
	}

	messages, err := s.Recent(ctx, "general", 3)
	req.NoError(err)
	req.Len(messages, 3)
	req.Equal("general 4", messages[0].Body)
	req.Equal("general 3", messages[1].Body)
	req.Equal("general 2", messages[2].Body)
	for _, m := range messages {
		req.Equal("general", m.RoomID)
	}

	all, err := s.Recent(ctx, "dev", 0)
	req.NoError(err)
	req.Len(all, 5)

	none, err := s.Recent(ctx, "gen", 10)
	req.NoError(err)
	req.Empty(none)
}

func Test_Badger_Insert_If_Absent_Is_Unique_By_Name(t *testing.T) {
	req := require.New(t)
	s := openTestBadger(t)
	ctx := context.Background()

	const contenders = 8
	errs := make([]error, contenders)
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.InsertIfAbsent(ctx, chat.Room{
				ID: fmt.Sprintf("room-%d", i), Name: "Dev", CreatedAt: time.Now().UTC(),
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		req.ErrorIs(err, chat.ErrDuplicateRoomName)
	}
	req.Equal(1, wins)

	rooms, err := s.ListAll(ctx)
	req.NoError(err)
	req.Len(rooms, 1)
	req.Equal("Dev", rooms[0].Name)
}

func Test_Badger_List_All_Oldest_First(t *testing.T) {
	req := require.New(t)
	s := openTestBadger(t)
	ctx := context.Background()
	at := time.Now().UTC()

	_, err := s.InsertIfAbsent(ctx, chat.Room{ID: "b", Name: "Dev", CreatedAt: at.Add(time.Hour)})
	req.NoError(err)
	_, err = s.InsertIfAbsent(ctx, chat.Room{ID: "a", Name: "General", CreatedBy: chat.SystemCreator, CreatedAt: at})
	req.NoError(err)

	rooms, err := s.ListAll(ctx)
	req.NoError(err)
	req.Len(rooms, 2)
	req.Equal("General", rooms[0].Name)
	req.Equal(chat.SystemCreator, rooms[0].CreatedBy)
	req.Equal("Dev", rooms[1].Name)
}

func Test_Badger_Profiles(t *testing.T) {
	req := require.New(t)
	s := openTestBadger(t)
	ctx := context.Background()

	_, err := s.LoadProfile(ctx, "alice")
	req.ErrorIs(err, chat.ErrProfileNotFound)

	want := chat.Profile{DisplayName: "Alice", AvatarColor: "#123456", Status: chat.StatusAway}
	req.NoError(s.SaveProfile(ctx, "alice", want))

	got, err := s.LoadProfile(ctx, "alice")
	req.NoError(err)
	req.Equal(want, got)
}

func Test_Badger_Honors_Cancelled_Context(t *testing.T) {
	req := require.New(t)
	s := openTestBadger(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req.ErrorIs(s.Append(ctx, chat.Message{ID: "m", RoomID: "general"}), context.Canceled)
	_, err := s.InsertIfAbsent(ctx, chat.Room{ID: "r", Name: "Dev"})
	req.ErrorIs(err, context.Canceled)
}

func Test_Open_Badger_In_Memory(t *testing.T) {
	req := require.New(t)
	s, err := OpenBadger("", slog.New(slog.DiscardHandler))
	req.NoError(err)
	defer s.Close()

	req.NoError(s.Append(context.Background(), chat.Message{ID: "m", RoomID: "general", Body: "hi", Timestamp: time.Now()}))
	messages, err := s.Recent(context.Background(), "general", 10)
	req.NoError(err)
	req.Len(messages, 1)
}
