// Package store provides the durable collaborators of the chat core: the
// message log, the room directory and the profile table.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/dgraph-io/badger/v4"
)

const (
	roomPrefix     = "room:"
	roomNamePrefix = "roomname:"
	messagePrefix  = "msg:"
	profilePrefix  = "profile:"

	maxConflictRetries = 3
)

// BadgerStore keeps messages, rooms and profiles in one Badger database.
type BadgerStore struct {
	db  *badger.DB
	log *slog.Logger
}

var (
	_ chat.MessageStore = (*BadgerStore)(nil)
	_ chat.RoomStore    = (*BadgerStore)(nil)
	_ chat.ProfileStore = (*BadgerStore)(nil)
)

// OpenBadger opens (or creates) the database at path. An empty path opens an
// in-memory database.
func OpenBadger(path string, log *slog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return &BadgerStore{db: db, log: log}, nil
}

// NewBadgerStore wraps an already opened database.
func NewBadgerStore(db *badger.DB, log *slog.Logger) *BadgerStore {
	return &BadgerStore{db: db, log: log}
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// messageKey is "msg:{room}:{unix nano, 19 digits}:{id}" so a prefix scan
// per room walks messages in time order, and the id breaks ties between
// messages sharing a nanosecond.
func messageKey(m chat.Message) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d:%s", messagePrefix, m.RoomID, m.Timestamp.UnixNano(), m.ID))
}

// Append writes message to the log of its room.
func (s *BadgerStore) Append(ctx context.Context, message chat.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message), value)
	})
}

// Recent returns up to limit messages of roomID, newest first.
func (s *BadgerStore) Recent(ctx context.Context, roomID string, limit int) ([]chat.Message, error) {
	var messages []chat.Message
	prefix := []byte(messagePrefix + roomID + ":")

	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			var m chat.Message
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &m)
			}); err != nil {
				return err
			}
			messages = append(messages, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// InsertIfAbsent stores room unless its name is taken. The name index and
// the room record are written in one transaction; a conflicting concurrent
// transaction is retried, and then sees the name as taken.
func (s *BadgerStore) InsertIfAbsent(ctx context.Context, room chat.Room) (chat.Room, error) {
	value, err := json.Marshal(room)
	if err != nil {
		return chat.Room{}, err
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return chat.Room{}, err
		}
		err = s.db.Update(func(txn *badger.Txn) error {
			nameKey := []byte(roomNamePrefix + room.Name)
			_, err := txn.Get(nameKey)
			switch {
			case err == nil:
				return chat.ErrDuplicateRoomName
			case !errors.Is(err, badger.ErrKeyNotFound):
				return err
			}
			if err := txn.Set(nameKey, []byte(room.ID)); err != nil {
				return err
			}
			return txn.Set([]byte(roomPrefix+room.ID), value)
		})
		if errors.Is(err, badger.ErrConflict) && attempt < maxConflictRetries {
			s.log.Debug("room insert conflict, retrying", "name", room.Name, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return chat.Room{}, err
		}
		return room, nil
	}
}

// ListAll returns every room, oldest first.
func (s *BadgerStore) ListAll(ctx context.Context) ([]chat.Room, error) {
	var rooms []chat.Room
	prefix := []byte(roomPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var r chat.Room
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &r)
			}); err != nil {
				return err
			}
			rooms = append(rooms, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms, nil
}

// SaveProfile records the latest profile of username.
func (s *BadgerStore) SaveProfile(ctx context.Context, username string, profile chat.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(profilePrefix+username), value)
	})
}

// LoadProfile returns the stored profile of username or
// chat.ErrProfileNotFound.
func (s *BadgerStore) LoadProfile(ctx context.Context, username string) (chat.Profile, error) {
	if err := ctx.Err(); err != nil {
		return chat.Profile{}, err
	}
	var profile chat.Profile
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(profilePrefix + username))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &profile)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return chat.Profile{}, chat.ErrProfileNotFound
	}
	return profile, err
}
