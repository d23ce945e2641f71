//go:generate go run go.uber.org/mock/mockgen -source=ports.go -destination=mocks/mock_ports.go -package=mocks
package chat

import "context"

// IdentityVerifier maps a presented credential to an identity.
type IdentityVerifier interface {
	Authenticate(ctx context.Context, credential string) (Identity, error)
}

// MessageStore is the durable, append-only message log.
type MessageStore interface {
	Append(ctx context.Context, message Message) error
	// Recent returns at most limit messages of the room, newest first.
	Recent(ctx context.Context, roomID string, limit int) ([]Message, error)
}

// RoomStore persists the room directory.
type RoomStore interface {
	// InsertIfAbsent stores room unless a room with the same name exists,
	// in which case it fails with ErrDuplicateRoomName.
	InsertIfAbsent(ctx context.Context, room Room) (Room, error)
	ListAll(ctx context.Context) ([]Room, error)
}

// ProfileStore keeps the last known profile of each username.
type ProfileStore interface {
	SaveProfile(ctx context.Context, username string, profile Profile) error
	LoadProfile(ctx context.Context, username string) (Profile, error)
}

// Sender delivers an encoded frame to a single live connection. It reports
// false when the connection is gone or cannot take more frames.
type Sender interface {
	Send(connectionID string, payload []byte) bool
}
