package chat

import "errors"

var (
	ErrMissingCredential   = errors.New("missing credential")
	ErrInvalidCredential   = errors.New("invalid credential")
	ErrUnknownRoom         = errors.New("unknown room")
	ErrDuplicateRoomName   = errors.New("room name already exists")
	ErrInvalidRoomName     = errors.New("room name must not be empty")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrUnknownConnection   = errors.New("unknown connection")
	ErrDuplicateConnection = errors.New("connection already registered")
	ErrProfileNotFound     = errors.New("profile not found")
	ErrInvalidRequest      = errors.New("invalid request")
)

// IsAuthenticationFailure reports whether err rejects a connection attempt.
func IsAuthenticationFailure(err error) bool {
	return errors.Is(err, ErrMissingCredential) || errors.Is(err, ErrInvalidCredential)
}
