// Package chat holds the presence and room-membership core of the chat
// service: who is connected, which room each connection sits in, and how
// events reach the connections of a room.
package chat

import "time"

// Status is the availability a user advertises on their profile.
type Status string

// Supported profile statuses.
const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusOffline:
		return true
	}
	return false
}

// Profile is the display information attached to a username.
type Profile struct {
	DisplayName string `json:"displayName"`
	AvatarColor string `json:"avatarColor"`
	Status      Status `json:"status"`
}

// Identity is an authenticated user as returned by the identity verifier.
type Identity struct {
	Username string
	Profile  Profile
}

// Room is a named channel scoping broadcast and history.
type Room struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Message is a persisted chat line. Messages are append-only.
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	Username  string    `json:"username"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// Connection is one live client session tracked by the Registry.
type Connection struct {
	ID       string
	Username string
	// Room is empty while the connection is not in a room.
	Room string
}

// Member is one identity present in a room.
type Member struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarColor string `json:"avatarColor"`
	Status      Status `json:"status"`
}

// HistoryEntry is a message decorated with its author's current profile.
type HistoryEntry struct {
	Message
	DisplayName string
	AvatarColor string
}

// DefaultProfile is what a user without any known profile is shown as.
func DefaultProfile(username string) Profile {
	return Profile{
		DisplayName: username,
		AvatarColor: DefaultAvatarColor,
		Status:      StatusOnline,
	}
}

// DefaultAvatarColor is used when a profile carries no color.
const DefaultAvatarColor = "#6c757d"

// normalize fills empty profile fields with defaults.
func (p Profile) normalize(username string) Profile {
	if p.DisplayName == "" {
		p.DisplayName = username
	}
	if p.AvatarColor == "" {
		p.AvatarColor = DefaultAvatarColor
	}
	if !p.Status.Valid() {
		p.Status = StatusOnline
	}
	return p
}
