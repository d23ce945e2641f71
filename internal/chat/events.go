package chat

import "encoding/json"

// Events sent to connections.
const (
	EventMessageHistory     = "message-history"
	EventUserJoinedRoom     = "user-joined-room"
	EventUserLeftRoom       = "user-left-room"
	EventChatMessage        = "chat-message"
	EventRoomCreated        = "room-created"
	EventUserProfileUpdated = "user-profile-updated"
	EventRoomList           = "room-list"
	EventError              = "error"
)

// Events accepted from connections.
const (
	EventJoinRoom   = "join-room"
	EventLeaveRoom  = "leave-room"
	EventCreateRoom = "create-room"
	EventSendChat   = "chat-message"
)

// Envelope is the JSON frame exchanged over a connection. Ack correlates a
// request with its direct response.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   *int64          `json:"ack,omitempty"`
}

// Encode builds the frame for event with payload as data.
func Encode(event string, payload interface{}) ([]byte, error) {
	return encode(event, payload, nil)
}

func encode(event string, payload interface{}, ack *int64) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data, Ack: ack})
}

// ChatLine is the payload of chat-message and of each message-history item.
type ChatLine struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarColor string `json:"avatarColor"`
	Message     string `json:"message"`
	Timestamp   string `json:"timestamp"`
}

// MembershipChange is the payload of user-joined-room and user-left-room.
type MembershipChange struct {
	Username string   `json:"username"`
	RoomID   string   `json:"roomId"`
	Members  []Member `json:"members"`
}

// ProfileChange is the payload of user-profile-updated.
type ProfileChange struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarColor string `json:"avatarColor"`
	Status      Status `json:"status"`
}

// ErrorPayload is sent as data of error frames and failed acknowledgements.
type ErrorPayload struct {
	Error string `json:"error"`
}

// CreateRoomRequest is the data of a create-room event.
type CreateRoomRequest struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=256"`
}

// CreateRoomResponse acknowledges a create-room event.
type CreateRoomResponse struct {
	Room  *Room  `json:"room,omitempty"`
	Error string `json:"error,omitempty"`
}

// JoinRoomRequest is the data of a join-room event.
type JoinRoomRequest struct {
	RoomID string `json:"roomId"`
}

// ChatRequest is the data of an inbound chat-message event.
type ChatRequest struct {
	Message string `json:"message"`
}
