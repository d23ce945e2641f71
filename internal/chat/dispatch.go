package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// HandleFrame decodes one inbound frame from connectionID and applies it.
// Request failures are answered on the connection; the returned error is
// for the caller's log only.
func (c *Controller) HandleFrame(ctx context.Context, connectionID string, frame []byte) error {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}

	switch env.Event {
	case EventJoinRoom:
		var req JoinRoomRequest
		if err := decodeData(env.Data, &req); err != nil {
			c.respond(connectionID, EventError, env.Ack, ErrorPayload{Error: "Invalid join request"})
			return err
		}
		if err := c.JoinRoom(ctx, connectionID, req.RoomID); err != nil {
			c.respond(connectionID, EventError, env.Ack, ErrorPayload{Error: PublicError(err)})
			return err
		}
		return nil

	case EventLeaveRoom:
		return c.LeaveRoom(ctx, connectionID)

	case EventCreateRoom:
		var req CreateRoomRequest
		if err := decodeData(env.Data, &req); err != nil {
			c.respond(connectionID, EventCreateRoom, env.Ack, CreateRoomResponse{Error: "Invalid room request"})
			return err
		}
		room, err := c.CreateRoom(ctx, connectionID, req)
		if err != nil {
			c.respond(connectionID, EventCreateRoom, env.Ack, CreateRoomResponse{Error: PublicError(err)})
			return err
		}
		c.respond(connectionID, EventCreateRoom, env.Ack, CreateRoomResponse{Room: &room})
		return nil

	case EventSendChat:
		var req ChatRequest
		if err := decodeData(env.Data, &req); err != nil {
			return err
		}
		c.SendMessage(ctx, connectionID, req.Message)
		return nil

	default:
		return fmt.Errorf("unsupported event %q", env.Event)
	}
}

// decodeData accepts either an object or a bare JSON string as data; a bare
// string is used by clients that send join-room(roomId) and
// chat-message(body) positionally.
func decodeData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return errors.New("missing data")
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch req := v.(type) {
		case *JoinRoomRequest:
			req.RoomID = s
			return nil
		case *ChatRequest:
			req.Message = s
			return nil
		}
	}
	return json.Unmarshal(data, v)
}

func (c *Controller) respond(connectionID, event string, ack *int64, payload interface{}) {
	if ack != nil {
		c.router.Reply(connectionID, event, *ack, payload)
		return
	}
	c.router.ToConnection(connectionID, event, payload)
}

// PublicError turns a core error into the message shown to the requester.
func PublicError(err error) string {
	switch {
	case errors.Is(err, ErrUnknownRoom):
		return "Room not found"
	case errors.Is(err, ErrDuplicateRoomName):
		return "Room name already exists"
	case errors.Is(err, ErrInvalidRoomName):
		return "Room name is required"
	case errors.Is(err, ErrInvalidRequest):
		return "Invalid request"
	case errors.Is(err, ErrStoreUnavailable):
		return "Service temporarily unavailable"
	default:
		return "Internal error"
	}
}
