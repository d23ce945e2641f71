package identity

import (
	"context"
	"fmt"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ProfileRequest is a profile edit submitted by its owner.
type ProfileRequest struct {
	DisplayName string `json:"displayName" validate:"required,max=64"`
	AvatarColor string `json:"avatarColor" validate:"omitempty,hexcolor"`
	Status      string `json:"status" validate:"omitempty,oneof=online away busy offline"`
}

// Validate checks the request fields.
func (r ProfileRequest) Validate() error {
	return validate.Struct(r)
}

// Profile converts the request into a chat profile.
func (r ProfileRequest) Profile() chat.Profile {
	return chat.Profile{
		DisplayName: r.DisplayName,
		AvatarColor: r.AvatarColor,
		Status:      chat.Status(r.Status),
	}
}

// Feed carries profile updates from the profile-editing side to the
// controller, which consumes Updates.
type Feed struct {
	updates chan chat.ProfileUpdate
}

// NewFeed creates a feed buffering up to size updates.
func NewFeed(size int) *Feed {
	return &Feed{updates: make(chan chat.ProfileUpdate, size)}
}

// Publish hands an update to the consumer, waiting at most until ctx ends.
func (f *Feed) Publish(ctx context.Context, username string, profile chat.Profile) error {
	select {
	case f.updates <- chat.ProfileUpdate{Username: username, Profile: profile}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish profile of %s: %w", username, ctx.Err())
	}
}

// Updates is the consumer side of the feed.
func (f *Feed) Updates() <-chan chat.ProfileUpdate {
	return f.updates
}
