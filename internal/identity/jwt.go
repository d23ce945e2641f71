// Package identity verifies bearer credentials and carries profile edits to
// the chat core.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of a chat token. The subject is the username.
type Claims struct {
	DisplayName string `json:"name,omitempty"`
	AvatarColor string `json:"color,omitempty"`
	Status      string `json:"status,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier authenticates HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
	issuer string
}

var _ chat.IdentityVerifier = (*JWTVerifier)(nil)

// NewJWTVerifier creates a verifier. When issuer is not empty, tokens from
// any other issuer are rejected.
func NewJWTVerifier(secret []byte, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: secret, issuer: issuer}
}

// Authenticate parses credential and returns the identity it carries.
func (v *JWTVerifier) Authenticate(_ context.Context, credential string) (chat.Identity, error) {
	if credential == "" {
		return chat.Identity{}, chat.ErrMissingCredential
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return chat.Identity{}, fmt.Errorf("%w: %v", chat.ErrInvalidCredential, err)
	}
	if !token.Valid || claims.Subject == "" {
		return chat.Identity{}, fmt.Errorf("%w: token has no subject", chat.ErrInvalidCredential)
	}

	return chat.Identity{
		Username: claims.Subject,
		Profile: chat.Profile{
			DisplayName: claims.DisplayName,
			AvatarColor: claims.AvatarColor,
			Status:      chat.Status(claims.Status),
		},
	}, nil
}

// IssueToken signs a token for username carrying profile, valid for ttl.
func IssueToken(secret []byte, issuer, username string, profile chat.Profile, ttl time.Duration) (string, error) {
	if username == "" {
		return "", errors.New("username is required")
	}
	now := time.Now()
	claims := &Claims{
		DisplayName: profile.DisplayName,
		AvatarColor: profile.AvatarColor,
		Status:      string(profile.Status),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
