package room

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenTTL is how long an issued room access token remains valid. Sessions
// are call-scoped and well under an hour, so one TTL covers them all.
const tokenTTL = time.Hour

// VideoGrant is the LiveKit "video" claim controlling what the bearer may do
// in the room.
type VideoGrant struct {
	RoomCreate   bool   `json:"roomCreate,omitempty"`
	RoomJoin     bool   `json:"roomJoin,omitempty"`
	Room         string `json:"room,omitempty"`
	CanPublish   bool   `json:"canPublish,omitempty"`
	CanSubscribe bool   `json:"canSubscribe,omitempty"`
}

// accessClaims is the full LiveKit access token claim set.
type accessClaims struct {
	Video    VideoGrant `json:"video"`
	Metadata string     `json:"metadata,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer mints HS256-signed LiveKit access tokens from an API key pair.
type TokenIssuer struct {
	apiKey string
	secret []byte
}

// NewTokenIssuer builds a token issuer for the given LiveKit API key and
// secret.
func NewTokenIssuer(apiKey, apiSecret string) (*TokenIssuer, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, errors.New("room: api key and secret must not be empty")
	}
	return &TokenIssuer{apiKey: apiKey, secret: []byte(apiSecret)}, nil
}

// Mint issues a token granting identity full publish/subscribe access to
// roomName, valid for one hour.
func (ti *TokenIssuer) Mint(roomName, identity string) (string, error) {
	if roomName == "" {
		return "", errors.New("room: room name must not be empty")
	}
	if identity == "" {
		identity = "agent"
	}

	now := time.Now()
	claims := accessClaims{
		Video: VideoGrant{
			RoomCreate:   true,
			RoomJoin:     true,
			Room:         roomName,
			CanPublish:   true,
			CanSubscribe: true,
		},
		Metadata: "agent",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.apiKey,
			Subject:   identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("room: sign token: %w", err)
	}
	return signed, nil
}
