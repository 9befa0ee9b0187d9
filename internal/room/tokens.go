package room

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrBadToken is returned for rejoin tokens that fail validation
var ErrBadToken = errors.New("invalid rejoin token")

// RejoinClaims identify a held tank a reconnecting client may reclaim
type RejoinClaims struct {
	Room   string `json:"room"`
	Player string `json:"pid"`
	Team   int    `json:"team"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and checks rejoin tokens
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates an issuer. An empty secret gets a random one, so
// tokens only survive as long as the process.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
	}
	return &TokenIssuer{secret: key, ttl: ttl}, nil
}

// Issue signs a token for playerID in room
func (t *TokenIssuer) Issue(room, playerID string, team int) (string, error) {
	now := time.Now()
	claims := RejoinClaims{
		Room:   room,
		Player: playerID,
		Team:   team,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign rejoin token: %w", err)
	}
	return signed, nil
}

// Parse validates a token and returns its claims
func (t *TokenIssuer) Parse(token string) (RejoinClaims, error) {
	var claims RejoinClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return RejoinClaims{}, fmt.Errorf("%w: %v", ErrBadToken, err)
	}
	if claims.Room == "" || claims.Player == "" {
		return RejoinClaims{}, fmt.Errorf("%w: missing claims", ErrBadToken)
	}
	return claims, nil
}
