// Package auth signs the OAuth state round-trip and holds password rules
// shared by the web forms and the CLI.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// StateTTL bounds how long a provider round-trip may take
const StateTTL = 10 * time.Minute

var (
	ErrStateMissing  = errors.New("oauth state missing")
	ErrStateMismatch = errors.New("oauth state does not match")
)

// StateClaims represents the OAuth state token claims
type StateClaims struct {
	Next string `json:"next,omitempty"`
	jwt.RegisteredClaims
}

// StateSigner issues and checks OAuth state tokens
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateSigner creates a signer with the given HMAC secret
func NewStateSigner(secret string) (*StateSigner, error) {
	if secret == "" {
		return nil, fmt.Errorf("state secret not initialized")
	}
	return &StateSigner{secret: []byte(secret), ttl: StateTTL, now: time.Now}, nil
}

// Issue creates a signed state token that remembers where to go after login
func (s *StateSigner) Issue(next string) (string, error) {
	now := s.now()
	claims := StateClaims{
		Next: next,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign state: %w", err)
	}
	return signed, nil
}

// Validate parses a state token and returns its claims
func (s *StateSigner) Validate(tokenString string) (*StateClaims, error) {
	if tokenString == "" {
		return nil, ErrStateMissing
	}

	token, err := jwt.ParseWithClaims(tokenString, &StateClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to parse state: %w", err)
	}

	claims, ok := token.Claims.(*StateClaims)
	if !ok || !token.Valid || claims.ID == "" {
		return nil, fmt.Errorf("invalid state")
	}
	return claims, nil
}

// Check validates the state echoed by the provider against the one stored in
// the browser cookie. Both must be valid and carry the same id.
func (s *StateSigner) Check(echoed, stored string) (*StateClaims, error) {
	if echoed == "" || stored == "" {
		return nil, ErrStateMissing
	}
	if echoed != stored {
		return nil, ErrStateMismatch
	}
	return s.Validate(echoed)
}
