// Package identity resolves player tokens to player IDs.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidSigningAlg = errors.New("unexpected signing algorithm")
	ErrInvalidSubject    = errors.New("token subject is not a player id")
)

// Resolver maps a token to the player it was issued for.
type Resolver interface {
	ResolvePlayer(ctx context.Context, token string) (uuid.UUID, bool)
}

// Issuer creates tokens that a matching Resolver accepts.
type Issuer interface {
	Issue(playerID uuid.UUID) (string, error)
}

// UUIDResolver treats the token itself as the player ID. Development only.
type UUIDResolver struct{}

func (UUIDResolver) Issue(playerID uuid.UUID) (string, error) {
	return playerID.String(), nil
}

func (UUIDResolver) ResolvePlayer(_ context.Context, token string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(token))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// JWTResolver verifies HS256 tokens whose subject is the player ID.
type JWTResolver struct {
	secret []byte
	issuer string
	maxAge time.Duration
	clock  clockwork.Clock
}

// NewJWTResolver creates a resolver. A nil clock means the real clock.
func NewJWTResolver(secret, issuer string, maxAge time.Duration, clock clockwork.Clock) *JWTResolver {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &JWTResolver{secret: []byte(secret), issuer: issuer, maxAge: maxAge, clock: clock}
}

// Issue signs a token for playerID.
func (r *JWTResolver) Issue(playerID uuid.UUID) (string, error) {
	now := r.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   playerID.String(),
		Issuer:    r.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(r.maxAge)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses token and returns its player ID.
func (r *JWTResolver) Verify(token string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSigningAlg
		}
		return r.secret, nil
	},
		jwt.WithIssuer(r.issuer),
		jwt.WithTimeFunc(r.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return uuid.Nil, err
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidSubject
	}
	return id, nil
}

func (r *JWTResolver) ResolvePlayer(_ context.Context, token string) (uuid.UUID, bool) {
	id, err := r.Verify(strings.TrimPrefix(token, "Bearer "))
	if err != nil {
		log.Debug().Err(err).Msg("rejected player token")
		return uuid.Nil, false
	}
	return id, true
}
