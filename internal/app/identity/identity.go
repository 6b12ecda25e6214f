// Package identity authenticates API callers from bearer tokens.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Roles understood by the API layer.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Actor is the authenticated caller.
type Actor struct {
	UserID string
	Role   string
}

// Admin reports whether the actor may perform back-office operations.
func (a Actor) Admin() bool { return a.Role == RoleAdmin }

// ErrUnauthenticated is returned for missing, malformed or expired tokens.
var ErrUnauthenticated = errors.New("unauthenticated")

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 bearer tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a verifier over the shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// FromAuthorization extracts the actor from an Authorization header value.
func (v *Verifier) FromAuthorization(header string) (Actor, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return Actor{}, fmt.Errorf("missing bearer token: %w", ErrUnauthenticated)
	}
	return v.Verify(strings.TrimPrefix(header, prefix))
}

// Verify parses and validates a raw token.
func (v *Verifier) Verify(raw string) (Actor, error) {
	var c claims
	token, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Actor{}, fmt.Errorf("invalid token: %w", ErrUnauthenticated)
	}
	if c.Subject == "" {
		return Actor{}, fmt.Errorf("token has no subject: %w", ErrUnauthenticated)
	}
	role := c.Role
	if role == "" {
		role = RoleUser
	}
	return Actor{UserID: c.Subject, Role: role}, nil
}

// Sign issues a token for an actor. Used by tests and provisioning tools.
func (v *Verifier) Sign(actor Actor) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: actor.UserID,
		},
	})
	return token.SignedString(v.secret)
}

type contextKey struct{}

// WithActor attaches the actor to the context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// ActorFrom returns the actor attached by the auth middleware.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(contextKey{}).(Actor)
	return a, ok
}
