// Package identity resolves the acting user from bearer tokens issued by the
// identity provider in front of this service. It only consumes identity; it
// never issues credentials.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers malformed, expired, or mis-signed tokens.
var ErrInvalidToken = errors.New("identity: invalid token")

// Actor is the authenticated caller stamped onto lockedBy, qaEmail, and
// resolvedBy fields.
type Actor struct {
	Email string
	Role  string
}

// Verifier validates HS256 bearer tokens against the shared secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses the token and extracts the actor's email and optional role.
func (v *Verifier) Verify(tokenString string) (Actor, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Actor{}, ErrInvalidToken
	}

	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return Actor{}, fmt.Errorf("%w: missing email claim", ErrInvalidToken)
	}

	actor := Actor{Email: email}
	if role, ok := claims["role"].(string); ok {
		actor.Role = role
	}
	return actor, nil
}

type ctxKey struct{}

// WithActor attaches the actor to the context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext returns the actor placed by the auth middleware.
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok
}
