package session

import (
	"context"

	"github.com/blagoySimandov/askgate/internal/models"
)

// Identity is the caller's resolved identity for a request: either anonymous
// or a verified, active user. Anonymous and authenticated callers share one
// code path downstream.
type Identity struct {
	user *models.User
}

func Anonymous() Identity {
	return Identity{}
}

func Authenticated(user *models.User) Identity {
	return Identity{user: user}
}

func (i Identity) IsAuthenticated() bool {
	return i.user != nil
}

// User returns the bound user; callers must check IsAuthenticated first.
func (i Identity) User() *models.User {
	return i.user
}

type contextKey string

const identityContextKey contextKey = "identity"

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext returns the request identity, defaulting to anonymous
// when no middleware has run.
func IdentityFromContext(ctx context.Context) Identity {
	if identity, ok := ctx.Value(identityContextKey).(Identity); ok {
		return identity
	}
	return Anonymous()
}
