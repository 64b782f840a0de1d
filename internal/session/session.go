// Package session mints and verifies the service's own bearer credential.
// Verification always re-fetches the user row so that deactivating an
// account invalidates outstanding sessions without a revocation list.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blagoySimandov/askgate/internal/apperrors"
	"github.com/blagoySimandov/askgate/internal/models"
	"github.com/blagoySimandov/askgate/internal/store"
	"github.com/golang-jwt/jwt/v5"
)

// Class distinguishes the primary access token from the refresh token.
type Class string

const (
	ClassAccess  Class = "access"
	ClassRefresh Class = "refresh"
)

type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	users      store.UserRepository
	now        func() time.Time
}

func NewManager(secret string, accessTTL, refreshTTL time.Duration, users store.UserRepository) *Manager {
	return &Manager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		users:      users,
		now:        time.Now,
	}
}

func (m *Manager) Issue(userID string, class Class) (string, error) {
	ttl := m.accessTTL
	if class == ClassRefresh {
		ttl = m.refreshTTL
	}

	now := m.now()
	claims := jwt.MapClaims{
		"sub": userID,
		"cls": string(class),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify decodes the token, checks signature, expiry and class, then
// re-fetches the user row to enforce the account-active invariant.
func (m *Manager) Verify(ctx context.Context, tokenString string, class Class) (*models.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.SessionExpired()
		}
		return nil, apperrors.SessionInvalid(err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, apperrors.SessionInvalid(errors.New("malformed claims"))
	}

	if cls, _ := claims["cls"].(string); cls != string(class) {
		return nil, apperrors.SessionInvalid(fmt.Errorf("token class %q not accepted here", cls))
	}

	userID, _ := claims["sub"].(string)
	if userID == "" {
		return nil, apperrors.SessionInvalid(errors.New("missing sub claim"))
	}

	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.SessionInvalid(err)
		}
		return nil, apperrors.Internal(err)
	}

	if !user.Active {
		return nil, apperrors.AccountInactive()
	}

	return user, nil
}
