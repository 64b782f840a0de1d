// Package identity verifies externally-issued WorkOS credentials and binds
// them to local user records.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

const workosJWKSURLTemplate = "https://api.workos.com/sso/jwks/%s"

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingClaims = errors.New("missing required claims")
)

// Verified is the provider-attested identity extracted from a credential.
type Verified struct {
	Subject string
	Email   string
}

// TokenVerifier validates an external access credential and returns the
// identity the provider attests to.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Verified, error)
}

// WorkOSVerifier checks access tokens against the WorkOS JWKS.
type WorkOSVerifier struct {
	jwks *keyfunc.JWKS
	mu   sync.RWMutex
}

func NewWorkOSVerifier(clientID string) (*WorkOSVerifier, error) {
	jwksURL := fmt.Sprintf(workosJWKSURLTemplate, clientID)

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	return &WorkOSVerifier{jwks: jwks}, nil
}

func (v *WorkOSVerifier) Verify(ctx context.Context, tokenString string) (*Verified, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	token, err := jwt.Parse(tokenString, v.jwks.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrMissingClaims
	}

	subject, ok := claims["sub"].(string)
	if !ok || subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrMissingClaims)
	}

	email, _ := claims["email"].(string)

	return &Verified{
		Subject: subject,
		Email:   email,
	}, nil
}

func (v *WorkOSVerifier) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
