package session

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/blagoySimandov/askgate/internal/apperrors"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
)

type Middleware struct {
	manager *Manager
}

func NewMiddleware(manager *Manager) *Middleware {
	return &Middleware{manager: manager}
}

// RequireAuth rejects requests without a valid access token.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := bearerToken(r)
		if !ok {
			writeAuthError(w, apperrors.SessionInvalid(nil))
			return
		}

		user, err := m.manager.Verify(r.Context(), tokenString, ClassAccess)
		if err != nil {
			writeAuthError(w, apperrors.From(err))
			return
		}

		ctx := WithIdentity(r.Context(), Authenticated(user))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth binds an identity when a valid token is present and proceeds
// anonymously otherwise. Verification failures never error here.
func (m *Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := Anonymous()
		if tokenString, ok := bearerToken(r); ok {
			if user, err := m.manager.Verify(r.Context(), tokenString, ClassAccess); err == nil {
				identity = Authenticated(user)
			}
		}

		ctx := WithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get(authorizationHeader)
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimPrefix(header, bearerPrefix)
	return token, token != ""
}

func writeAuthError(w http.ResponseWriter, appErr *apperrors.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Status)
	payload := map[string]any{
		"error": map[string]any{
			"code":      appErr.Code,
			"message":   appErr.Message,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to write JSON error: %v", err)
	}
}
