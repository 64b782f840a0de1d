package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/blagoySimandov/askgate/internal/apperrors"
	"github.com/blagoySimandov/askgate/internal/identity"
	"github.com/blagoySimandov/askgate/internal/models"
	"github.com/blagoySimandov/askgate/internal/session"
	"github.com/blagoySimandov/askgate/internal/store"
)

type AuthHandler struct {
	identity *identity.Service
	sessions *session.Manager
	subs     store.SubscriptionRepository
}

func NewAuthHandler(identitySvc *identity.Service, sessions *session.Manager, subs store.SubscriptionRepository) *AuthHandler {
	return &AuthHandler{identity: identitySvc, sessions: sessions, subs: subs}
}

type SignInRequest struct {
	AccessToken string           `json:"accessToken"`
	User        identity.Claimed `json:"user"`
}

type SignInResponse struct {
	Token        string               `json:"token"`
	RefreshToken string               `json:"refreshToken"`
	User         *models.User         `json:"user"`
	Subscription *models.Subscription `json:"subscription"`
	IsNewUser    bool                 `json:"isNewUser"`
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Validation("invalid request body"))
		return
	}

	user, isNew, err := h.identity.BindIdentity(r.Context(), req.AccessToken, req.User)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := h.sessions.Issue(user.ID, session.ClassAccess)
	if err != nil {
		writeError(w, apperrors.Internal(err))
		return
	}
	refreshToken, err := h.sessions.Issue(user.ID, session.ClassRefresh)
	if err != nil {
		writeError(w, apperrors.Internal(err))
		return
	}

	writeJSON(w, http.StatusOK, SignInResponse{
		Token:        token,
		RefreshToken: refreshToken,
		User:         user,
		Subscription: h.governingOrNil(r.Context(), user.ID),
		IsNewUser:    isNew,
	})
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	// Sessions are stateless; the credential simply stops being presented.
	writeJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ident := session.IdentityFromContext(r.Context())
	if !ident.IsAuthenticated() {
		writeError(w, apperrors.UserNotFound())
		return
	}
	user := ident.User()

	writeJSON(w, http.StatusOK, map[string]any{
		"user":         user,
		"subscription": h.governingOrNil(r.Context(), user.ID),
	})
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, apperrors.Validation("refreshToken is required"))
		return
	}

	user, err := h.sessions.Verify(r.Context(), req.RefreshToken, session.ClassRefresh)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := h.sessions.Issue(user.ID, session.ClassAccess)
	if err != nil {
		writeError(w, apperrors.Internal(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *AuthHandler) governingOrNil(ctx context.Context, userID string) *models.Subscription {
	sub, err := h.subs.GetGoverning(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return sub
}
