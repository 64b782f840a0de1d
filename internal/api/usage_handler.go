package api

import (
	"net/http"

	"github.com/blagoySimandov/askgate/internal/apperrors"
	"github.com/blagoySimandov/askgate/internal/session"
	"github.com/blagoySimandov/askgate/internal/usage"
)

type UsageHandler struct {
	usage *usage.Service
}

func NewUsageHandler(usageSvc *usage.Service) *UsageHandler {
	return &UsageHandler{usage: usageSvc}
}

func (h *UsageHandler) Increment(w http.ResponseWriter, r *http.Request) {
	ident := session.IdentityFromContext(r.Context())
	if !ident.IsAuthenticated() {
		writeError(w, apperrors.SessionInvalid(nil))
		return
	}

	status, err := h.usage.Record(r.Context(), ident.User().ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"questionsUsed":  status.QuestionsUsed,
		"questionsLimit": status.QuestionsLimit,
		"canAskMore":     status.CanAskMore,
	})
}

func (h *UsageHandler) Status(w http.ResponseWriter, r *http.Request) {
	ident := session.IdentityFromContext(r.Context())
	if !ident.IsAuthenticated() {
		writeError(w, apperrors.SessionInvalid(nil))
		return
	}

	status, err := h.usage.StatusFor(r.Context(), ident.User().ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}
