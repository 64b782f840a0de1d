package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/blagoySimandov/askgate/internal/apperrors"
	"github.com/blagoySimandov/askgate/internal/chat"
	"github.com/blagoySimandov/askgate/internal/session"
	"github.com/blagoySimandov/askgate/internal/usage"
)

// Meter is the admission gate consulted before the proxied call.
type Meter interface {
	Record(ctx context.Context, userID string) (*usage.Status, error)
}

type ChatHandler struct {
	meter     Meter
	generator chat.Generator
}

func NewChatHandler(meter Meter, generator chat.Generator) *ChatHandler {
	return &ChatHandler{meter: meter, generator: generator}
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Response string        `json:"response"`
	Usage    *usage.Status `json:"usage,omitempty"`
}

// Chat serves anonymous and authenticated callers through one path.
// Authenticated callers pass the usage admission check first; the quota is
// charged on admission and is not refunded when the upstream call fails.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeError(w, apperrors.Validation("message is required"))
		return
	}

	var status *usage.Status
	if ident := session.IdentityFromContext(r.Context()); ident.IsAuthenticated() {
		var err error
		status, err = h.meter.Record(r.Context(), ident.User().ID)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	answer, err := h.generator.Generate(r.Context(), req.Message)
	if err != nil {
		log.Printf("Upstream generation failed: %v", err)
		writeError(w, apperrors.Upstream(err))
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Response: answer,
		Usage:    status,
	})
}
