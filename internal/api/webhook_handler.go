package api

import (
	"context"
	"io"
	"log"
	"net/http"

	"github.com/blagoySimandov/askgate/internal/apperrors"
	"github.com/blagoySimandov/askgate/internal/subscription"
	"github.com/stripe/stripe-go/v84"
)

const maxWebhookBodyBytes = int64(65536)

// SignatureVerifier authenticates a raw webhook payload. It is the sole
// authentication mechanism on this endpoint.
type SignatureVerifier interface {
	VerifyWebhookSignature(payload []byte, signature string) (*stripe.Event, error)
}

// EventHandler applies one decoded billing event.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev *subscription.Event) error
}

type WebhookHandler struct {
	verifier SignatureVerifier
	events   EventHandler
}

func NewWebhookHandler(verifier SignatureVerifier, events EventHandler) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, events: events}
}

func (h *WebhookHandler) HandleBillingWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		log.Printf("Failed to read webhook body: %v", err)
		writeError(w, apperrors.Validation("failed to read body"))
		return
	}

	// Signature verification happens before any payload parsing.
	rawEvent, err := h.verifier.VerifyWebhookSignature(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.Printf("Webhook signature verification failed: %v", err)
		writeError(w, apperrors.WebhookSignatureInvalid(err))
		return
	}

	event, err := subscription.DecodeEvent(rawEvent)
	if err != nil {
		log.Printf("Webhook %s decode failed: %v", rawEvent.Type, err)
		writeError(w, apperrors.Internal(err))
		return
	}

	// A handler error is a failure ack: the provider's retry mechanism is
	// the recovery path, the gateway never retries on its own.
	if err := h.events.HandleEvent(r.Context(), event); err != nil {
		log.Printf("Webhook %s handling failed: %v", rawEvent.Type, err)
		writeError(w, apperrors.Internal(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
