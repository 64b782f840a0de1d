package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/blagoySimandov/askgate/internal/apperrors"
	"github.com/blagoySimandov/askgate/internal/billing"
	"github.com/blagoySimandov/askgate/internal/models"
	"github.com/blagoySimandov/askgate/internal/session"
	"github.com/blagoySimandov/askgate/internal/store"
	"github.com/blagoySimandov/askgate/internal/usage"
)

type CheckoutHandler struct {
	billing     billing.Provider
	users       store.UserRepository
	subs        store.SubscriptionRepository
	limits      usage.Limits
	frontendURL string
}

func NewCheckoutHandler(billingProvider billing.Provider, users store.UserRepository, subs store.SubscriptionRepository, limits usage.Limits, frontendURL string) *CheckoutHandler {
	return &CheckoutHandler{
		billing:     billingProvider,
		users:       users,
		subs:        subs,
		limits:      limits,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

type CreateCheckoutRequest struct {
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

type CreateCheckoutResponse struct {
	SessionID   string `json:"sessionId"`
	CheckoutURL string `json:"checkoutUrl"`
}

// CreateCheckoutSession only initiates the checkout flow; the subscription
// itself is confirmed by webhook, never by this response.
func (h *CheckoutHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ident := session.IdentityFromContext(r.Context())
	if !ident.IsAuthenticated() {
		writeError(w, apperrors.SessionInvalid(nil))
		return
	}
	user := ident.User()

	var req CreateCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.Validation("invalid request body"))
		return
	}

	successURL := req.SuccessURL
	cancelURL := req.CancelURL
	if successURL == "" {
		successURL = h.frontendURL + "/billing/success"
	}
	if cancelURL == "" {
		cancelURL = h.frontendURL + "/billing/cancel"
	}

	customerID, err := h.ensureCustomer(r.Context(), user)
	if err != nil {
		log.Printf("Failed to prepare billing customer for user %s: %v", user.ID, err)
		writeError(w, apperrors.PaymentFailed(err))
		return
	}

	checkout, err := h.billing.CreateSubscriptionCheckout(r.Context(), customerID, successURL, cancelURL)
	if err != nil {
		log.Printf("Failed to create checkout session for user %s: %v", user.ID, err)
		writeError(w, apperrors.PaymentFailed(err))
		return
	}

	writeJSON(w, http.StatusOK, CreateCheckoutResponse{
		SessionID:   checkout.ID,
		CheckoutURL: checkout.URL,
	})
}

// Cancel schedules cancellation at period end on the provider side. The
// local row changes only once the resulting webhook arrives.
func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ident := session.IdentityFromContext(r.Context())
	if !ident.IsAuthenticated() {
		writeError(w, apperrors.SessionInvalid(nil))
		return
	}

	sub, err := h.subs.GetGoverning(r.Context(), ident.User().ID)
	if err != nil || sub.StripeSubscriptionID == nil {
		writeError(w, apperrors.SubscriptionNotFound())
		return
	}

	state, err := h.billing.CancelAtPeriodEnd(r.Context(), *sub.StripeSubscriptionID)
	if err != nil {
		log.Printf("Failed to cancel subscription %s: %v", *sub.StripeSubscriptionID, err)
		writeError(w, apperrors.PaymentFailed(err))
		return
	}

	cancelAt := state.CancelAt
	if cancelAt == nil {
		cancelAt = &state.PeriodEnd
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"cancelAt": cancelAt,
	})
}

func (h *CheckoutHandler) Status(w http.ResponseWriter, r *http.Request) {
	ident := session.IdentityFromContext(r.Context())
	if !ident.IsAuthenticated() {
		writeError(w, apperrors.SessionInvalid(nil))
		return
	}

	sub, err := h.subs.GetGoverning(r.Context(), ident.User().ID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{"subscription": nil})
		return
	}
	if err != nil {
		writeError(w, apperrors.Internal(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"subscription": sub})
}

type PlanView struct {
	Plan           models.PlanTier `json:"plan"`
	DisplayName    string          `json:"displayName"`
	QuestionsLimit int             `json:"questionsLimit"`
}

// Plans lists the available tiers with their current question allowances.
func (h *CheckoutHandler) Plans(w http.ResponseWriter, r *http.Request) {
	plans := make([]PlanView, 0, len(billing.TierOrder))
	for _, plan := range billing.TierOrder {
		tier := billing.GetTier(plan)
		plans = append(plans, PlanView{
			Plan:           plan,
			DisplayName:    tier.DisplayName,
			QuestionsLimit: h.limits.For(plan),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": plans})
}

func (h *CheckoutHandler) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	customerID, err := h.billing.CreateCustomer(ctx, user.ID, user.Email)
	if err != nil {
		return "", err
	}
	if err := h.users.UpdateStripeCustomerID(ctx, user.ID, customerID); err != nil {
		return "", err
	}
	return customerID, nil
}
