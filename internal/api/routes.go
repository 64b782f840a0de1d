package api

import (
	"net/http"

	"github.com/blagoySimandov/askgate/internal/ratelimit"
	"github.com/blagoySimandov/askgate/internal/session"
	"github.com/gorilla/mux"
)

type Handlers struct {
	Auth     *AuthHandler
	Usage    *UsageHandler
	Checkout *CheckoutHandler
	Webhook  *WebhookHandler
	Chat     *ChatHandler
}

func SetupRoutes(h Handlers, sessions *session.Middleware, limiter *ratelimit.Limiter, allowedOrigins []string) *mux.Router {
	r := mux.NewRouter()

	r.Use(CORSMiddleware(allowedOrigins))
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)
	r.Use(RateLimitMiddleware(limiter))

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	r.HandleFunc("/auth/signin", h.Auth.SignIn).Methods("POST")
	r.HandleFunc("/auth/refresh", h.Auth.Refresh).Methods("POST")
	r.Handle("/auth/signout", sessions.RequireAuth(http.HandlerFunc(h.Auth.SignOut))).Methods("POST")
	r.Handle("/auth/profile", sessions.RequireAuth(http.HandlerFunc(h.Auth.Profile))).Methods("GET")

	r.Handle("/usage/increment", sessions.RequireAuth(http.HandlerFunc(h.Usage.Increment))).Methods("POST")
	r.Handle("/usage/status", sessions.RequireAuth(http.HandlerFunc(h.Usage.Status))).Methods("GET")

	r.HandleFunc("/subscriptions/plans", h.Checkout.Plans).Methods("GET")
	r.Handle("/subscriptions/create-checkout-session", sessions.RequireAuth(http.HandlerFunc(h.Checkout.CreateCheckoutSession))).Methods("POST")
	r.Handle("/subscriptions/cancel", sessions.RequireAuth(http.HandlerFunc(h.Checkout.Cancel))).Methods("POST")
	r.Handle("/subscriptions/status", sessions.RequireAuth(http.HandlerFunc(h.Checkout.Status))).Methods("GET")

	r.HandleFunc("/webhooks/billing", h.Webhook.HandleBillingWebhook).Methods("POST")

	r.Handle("/chat", sessions.OptionalAuth(http.HandlerFunc(h.Chat.Chat))).Methods("POST")

	return r
}
