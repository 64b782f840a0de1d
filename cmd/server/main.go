package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blagoySimandov/askgate/internal/api"
	"github.com/blagoySimandov/askgate/internal/billing"
	"github.com/blagoySimandov/askgate/internal/chat"
	"github.com/blagoySimandov/askgate/internal/config"
	"github.com/blagoySimandov/askgate/internal/db"
	"github.com/blagoySimandov/askgate/internal/identity"
	"github.com/blagoySimandov/askgate/internal/logger"
	"github.com/blagoySimandov/askgate/internal/ratelimit"
	"github.com/blagoySimandov/askgate/internal/session"
	"github.com/blagoySimandov/askgate/internal/store"
	"github.com/blagoySimandov/askgate/internal/subscription"
	"github.com/blagoySimandov/askgate/internal/usage"
	_ "github.com/joho/godotenv/autoload"
	"github.com/robfig/cron/v3"
)

func main() {
	cfg := config.Load()
	if cfg.SessionSecret == "" {
		log.Fatal("SESSION_SECRET is required")
	}

	bunDB := db.NewBunPostgresClient(cfg.DatabaseURL)
	defer bunDB.Close()

	ctx := context.Background()
	if err := store.InitializeDatabase(ctx, bunDB); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	users := store.NewUserRepository(bunDB)
	subs := store.NewSubscriptionRepository(bunDB)
	usageRepo := store.NewUsageRepository(bunDB)
	st := store.NewStore(bunDB)

	identity.Configure(cfg.WorkOSApiKey)
	verifier, err := identity.NewWorkOSVerifier(cfg.WorkOSClientID)
	if err != nil {
		log.Fatalf("Failed to create token verifier: %v", err)
	}
	defer verifier.Close()

	limits := usage.Limits{Free: cfg.FreeQuestionLimit, Premium: cfg.PremiumQuestionLimit}
	usageSvc := usage.NewService(usageRepo, subs, limits, cfg.UpgradeURL, logger.Log)

	identitySvc := identity.NewService(verifier, identity.WorkOSProfileFetcher{}, users, st, cfg.FreeQuestionLimit, logger.Log)

	billingClient := billing.NewClient(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.StripePremiumPriceID)
	subSvc := subscription.NewService(billingClient, subs, usageSvc, cfg.PastDueKeepsPremium, logger.Log)

	sessions := session.NewManager(cfg.SessionSecret, cfg.SessionTTL, cfg.RefreshTTL, users)

	generator, err := chat.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}

	handlers := api.Handlers{
		Auth:     api.NewAuthHandler(identitySvc, sessions, subs),
		Usage:    api.NewUsageHandler(usageSvc),
		Checkout: api.NewCheckoutHandler(billingClient, users, subs, limits, cfg.FrontendURL),
		Webhook:  api.NewWebhookHandler(billingClient, subSvc),
		Chat:     api.NewChatHandler(usageSvc, generator),
	}

	limiter := ratelimit.NewLimiter(cfg.RateLimitBurst, cfg.RateLimitPerSecond)
	router := api.SetupRoutes(handlers, session.NewMiddleware(sessions), limiter, cfg.AllowedOrigins)

	scheduler := cron.New()
	// First minute of every month: seed fresh usage records for the new period.
	if _, err := scheduler.AddFunc("1 0 1 * *", func() {
		period := usage.PeriodKey(time.Now())
		if err := usageSvc.ResetAllUsage(context.Background(), period); err != nil {
			log.Printf("Monthly usage reset failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule usage reset: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Server starting on %s", cfg.ServerAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed to start: %v", err)
	}

	log.Println("Server stopped")
}
