package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/blagoySimandov/askgate/internal/billing"
	"github.com/blagoySimandov/askgate/internal/models"
	"github.com/blagoySimandov/askgate/internal/store"
	"github.com/google/uuid"
)

// LimitRefresher updates the current period's usage limit after a plan
// change; the consumed count is never touched.
type LimitRefresher interface {
	RefreshLimit(ctx context.Context, userID string, plan models.PlanTier) error
}

type Service struct {
	provider billing.Provider
	subs     store.SubscriptionRepository
	limits   LimitRefresher

	// pastDueKeepsPremium: grace-period policy for failed payments.
	pastDueKeepsPremium bool

	log *slog.Logger
}

func NewService(provider billing.Provider, subs store.SubscriptionRepository, limits LimitRefresher, pastDueKeepsPremium bool, log *slog.Logger) *Service {
	return &Service{
		provider:            provider,
		subs:                subs,
		limits:              limits,
		pastDueKeepsPremium: pastDueKeepsPremium,
		log:                 log,
	}
}

// HandleEvent applies one verified billing event. A nil return acknowledges
// the event as terminal; an error acknowledges failure so the provider's
// retry mechanism takes over. Unrecognized kinds and unresolvable owners are
// acknowledged, since retrying cannot fix either.
func (s *Service) HandleEvent(ctx context.Context, ev *Event) error {
	switch ev.Kind {
	case KindSubscriptionCreated, KindCheckoutCompleted:
		return s.handleActivated(ctx, ev)
	case KindSubscriptionUpdated:
		return s.handleUpdated(ctx, ev)
	case KindSubscriptionDeleted:
		return s.handleDeleted(ctx, ev)
	case KindInvoicePaymentSucceeded:
		return s.handlePaymentOutcome(ctx, ev, models.StatusActive)
	case KindInvoicePaymentFailed:
		return s.handlePaymentOutcome(ctx, ev, models.StatusPastDue)
	default:
		s.log.Info("ignoring unrecognized billing event", "event_id", ev.ID)
		return nil
	}
}

// handleActivated covers subscription.created and checkout completion: the
// user's governing row becomes premium with state mirrored from the
// provider. Checkout payloads carry no status or period, so the provider is
// re-fetched as the authority.
func (s *Service) handleActivated(ctx context.Context, ev *Event) error {
	if ev.SubscriptionID == "" {
		s.log.Info("activation event without subscription, ignoring", "event_id", ev.ID)
		return nil
	}

	if ev.Kind == KindCheckoutCompleted || ev.Status == "" {
		state, err := s.provider.GetSubscription(ctx, ev.SubscriptionID)
		if err != nil {
			return fmt.Errorf("failed to fetch subscription %s: %w", ev.SubscriptionID, err)
		}
		ev.Status = state.Status
		ev.PeriodStart = &state.PeriodStart
		ev.PeriodEnd = &state.PeriodEnd
		ev.CancelAtPeriodEnd = state.CancelAtPeriodEnd
		if ev.CustomerID == "" {
			ev.CustomerID = state.CustomerID
		}
	}

	userID, ok := s.resolveOwner(ctx, ev)
	if !ok {
		return nil
	}

	sub, err := s.matchRow(ctx, ev, userID)
	if err != nil {
		return err
	}

	status := mapStatus(ev.Status)
	if sub == nil {
		sub = &models.Subscription{
			ID:     uuid.New().String(),
			UserID: userID,
		}
		s.applyActivation(sub, ev, status)
		if err := s.subs.Create(ctx, sub); err != nil {
			return err
		}
	} else {
		s.applyActivation(sub, ev, status)
		if err := s.subs.Update(ctx, sub); err != nil {
			return err
		}
	}

	if err := s.limits.RefreshLimit(ctx, userID, models.PlanPremium); err != nil {
		return fmt.Errorf("failed to refresh usage limit for user %s: %w", userID, err)
	}

	s.log.Info("subscription activated", "user_id", userID, "subscription_id", ev.SubscriptionID, "status", status)
	return nil
}

func (s *Service) applyActivation(sub *models.Subscription, ev *Event, status models.SubscriptionStatus) {
	sub.Plan = models.PlanPremium
	sub.Status = status
	sub.StripeCustomerID = &ev.CustomerID
	sub.StripeSubscriptionID = &ev.SubscriptionID
	sub.PeriodStart = ev.PeriodStart
	sub.PeriodEnd = ev.PeriodEnd
	sub.CancelAtPeriodEnd = ev.CancelAtPeriodEnd
	sub.TrialStart = ev.TrialStart
	sub.TrialEnd = ev.TrialEnd
}

// handleUpdated matches by external subscription id first; a user who
// re-subscribed under a new provider-side id may still carry a stale local
// row, which the user-id fallback would otherwise corrupt.
func (s *Service) handleUpdated(ctx context.Context, ev *Event) error {
	sub, err := s.matchRow(ctx, ev, "")
	if err != nil {
		return err
	}
	if sub == nil {
		userID, ok := s.resolveOwner(ctx, ev)
		if !ok {
			return nil
		}
		sub, err = s.governingFor(ctx, userID)
		if err != nil {
			return err
		}
		if sub == nil {
			s.log.Warn("subscription update for unknown subscription, ignoring",
				"event_id", ev.ID, "subscription_id", ev.SubscriptionID)
			return nil
		}
	}

	sub.Status = mapStatus(ev.Status)
	sub.PeriodStart = ev.PeriodStart
	sub.PeriodEnd = ev.PeriodEnd
	sub.CancelAtPeriodEnd = ev.CancelAtPeriodEnd
	if sub.StripeSubscriptionID == nil {
		sub.StripeSubscriptionID = &ev.SubscriptionID
	}

	if err := s.subs.Update(ctx, sub); err != nil {
		return err
	}

	s.log.Info("subscription updated", "subscription_id", ev.SubscriptionID, "status", sub.Status)
	return nil
}

// handleDeleted cancels the subscription and demotes the current period's
// limit to the free tier. The consumed count is unchanged: cancelling
// mid-period does not regain quota.
func (s *Service) handleDeleted(ctx context.Context, ev *Event) error {
	sub, err := s.matchRow(ctx, ev, "")
	if err != nil {
		return err
	}
	if sub == nil {
		userID, ok := s.resolveOwner(ctx, ev)
		if !ok {
			return nil
		}
		sub, err = s.governingFor(ctx, userID)
		if err != nil {
			return err
		}
		if sub == nil {
			s.log.Warn("subscription deletion for unknown subscription, ignoring",
				"event_id", ev.ID, "subscription_id", ev.SubscriptionID)
			return nil
		}
	}

	sub.Status = models.StatusCancelled
	if err := s.subs.Update(ctx, sub); err != nil {
		return err
	}

	if err := s.limits.RefreshLimit(ctx, sub.UserID, models.PlanFree); err != nil {
		return fmt.Errorf("failed to demote usage limit for user %s: %w", sub.UserID, err)
	}

	s.log.Info("subscription cancelled", "user_id", sub.UserID, "subscription_id", ev.SubscriptionID)
	return nil
}

func (s *Service) handlePaymentOutcome(ctx context.Context, ev *Event, status models.SubscriptionStatus) error {
	sub, err := s.matchRow(ctx, ev, "")
	if err != nil {
		return err
	}
	if sub == nil {
		userID, ok := s.resolveOwner(ctx, ev)
		if !ok {
			return nil
		}
		sub, err = s.governingFor(ctx, userID)
		if err != nil {
			return err
		}
		if sub == nil {
			s.log.Warn("payment event for unknown subscription, ignoring",
				"event_id", ev.ID, "subscription_id", ev.SubscriptionID)
			return nil
		}
	}

	sub.Status = status
	if err := s.subs.Update(ctx, sub); err != nil {
		return err
	}

	if status == models.StatusPastDue && !s.pastDueKeepsPremium {
		if err := s.limits.RefreshLimit(ctx, sub.UserID, models.PlanFree); err != nil {
			return fmt.Errorf("failed to demote usage limit for user %s: %w", sub.UserID, err)
		}
	}

	s.log.Info("payment outcome applied", "user_id", sub.UserID, "subscription_id", ev.SubscriptionID, "status", status)
	return nil
}

// matchRow finds the local row for the event's external subscription id,
// falling back to the user's governing row when a user id is already known.
func (s *Service) matchRow(ctx context.Context, ev *Event, userID string) (*models.Subscription, error) {
	if ev.SubscriptionID != "" {
		sub, err := s.subs.GetByStripeSubscriptionID(ctx, ev.SubscriptionID)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	if userID == "" {
		return nil, nil
	}
	return s.governingFor(ctx, userID)
}

func (s *Service) governingFor(ctx context.Context, userID string) (*models.Subscription, error) {
	sub, err := s.subs.GetGoverning(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// resolveOwner maps the event's billing customer to a local user id via the
// provider-side customer metadata. Failures are logged and acknowledged:
// the provider retrying cannot attach a mapping that does not exist.
func (s *Service) resolveOwner(ctx context.Context, ev *Event) (string, bool) {
	if ev.CustomerID == "" {
		s.log.Error("owner resolution failed: event has no customer", "event_id", ev.ID, "kind", ev.Kind.String())
		return "", false
	}
	userID, err := s.provider.ResolveOwner(ctx, ev.CustomerID)
	if err != nil {
		s.log.Error("owner resolution failed", "event_id", ev.ID, "customer_id", ev.CustomerID, "error", err)
		return "", false
	}
	return userID, true
}

func mapStatus(providerStatus string) models.SubscriptionStatus {
	switch providerStatus {
	case "trialing":
		return models.StatusTrialing
	case "past_due", "unpaid":
		return models.StatusPastDue
	case "canceled":
		return models.StatusCancelled
	case "incomplete_expired":
		return models.StatusExpired
	default:
		return models.StatusActive
	}
}
